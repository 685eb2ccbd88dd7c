package realtime

import (
	"context"
	"sync"
	"time"

	"realtime-chat-api/internal/models"
	"realtime-chat-api/internal/store"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Options tunes a Hub.
type Options struct {
	// DefaultRoom is joined on connect when the handshake names no room.
	DefaultRoom string
	// EchoSelf sends a sender's messages to its other sessions too.
	EchoSelf bool
	// SinkTimeout bounds each presence sink call.
	SinkTimeout time.Duration
}

// Hub ties the registry, membership, router and typing relay to connection
// lifecycle events coming from a transport.
type Hub struct {
	reg        *Registry
	membership *Membership
	router     *Router
	typing     *TypingRelay
	store      store.MessageStore
	sinks      []store.PresenceSink
	log        *zap.Logger
	opts       Options

	presenceMu sync.Mutex
	now        func() time.Time
}

// NewHub builds a hub around st. Nil sinks are ignored.
func NewHub(st store.MessageStore, log *zap.Logger, opts Options, sinks ...store.PresenceSink) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.SinkTimeout <= 0 {
		opts.SinkTimeout = 5 * time.Second
	}
	reg := NewRegistry(NewPresence())
	membership := NewMembership(reg, log)
	return &Hub{
		reg:        reg,
		membership: membership,
		router:     NewRouter(reg, membership, st, log, opts.EchoSelf),
		typing:     NewTypingRelay(reg),
		store:      st,
		sinks:      lo.Compact(sinks),
		log:        log,
		opts:       opts,
		now:        time.Now,
	}
}

func (h *Hub) Registry() *Registry { return h.reg }
func (h *Hub) Router() *Router { return h.router }
func (h *Hub) Typing() *TypingRelay { return h.typing }
func (h *Hub) Membership() *Membership { return h.membership }
func (h *Hub) Presence() *Presence { return h.reg.Presence() }

// Connect registers conn for identity and puts it in room, or in the default
// room when room is empty. Connecting the same conn twice is a no-op.
func (h *Hub) Connect(ctx context.Context, conn Conn, identity models.Identity, room string) Session {
	reg := h.reg.Register(conn, identity)
	if !reg.Created {
		return reg.Session
	}

	online := lo.Without(h.reg.Presence().Online(), identity.ID)
	deliver([]Session{reg.Session}, PresenceListFrame{Event: EventPresenceList, Users: online})

	if reg.Presence != nil {
		h.publishPresence(ctx, *reg.Presence, reg.Observers)
	}

	if room = TruncateName(room); room == "" {
		room = h.opts.DefaultRoom
	}
	if room != "" {
		if _, err := h.membership.Join(reg.Session.ID, room); err != nil {
			h.log.Debug("initial join failed", zap.Uint64("session", uint64(reg.Session.ID)), zap.Error(err))
		}
	}

	h.log.Info("session connected",
		zap.Uint64("session", uint64(reg.Session.ID)),
		zap.String("conn_id", reg.Session.ConnID),
		zap.String("user_id", identity.ID))

	s, ok := h.reg.Get(reg.Session.ID)
	if !ok {
		return reg.Session
	}
	return s
}

// Disconnect releases the session, its room membership and, for the identity's
// last session, its presence. It reports false when the session was already gone.
func (h *Hub) Disconnect(ctx context.Context, id SessionID) bool {
	rm, ok := h.reg.Unregister(id)
	if !ok {
		return false
	}
	if rm.Left != nil {
		h.membership.announceLeave(rm.Session, rm.Left.From, rm.Left.FromMembers)
	}
	if rm.Presence != nil {
		h.publishPresence(ctx, *rm.Presence, rm.Observers)
	}
	h.log.Info("session disconnected",
		zap.Uint64("session", uint64(id)),
		zap.String("conn_id", rm.Session.ConnID),
		zap.String("user_id", rm.Session.Identity.ID))
	return true
}

// Shutdown closes every live connection and releases its session.
func (h *Hub) Shutdown(ctx context.Context) int {
	n := 0
	for _, s := range h.reg.Sessions() {
		s.Conn.Close()
		if h.Disconnect(ctx, s.ID) {
			n++
		}
	}
	return n
}

// Ack records that the session is alive.
func (h *Hub) Ack(id SessionID) {
	h.reg.Ack(id)
}

// HandleFrame processes one payload read from the session's connection.
// Any inbound frame also counts as a liveness acknowledgment.
func (h *Hub) HandleFrame(ctx context.Context, id SessionID, raw []byte) error {
	h.reg.Ack(id)

	f := ParseInbound(raw)
	switch f.Action {
	case ActionJoin:
		if f.User != "" {
			if _, err := h.reg.Rename(id, f.User); err != nil {
				return err
			}
		}
		room := TruncateName(f.Room)
		if room == "" {
			return nil
		}
		_, err := h.membership.Join(id, room)
		return err
	case ActionLeave:
		_, err := h.membership.Leave(id)
		return err
	case ActionTypingStart:
		_, err := h.typing.Start(id, Target{Room: f.Room, To: f.To})
		return err
	case ActionTypingStop:
		_, err := h.typing.Stop(id, Target{Room: f.Room, To: f.To})
		return err
	case ActionMarkRead:
		return h.markRead(ctx, id, f)
	case ActionPing:
		s, ok := h.reg.Get(id)
		if !ok {
			return ErrSessionNotFound
		}
		deliver([]Session{s}, PongFrame{Event: EventPong, TS: h.now().UnixMilli()})
		return nil
	default:
		_, err := h.router.Route(ctx, id, f)
		return err
	}
}

func (h *Hub) markRead(ctx context.Context, id SessionID, f InboundFrame) error {
	reader, ok := h.reg.Get(id)
	if !ok {
		return ErrSessionNotFound
	}
	ids := lo.Uniq(lo.Compact(f.MessageIDs))
	if len(ids) == 0 {
		return nil
	}
	n, err := h.store.MarkRead(ctx, ids, reader.Identity.ID)
	if err != nil {
		h.log.Warn("mark read failed", zap.String("user_id", reader.Identity.ID), zap.Error(err))
		return err
	}
	if n > 0 && f.To != "" {
		deliver(h.reg.Lookup(f.To), ReadFrame{Event: EventMessagesRead, MessageIDs: ids, ReadBy: reader.Identity.ID})
	}
	return nil
}

// publishPresence sends a presence transition to observers and then to every
// sink. Publications are serialized, and a transition that has already been
// superseded in memory is dropped, so a reconnect racing a disconnect never
// leaves observers or sinks on the older state.
func (h *Hub) publishPresence(ctx context.Context, ev PresenceEvent, observers []Session) {
	h.presenceMu.Lock()
	defer h.presenceMu.Unlock()

	if h.reg.Presence().IsOnline(ev.UserID) != ev.Online {
		h.log.Debug("stale presence transition dropped", zap.String("user_id", ev.UserID), zap.Bool("online", ev.Online))
		return
	}
	deliver(observers, newPresenceFrame(ev))
	for _, sink := range h.sinks {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.opts.SinkTimeout)
		if err := sink.PresenceChanged(sctx, ev.UserID, ev.Online, ev.At); err != nil {
			h.log.Warn("presence sink failed", zap.String("user_id", ev.UserID), zap.Bool("online", ev.Online), zap.Error(err))
		}
		cancel()
	}
}

// refresher is implemented by sinks whose entries expire unless renewed.
type refresher interface {
	Refresh(ctx context.Context, userIDs []string) error
}

func (h *Hub) refreshSinks(ctx context.Context) {
	online := h.reg.Presence().Online()
	for _, sink := range h.sinks {
		r, ok := sink.(refresher)
		if !ok {
			continue
		}
		sctx, cancel := context.WithTimeout(ctx, h.opts.SinkTimeout)
		if err := r.Refresh(sctx, online); err != nil {
			h.log.Warn("presence refresh failed", zap.Error(err))
		}
		cancel()
	}
}
