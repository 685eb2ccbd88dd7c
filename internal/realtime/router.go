package realtime

import (
	"context"
	"strings"
	"sync"
	"time"

	"realtime-chat-api/internal/models"
	"realtime-chat-api/internal/store"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// RoutingResult reports what happened to one submitted message.
type RoutingResult struct {
	Message *models.Message
	// Recipients counts the live sessions that accepted the frame.
	Recipients int
	Persisted  bool
}

// Router turns inbound chat frames into messages, persists them and fans them
// out to the resolved live sessions.
type Router struct {
	reg        *Registry
	membership *Membership
	store      store.MessageStore
	log        *zap.Logger
	echoSelf   bool

	mu     sync.Mutex
	lastTS int64
	now    func() time.Time
	newID  func() string
}

// NewRouter returns a router that persists through st.
func NewRouter(reg *Registry, membership *Membership, st store.MessageStore, log *zap.Logger, echoSelf bool) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{
		reg:        reg,
		membership: membership,
		store:      st,
		log:        log,
		echoSelf:   echoSelf,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Submit routes one raw payload sent by the session.
func (r *Router) Submit(ctx context.Context, id SessionID, raw []byte) (RoutingResult, error) {
	return r.Route(ctx, id, ParseInbound(raw))
}

// Route routes an already parsed frame. Calls for one session must not overlap
// if its messages are to keep their submission order.
func (r *Router) Route(ctx context.Context, id SessionID, f InboundFrame) (RoutingResult, error) {
	if f.User != "" {
		if _, err := r.reg.Rename(id, f.User); err != nil {
			return RoutingResult{}, err
		}
	}
	if room := TruncateName(f.Room); room != "" {
		if _, err := r.membership.Join(id, room); err != nil {
			return RoutingResult{}, err
		}
	}

	sender, ok := r.reg.Get(id)
	if !ok {
		return RoutingResult{}, ErrSessionNotFound
	}
	if strings.TrimSpace(f.Text) == "" && f.MediaURL == "" {
		r.reject(sender, f.TempID, ErrEmptyMessage)
		return RoutingResult{}, ErrEmptyMessage
	}

	target := Target{To: strings.TrimSpace(f.To)}
	if target.To == "" {
		target.Room = sender.Room
	}
	if target.To == "" && target.Room == "" {
		r.reject(sender, f.TempID, ErrNoTarget)
		return RoutingResult{}, ErrNoTarget
	}

	msgType := models.MessageType(strings.ToLower(f.Type))
	if !msgType.Valid() {
		msgType = models.TypeText
	}
	msg := &models.Message{
		ID:         r.newID(),
		SenderID:   sender.Identity.ID,
		SenderName: sender.DisplayName,
		Room:       target.Room,
		ReceiverID: target.To,
		Text:       f.Text,
		Type:       msgType,
		MediaURL:   f.MediaURL,
		TS:         r.stamp(),
	}
	recipients := r.reg.Resolve(target, sender, r.echoSelf)

	persisted := true
	if err := r.store.Save(ctx, msg); err != nil {
		persisted = false
		r.log.Warn("message not persisted",
			zap.String("message_id", msg.ID),
			zap.String("user_id", sender.Identity.ID),
			zap.Error(err))
	}

	accepted := deliverAccepted(recipients, newChatFrame(msg))

	if persisted && lo.SomeBy(accepted, func(s Session) bool { return s.Identity.ID != sender.Identity.ID }) {
		if err := r.store.MarkDelivered(ctx, msg.ID); err != nil {
			r.log.Warn("delivered flag not updated", zap.String("message_id", msg.ID), zap.Error(err))
		} else {
			at := r.now()
			msg.Delivered = true
			msg.DeliveredAt = &at
		}
	}

	if persisted {
		ack := newChatFrame(msg)
		ack.Event = EventMessageSent
		ack.TempID = f.TempID
		deliver([]Session{sender}, ack)
	} else {
		deliver([]Session{sender}, ErrorFrame{Event: EventMessageError, TempID: f.TempID, Error: "message could not be saved"})
	}

	return RoutingResult{Message: msg, Recipients: len(accepted), Persisted: persisted}, nil
}

// stamp returns the current wall clock in milliseconds, never going backwards.
func (r *Router) stamp() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts := r.now().UnixMilli()
	if ts < r.lastTS {
		ts = r.lastTS
	}
	r.lastTS = ts
	return ts
}

func (r *Router) reject(sender Session, tempID string, err error) {
	deliver([]Session{sender}, ErrorFrame{Event: EventMessageError, TempID: tempID, Error: err.Error()})
}
