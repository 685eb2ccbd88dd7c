package realtime

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"realtime-chat-api/internal/models"

	"github.com/google/uuid"
)

// Registry owns every live session together with the room index and the
// presence set. One lock covers all three so a join, a leave or an unregister
// is never observed half applied.
type Registry struct {
	mu       sync.RWMutex
	nextID   SessionID
	sessions map[SessionID]*sessionRecord
	byConn   map[Conn]SessionID
	byUser   map[string]map[SessionID]struct{}
	rooms    roomIndex
	presence *Presence
	now      func() time.Time
}

// NewRegistry returns an empty registry driving presence.
func NewRegistry(presence *Presence) *Registry {
	if presence == nil {
		presence = NewPresence()
	}
	return &Registry{
		sessions: make(map[SessionID]*sessionRecord),
		byConn:   make(map[Conn]SessionID),
		byUser:   make(map[string]map[SessionID]struct{}),
		rooms:    make(roomIndex),
		presence: presence,
		now:      time.Now,
	}
}

// Registration describes the outcome of Register.
type Registration struct {
	Session Session
	// Created is false when the connection was already registered.
	Created bool
	// Presence is set when this was the identity's first session.
	Presence *PresenceEvent
	// Observers are the sessions of every other online identity at that instant.
	Observers []Session
}

// Removal describes the outcome of Unregister.
type Removal struct {
	Session Session
	// Left is set when the session was a room member.
	Left *RoomChange
	// Presence is set when this was the identity's last session.
	Presence  *PresenceEvent
	Observers []Session
}

// RoomChange describes a membership move between rooms. An empty From or To
// means "no room".
type RoomChange struct {
	Session Session
	From    string
	To      string
	// FromMembers are the members left behind in From.
	FromMembers []Session
	// ToMembers are the members of To, including the session itself.
	ToMembers []Session
}

// Changed reports whether the session actually moved.
func (c RoomChange) Changed() bool {
	return c.From != c.To
}

// Target addresses either a room or an identity.
type Target struct {
	Room string
	To   string
}

// Register creates a session for conn. Registering the same conn twice returns
// the existing session.
func (r *Registry) Register(conn Conn, identity models.Identity) Registration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byConn[conn]; ok {
		return Registration{Session: r.sessions[id].Session}
	}

	r.nextID++
	rec := &sessionRecord{
		Session: Session{
			ID:          r.nextID,
			ConnID:      uuid.NewString(),
			Identity:    identity,
			DisplayName: TruncateName(identity.DisplayName),
			ConnectedAt: r.now(),
			Conn:        conn,
		},
		acked: true,
	}
	r.sessions[rec.ID] = rec
	r.byConn[conn] = rec.ID

	userSessions, ok := r.byUser[identity.ID]
	if !ok {
		userSessions = make(map[SessionID]struct{})
		r.byUser[identity.ID] = userSessions
	}
	userSessions[rec.ID] = struct{}{}

	reg := Registration{Session: rec.Session, Created: true}
	if len(userSessions) == 1 {
		ev := r.presence.markOnline(identity.ID, rec.ConnectedAt)
		reg.Presence = &ev
		reg.Observers = r.othersLocked(identity.ID)
	}
	return reg
}

// Unregister removes the session, its room membership and, for the identity's
// last session, its presence, in one step. The second call for the same id
// reports false.
func (r *Registry) Unregister(id SessionID) (Removal, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sessions[id]
	if !ok {
		return Removal{}, false
	}

	var rm Removal
	if rec.Room != "" {
		from := rec.Room
		r.rooms.remove(from, id)
		rec.Room = ""
		rm.Left = &RoomChange{
			Session:     rec.Session,
			From:        from,
			FromMembers: r.membersLocked(from),
		}
	}

	delete(r.sessions, id)
	delete(r.byConn, rec.Conn)
	userID := rec.Identity.ID
	if userSessions, ok := r.byUser[userID]; ok {
		delete(userSessions, id)
		if len(userSessions) == 0 {
			delete(r.byUser, userID)
			ev := r.presence.markOffline(userID, r.now())
			rm.Presence = &ev
			rm.Observers = r.othersLocked(userID)
		}
	}
	rm.Session = rec.Session
	return rm, true
}

// Get returns a snapshot of the session.
func (r *Registry) Get(id SessionID) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return rec.Session, true
}

// Lookup returns every live session of userID, which may be none.
func (r *Registry) Lookup(userID string) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.userSessionsLocked(userID)
}

// UpdateRoom moves the session into room, leaving its previous room in the same
// step. An empty room only leaves.
func (r *Registry) UpdateRoom(id SessionID, room string) (RoomChange, error) {
	room = TruncateName(room)

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sessions[id]
	if !ok {
		return RoomChange{}, ErrSessionNotFound
	}
	change := RoomChange{From: rec.Room, To: room}
	if rec.Room == room {
		change.Session = rec.Session
		return change, nil
	}

	if rec.Room != "" {
		r.rooms.remove(rec.Room, id)
		change.FromMembers = r.membersLocked(rec.Room)
	}
	rec.Room = room
	if room != "" {
		r.rooms.add(room, id)
		change.ToMembers = r.membersLocked(room)
	}
	change.Session = rec.Session
	return change, nil
}

// Rename sets the display name shown for the session's messages.
func (r *Registry) Rename(id SessionID, name string) (Session, error) {
	name = TruncateName(name)

	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if name != "" {
		rec.DisplayName = name
	}
	return rec.Session, nil
}

// Members returns the sessions currently in room.
func (r *Registry) Members(room string) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.membersLocked(TruncateName(room))
}

// Rooms returns the names of all non-empty rooms.
func (r *Registry) Rooms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.rooms))
	for name := range r.rooms {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Resolve returns the live sessions addressed by t on behalf of sender.
// The sending session itself is never included. Other sessions of the sender's
// identity are included only when includeOwn is set.
func (r *Registry) Resolve(t Target, sender Session, includeOwn bool) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var candidates []Session
	switch {
	case t.To != "":
		candidates = r.userSessionsLocked(t.To)
		if includeOwn && t.To != sender.Identity.ID {
			candidates = append(candidates, r.userSessionsLocked(sender.Identity.ID)...)
		}
	case t.Room != "":
		candidates = r.membersLocked(TruncateName(t.Room))
	default:
		return nil
	}

	out := candidates[:0]
	for _, s := range candidates {
		if s.ID == sender.ID {
			continue
		}
		if !includeOwn && s.Identity.ID == sender.Identity.ID && t.To != sender.Identity.ID {
			continue
		}
		out = append(out, s)
	}
	sortSessions(out)
	return out
}

// Ack records a liveness acknowledgment for the session.
func (r *Registry) Ack(id SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.sessions[id]; ok {
		rec.acked = true
	}
}

// Sweep splits sessions into those that did not acknowledge since the previous
// sweep (evict) and those that did (probe). Probed sessions must acknowledge
// again before the next sweep.
func (r *Registry) Sweep() (evict, probe []Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.sessions {
		if !rec.acked {
			evict = append(evict, rec.Session)
			continue
		}
		rec.acked = false
		probe = append(probe, rec.Session)
	}
	sortSessions(evict)
	sortSessions(probe)
	return evict, probe
}

// Sessions returns every live session.
func (r *Registry) Sessions() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Session, 0, len(r.sessions))
	for _, rec := range r.sessions {
		out = append(out, rec.Session)
	}
	sortSessions(out)
	return out
}

// Count returns the number of live sessions of userID.
func (r *Registry) Count(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID])
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Presence exposes the presence set driven by this registry.
func (r *Registry) Presence() *Presence {
	return r.presence
}

func (r *Registry) membersLocked(room string) []Session {
	ids := r.rooms.members(room)
	out := make([]Session, 0, len(ids))
	for _, id := range ids {
		if rec, ok := r.sessions[id]; ok {
			out = append(out, rec.Session)
		}
	}
	sortSessions(out)
	return out
}

func (r *Registry) userSessionsLocked(userID string) []Session {
	ids := r.byUser[userID]
	out := make([]Session, 0, len(ids))
	for id := range ids {
		out = append(out, r.sessions[id].Session)
	}
	sortSessions(out)
	return out
}

// othersLocked returns the sessions of every identity except userID.
func (r *Registry) othersLocked(userID string) []Session {
	out := make([]Session, 0, len(r.sessions))
	for _, rec := range r.sessions {
		if rec.Identity.ID != userID {
			out = append(out, rec.Session)
		}
	}
	sortSessions(out)
	return out
}

func sortSessions(s []Session) {
	slices.SortFunc(s, func(a, b Session) int { return cmp.Compare(a.ID, b.ID) })
}
