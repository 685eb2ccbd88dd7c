package realtime

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// System frame types.
const (
	SystemJoin  = "join"
	SystemLeave = "leave"
)

// Membership applies room moves on the registry and announces them to the
// affected rooms. Announcements are sent after the registry lock is released.
type Membership struct {
	reg *Registry
	log *zap.Logger
	now func() time.Time
}

// NewMembership returns a Membership announcing through reg's sessions.
func NewMembership(reg *Registry, log *zap.Logger) *Membership {
	if log == nil {
		log = zap.NewNop()
	}
	return &Membership{reg: reg, log: log, now: time.Now}
}

// Join moves the session into room. An empty room is a Leave.
func (m *Membership) Join(id SessionID, room string) (RoomChange, error) {
	change, err := m.reg.UpdateRoom(id, room)
	if err != nil {
		return RoomChange{}, err
	}
	m.announce(change)
	return change, nil
}

// Leave takes the session out of its current room, if any.
func (m *Membership) Leave(id SessionID) (RoomChange, error) {
	return m.Join(id, "")
}

func (m *Membership) announce(change RoomChange) {
	if !change.Changed() {
		return
	}
	if change.From != "" {
		m.announceLeave(change.Session, change.From, change.FromMembers)
	}
	if change.To != "" {
		n := deliver(change.ToMembers, m.systemFrame(SystemJoin, change.Session.DisplayName, change.To))
		m.log.Debug("room joined",
			zap.String("room", change.To),
			zap.String("user_id", change.Session.Identity.ID),
			zap.Int("notified", n))
	}
}

func (m *Membership) announceLeave(s Session, room string, remaining []Session) {
	n := deliver(remaining, m.systemFrame(SystemLeave, s.DisplayName, room))
	m.log.Debug("room left",
		zap.String("room", room),
		zap.String("user_id", s.Identity.ID),
		zap.Int("notified", n))
}

func (m *Membership) systemFrame(kind, name, room string) SystemFrame {
	verb := "joined"
	if kind == SystemLeave {
		verb = "left"
	}
	return SystemFrame{
		Event: EventSystem,
		Sys:   true,
		Type:  kind,
		Text:  fmt.Sprintf("%s %s %s", name, verb, room),
		Room:  room,
		TS:    m.now().UnixMilli(),
	}
}
