package realtime

// TypingRelay forwards typing indicators. Nothing it does is stored and it
// never changes membership.
type TypingRelay struct {
	reg *Registry
}

// NewTypingRelay returns a relay resolving targets through reg.
func NewTypingRelay(reg *Registry) *TypingRelay {
	return &TypingRelay{reg: reg}
}

// Start tells the target that the session began typing. An empty target means
// the session's current room. It returns how many sessions were notified.
func (t *TypingRelay) Start(id SessionID, target Target) (int, error) {
	return t.relay(id, target, EventTypingStart)
}

// Stop is the counterpart of Start.
func (t *TypingRelay) Stop(id SessionID, target Target) (int, error) {
	return t.relay(id, target, EventTypingStop)
}

func (t *TypingRelay) relay(id SessionID, target Target, event string) (int, error) {
	sender, ok := t.reg.Get(id)
	if !ok {
		return 0, ErrSessionNotFound
	}
	if target.To == "" && target.Room == "" {
		target.Room = sender.Room
	}
	recipients := t.reg.Resolve(target, sender, false)
	frame := TypingFrame{
		Event:    event,
		UserID:   sender.Identity.ID,
		Username: sender.DisplayName,
	}
	if target.To == "" {
		frame.Room = target.Room
	}
	return deliver(recipients, frame), nil
}
