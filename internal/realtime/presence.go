package realtime

import (
	"slices"
	"sync"
	"time"
)

// PresenceEvent is one OFFLINE<->ONLINE transition of an identity.
type PresenceEvent struct {
	UserID string
	Online bool
	At     time.Time
}

// Presence is the set of online identities plus the time each one was last seen.
// Transitions are driven by the Registry while it holds its own lock, so the
// online set always matches the registry's per-identity session counts.
type Presence struct {
	mu       sync.RWMutex
	online   map[string]time.Time // user -> online since
	lastSeen map[string]time.Time
}

// NewPresence returns a tracker with nobody online.
func NewPresence() *Presence {
	return &Presence{
		online:   make(map[string]time.Time),
		lastSeen: make(map[string]time.Time),
	}
}

func (p *Presence) markOnline(userID string, at time.Time) PresenceEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[userID] = at
	return PresenceEvent{UserID: userID, Online: true, At: at}
}

func (p *Presence) markOffline(userID string, at time.Time) PresenceEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.online, userID)
	p.lastSeen[userID] = at
	return PresenceEvent{UserID: userID, Online: false, At: at}
}

// IsOnline reports whether userID has at least one live session.
func (p *Presence) IsOnline(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.online[userID]
	return ok
}

// Online returns the online identities in lexical order.
func (p *Presence) Online() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.online))
	for id := range p.online {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// LastSeen returns when userID last went offline. It is unknown until the first
// disconnect since process start.
func (p *Presence) LastSeen(userID string) (time.Time, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.lastSeen[userID]
	return t, ok
}
