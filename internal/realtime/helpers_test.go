package realtime

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"realtime-chat-api/internal/models"
	"realtime-chat-api/internal/store"
	"realtime-chat-api/internal/testutil"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeConn records what the hub queues for one connection.
type fakeConn struct {
	mu      sync.Mutex
	frames  [][]byte
	closed  bool
	blocked bool
	pings   int
	pingErr error
	// onSend, when set, runs before the frame is recorded.
	onSend func(message []byte)
}

func (c *fakeConn) Send(message []byte) bool {
	c.mu.Lock()
	hook := c.onSend
	c.mu.Unlock()
	if hook != nil {
		hook(message)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.blocked {
		return false
	}
	c.frames = append(c.frames, append([]byte(nil), message...))
	return true
}

func (c *fakeConn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pings++
	return c.pingErr
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) pingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pings
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

// events decodes every queued frame carrying the given event name.
func (c *fakeConn) events(t *testing.T, event string) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []map[string]any
	for _, raw := range c.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(raw, &m))
		if m["event"] == event {
			out = append(out, m)
		}
	}
	return out
}

func (c *fakeConn) chat(t *testing.T) []ChatFrame {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []ChatFrame
	for _, raw := range c.frames {
		var f ChatFrame
		require.NoError(t, json.Unmarshal(raw, &f))
		if f.Event == EventMessage {
			out = append(out, f)
		}
	}
	return out
}

func identity(id string) models.Identity {
	return models.Identity{ID: id, DisplayName: id}
}

func newTestMessageStore(t *testing.T) *store.GormMessageStore {
	t.Helper()
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)
	return store.NewGormMessageStore(db)
}

func newTestHub(t *testing.T, st store.MessageStore, opts Options, sinks ...store.PresenceSink) *Hub {
	t.Helper()
	if st == nil {
		st = newTestMessageStore(t)
	}
	return NewHub(st, zap.NewNop(), opts, sinks...)
}

// fixedClock pins every clock of the hub to ms.
func fixedClock(h *Hub, ms int64) {
	now := func() time.Time { return time.UnixMilli(ms) }
	h.now = now
	h.reg.now = now
	h.router.now = now
	h.membership.now = now
}
