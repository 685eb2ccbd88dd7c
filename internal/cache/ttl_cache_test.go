package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func TestTTLCache_SetGet_NoTTL(t *testing.T) {
	c := NewTTLCache[string, int](Options{})
	c.Set("a", 1, 0)
	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)
	require.Equal(t, 1, c.Len())
}

func TestTTLCache_Expiry(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	c := NewTTLCache[string, string](Options{Clock: clock.Now})

	c.Set("k", "v", time.Second)
	_, ok := c.Get("k")
	require.True(t, ok)

	clock.Advance(2 * time.Second)
	_, ok = c.Get("k")
	require.False(t, ok)
	require.Equal(t, 0, c.Len())
	require.Equal(t, 1, c.PurgeExpired())
}

func TestTTLCache_SetUntil(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	c := NewTTLCache[string, string](Options{Clock: clock.Now})

	c.SetUntil("tok", "alice", clock.Now().Add(10*time.Second))
	clock.Advance(9 * time.Second)
	_, ok := c.Get("tok")
	require.True(t, ok)

	clock.Advance(time.Second)
	_, ok = c.Get("tok")
	require.False(t, ok, "entry must expire exactly at its deadline")
}

func TestTTLCache_MaxItemsEvictsSoonestDeadline(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	c := NewTTLCache[string, int](Options{MaxItems: 2, Clock: clock.Now})

	c.Set("long", 1, time.Hour)
	c.Set("short", 2, time.Minute)
	c.Set("new", 3, time.Hour)

	_, ok := c.Get("short")
	require.False(t, ok)
	_, ok = c.Get("long")
	require.True(t, ok)
	_, ok = c.Get("new")
	require.True(t, ok)
}

func TestTTLCache_Delete(t *testing.T) {
	c := NewTTLCache[int, int](Options{})
	c.Set(1, 10, 0)
	c.Set(2, 20, 0)
	c.Delete(1)
	_, ok := c.Get(1)
	require.False(t, ok)
	require.Equal(t, 1, c.Len())
}

func TestTTLCache_ConcurrentAccess(t *testing.T) {
	c := NewTTLCache[int, int](Options{})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for r := 0; r < 100; r++ {
				c.Set(i, r, 0)
				_, _ = c.Get(i)
			}
		}(i)
	}
	wg.Wait()
	require.Equal(t, 50, c.Len())
}
