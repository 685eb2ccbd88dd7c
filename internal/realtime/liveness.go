package realtime

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Monitor evicts connections that stopped acknowledging probes.
// A session survives a sweep only if it acknowledged since the previous one.
type Monitor struct {
	hub      *Hub
	interval time.Duration
	log      *zap.Logger
}

// NewMonitor returns a monitor sweeping hub every interval, 30s by default.
func NewMonitor(hub *Hub, interval time.Duration, log *zap.Logger) *Monitor {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{hub: hub, interval: interval, log: log}
}

// Run sweeps every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep runs one liveness pass and returns how many sessions were evicted and probed.
func (m *Monitor) Sweep(ctx context.Context) (evicted, probed int) {
	evict, probe := m.hub.reg.Sweep()

	for _, s := range evict {
		s.Conn.Close()
		if m.hub.Disconnect(ctx, s.ID) {
			evicted++
		}
	}
	for _, s := range probe {
		if err := s.Conn.Ping(); err != nil {
			m.log.Debug("ping failed", zap.Uint64("session", uint64(s.ID)), zap.Error(err))
		}
		probed++
	}
	m.hub.refreshSinks(ctx)

	if evicted > 0 {
		m.log.Info("liveness sweep", zap.Int("evicted", evicted), zap.Int("probed", probed))
	}
	return evicted, probed
}
