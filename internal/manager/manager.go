package manager

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"cerebro/internal/manifest"
	"cerebro/internal/routespec"
	"cerebro/internal/routetable"
)

type Manager struct {
	// mu serializes load, rebuild and publish. It also guards overrides and gen.
	mu        sync.Mutex
	src       Source
	builder   routespec.Builder
	overrides routespec.Overrides
	gen       uint64

	dispatcher Dispatcher
	current    atomic.Pointer[routetable.Table]
	ready      atomic.Bool

	refreshEnabled bool
	interval       time.Duration

	// loopMu guards the background loop handle.
	loopMu     sync.Mutex
	loopCancel context.CancelFunc
	loopDone   chan struct{}

	pub EventPublisher
	log zerolog.Logger
}

func New(src Source, d Dispatcher, b routespec.Builder, ov routespec.Overrides) *Manager {
	return NewWithConfig(ManagerConfig{
		Source:     src,
		Dispatcher: d,
		Builder:    b,
		Overrides:  ov,
	})
}

// Bootstrap performs the startup load, preferring the URL and falling back to
// the local file, then builds and publishes the first table. The table is
// published even when the load fails, so manual endpoints are still served.
func (m *Manager) Bootstrap(ctx context.Context) error {
	if m.src == nil {
		return ErrNoSource
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.src.Load(ctx, manifest.LoadOptions{AllowFallback: true})
	if err != nil {
		m.log.Warn().Str("detail", manifest.Detail(err)).Msg("initial manifest load failed")
	}
	m.rebuildLocked("startup")
	m.ready.Store(true)
	if err != nil {
		return bootstrapError{err: err}
	}
	return nil
}

// Ready reports whether the first table has been published.
func (m *Manager) Ready() bool { return m.ready.Load() }

// Table returns the live route table. It never blocks.
func (m *Manager) Table() *routetable.Table { return m.current.Load() }

// Overrides returns the overrides currently applied.
func (m *Manager) Overrides() routespec.Overrides {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.overrides
}

// SetOverrides replaces the endpoint overrides and republishes the table
// against the current snapshot.
func (m *Manager) SetOverrides(ov routespec.Overrides) *routetable.Table {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides = ov
	return m.rebuildLocked("overrides changed")
}

// RefreshEnabled reports whether the background loop may run.
func (m *Manager) RefreshEnabled() bool { return m.refreshEnabled }

// Interval returns the background refresh interval.
func (m *Manager) Interval() time.Duration { return m.interval }
