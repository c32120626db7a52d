package manager

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"cerebro/internal/manifest"
	"cerebro/internal/routespec"
	"cerebro/internal/routetable"
)

const defaultRefreshInterval = 300 * time.Second

// Source is the manifest store a Manager rebuilds from. *manifest.Store
// satisfies it.
type Source interface {
	Load(ctx context.Context, opts manifest.LoadOptions) (bool, error)
	Snapshot() *manifest.Snapshot
	HasRemote() bool
	LastError() error
}

// Dispatcher installs a route table into the serving surface. Publish must
// swap atomically: requests see either the old table or the new one.
type Dispatcher interface {
	Publish(*routetable.Table)
}

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	Source     Source
	Dispatcher Dispatcher
	Builder    routespec.Builder
	Overrides  routespec.Overrides
	// RefreshEnabled gates the background loop. Explicit refreshes always run.
	RefreshEnabled  bool
	RefreshInterval time.Duration
	Publisher       EventPublisher
	Logger          zerolog.Logger
}

// NewWithConfig constructs a Manager from ManagerConfig. The live table
// starts empty at generation zero until Bootstrap or a refresh installs one.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		src:            cfg.Source,
		dispatcher:     cfg.Dispatcher,
		builder:        cfg.Builder,
		overrides:      cfg.Overrides,
		refreshEnabled: cfg.RefreshEnabled,
		interval:       cfg.RefreshInterval,
		pub:            cfg.Publisher,
		log:            cfg.Logger,
	}
	if m.interval <= 0 {
		m.interval = defaultRefreshInterval
	}
	if m.pub == nil {
		m.pub = noopPublisher{}
	}
	if m.dispatcher == nil {
		m.dispatcher = discardDispatcher{}
	}
	m.current.Store(routetable.Empty())
	return m
}

type discardDispatcher struct{}

func (discardDispatcher) Publish(*routetable.Table) {}
