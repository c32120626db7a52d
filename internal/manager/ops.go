package manager

import (
	"context"
	"time"

	"cerebro/pkg/types"
)

// RefreshAsync runs Refresh in the background and delivers its result on the
// returned channel. The refresh is detached from ctx cancellation so a caller
// that goes away does not abort a rebuild halfway; ctx values are kept.
func (m *Manager) RefreshAsync(ctx context.Context) <-chan types.RefreshResponse {
	out := make(chan types.RefreshResponse, 1)
	detached := context.WithoutCancel(ctx)
	go func() {
		out <- m.Refresh(detached)
	}()
	return out
}

// Start launches the background refresh loop. It sleeps one interval before
// each refresh. Start is a no-op when refresh is disabled or a loop is
// already running; it reports whether a loop was started.
func (m *Manager) Start(ctx context.Context) bool {
	if !m.refreshEnabled {
		m.log.Info().Msg("background manifest refresh disabled")
		return false
	}
	m.loopMu.Lock()
	defer m.loopMu.Unlock()
	if m.loopDone != nil {
		select {
		case <-m.loopDone:
		default:
			return false
		}
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.loopCancel, m.loopDone = cancel, done
	go m.run(loopCtx, done)
	m.log.Info().Dur("interval", m.interval).Msg("background manifest refresh started")
	return true
}

func (m *Manager) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	timer := time.NewTimer(m.interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		res := m.Refresh(ctx)
		if ctx.Err() != nil {
			return
		}
		m.log.Debug().Str("status", string(res.Status)).Msg("scheduled manifest refresh")
		timer.Reset(m.interval)
	}
}

// Stop cancels the background loop, including a fetch in flight, and waits
// until the loop has exited or ctx is done. Safe to call when not running.
func (m *Manager) Stop(ctx context.Context) error {
	m.loopMu.Lock()
	if m.loopCancel == nil {
		m.loopMu.Unlock()
		return nil
	}
	m.loopCancel()
	done := m.loopDone
	m.loopCancel, m.loopDone = nil, nil
	m.loopMu.Unlock()

	select {
	case <-done:
		m.log.Info().Msg("background manifest refresh stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether the background loop is active.
func (m *Manager) Running() bool {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()
	if m.loopDone == nil {
		return false
	}
	select {
	case <-m.loopDone:
		return false
	default:
		return true
	}
}
