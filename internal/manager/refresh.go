package manager

import (
	"context"

	"cerebro/internal/manifest"
	"cerebro/internal/routetable"
	"cerebro/pkg/types"
)

// Refresh conditionally reloads the manifest and, when the content changed,
// rebuilds and publishes a new table. Concurrent calls are serialized; a
// failed load leaves the live table in place.
//
// Without a manifest URL the local file is re-read instead.
func (m *Manager) Refresh(ctx context.Context) types.RefreshResponse {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.src == nil {
		refreshTotal.WithLabelValues(string(types.RefreshError)).Inc()
		return m.response(types.RefreshError, 0, ErrNoSource.Error())
	}
	m.pub.Publish(Event{Name: EventRefreshStart})
	changed, err := m.src.Load(ctx, manifest.LoadOptions{
		Conditional:   true,
		AllowFallback: !m.src.HasRemote(),
	})
	models := m.src.Snapshot().Len()

	if err != nil {
		detail, kind := manifest.Detail(err), errorKind(err)
		m.log.Error().Str("detail", detail).Str("kind", kind).Msg("manifest refresh failed, keeping current routes")
		refreshTotal.WithLabelValues(string(types.RefreshError)).Inc()
		m.pub.Publish(Event{Name: EventRefreshError, Fields: map[string]any{"detail": detail, "kind": kind}})
		return m.response(types.RefreshError, models, detail)
	}
	if !changed {
		m.log.Debug().Int("models", models).Msg("manifest unchanged")
		refreshTotal.WithLabelValues(string(types.RefreshUnchanged)).Inc()
		m.pub.Publish(Event{Name: EventRefreshUnchanged})
		return m.response(types.RefreshUnchanged, models, "")
	}

	m.rebuildLocked("manifest changed")
	refreshTotal.WithLabelValues(string(types.RefreshReloaded)).Inc()
	m.pub.Publish(Event{Name: EventRefreshReloaded, Fields: map[string]any{"models": models}})
	return m.response(types.RefreshReloaded, models, "")
}

// errorKind classifies a failed load for events and logs.
func errorKind(err error) string {
	switch {
	case manifest.IsParseError(err):
		return "parse"
	case manifest.IsFetchError(err):
		return "fetch"
	default:
		return "unavailable"
	}
}

func (m *Manager) response(status types.RefreshStatus, models int, detail string) types.RefreshResponse {
	t := m.Table()
	return types.RefreshResponse{
		Status:     status,
		Models:     models,
		Detail:     detail,
		Generation: t.Generation,
		Routes:     t.Len(),
	}
}

// rebuildLocked derives a new table from the current snapshot and overrides
// and publishes it. The caller holds m.mu.
func (m *Manager) rebuildLocked(reason string) *routetable.Table {
	var snap *manifest.Snapshot
	if m.src != nil {
		snap = m.src.Snapshot()
	}
	specs, skipped := routetable.Derive(snap, m.overrides, m.builder, m.log)
	for _, s := range skipped {
		m.pub.Publish(Event{Name: EventRouteSkipped, Model: s.Model, Fields: map[string]any{"error": s.Err.Error()}})
	}

	m.gen++
	hash := ""
	if snap != nil {
		hash = snap.Hash
	}
	t := routetable.New(m.gen, hash, specs)
	m.dispatcher.Publish(t)
	m.current.Store(t)

	routesPublished.Set(float64(t.Len()))
	routeGeneration.Set(float64(t.Generation))
	m.pub.Publish(Event{Name: EventTablePublished, Fields: map[string]any{
		"generation": t.Generation,
		"routes":     t.Len(),
		"reason":     reason,
	}})
	m.log.Info().
		Uint64("generation", t.Generation).
		Str("generation_id", t.ID).
		Int("routes", t.Len()).
		Int("skipped", len(skipped)).
		Str("reason", reason).
		Msg("route table published")
	return t
}
