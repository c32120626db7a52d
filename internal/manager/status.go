package manager

import (
	"cerebro/internal/manifest"
	"cerebro/pkg/types"
)

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	t := m.Table()
	resp := types.StatusResponse{
		Generation:             t.Generation,
		GenerationID:           t.ID,
		Routes:                 t.Len(),
		ManifestHash:           t.ManifestHash,
		RefreshRunning:         m.Running(),
		RefreshIntervalSeconds: int64(m.interval.Seconds()),
		BuiltAtUnix:            t.BuiltAt.Unix(),
	}
	if m.src != nil {
		snap := m.src.Snapshot()
		resp.Models = snap.Len()
		if snap != nil {
			resp.ManifestSource = string(snap.Source)
		}
		if err := m.src.LastError(); err != nil {
			resp.LastError = manifest.Detail(err)
		}
	}
	return resp
}
