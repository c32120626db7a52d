package routespec

import (
	"bytes"
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// WatchOverrides watches the override document at path and calls onChange
// with each successfully parsed revision. A revision that fails to parse is
// logged and the previous overrides stay in effect. It runs until ctx is
// cancelled.
//
// Removal is ignored: editors that save by delete and create would otherwise
// briefly publish a table without manual endpoints. The following Create or
// Write delivers the new revision.
//
// The parent directory is watched so editors that save via rename, and files
// created after startup, are both picked up.
func WatchOverrides(ctx context.Context, path string, log zerolog.Logger, onChange func(Overrides)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	log.Info().Str("path", abs).Msg("watching endpoint overrides")

	fs := afero.NewOsFs()
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !triggersReload(event) {
				continue
			}
			b, err := afero.ReadFile(fs, abs)
			if err != nil {
				log.Debug().Err(err).Str("path", abs).Msg("override document not readable yet")
				continue
			}
			if len(bytes.TrimSpace(b)) == 0 && !event.Has(fsnotify.Write) {
				// created but not written yet
				continue
			}
			ov, err := ParseOverrides(b)
			if err != nil {
				log.Error().Err(err).Str("path", abs).Msg("override reload failed, keeping previous overrides")
				continue
			}
			log.Info().Str("path", abs).Int("endpoints", len(ov.Endpoints)).Msg("endpoint overrides reloaded")
			onChange(ov)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("override watcher error")
		}
	}
}

func triggersReload(ev fsnotify.Event) bool {
	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)
}
