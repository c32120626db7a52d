// Package routetable holds the published, generation-tagged set of derived
// routes. A Table is immutable once built; a rebuild produces a new Table.
package routetable

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"cerebro/internal/manifest"
	"cerebro/internal/routespec"
)

// Table is one generation of routes, ordered as they were derived.
type Table struct {
	Generation   uint64
	ID           string
	ManifestHash string
	BuiltAt      time.Time

	routes []routespec.Spec
	byPath map[string]int
}

// New creates a table from specs. Later specs replace earlier ones sharing a
// path, keeping the earlier position.
func New(generation uint64, manifestHash string, specs []routespec.Spec) *Table {
	t := &Table{
		Generation:   generation,
		ID:           uuid.NewString(),
		ManifestHash: manifestHash,
		BuiltAt:      time.Now(),
		byPath:       make(map[string]int, len(specs)),
	}
	for _, s := range specs {
		if i, ok := t.byPath[s.Path]; ok {
			t.routes[i] = s
			continue
		}
		t.byPath[s.Path] = len(t.routes)
		t.routes = append(t.routes, s)
	}
	return t
}

// Empty returns generation zero with no routes.
func Empty() *Table { return New(0, "", nil) }

// Routes returns a copy of the ordered route list.
func (t *Table) Routes() []routespec.Spec {
	return append([]routespec.Spec(nil), t.routes...)
}

// Len returns the number of routes.
func (t *Table) Len() int { return len(t.routes) }

// Lookup returns the route registered at path.
func (t *Table) Lookup(path string) (routespec.Spec, bool) {
	i, ok := t.byPath[path]
	if !ok {
		return routespec.Spec{}, false
	}
	return t.routes[i], true
}

// Skipped records a model that could not be turned into a route.
type Skipped struct {
	Model string
	Err   error
}

// Derive computes the full candidate route list from one snapshot. Models
// tagged production with an `api:` resource are discovered automatically;
// every manual endpoint not already discovered is built regardless of tags.
// Manual endpoints come last so they win path collisions.
func Derive(snap *manifest.Snapshot, overrides routespec.Overrides, b routespec.Builder, log zerolog.Logger) ([]routespec.Spec, []Skipped) {
	var names []string
	if snap != nil {
		for name, node := range snap.Models {
			if !routespec.IsProduction(node.Tags) {
				continue
			}
			if _, ok := routespec.APIResource(node.Tags); ok {
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	log.Info().Int("models", len(names)).Msg("discovered models with production and api tags")

	discovered := make(map[string]bool, len(names))
	var (
		specs   []routespec.Spec
		skipped []Skipped
	)
	build := func(name string, ov *routespec.Override) {
		node, _ := snap.Model(name)
		spec, err := b.Build(name, node, ov)
		if err != nil {
			switch {
			case errors.Is(err, routespec.ErrNoResource):
				log.Warn().Str("model", name).Msg("skipping model: no valid path could be derived")
			default:
				log.Warn().Err(err).Str("model", name).Msg("skipping model")
			}
			skipped = append(skipped, Skipped{Model: name, Err: err})
			return
		}
		log.Debug().Str("path", spec.Path).Str("model", name).Str("tier", spec.Tier).Msg("route derived")
		specs = append(specs, spec)
	}

	for _, name := range names {
		discovered[name] = true
		if ov, ok := overrides.Lookup(name); ok {
			build(name, &ov)
			continue
		}
		build(name, nil)
	}
	for i := range overrides.Endpoints {
		ov := overrides.Endpoints[i]
		if discovered[ov.Model] {
			continue
		}
		build(ov.Model, &ov)
	}
	return specs, skipped
}
