package httpapi

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"cerebro/internal/auth"
	"cerebro/internal/routespec"
	"cerebro/internal/routetable"
	"cerebro/internal/warehouse"
)

// Authorizer checks a caller key against a required tier.
type Authorizer interface {
	Authorize(key, requiredTier string) (auth.Identity, error)
}

// generation pairs a route table with the router built from it.
type generation struct {
	table  *routetable.Table
	router chi.Router
	docs   []byte
}

// Dispatcher serves the generated routes. Each published table gets its own
// router; Publish swaps it in with a single atomic store, so a request is
// routed entirely by one generation.
type Dispatcher struct {
	current atomic.Pointer[generation]
	q       warehouse.Querier
	authz   Authorizer
	docs    DocInfo
}

// NewDispatcher returns a dispatcher serving an empty table. q may be nil, in
// which case routes answer 503.
func NewDispatcher(q warehouse.Querier, authz Authorizer, docs DocInfo) *Dispatcher {
	d := &Dispatcher{q: q, authz: authz, docs: docs}
	d.Publish(routetable.Empty())
	return d
}

// Publish installs t. It satisfies manager.Dispatcher.
func (d *Dispatcher) Publish(t *routetable.Table) {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, "Not Found")
	})
	for _, spec := range t.Routes() {
		if err := d.register(r, spec); err != nil && zlog != nil {
			zlog.Error().Err(err).Str("model", spec.Model).Str("path", spec.Path).
				Uint64("generation", t.Generation).Msg("route dropped")
		}
	}
	doc, err := buildDocJSON(d.docs, t)
	if err != nil && zlog != nil {
		zlog.Error().Err(err).Uint64("generation", t.Generation).Msg("build api docs")
	}
	d.current.Store(&generation{table: t, router: r, docs: doc})
}

// register adds spec to r. chi panics on patterns it cannot parse or that
// clash with an existing route; that panic is returned as an error.
func (d *Dispatcher) register(r chi.Router, spec routespec.Spec) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("register %s: %v", spec.Path, p)
		}
	}()
	r.Get(spec.Path, d.routeHandler(spec))
	return nil
}

// Table returns the table currently being served.
func (d *Dispatcher) Table() *routetable.Table { return d.current.Load().table }

// DocJSON returns the swagger document of the current generation.
func (d *Dispatcher) DocJSON() []byte { return d.current.Load().docs }

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.current.Load().router.ServeHTTP(w, r)
}

func (d *Dispatcher) routeHandler(spec routespec.Spec) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id, err := d.authz.Authorize(r.Header.Get(auth.HeaderAPIKey), spec.Tier)
		if err != nil {
			status := writeError(w, err)
			if ev := requestEvent(r, LevelInfo); ev != nil {
				ev.Str("path", spec.Path).Str("tier", spec.Tier).Int("status", status).Err(err).Msg("route denied")
			}
			return
		}
		q := r.URL.Query()
		limit, offset, err := pagination(q)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		if d.q == nil {
			writeError(w, warehouse.ErrNotConfigured)
			return
		}
		sel, err := warehouse.BuildSelect(warehouse.SelectRequest{
			Table:   spec.Table,
			Params:  spec.Params,
			Values:  q,
			OrderBy: spec.OrderBy,
			Limit:   limit,
			Offset:  offset,
		}, d.q.Dialect())
		if err != nil {
			writeError(w, err)
			return
		}
		if ev := requestEvent(r, LevelDebug); ev != nil {
			ev.Str("model", spec.Model).Str("sql", sel.SQL).Interface("args", sel.Args).Msg("route query")
		}

		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		qstart := time.Now()
		rows, err := d.q.Query(ctx, sel.SQL, sel.Args...)
		observeRouteQuery(spec.Model, len(rows), time.Since(qstart), err)
		if err != nil {
			if r.Context().Err() != nil {
				return
			}
			status := writeError(w, err)
			if ev := requestEvent(r, LevelError); ev != nil {
				ev.Str("path", spec.Path).Int("status", status).Err(err).Msg("route query failed")
			}
			return
		}
		writeJSON(w, http.StatusOK, rows)
		if ev := requestEvent(r, LevelInfo); ev != nil {
			ev.Str("path", spec.Path).Str("user", id.User).Int("rows", len(rows)).Dur("dur", time.Since(start)).Msg("route served")
		}
	}
}

type badParam struct{ msg string }

func (e badParam) Error() string { return e.msg }

// pagination reads limit (1..5000, default 100) and offset (>= 0, default 0).
func pagination(q url.Values) (int, int, error) {
	limit, offset := defaultLimit, 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxLimit {
			return 0, 0, badParam{"limit must be an integer between 1 and " + strconv.Itoa(maxLimit)}
		}
		limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, 0, badParam{"offset must be a non-negative integer"}
		}
		offset = n
	}
	return limit, offset, nil
}
