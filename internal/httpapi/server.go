package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cerebro/internal/auth"
	"cerebro/internal/routetable"
	"cerebro/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
// *manager.Manager satisfies it.
type Service interface {
	Status() types.StatusResponse
	Ready() bool
	Table() *routetable.Table
	RefreshAsync(ctx context.Context) <-chan types.RefreshResponse
}

// Options wires the collaborators of the mux.
type Options struct {
	Title      string
	Dispatcher *Dispatcher
	Auth       Authorizer
	// APIPrefix is where generated and system routes live, e.g. /v1.
	APIPrefix string
	// AdminTier guards the system endpoints.
	AdminTier string
}

// NewMux builds the root router: system endpoints plus the dispatcher
// mounted under the API prefix.
func NewMux(svc Service, opts Options) http.Handler {
	prefix := "/" + strings.Trim(opts.APIPrefix, "/")
	if prefix == "/" {
		prefix = "/v1"
	}
	adminTier := opts.AdminTier
	if adminTier == "" {
		adminTier = "tier3"
	}

	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, "Not Found")
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.RootResponse{Status: "online", Service: opts.Title, Docs: "/docs/"})
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	admin := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if _, err := opts.Auth.Authorize(r.Header.Get(auth.HeaderAPIKey), adminTier); err != nil {
				writeError(w, err)
				return
			}
			next(w, r)
		}
	}

	r.Post(prefix+"/system/manifest/refresh", admin(func(w http.ResponseWriter, r *http.Request) {
		select {
		case res := <-svc.RefreshAsync(r.Context()):
			if ev := requestEvent(r, LevelInfo); ev != nil {
				ev.Str("status", string(res.Status)).Uint64("generation", res.Generation).Msg("manual manifest refresh")
			}
			writeJSON(w, http.StatusOK, res)
		case <-r.Context().Done():
		}
	}))

	r.Get(prefix+"/system/routes", admin(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, routesResponse(svc.Table()))
	}))

	if opts.Dispatcher != nil {
		MountDocs(r, opts.Dispatcher)
		r.Mount(prefix, opts.Dispatcher)
	}
	return r
}

func routesResponse(t *routetable.Table) types.RoutesResponse {
	resp := types.RoutesResponse{Generation: t.Generation, Routes: make([]types.RouteInfo, 0, t.Len())}
	for _, s := range t.Routes() {
		params := make([]types.Param, 0, len(s.Params))
		for _, p := range s.Params {
			params = append(params, types.Param{Name: p.Name, Column: p.Column, Operator: p.Operator, Type: p.Type})
		}
		resp.Routes = append(resp.Routes, types.RouteInfo{
			Path:    s.Path,
			Model:   s.Model,
			Table:   s.Table,
			Tier:    s.Tier,
			Summary: s.Summary,
			Tags:    append([]string{}, s.DocTags...),
			Params:  params,
			OrderBy: s.OrderBy,
		})
	}
	return resp
}
