package e2e

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
	_ "modernc.org/sqlite"

	"cerebro/internal/auth"
	"cerebro/internal/httpapi"
	"cerebro/internal/manager"
	"cerebro/internal/manifest"
	"cerebro/internal/routespec"
	"cerebro/internal/warehouse"
)

const (
	adminKey   = "sk_admin"
	publicKey  = "sk_public"
	partnerKey = "sk_partner"
)

// manifestHost serves a swappable manifest body.
type manifestHost struct {
	body atomic.Value
	srv  *httptest.Server
}

func newManifestHost(t *testing.T, body string) *manifestHost {
	t.Helper()
	h := &manifestHost{}
	h.body.Store(body)
	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, h.body.Load().(string))
	}))
	t.Cleanup(h.srv.Close)
	return h
}

// newWarehouse opens a private in-memory SQLite database seeded by stmts.
func newWarehouse(t *testing.T, name string, stmts ...string) *warehouse.Client {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+name+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("seed %q: %v", s, err)
		}
	}
	return warehouse.NewClient(db, warehouse.SQLite)
}

type stack struct {
	srv  *httptest.Server
	mgr  *manager.Manager
	disp *httpapi.Dispatcher
}

func newStack(t *testing.T, manifestURL string, q warehouse.Querier, ov routespec.Overrides) *stack {
	t.Helper()
	authn := auth.New(auth.Config{
		Keys: map[string]auth.Identity{
			adminKey:   {User: "ops", Tier: "tier3"},
			publicKey:  {User: "anon", Tier: "tier0"},
			partnerKey: {User: "partner", Tier: "tier1"},
		},
		RateLimits: map[string]int{"tier0": 1000, "tier1": 1000},
	})
	disp := httpapi.NewDispatcher(q, authn, httpapi.DocInfo{Title: "Cerebro", Version: "v1", BasePath: "/v1"})
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Source:     manifest.New(manifest.Config{URL: manifestURL, Fs: afero.NewMemMapFs()}),
		Dispatcher: disp,
		Builder:    routespec.Builder{DefaultTier: "tier0"},
		Overrides:  ov,
	})
	if err := mgr.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	mux := httpapi.NewMux(mgr, httpapi.Options{Title: "Cerebro", Dispatcher: disp, Auth: authn, APIPrefix: "/v1", AdminTier: "tier3"})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &stack{srv: srv, mgr: mgr, disp: disp}
}

func call(t *testing.T, method, url, key string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	if key != "" {
		req.Header.Set(auth.HeaderAPIKey, key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func decode[T any](t *testing.T, b []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("json: %v body=%s", err, string(b))
	}
	return v
}
