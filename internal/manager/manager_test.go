package manager

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cerebro/internal/manifest"
	"cerebro/internal/routespec"
	"cerebro/internal/routetable"
	"cerebro/pkg/types"
)

const twoModels = `{"nodes": {
  "model.x.blobs": {"name": "blobs", "resource_type": "model", "schema": "dbt",
    "tags": ["production", "consensus", "api:blob_commitments", "granularity:daily"],
    "columns": {"date": {"data_type": "Date"}, "value": {"data_type": "UInt64"}}},
  "model.x.gas": {"name": "gas", "resource_type": "model", "schema": "dbt",
    "tags": ["production", "execution", "api:gas_used"]}
}}`

const oneModel = `{"nodes": {
  "model.x.blobs": {"name": "blobs", "resource_type": "model", "schema": "dbt",
    "tags": ["production", "consensus", "api:blob_commitments", "granularity:daily"]}
}}`

type recordingDispatcher struct {
	mu     sync.Mutex
	tables []*routetable.Table
}

func (d *recordingDispatcher) Publish(t *routetable.Table) {
	d.mu.Lock()
	d.tables = append(d.tables, t)
	d.mu.Unlock()
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tables)
}

type fixture struct {
	body   atomic.Value
	status atomic.Int32
	hits   atomic.Int32
	srv    *httptest.Server
}

func newFixture(t *testing.T, body string) *fixture {
	t.Helper()
	f := &fixture{}
	f.body.Store(body)
	f.status.Store(http.StatusOK)
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		if s := int(f.status.Load()); s != http.StatusOK {
			w.WriteHeader(s)
			return
		}
		_, _ = w.Write([]byte(f.body.Load().(string)))
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func newManager(t *testing.T, f *fixture, pub EventPublisher) (*Manager, *recordingDispatcher) {
	t.Helper()
	d := &recordingDispatcher{}
	store := manifest.New(manifest.Config{URL: f.srv.URL, Fs: afero.NewMemMapFs()})
	m := NewWithConfig(ManagerConfig{
		Source:          store,
		Dispatcher:      d,
		Builder:         routespec.Builder{DefaultTier: "tier0"},
		RefreshEnabled:  true,
		RefreshInterval: 20 * time.Millisecond,
		Publisher:       pub,
	})
	return m, d
}

func routePaths(t *routetable.Table) []string {
	var out []string
	for _, r := range t.Routes() {
		out = append(out, r.Path)
	}
	return out
}

func TestNewManager_StartsEmpty(t *testing.T) {
	m, _ := newManager(t, newFixture(t, twoModels), nil)
	assert.False(t, m.Ready())
	assert.Equal(t, uint64(0), m.Table().Generation)
	assert.Equal(t, 0, m.Table().Len())
}

func TestBootstrap_PublishesFirstTable(t *testing.T) {
	m, d := newManager(t, newFixture(t, twoModels), nil)
	require.NoError(t, m.Bootstrap(context.Background()))
	assert.True(t, m.Ready())
	assert.Equal(t, 1, d.count())
	assert.Equal(t, uint64(1), m.Table().Generation)
	assert.ElementsMatch(t, []string{"/consensus/blob_commitments/daily", "/execution/gas_used"}, routePaths(m.Table()))
}

func TestBootstrap_FailedLoadStillServesManualEndpoints(t *testing.T) {
	f := newFixture(t, twoModels)
	f.status.Store(http.StatusInternalServerError)
	m, _ := newManager(t, f, nil)
	m.overrides = routespec.Overrides{Endpoints: []routespec.Override{{Model: "raw", Path: "/raw"}}}
	err := m.Bootstrap(context.Background())
	require.Error(t, err)
	assert.True(t, IsBootstrapError(err))
	assert.True(t, m.Ready())
	assert.Equal(t, []string{"/raw"}, routePaths(m.Table()))
}

func TestRefresh_UnchangedKeepsGeneration(t *testing.T) {
	m, d := newManager(t, newFixture(t, twoModels), nil)
	require.NoError(t, m.Bootstrap(context.Background()))
	before := m.Table()

	res := m.Refresh(context.Background())
	assert.Equal(t, types.RefreshUnchanged, res.Status)
	assert.Equal(t, 2, res.Models)
	assert.Equal(t, before.Generation, res.Generation)
	assert.Same(t, before, m.Table())
	assert.Equal(t, 1, d.count())
}

func TestRefresh_ReloadRemovesDroppedModel(t *testing.T) {
	f := newFixture(t, twoModels)
	m, _ := newManager(t, f, nil)
	require.NoError(t, m.Bootstrap(context.Background()))

	f.body.Store(oneModel)
	res := m.Refresh(context.Background())
	assert.Equal(t, types.RefreshReloaded, res.Status)
	assert.Equal(t, 1, res.Models)
	assert.Equal(t, uint64(2), res.Generation)
	assert.Equal(t, 1, res.Routes)
	_, ok := m.Table().Lookup("/execution/gas_used")
	assert.False(t, ok)
}

func TestRefresh_ErrorKeepsLiveTable(t *testing.T) {
	f := newFixture(t, twoModels)
	m, _ := newManager(t, f, nil)
	require.NoError(t, m.Bootstrap(context.Background()))
	before := m.Table()

	f.status.Store(http.StatusBadGateway)
	res := m.Refresh(context.Background())
	assert.Equal(t, types.RefreshError, res.Status)
	assert.Contains(t, res.Detail, "502")
	assert.Equal(t, 2, res.Models)
	assert.Same(t, before, m.Table())
	assert.NotEmpty(t, m.Status().LastError)
}

func TestRefresh_ErrorEventCarriesKind(t *testing.T) {
	pub := NewMemoryPublisher()
	f := newFixture(t, twoModels)
	m, _ := newManager(t, f, pub)
	require.NoError(t, m.Bootstrap(context.Background()))

	f.status.Store(http.StatusBadGateway)
	require.Equal(t, types.RefreshError, m.Refresh(context.Background()).Status)
	f.status.Store(http.StatusOK)
	f.body.Store(`{"nodes": [`)
	require.Equal(t, types.RefreshError, m.Refresh(context.Background()).Status)

	var kinds []any
	for _, e := range pub.Events() {
		if e.Name == EventRefreshError {
			kinds = append(kinds, e.Fields["kind"])
		}
	}
	assert.Equal(t, []any{"fetch", "parse"}, kinds)
}

func TestRefresh_NoSourceReportsError(t *testing.T) {
	d := &recordingDispatcher{}
	m := NewWithConfig(ManagerConfig{Dispatcher: d})
	res := m.Refresh(context.Background())
	assert.Equal(t, types.RefreshError, res.Status)
	assert.Equal(t, ErrNoSource.Error(), res.Detail)
	assert.Equal(t, uint64(0), res.Generation)
	assert.Equal(t, 0, d.count())
	assert.Equal(t, 1, m.SetOverrides(routespec.Overrides{Endpoints: []routespec.Override{{Model: "raw", Path: "/raw"}}}).Len())
}

func TestRefresh_ConcurrentCallsPublishOnce(t *testing.T) {
	f := newFixture(t, twoModels)
	m, d := newManager(t, f, nil)
	require.NoError(t, m.Bootstrap(context.Background()))
	f.body.Store(oneModel)

	const n = 8
	results := make(chan types.RefreshResponse, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- m.Refresh(context.Background())
		}()
	}
	wg.Wait()
	close(results)

	reloaded := 0
	for r := range results {
		if r.Status == types.RefreshReloaded {
			reloaded++
		} else {
			assert.Equal(t, types.RefreshUnchanged, r.Status)
		}
	}
	assert.Equal(t, 1, reloaded)
	assert.Equal(t, 2, d.count())
	assert.Equal(t, uint64(2), m.Table().Generation)
}

func TestRefreshAsync_SurvivesCallerCancel(t *testing.T) {
	f := newFixture(t, twoModels)
	m, _ := newManager(t, f, nil)
	require.NoError(t, m.Bootstrap(context.Background()))
	f.body.Store(oneModel)

	ctx, cancel := context.WithCancel(context.Background())
	ch := m.RefreshAsync(ctx)
	cancel()
	select {
	case res := <-ch:
		assert.Equal(t, types.RefreshReloaded, res.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("refresh did not complete")
	}
}

func TestRefresh_WithoutURLRereadsFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/manifest.json", []byte(twoModels), 0o644))
	m := NewWithConfig(ManagerConfig{
		Source:  manifest.New(manifest.Config{Path: "/manifest.json", Fs: fs}),
		Builder: routespec.Builder{DefaultTier: "tier0"},
	})
	require.NoError(t, m.Bootstrap(context.Background()))
	assert.Equal(t, 2, m.Table().Len())

	require.NoError(t, afero.WriteFile(fs, "/manifest.json", []byte(oneModel), 0o644))
	res := m.Refresh(context.Background())
	assert.Equal(t, types.RefreshReloaded, res.Status)
	assert.Equal(t, 1, m.Table().Len())
}

func TestSetOverrides_Republishes(t *testing.T) {
	m, d := newManager(t, newFixture(t, twoModels), nil)
	require.NoError(t, m.Bootstrap(context.Background()))

	tbl := m.SetOverrides(routespec.Overrides{Endpoints: []routespec.Override{{Model: "gas", Path: "/custom/gas"}}})
	assert.Equal(t, uint64(2), tbl.Generation)
	assert.Equal(t, 2, d.count())
	_, ok := m.Table().Lookup("/custom/gas")
	assert.True(t, ok)
	_, ok = m.Table().Lookup("/execution/gas_used")
	assert.False(t, ok)
}

func TestStart_IdempotentAndStopWaits(t *testing.T) {
	pub := NewMemoryPublisher()
	f := newFixture(t, twoModels)
	m, _ := newManager(t, f, pub)
	require.NoError(t, m.Bootstrap(context.Background()))

	assert.True(t, m.Start(context.Background()))
	assert.False(t, m.Start(context.Background()))
	assert.True(t, m.Running())

	require.Eventually(t, func() bool { return f.hits.Load() >= 3 }, 5*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Stop(ctx))
	assert.False(t, m.Running())
	assert.Contains(t, pub.Names(), EventRefreshUnchanged)

	hits := f.hits.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, hits, f.hits.Load())

	require.NoError(t, m.Stop(ctx))
	assert.True(t, m.Start(context.Background()))
	require.NoError(t, m.Stop(ctx))
}

// stuckSource blocks inside Load, ignoring cancellation, until released.
type stuckSource struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *stuckSource) Load(context.Context, manifest.LoadOptions) (bool, error) {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return false, nil
}
func (s *stuckSource) Snapshot() *manifest.Snapshot { return nil }
func (s *stuckSource) HasRemote() bool              { return true }
func (s *stuckSource) LastError() error             { return nil }

func TestStop_DoesNotBlockStatusWhileWaiting(t *testing.T) {
	src := &stuckSource{entered: make(chan struct{}), release: make(chan struct{})}
	m := NewWithConfig(ManagerConfig{
		Source:          src,
		Dispatcher:      &recordingDispatcher{},
		RefreshEnabled:  true,
		RefreshInterval: time.Millisecond,
	})
	require.True(t, m.Start(context.Background()))
	<-src.entered

	stopped := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		stopped <- m.Stop(ctx)
	}()

	status := make(chan types.StatusResponse, 1)
	go func() { status <- m.Status() }()
	select {
	case <-status:
	case <-time.After(time.Second):
		t.Fatal("Status blocked while Stop was waiting for the loop")
	}

	close(src.release)
	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.False(t, m.Running())
}

func TestStart_DisabledIsNoop(t *testing.T) {
	m := NewWithConfig(ManagerConfig{Source: manifest.New(manifest.Config{})})
	assert.False(t, m.Start(context.Background()))
	assert.False(t, m.Running())
	assert.Equal(t, defaultRefreshInterval, m.Interval())
}

func TestEvents_SkippedManualModel(t *testing.T) {
	pub := NewMemoryPublisher()
	m, _ := newManager(t, newFixture(t, twoModels), pub)
	m.overrides = routespec.Overrides{Endpoints: []routespec.Override{{Model: "ghost"}}}
	require.NoError(t, m.Bootstrap(context.Background()))

	var skipped []string
	for _, e := range pub.Events() {
		if e.Name == EventRouteSkipped {
			skipped = append(skipped, e.Model)
		}
	}
	assert.Equal(t, []string{"ghost"}, skipped)
	assert.Contains(t, pub.Names(), EventTablePublished)
}
