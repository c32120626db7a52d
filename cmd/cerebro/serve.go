package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"cerebro/internal/auth"
	"cerebro/internal/common/fsutil"
	"cerebro/internal/config"
	"cerebro/internal/httpapi"
	"cerebro/internal/manager"
	"cerebro/internal/manifest"
	"cerebro/internal/routespec"
	"cerebro/internal/warehouse"
)

const shutdownTimeout = 10 * time.Second

func runServeCmd(cmd *cobra.Command, fv *flagValues) error {
	cfg, err := loadConfig(cmd, fv)
	if err != nil {
		return err
	}
	return serve(cmd.Context(), cfg, newLogger(cfg))
}

// reloadKeys re-reads the configured API keys into a. On error the current
// keys stay in effect.
func reloadKeys(fs afero.Fs, cfg config.Config, a *auth.Authenticator, log zerolog.Logger) error {
	keys, err := auth.LoadKeys(fs, cfg.Auth.KeysJSON, cfg.Auth.KeysFile)
	if err != nil {
		return err
	}
	a.SetKeys(keys)
	log.Info().Int("keys", a.Len()).Msg("API keys reloaded")
	return nil
}

// serve runs the API until ctx is canceled.
func serve(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	osFs := afero.NewOsFs()

	store := manifest.New(manifest.Config{
		URL:          cfg.ManifestURL(),
		Path:         cfg.Manifest.Path,
		FetchTimeout: cfg.FetchTimeout(),
		Fs:           osFs,
		Logger:       log.With().Str("component", "manifest").Logger(),
	})

	overrides, err := routespec.LoadOverrides(osFs, cfg.Manifest.OverridesPath)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.Manifest.OverridesPath).Msg("ignoring invalid endpoint overrides")
		overrides = routespec.Overrides{}
	} else if !fsutil.PathExists(cfg.Manifest.OverridesPath) {
		log.Info().Str("path", cfg.Manifest.OverridesPath).Msg("no endpoint override document, serving manifest-derived routes only")
	}

	keys, err := auth.LoadKeys(osFs, cfg.Auth.KeysJSON, cfg.Auth.KeysFile)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		log.Warn().Str("path", cfg.Auth.KeysFile).Msg("no API keys configured, every generated route will answer 401")
	}
	authn := auth.New(auth.Config{
		Keys:       keys,
		RateLimits: cfg.Auth.RateLimits,
		Logger:     log.With().Str("component", "auth").Logger(),
	})

	var q warehouse.Querier
	client, err := warehouse.Open(warehouse.Config{
		Driver:       cfg.Warehouse.Driver,
		DSN:          cfg.WarehouseDSN(),
		MaxOpenConns: cfg.Warehouse.MaxOpenConns,
		QueryTimeout: time.Duration(cfg.Warehouse.QueryTimeout) * time.Second,
		Logger:       log.With().Str("component", "warehouse").Logger(),
	})
	switch {
	case warehouse.IsNotConfigured(err):
		log.Warn().Msg("no warehouse configured, generated routes will answer 503")
	case err != nil:
		return err
	default:
		defer client.Close()
		q = client
	}

	disp := httpapi.NewDispatcher(q, authn, httpapi.DocInfo{
		Title:       cfg.Title,
		Version:     cfg.Version,
		Description: "Endpoints are generated from the dbt manifest. Authenticate with the X-API-Key header.",
		BasePath:    cfg.APIPrefix,
	})
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Source:          store,
		Dispatcher:      disp,
		Builder:         routespec.Builder{DefaultTier: cfg.Auth.DefaultTier},
		Overrides:       overrides,
		RefreshEnabled:  cfg.RefreshEnabled(),
		RefreshInterval: cfg.RefreshInterval(),
		Logger:          log.With().Str("component", "manager").Logger(),
	})
	if err := mgr.Bootstrap(ctx); err != nil {
		if !manager.IsBootstrapError(err) {
			return err
		}
		log.Warn().Err(err).Msg("serving without a manifest until a refresh succeeds")
	}

	httpapi.SetLogger(log.With().Str("component", "http").Logger())
	httpapi.SetDefaultLogLevel(cfg.HTTPLogLevel)
	httpapi.SetBaseContext(ctx)
	if origins := splitCSV(cfg.CORSOrigins); len(origins) > 0 {
		httpapi.SetCORSOptions(true, origins,
			[]string{http.MethodGet, http.MethodPost, http.MethodOptions},
			[]string{"Accept", "Content-Type", auth.HeaderAPIKey, "X-Log-Level"})
	}
	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.NewMux(mgr, httpapi.Options{
			Title:      cfg.Title,
			Dispatcher: disp,
			Auth:       authn,
			APIPrefix:  cfg.APIPrefix,
			AdminTier:  cfg.Auth.AdminTier,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Int("routes", mgr.Table().Len()).Msg("cerebro listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	mgr.Start(gctx)
	if cfg.WatchOverrides() && cfg.Manifest.OverridesPath != "" {
		g.Go(func() error {
			err := routespec.WatchOverrides(gctx, cfg.Manifest.OverridesPath, log, func(ov routespec.Overrides) {
				mgr.SetOverrides(ov)
			})
			if err != nil {
				log.Warn().Err(err).Msg("override hot reload unavailable")
			}
			return nil
		})
	}
	g.Go(func() error {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-hup:
				if err := reloadKeys(osFs, cfg, authn, log); err != nil {
					log.Error().Err(err).Msg("API key reload failed, keeping previous keys")
				}
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := mgr.Stop(sctx); err != nil {
			log.Warn().Err(err).Msg("refresh loop did not stop in time")
		}
		if err := srv.Shutdown(sctx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown error")
			return err
		}
		log.Info().Msg("cerebro stopped")
		return nil
	})
	return g.Wait()
}
