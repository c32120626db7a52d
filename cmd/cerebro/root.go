package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"cerebro/internal/common/fsutil"
	"cerebro/internal/config"
)

// flagValues holds command-line overrides. Only flags the user set are applied.
type flagValues struct {
	configPath      string
	addr            string
	manifestURL     string
	manifestPath    string
	overridesPath   string
	refreshInterval int
	noRefresh       bool
	noWatch         bool
	warehouseDriver string
	warehouseDSN    string
	corsOrigins     string
	logLevel        string
	logFormat       string
	httpLogLevel    string
}

func newRootCmd() *cobra.Command {
	fv := &flagValues{}
	root := &cobra.Command{
		Use:           "cerebro",
		Short:         "Serve warehouse tables as REST endpoints derived from a dbt manifest",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServeCmd(cmd, fv)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&fv.configPath, "config", "", "Path to a config file (.yaml, .yml, .json, .toml)")
	pf.StringVar(&fv.manifestURL, "manifest-url", "", `Manifest URL ("none" disables the remote source)`)
	pf.StringVar(&fv.manifestPath, "manifest-path", "", "Local manifest file, used as fallback or as the only source")
	pf.StringVar(&fv.overridesPath, "overrides", "", "Endpoint override document (YAML)")
	pf.StringVar(&fv.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&fv.logFormat, "log-format", "", "Log format: json or console")
	addServeFlags(root.Flags(), fv)

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve loads the manifest (URL first, local file as fallback), derives the
route table, and serves it. The manifest is re-fetched in the background and
the table is swapped atomically whenever the content changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServeCmd(cmd, fv)
		},
	}
	addServeFlags(serve.Flags(), fv)

	root.AddCommand(serve, newRoutesCmd(fv), newVersionCmd())
	return root
}

func addServeFlags(fs *pflag.FlagSet, fv *flagValues) {
	fs.StringVar(&fv.addr, "addr", "", "HTTP listen address, e.g. :8000")
	fs.IntVar(&fv.refreshInterval, "refresh-interval", 0, "Seconds between background manifest refreshes")
	fs.BoolVar(&fv.noRefresh, "no-refresh", false, "Disable the background manifest refresh")
	fs.BoolVar(&fv.noWatch, "no-watch", false, "Do not hot reload the override document")
	fs.StringVar(&fv.warehouseDriver, "warehouse-driver", "", "database/sql driver: clickhouse or sqlite")
	fs.StringVar(&fv.warehouseDSN, "warehouse-dsn", "", "Warehouse connection string")
	fs.StringVar(&fv.httpLogLevel, "http-log-level", "", "Per-request log level without an override: off, error, info, debug")
	fs.StringVar(&fv.corsOrigins, "cors-origins", "", "Comma-separated CORS allow-list (empty disables CORS)")
}

// loadConfig resolves defaults, then the config file, then the environment,
// then flags.
func loadConfig(cmd *cobra.Command, fv *flagValues) (config.Config, error) {
	cfg := config.Defaults()
	if fv.configPath != "" {
		path, err := fsutil.ExpandHome(fv.configPath)
		if err != nil {
			return cfg, err
		}
		fileCfg, err := config.Load(path)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = config.Merge(cfg, fileCfg)
	}
	cfg, err := config.ApplyEnv(cfg, os.LookupEnv)
	if err != nil {
		return cfg, fmt.Errorf("environment: %w", err)
	}

	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if changed("addr") {
		cfg.Addr = fv.addr
	}
	if changed("manifest-url") {
		cfg.Manifest.URL = fv.manifestURL
	}
	if changed("manifest-path") {
		cfg.Manifest.Path = fv.manifestPath
	}
	if changed("overrides") {
		cfg.Manifest.OverridesPath = fv.overridesPath
	}
	if changed("refresh-interval") {
		cfg.Manifest.RefreshInterval = fv.refreshInterval
	}
	if changed("no-refresh") && fv.noRefresh {
		off := false
		cfg.Manifest.RefreshEnabled = &off
	}
	if changed("no-watch") && fv.noWatch {
		off := false
		cfg.Manifest.WatchOverrides = &off
	}
	if changed("warehouse-driver") {
		cfg.Warehouse.Driver = fv.warehouseDriver
	}
	if changed("warehouse-dsn") {
		cfg.Warehouse.DSN = fv.warehouseDSN
	}
	if changed("cors-origins") {
		cfg.CORSOrigins = fv.corsOrigins
	}
	if changed("http-log-level") {
		cfg.HTTPLogLevel = fv.httpLogLevel
	}
	if changed("log-level") {
		cfg.LogLevel = fv.logLevel
	}
	if changed("log-format") {
		cfg.LogFormat = fv.logFormat
	}

	if err := fsutil.ExpandAll(&cfg.Manifest.Path, &cfg.Manifest.OverridesPath, &cfg.Auth.KeysFile); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// newLogger builds the process logger from config.
func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	var l zerolog.Logger
	if cfg.LogFormat == "console" {
		l = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		l = zerolog.New(os.Stderr)
	}
	return l.Level(level).With().Timestamp().Logger()
}

// splitCSV splits a comma-separated list, trimming blanks and dropping empty items.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
