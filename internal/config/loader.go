package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified"; Defaults fills them in.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	Title     string `json:"title" yaml:"title" toml:"title"`
	Version   string `json:"version" yaml:"version" toml:"version"`
	APIPrefix string `json:"api_prefix" yaml:"api_prefix" toml:"api_prefix"`
	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`
	// HTTPLogLevel is the per-request log level when a request carries no
	// override: off, error, info or debug.
	HTTPLogLevel string `json:"http_log_level" yaml:"http_log_level" toml:"http_log_level"`
	// CORSOrigins is a comma-separated allow-list. Empty disables CORS.
	CORSOrigins string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`

	Manifest  Manifest  `json:"manifest" yaml:"manifest" toml:"manifest"`
	Auth      Auth      `json:"auth" yaml:"auth" toml:"auth"`
	Warehouse Warehouse `json:"warehouse" yaml:"warehouse" toml:"warehouse"`
}

type Manifest struct {
	// URL takes precedence over Path. "none" disables the remote source.
	URL             string `json:"url" yaml:"url" toml:"url"`
	Path            string `json:"path" yaml:"path" toml:"path"`
	OverridesPath   string `json:"overrides_path" yaml:"overrides_path" toml:"overrides_path"`
	RefreshEnabled  *bool  `json:"refresh_enabled" yaml:"refresh_enabled" toml:"refresh_enabled"`
	RefreshInterval int    `json:"refresh_interval_seconds" yaml:"refresh_interval_seconds" toml:"refresh_interval_seconds"`
	FetchTimeout    int    `json:"fetch_timeout_seconds" yaml:"fetch_timeout_seconds" toml:"fetch_timeout_seconds"`
	WatchOverrides  *bool  `json:"watch_overrides" yaml:"watch_overrides" toml:"watch_overrides"`
}

type Auth struct {
	KeysFile    string         `json:"keys_file" yaml:"keys_file" toml:"keys_file"`
	KeysJSON    string         `json:"keys_json" yaml:"keys_json" toml:"keys_json"`
	DefaultTier string         `json:"default_tier" yaml:"default_tier" toml:"default_tier"`
	AdminTier   string         `json:"admin_tier" yaml:"admin_tier" toml:"admin_tier"`
	RateLimits  map[string]int `json:"rate_limits" yaml:"rate_limits" toml:"rate_limits"`
}

type Warehouse struct {
	Driver string `json:"driver" yaml:"driver" toml:"driver"`
	// DSN is used verbatim when set; otherwise a ClickHouse DSN is built from
	// the fields below.
	DSN          string `json:"dsn" yaml:"dsn" toml:"dsn"`
	URL          string `json:"url" yaml:"url" toml:"url"`
	Host         string `json:"host" yaml:"host" toml:"host"`
	Port         int    `json:"port" yaml:"port" toml:"port"`
	User         string `json:"user" yaml:"user" toml:"user"`
	Password     string `json:"password" yaml:"password" toml:"password"`
	Database     string `json:"database" yaml:"database" toml:"database"`
	Secure       *bool  `json:"secure" yaml:"secure" toml:"secure"`
	MaxOpenConns int    `json:"max_open_conns" yaml:"max_open_conns" toml:"max_open_conns"`
	QueryTimeout int    `json:"query_timeout_seconds" yaml:"query_timeout_seconds" toml:"query_timeout_seconds"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// ManifestURL returns the manifest URL, or "" when it is unset or "none".
func (c Config) ManifestURL() string {
	u := strings.TrimSpace(c.Manifest.URL)
	if strings.EqualFold(u, "none") {
		return ""
	}
	return u
}

// RefreshInterval returns the background refresh period.
func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.Manifest.RefreshInterval) * time.Second
}

// FetchTimeout returns the manifest HTTP timeout.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Manifest.FetchTimeout) * time.Second
}

// RefreshEnabled reports whether the background loop should run.
func (c Config) RefreshEnabled() bool {
	return c.Manifest.RefreshEnabled == nil || *c.Manifest.RefreshEnabled
}

// WatchOverrides reports whether the override document is hot reloaded.
func (c Config) WatchOverrides() bool {
	return c.Manifest.WatchOverrides == nil || *c.Manifest.WatchOverrides
}

// WarehouseDSN returns the connection string for the configured driver, or
// "" when nothing usable is configured.
func (c Config) WarehouseDSN() string {
	w := c.Warehouse
	if w.DSN != "" {
		return w.DSN
	}
	if w.Driver != "" && w.Driver != "clickhouse" {
		return ""
	}
	host := w.URL
	if host == "" {
		host = w.Host
	}
	if host == "" {
		return ""
	}
	host = strings.TrimPrefix(strings.TrimPrefix(host, "https://"), "http://")
	if w.Port > 0 && !strings.Contains(host, ":") {
		host += ":" + strconv.Itoa(w.Port)
	}
	u := url.URL{Scheme: "clickhouse", Host: host, Path: "/" + w.Database}
	if w.User != "" {
		u.User = url.UserPassword(w.User, w.Password)
	}
	if w.Secure == nil || *w.Secure {
		u.RawQuery = "secure=true"
	}
	return u.String()
}
