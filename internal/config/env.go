package config

import (
	"fmt"
	"strconv"
	"strings"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(string) (string, bool)

// envBinding maps variable names, in precedence order, onto a setter.
// The first name that is set wins.
type envBinding struct {
	names []string
	set   func(*Config, string) error
}

var envBindings = []envBinding{
	{[]string{"CEREBRO_ADDR"}, func(c *Config, v string) error { c.Addr = v; return nil }},
	{[]string{"CEREBRO_TITLE", "API_TITLE"}, func(c *Config, v string) error { c.Title = v; return nil }},
	{[]string{"CEREBRO_VERSION", "API_VERSION"}, func(c *Config, v string) error { c.Version = v; return nil }},
	{[]string{"CEREBRO_LOG_LEVEL"}, func(c *Config, v string) error { c.LogLevel = v; return nil }},
	{[]string{"CEREBRO_LOG_FORMAT"}, func(c *Config, v string) error { c.LogFormat = v; return nil }},
	{[]string{"CEREBRO_HTTP_LOG_LEVEL"}, func(c *Config, v string) error { c.HTTPLogLevel = v; return nil }},
	{[]string{"CEREBRO_CORS_ORIGINS"}, func(c *Config, v string) error { c.CORSOrigins = v; return nil }},

	{[]string{"CEREBRO_MANIFEST_URL", "DBT_MANIFEST_URL"}, func(c *Config, v string) error { c.Manifest.URL = v; return nil }},
	{[]string{"CEREBRO_MANIFEST_PATH", "DBT_MANIFEST_PATH"}, func(c *Config, v string) error { c.Manifest.Path = v; return nil }},
	{[]string{"CEREBRO_OVERRIDES_PATH", "API_CONFIG_PATH"}, func(c *Config, v string) error { c.Manifest.OverridesPath = v; return nil }},
	{[]string{"CEREBRO_REFRESH_ENABLED", "DBT_MANIFEST_REFRESH_ENABLED"}, func(c *Config, v string) error {
		return parseBool(v, &c.Manifest.RefreshEnabled)
	}},
	{[]string{"CEREBRO_REFRESH_INTERVAL_SECONDS", "DBT_MANIFEST_REFRESH_INTERVAL_SECONDS"}, func(c *Config, v string) error {
		return parseInt(v, &c.Manifest.RefreshInterval)
	}},
	{[]string{"CEREBRO_FETCH_TIMEOUT_SECONDS"}, func(c *Config, v string) error { return parseInt(v, &c.Manifest.FetchTimeout) }},

	{[]string{"CEREBRO_API_KEYS_FILE", "API_KEYS_FILE"}, func(c *Config, v string) error { c.Auth.KeysFile = v; return nil }},
	{[]string{"CEREBRO_API_KEYS", "API_KEYS"}, func(c *Config, v string) error { c.Auth.KeysJSON = v; return nil }},
	{[]string{"CEREBRO_DEFAULT_TIER", "DEFAULT_ENDPOINT_TIER"}, func(c *Config, v string) error { c.Auth.DefaultTier = v; return nil }},
	{[]string{"CEREBRO_ADMIN_TIER"}, func(c *Config, v string) error { c.Auth.AdminTier = v; return nil }},

	{[]string{"CEREBRO_WAREHOUSE_DRIVER"}, func(c *Config, v string) error { c.Warehouse.Driver = v; return nil }},
	{[]string{"CEREBRO_WAREHOUSE_DSN"}, func(c *Config, v string) error { c.Warehouse.DSN = v; return nil }},
	{[]string{"CLICKHOUSE_URL"}, func(c *Config, v string) error { c.Warehouse.URL = v; return nil }},
	{[]string{"CLICKHOUSE_HOST"}, func(c *Config, v string) error { c.Warehouse.Host = v; return nil }},
	{[]string{"CLICKHOUSE_PORT"}, func(c *Config, v string) error { return parseInt(v, &c.Warehouse.Port) }},
	{[]string{"CLICKHOUSE_USER"}, func(c *Config, v string) error { c.Warehouse.User = v; return nil }},
	{[]string{"CLICKHOUSE_PASSWORD"}, func(c *Config, v string) error { c.Warehouse.Password = v; return nil }},
	{[]string{"CLICKHOUSE_DATABASE"}, func(c *Config, v string) error { c.Warehouse.Database = v; return nil }},
	{[]string{"CLICKHOUSE_SECURE"}, func(c *Config, v string) error { return parseBool(v, &c.Warehouse.Secure) }},
}

// ApplyEnv overlays environment variables onto cfg. Malformed numeric or
// boolean values are reported and leave the field unchanged.
func ApplyEnv(cfg Config, lookup LookupFunc) (Config, error) {
	for _, b := range envBindings {
		for _, name := range b.names {
			v, ok := lookup(name)
			if !ok {
				continue
			}
			if err := b.set(&cfg, strings.TrimSpace(v)); err != nil {
				return cfg, fmt.Errorf("%s: %w", name, err)
			}
			break
		}
	}
	return cfg, nil
}

func parseInt(v string, dst *int) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func parseBool(v string, dst **bool) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	*dst = &b
	return nil
}
