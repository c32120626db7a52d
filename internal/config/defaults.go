package config

const (
	DefaultManifestURL = "https://gnosischain.github.io/dbt-cerebro/manifest.json"
	DefaultTitle       = "Gnosis Cerebro Data API"
)

// DefaultRateLimits are requests per minute by tier.
var DefaultRateLimits = map[string]int{
	"tier0": 20,
	"tier1": 100,
	"tier2": 500,
	"tier3": 10000,
}

// Defaults returns a Config with every field at its default.
func Defaults() Config {
	return Config{
		Addr:      ":8000",
		Title:     DefaultTitle,
		Version:   "v1",
		APIPrefix: "/v1",
		LogLevel:  "info",
		LogFormat: "json",
		Manifest: Manifest{
			URL:             DefaultManifestURL,
			Path:            "./manifest.json",
			OverridesPath:   "./api_config.yaml",
			RefreshInterval: 300,
			FetchTimeout:    30,
		},
		Auth: Auth{
			KeysFile:    "./api_keys.json",
			DefaultTier: "tier0",
			AdminTier:   "tier3",
			RateLimits:  copyLimits(DefaultRateLimits),
		},
		Warehouse: Warehouse{
			Driver:       "clickhouse",
			Host:         "localhost",
			Port:         8443,
			User:         "default",
			Database:     "default",
			QueryTimeout: 60,
		},
	}
}

// Merge overlays the non-zero fields of src onto dst.
func Merge(dst, src Config) Config {
	setStr(&dst.Addr, src.Addr)
	setStr(&dst.Title, src.Title)
	setStr(&dst.Version, src.Version)
	setStr(&dst.APIPrefix, src.APIPrefix)
	setStr(&dst.LogLevel, src.LogLevel)
	setStr(&dst.LogFormat, src.LogFormat)
	setStr(&dst.HTTPLogLevel, src.HTTPLogLevel)
	setStr(&dst.CORSOrigins, src.CORSOrigins)

	setStr(&dst.Manifest.URL, src.Manifest.URL)
	setStr(&dst.Manifest.Path, src.Manifest.Path)
	setStr(&dst.Manifest.OverridesPath, src.Manifest.OverridesPath)
	setBool(&dst.Manifest.RefreshEnabled, src.Manifest.RefreshEnabled)
	setInt(&dst.Manifest.RefreshInterval, src.Manifest.RefreshInterval)
	setInt(&dst.Manifest.FetchTimeout, src.Manifest.FetchTimeout)
	setBool(&dst.Manifest.WatchOverrides, src.Manifest.WatchOverrides)

	setStr(&dst.Auth.KeysFile, src.Auth.KeysFile)
	setStr(&dst.Auth.KeysJSON, src.Auth.KeysJSON)
	setStr(&dst.Auth.DefaultTier, src.Auth.DefaultTier)
	setStr(&dst.Auth.AdminTier, src.Auth.AdminTier)
	if len(src.Auth.RateLimits) > 0 {
		if dst.Auth.RateLimits == nil {
			dst.Auth.RateLimits = map[string]int{}
		}
		for k, v := range src.Auth.RateLimits {
			dst.Auth.RateLimits[k] = v
		}
	}

	setStr(&dst.Warehouse.Driver, src.Warehouse.Driver)
	setStr(&dst.Warehouse.DSN, src.Warehouse.DSN)
	setStr(&dst.Warehouse.URL, src.Warehouse.URL)
	setStr(&dst.Warehouse.Host, src.Warehouse.Host)
	setInt(&dst.Warehouse.Port, src.Warehouse.Port)
	setStr(&dst.Warehouse.User, src.Warehouse.User)
	setStr(&dst.Warehouse.Password, src.Warehouse.Password)
	setStr(&dst.Warehouse.Database, src.Warehouse.Database)
	setBool(&dst.Warehouse.Secure, src.Warehouse.Secure)
	setInt(&dst.Warehouse.MaxOpenConns, src.Warehouse.MaxOpenConns)
	setInt(&dst.Warehouse.QueryTimeout, src.Warehouse.QueryTimeout)
	return dst
}

func copyLimits(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func setStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setBool(dst **bool, v *bool) {
	if v != nil {
		b := *v
		*dst = &b
	}
}
