package types

// RefreshResponse is returned by POST /v1/system/manifest/refresh.
type RefreshResponse struct {
	// Outcome of the refresh: unchanged, reloaded or error.
	// example: reloaded
	Status RefreshStatus `json:"status" example:"reloaded"`
	// Number of models indexed from the manifest after the refresh.
	// example: 42
	Models int `json:"models" example:"42"`
	// Failure detail when status is error.
	Detail string `json:"detail,omitempty"`
	// Generation of the route table being served.
	// example: 3
	Generation uint64 `json:"generation" example:"3"`
	// Number of routes in the served generation.
	// example: 17
	Routes int `json:"routes" example:"17"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid limit
	Error string `json:"error" example:"invalid limit"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// RootResponse is returned by GET /.
type RootResponse struct {
	// example: online
	Status string `json:"status" example:"online"`
	// example: Gnosis Cerebro Data API
	Service string `json:"service" example:"Gnosis Cerebro Data API"`
	// example: /docs/
	Docs string `json:"docs" example:"/docs/"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Generation of the route table being served.
	// example: 3
	Generation uint64 `json:"generation" example:"3"`
	// Unique id of the served generation.
	GenerationID string `json:"generation_id"`
	// Number of routes in the served generation.
	// example: 17
	Routes int `json:"routes" example:"17"`
	// Number of models indexed from the manifest.
	// example: 42
	Models int `json:"models" example:"42"`
	// sha256 of the manifest bytes the generation was built from.
	ManifestHash string `json:"manifest_hash,omitempty"`
	// Where the current manifest came from: url or file.
	// example: url
	ManifestSource string `json:"manifest_source,omitempty" example:"url"`
	// Last manifest load error, if the most recent load failed.
	LastError string `json:"last_error,omitempty"`
	// Whether the background refresh loop is running.
	RefreshRunning bool `json:"refresh_running"`
	// Background refresh interval in seconds.
	// example: 300
	RefreshIntervalSeconds int64 `json:"refresh_interval_seconds" example:"300"`
	// Unix time the served generation was built.
	// example: 1700000000
	BuiltAtUnix int64 `json:"built_at_unix" example:"1700000000"`
}

// Param describes one filter query parameter of a route.
type Param struct {
	// example: start_date
	Name string `json:"name" example:"start_date"`
	// example: date
	Column string `json:"column" example:"date"`
	// example: >=
	Operator string `json:"operator" example:">="`
	// example: date
	Type string `json:"type" example:"date"`
}

// RouteInfo summarizes one published route.
type RouteInfo struct {
	// example: /consensus/blob_commitments/daily
	Path string `json:"path" example:"/consensus/blob_commitments/daily"`
	// example: api_consensus_blob_commitments_daily
	Model string `json:"model" example:"api_consensus_blob_commitments_daily"`
	// example: dbt.api_consensus_blob_commitments_daily
	Table string `json:"table" example:"dbt.api_consensus_blob_commitments_daily"`
	// example: tier0
	Tier    string   `json:"tier" example:"tier0"`
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
	Params  []Param  `json:"parameters"`
	OrderBy string   `json:"order_by,omitempty"`
}

// RoutesResponse is returned by GET /v1/system/routes.
type RoutesResponse struct {
	Generation uint64      `json:"generation"`
	Routes     []RouteInfo `json:"routes"`
}
