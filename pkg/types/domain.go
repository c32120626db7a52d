package types

// RefreshStatus is the outcome of one manifest refresh cycle.
type RefreshStatus string

const (
	RefreshUnchanged RefreshStatus = "unchanged"
	RefreshReloaded  RefreshStatus = "reloaded"
	RefreshError     RefreshStatus = "error"
)
