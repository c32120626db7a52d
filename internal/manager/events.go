package manager

// Event names emitted by the manager.
const (
	EventRefreshStart     = "refresh_start"
	EventRefreshUnchanged = "refresh_unchanged"
	EventRefreshReloaded  = "refresh_reloaded"
	EventRefreshError     = "refresh_error"
	EventTablePublished   = "table_published"
	EventRouteSkipped     = "route_skipped"
)

// Event represents a manager lifecycle event.
// Minimal and stable: name + model and optional fields via key/values.
type Event struct {
	Name   string
	Model  string
	Fields map[string]any
}

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
