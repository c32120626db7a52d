// Package manager owns the lifecycle of the live route table. It is
// structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, bootstrap and getters.
//   - config.go: ManagerConfig and package defaults.
//   - refresh.go: the serialized refresh/rebuild/publish critical section.
//   - ops.go: async refresh and the background refresh loop.
//   - status.go: status reporting for /status.
//   - errors.go, events.go, metrics.go: supporting concerns.
//
// Every mutation of the live table goes through one mutex, so a refresh,
// an override change and the startup build never interleave. Readers call
// Table, which never blocks.
package manager
