// Package warehouse executes the read-only SELECTs behind each published
// route. It speaks database/sql, so any registered driver works; ClickHouse
// is the production driver and SQLite backs local runs and tests.
package warehouse
