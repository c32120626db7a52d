package warehouse

import "strings"

// Dialect captures the few SQL differences between supported drivers.
type Dialect struct {
	Name string
	// ILike is false when the engine has no ILIKE. It is then rewritten to
	// LIKE, which SQLite matches case-insensitively for ASCII.
	ILike bool
}

var (
	ClickHouse = Dialect{Name: "clickhouse", ILike: true}
	SQLite     = Dialect{Name: "sqlite", ILike: false}
)

// DialectFor returns the dialect for a database/sql driver name.
func DialectFor(driver string) Dialect {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return SQLite
	default:
		return ClickHouse
	}
}

func (d Dialect) operator(op string) string {
	op = strings.ToUpper(strings.TrimSpace(op))
	if op == "ILIKE" && !d.ILike {
		return "LIKE"
	}
	return op
}
