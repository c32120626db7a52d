package warehouse

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const defaultQueryTimeout = 60 * time.Second

// Row is one result row keyed by column name.
type Row map[string]any

// Querier runs a read query. *Client satisfies it; tests may substitute.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) ([]Row, error)
	Dialect() Dialect
}

// Config selects a database/sql driver and connection string.
type Config struct {
	Driver       string
	DSN          string
	MaxOpenConns int
	QueryTimeout time.Duration
	Logger       zerolog.Logger
}

// Client is a pooled warehouse connection.
type Client struct {
	db      *sql.DB
	dialect Dialect
	timeout time.Duration
	log     zerolog.Logger
}

// Open connects using cfg. An empty DSN yields ErrNotConfigured.
func Open(cfg Config) (*Client, error) {
	if cfg.DSN == "" {
		return nil, ErrNotConfigured
	}
	driver := cfg.Driver
	if driver == "" {
		driver = "clickhouse"
	}
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return &Client{db: db, dialect: DialectFor(driver), timeout: timeout, log: cfg.Logger}, nil
}

// NewClient wraps an existing pool.
func NewClient(db *sql.DB, d Dialect) *Client {
	return &Client{db: db, dialect: d, timeout: defaultQueryTimeout, log: zerolog.Nop()}
}

func (c *Client) Dialect() Dialect { return c.dialect }

// Ping verifies connectivity.
func (c *Client) Ping(ctx context.Context) error { return c.db.PingContext(ctx) }

func (c *Client) Close() error { return c.db.Close() }

// Query executes q and returns all rows. Byte slices are returned as strings
// so rows encode as JSON text.
func (c *Client) Query(ctx context.Context, q string, args ...any) ([]Row, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, &QueryError{Err: err}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &QueryError{Err: err}
	}
	out := make([]Row, 0)
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &QueryError{Err: err}
		}
		row := make(Row, len(cols))
		for i, name := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[name] = string(b)
				continue
			}
			row[name] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Err: err}
	}
	c.log.Debug().Str("sql", q).Int("rows", len(out)).Dur("took", time.Since(start)).Msg("warehouse query")
	return out, nil
}
