package warehouse

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"cerebro/internal/routespec"
)

var (
	identRe   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)
	orderByRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\s+(?i:ASC|DESC))?$`)
)

var allowedOps = map[string]bool{
	"=": true, "!=": true, "<>": true,
	"<": true, "<=": true, ">": true, ">=": true,
	"LIKE": true, "ILIKE": true,
}

// Select is a route query ready for execution.
type Select struct {
	SQL  string
	Args []any
}

// SelectRequest carries one route invocation.
type SelectRequest struct {
	Table   string
	Params  []routespec.Param
	Values  url.Values
	OrderBy string
	Limit   int
	Offset  int
}

// BuildSelect renders `SELECT * FROM table [WHERE ...] [ORDER BY ...]
// LIMIT ? OFFSET ?`. Only parameters present with a non-empty value become
// conditions; they are ANDed in declaration order. LIKE operators wrap the
// value in `%` unless it already contains one.
func BuildSelect(req SelectRequest, d Dialect) (Select, error) {
	if !identRe.MatchString(req.Table) {
		return Select{}, fmt.Errorf("table %q: %w", req.Table, ErrUnsafeIdentifier)
	}
	var (
		b     strings.Builder
		args  []any
		where []string
	)
	b.WriteString("SELECT * FROM ")
	b.WriteString(req.Table)

	for _, p := range req.Params {
		val := req.Values.Get(p.Name)
		if val == "" {
			continue
		}
		if !identRe.MatchString(p.Column) {
			return Select{}, fmt.Errorf("column %q: %w", p.Column, ErrUnsafeIdentifier)
		}
		op := d.operator(p.Operator)
		if !allowedOps[op] {
			return Select{}, fmt.Errorf("operator %q: %w", p.Operator, ErrUnsafeIdentifier)
		}
		if strings.Contains(op, "LIKE") && !strings.Contains(val, "%") {
			val = "%" + val + "%"
		}
		where = append(where, p.Column+" "+op+" ?")
		args = append(args, val)
	}
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}

	if ob := strings.TrimSpace(req.OrderBy); ob != "" {
		parts := strings.Split(ob, ",")
		for i, part := range parts {
			part = strings.TrimSpace(part)
			if !orderByRe.MatchString(part) {
				return Select{}, fmt.Errorf("order by %q: %w", ob, ErrUnsafeIdentifier)
			}
			parts[i] = part
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(parts, ", "))
	}

	b.WriteString(" LIMIT ? OFFSET ?")
	args = append(args, req.Limit, req.Offset)
	return Select{SQL: b.String(), Args: args}, nil
}
