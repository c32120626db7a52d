package routespec

import (
	"errors"
	"fmt"
	"strings"

	"cerebro/internal/manifest"
)

// ErrNoResource means a model has neither an override path nor an `api:` tag,
// so no path can be derived. The model is skipped.
var ErrNoResource = errors.New("no api resource tag")

// ErrInvalidPath means the derived or configured path cannot be routed. The
// model is skipped.
var ErrInvalidPath = errors.New("invalid route path")

// Spec is one derived endpoint.
type Spec struct {
	Path        string
	Model       string
	Table       string
	Summary     string
	DocTags     []string
	Tier        string
	Params      []Param
	OrderBy     string
	Description string
	Columns     []manifest.Column
}

// Builder derives route specs. It performs no I/O.
type Builder struct {
	DefaultTier string
}

var timestampColumns = map[string]struct{}{
	"date":            {},
	"timestamp":       {},
	"block_timestamp": {},
}

var equalityColumns = []string{"project", "sector", "label", "status"}

// Build derives the route for model. node may be nil for manually configured
// models missing from the manifest; ov may be nil.
func (b Builder) Build(model string, node *manifest.ModelNode, ov *Override) (Spec, error) {
	if ov == nil {
		ov = &Override{}
	}
	var (
		tags    []string
		columns []manifest.Column
		table   = model
		desc    string
	)
	if node != nil {
		tags = node.Tags
		columns = node.Columns
		table = node.TableName()
		desc = node.Description
	}

	resource, hasResource := APIResource(tags)
	granularity, hasGranularity := Granularity(tags)

	path := ov.Path
	if path == "" {
		if !hasResource {
			return Spec{}, fmt.Errorf("model %s: %w", model, ErrNoResource)
		}
		parts := []string{Category(tags), resource}
		if hasGranularity {
			parts = append(parts, granularity)
		}
		path = "/" + strings.Join(parts, "/")
	}
	if err := checkPath(path); err != nil {
		return Spec{}, fmt.Errorf("model %s: %w", model, err)
	}

	summary := ov.Summary
	switch {
	case summary != "":
	case hasResource:
		summary = Title(resource)
		if hasGranularity {
			summary += " (" + granularity + ")"
		}
	default:
		summary = Title(model)
	}

	docTags := ov.Tags
	if len(docTags) == 0 {
		docTags = DocGroups(tags)
	}

	tier := ov.Tier
	if tier == "" {
		tier = Tier(tags, b.DefaultTier)
	}

	dateCol, hasDate := firstTimeColumn(columns)
	params := append([]Param(nil), ov.Parameters...)
	if len(params) == 0 {
		params = detectParams(columns, dateCol, hasDate)
	}

	orderBy := ov.OrderBy
	if orderBy == "" && hasDate {
		orderBy = dateCol + " DESC"
	}

	return Spec{
		Path:        path,
		Model:       model,
		Table:       table,
		Summary:     summary,
		DocTags:     append([]string(nil), docTags...),
		Tier:        tier,
		Params:      params,
		OrderBy:     orderBy,
		Description: describe(tier, desc, columns),
		Columns:     append([]manifest.Column(nil), columns...),
	}, nil
}

// checkPath rejects paths the router cannot register: they must be absolute
// and free of pattern syntax.
func checkPath(path string) error {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("%w %q: must begin with '/'", ErrInvalidPath, path)
	}
	if strings.ContainsAny(path, "*{} \t\n") {
		return fmt.Errorf("%w %q: contains '*', '{', '}' or whitespace", ErrInvalidPath, path)
	}
	return nil
}

// firstTimeColumn returns the first column whose type mentions a date or time,
// or whose name is a conventional timestamp name.
func firstTimeColumn(columns []manifest.Column) (string, bool) {
	for _, c := range columns {
		lt := strings.ToLower(c.DataType)
		if strings.Contains(lt, "date") || strings.Contains(lt, "time") {
			return c.Name, true
		}
		if _, ok := timestampColumns[c.Name]; ok {
			return c.Name, true
		}
	}
	return "", false
}

func detectParams(columns []manifest.Column, dateCol string, hasDate bool) []Param {
	has := make(map[string]bool, len(columns))
	for _, c := range columns {
		has[c.Name] = true
	}
	var params []Param
	if hasDate {
		params = append(params,
			Param{Name: "start_date", Column: dateCol, Operator: ">=", Type: "date"},
			Param{Name: "end_date", Column: dateCol, Operator: "<=", Type: "date"},
		)
	}
	if has["address"] {
		params = append(params, Param{Name: "address", Column: "address", Operator: "ILIKE", Type: "string"})
	}
	for _, col := range equalityColumns {
		if has[col] {
			params = append(params, Param{Name: col, Column: col, Operator: "=", Type: "string"})
		}
	}
	return params
}

func describe(tier, desc string, columns []manifest.Column) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Required Access:** `%s`\n\n", tier)
	b.WriteString(desc)
	b.WriteString("\n\n**Columns:**\n")
	for i, c := range columns {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- **%s**: %s", c.Name, c.DataType)
	}
	return b.String()
}
