package routespec

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	apiPrefix         = "api:"
	granularityPrefix = "granularity:"
	productionTag     = "production"
	defaultCategory   = "general"
	defaultDocGroup   = "General"
)

// systemTags never name a category or a documentation group. Granularity
// literals are listed for models that tag them without the prefix.
var systemTags = map[string]struct{}{
	"production":   {},
	"view":         {},
	"table":        {},
	"incremental":  {},
	"staging":      {},
	"intermediate": {},
	"daily":        {},
	"weekly":       {},
	"monthly":      {},
	"hourly":       {},
	"latest":       {},
	"in_ranges":    {},
	"last_30d":     {},
	"last_7d":      {},
	"all_time":     {},
}

var tierTagRE = regexp.MustCompile(`^tier\d+$`)

// APIResource returns the first non-empty `api:` tag remainder.
func APIResource(tags []string) (string, bool) {
	for _, t := range tags {
		if hasPrefixFold(t, apiPrefix) {
			if r := strings.TrimSpace(t[len(apiPrefix):]); r != "" {
				return r, true
			}
		}
	}
	return "", false
}

// Granularity returns the first non-empty `granularity:` tag remainder, lower-cased.
func Granularity(tags []string) (string, bool) {
	for _, t := range tags {
		if hasPrefixFold(t, granularityPrefix) {
			if g := strings.ToLower(strings.TrimSpace(t[len(granularityPrefix):])); g != "" {
				return g, true
			}
		}
	}
	return "", false
}

// Category returns the first free-form tag, lower-cased, or "general".
func Category(tags []string) string {
	for _, t := range tags {
		if isFreeForm(t) {
			return strings.ToLower(t)
		}
	}
	return defaultCategory
}

// Tier returns the first `tier<N>` tag, lower-cased, or def.
func Tier(tags []string, def string) string {
	for _, t := range tags {
		if lt := strings.ToLower(t); tierTagRE.MatchString(lt) {
			return lt
		}
	}
	return def
}

// IsProduction reports whether tags contain the production marker.
func IsProduction(tags []string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, productionTag) {
			return true
		}
	}
	return false
}

// DocGroups returns the documentation grouping for tags: only the first
// free-form tag is used, title-cased with underscores as spaces.
func DocGroups(tags []string) []string {
	var groups []string
	for _, t := range tags {
		if isFreeForm(t) {
			groups = append(groups, t)
		}
	}
	if len(groups) == 0 {
		return []string{defaultDocGroup}
	}
	return []string{Title(groups[0])}
}

func isFreeForm(tag string) bool {
	lt := strings.ToLower(tag)
	if _, ok := systemTags[lt]; ok {
		return false
	}
	if tierTagRE.MatchString(lt) {
		return false
	}
	return !strings.Contains(tag, ":")
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// Title turns "gas_used" into "Gas Used": underscores become spaces and every
// letter following a non-letter is upper-cased, the rest lower-cased.
func Title(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}
