package auth

import (
	"strconv"
	"strings"
)

// Rank parses `tierN` (case-insensitive) into N.
func Rank(tier string) (int, bool) {
	t := strings.ToLower(strings.TrimSpace(tier))
	if !strings.HasPrefix(t, "tier") {
		return 0, false
	}
	n, err := strconv.Atoi(t[len("tier"):])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Satisfies reports whether a caller tier grants access to required.
// Unranked tiers only match themselves.
func Satisfies(caller, required string) bool {
	cr, cok := Rank(caller)
	rr, rok := Rank(required)
	if cok && rok {
		return cr >= rr
	}
	return strings.EqualFold(strings.TrimSpace(caller), strings.TrimSpace(required))
}
