package auth

import (
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// HeaderAPIKey carries the caller's key.
const HeaderAPIKey = "X-API-Key"

// Config configures an Authenticator.
type Config struct {
	Keys map[string]Identity
	// RateLimits are requests per minute by tier. Tiers without an entry are
	// not limited.
	RateLimits map[string]int
	Logger     zerolog.Logger
}

// Authenticator checks keys, tiers and per-key request rates. It is safe for
// concurrent use.
type Authenticator struct {
	limits map[string]int
	log    zerolog.Logger

	mu       sync.RWMutex
	keys     map[string]Identity
	limiters map[string]*rate.Limiter
}

func New(cfg Config) *Authenticator {
	a := &Authenticator{
		limits:   map[string]int{},
		log:      cfg.Logger,
		keys:     map[string]Identity{},
		limiters: map[string]*rate.Limiter{},
	}
	for k, v := range cfg.RateLimits {
		a.limits[k] = v
	}
	for k, v := range cfg.Keys {
		a.keys[k] = v
	}
	return a
}

// SetKeys replaces the key set. Limiter state of keys that remain with the
// same tier is kept.
func (a *Authenticator) SetKeys(keys map[string]Identity) {
	a.mu.Lock()
	defer a.mu.Unlock()
	next := make(map[string]Identity, len(keys))
	for k, v := range keys {
		next[k] = v
		if old, ok := a.keys[k]; !ok || old.Tier != v.Tier {
			delete(a.limiters, k)
		}
	}
	for k := range a.limiters {
		if _, ok := next[k]; !ok {
			delete(a.limiters, k)
		}
	}
	a.keys = next
}

// Len returns the number of known keys.
func (a *Authenticator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.keys)
}

// Authorize resolves key and checks it against the required tier, then
// consumes one request from the key's rate budget.
func (a *Authenticator) Authorize(key, required string) (Identity, error) {
	if key == "" {
		return Identity{}, denied(ErrUnauthenticated, "missing API key")
	}
	a.mu.RLock()
	id, ok := a.keys[key]
	a.mu.RUnlock()
	if !ok {
		return Identity{}, denied(ErrUnauthenticated, "invalid API key")
	}
	if !Satisfies(id.Tier, required) {
		a.log.Debug().Str("user", id.User).Str("tier", id.Tier).Str("required", required).Msg("tier too low")
		return id, denied(ErrForbidden, "access denied: requires "+required+", caller has "+id.Tier)
	}
	if l := a.limiter(key, id.Tier); l != nil && !l.Allow() {
		return id, denied(ErrRateLimited, "rate limit exceeded for "+id.Tier)
	}
	return id, nil
}

func (a *Authenticator) limiter(key, tier string) *rate.Limiter {
	perMin, ok := a.limits[tier]
	if !ok || perMin <= 0 {
		return nil
	}
	a.mu.RLock()
	l := a.limiters[key]
	a.mu.RUnlock()
	if l != nil {
		return l
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if l = a.limiters[key]; l == nil {
		l = rate.NewLimiter(rate.Limit(float64(perMin)/60), perMin)
		a.limiters[key] = l
	}
	return l
}
