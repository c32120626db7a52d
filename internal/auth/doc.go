// Package auth resolves API keys to caller identities and enforces tier
// access and per-key rate limits.
package auth
