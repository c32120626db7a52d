package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"
)

const (
	anonymousUser = "anonymous"
	fallbackTier  = "tier0"
)

// Identity is the caller a key resolves to.
type Identity struct {
	User string `json:"user"`
	Tier string `json:"tier"`
	Org  string `json:"org,omitempty"`
}

// ParseKeys decodes a key document. Each value is either a tier string or an
// object with user, tier and org. Missing user defaults to "anonymous" and
// missing tier to "tier0". Entries of any other shape are skipped.
func ParseKeys(raw []byte) (map[string]Identity, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse api keys: %w", err)
	}
	out := make(map[string]Identity, len(doc))
	for key, val := range doc {
		if string(val) == "null" {
			continue
		}
		var tier string
		if err := json.Unmarshal(val, &tier); err == nil {
			out[key] = Identity{User: anonymousUser, Tier: tier}
			continue
		}
		var full struct {
			User *string `json:"user"`
			Tier *string `json:"tier"`
			Org  *string `json:"org"`
		}
		if err := json.Unmarshal(val, &full); err != nil {
			continue
		}
		id := Identity{User: anonymousUser, Tier: fallbackTier}
		if full.User != nil {
			id.User = *full.User
		}
		if full.Tier != nil {
			id.Tier = *full.Tier
		}
		if full.Org != nil {
			id.Org = *full.Org
		}
		out[key] = id
	}
	return out, nil
}

// LoadKeys prefers inline JSON and falls back to the keys file. A missing
// file yields no keys.
func LoadKeys(fs afero.Fs, inline, path string) (map[string]Identity, error) {
	if inline != "" {
		keys, err := ParseKeys([]byte(inline))
		if err != nil {
			return nil, err
		}
		if len(keys) > 0 {
			return keys, nil
		}
	}
	if path == "" {
		return map[string]Identity{}, nil
	}
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]Identity{}, nil
		}
		return nil, err
	}
	return ParseKeys(b)
}
