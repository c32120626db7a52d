package auth

import (
	"errors"
	"net/http"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeys_SimpleAndFullForms(t *testing.T) {
	keys, err := ParseKeys([]byte(`{
		"k0": "tier1",
		"k1": {"user": "alice", "tier": "tier2", "org": "Acme"},
		"k2": {"org": "Partner"},
		"k3": 42
	}`))
	require.NoError(t, err)
	assert.Equal(t, Identity{User: "anonymous", Tier: "tier1"}, keys["k0"])
	assert.Equal(t, Identity{User: "alice", Tier: "tier2", Org: "Acme"}, keys["k1"])
	assert.Equal(t, Identity{User: "anonymous", Tier: "tier0", Org: "Partner"}, keys["k2"])
	_, ok := keys["k3"]
	assert.False(t, ok)
}

func TestLoadKeys_InlineThenFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/keys.json", []byte(`{"file": "tier3"}`), 0o600))

	keys, err := LoadKeys(fs, `{"env": "tier1"}`, "/keys.json")
	require.NoError(t, err)
	assert.Contains(t, keys, "env")
	assert.NotContains(t, keys, "file")

	keys, err = LoadKeys(fs, "", "/keys.json")
	require.NoError(t, err)
	assert.Contains(t, keys, "file")

	keys, err = LoadKeys(fs, "", "/missing.json")
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = LoadKeys(fs, "{", "")
	assert.Error(t, err)
}

func TestRankAndSatisfies(t *testing.T) {
	n, ok := Rank("TIER2")
	assert.True(t, ok)
	assert.Equal(t, 2, n)
	_, ok = Rank("gold")
	assert.False(t, ok)

	assert.True(t, Satisfies("tier3", "tier1"))
	assert.True(t, Satisfies("tier1", "tier1"))
	assert.False(t, Satisfies("tier0", "tier1"))
	assert.True(t, Satisfies("gold", "Gold"))
	assert.False(t, Satisfies("tier3", "gold"))
}

func TestAuthorize(t *testing.T) {
	a := New(Config{Keys: map[string]Identity{
		"low":  {User: "u", Tier: "tier0"},
		"high": {User: "admin", Tier: "tier3"},
	}})

	_, err := a.Authorize("", "tier0")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthenticated))

	_, err = a.Authorize("nope", "tier0")
	assert.True(t, errors.Is(err, ErrUnauthenticated))

	_, err = a.Authorize("low", "tier1")
	assert.True(t, errors.Is(err, ErrForbidden))
	assert.True(t, IsAccessDenied(err))
	var ae *AccessError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, http.StatusForbidden, ae.StatusCode())

	id, err := a.Authorize("high", "tier1")
	require.NoError(t, err)
	assert.Equal(t, "admin", id.User)
}

func TestAuthorize_RateLimitPerKey(t *testing.T) {
	a := New(Config{
		Keys:       map[string]Identity{"a": {Tier: "tier0"}, "b": {Tier: "tier0"}, "c": {Tier: "tier9"}},
		RateLimits: map[string]int{"tier0": 2},
	})
	for i := 0; i < 2; i++ {
		_, err := a.Authorize("a", "tier0")
		require.NoError(t, err)
	}
	_, err := a.Authorize("a", "tier0")
	require.Error(t, err)
	var ae *AccessError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, http.StatusTooManyRequests, ae.StatusCode())
	assert.Equal(t, "rate_limited", ae.Reason())

	_, err = a.Authorize("b", "tier0")
	assert.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, err = a.Authorize("c", "tier0")
		require.NoError(t, err)
	}
}

func TestSetKeys(t *testing.T) {
	a := New(Config{Keys: map[string]Identity{"old": {Tier: "tier0"}}})
	a.SetKeys(map[string]Identity{"new": {Tier: "tier1"}})
	assert.Equal(t, 1, a.Len())
	_, err := a.Authorize("old", "tier0")
	assert.True(t, errors.Is(err, ErrUnauthenticated))
	_, err = a.Authorize("new", "tier1")
	assert.NoError(t, err)
}
