package auth

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/folio/pkg/observability"
)

func TestTokenGenerator_GenerateToken(t *testing.T) {
	tg := NewTokenGenerator()

	token, hash, prefix, err := tg.GenerateToken()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(token, TokenPrefix))
	assert.Len(t, hash, 64, "hex-encoded SHA-256")
	assert.Equal(t, tg.HashToken(token), hash)
	assert.Equal(t, token[:len(TokenPrefix)+8], prefix)
	assert.NoError(t, tg.ValidateTokenFormat(token))

	other, _, _, err := tg.GenerateToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestTokenGenerator_ValidateTokenFormat(t *testing.T) {
	tg := NewTokenGenerator()
	short := TokenPrefix + base64.RawURLEncoding.EncodeToString([]byte("short"))

	tests := []struct {
		name  string
		token string
	}{
		{"wrong prefix", "acme_" + strings.Repeat("a", 43)},
		{"empty body", TokenPrefix},
		{"bad encoding", TokenPrefix + "!!!!"},
		{"wrong length", short},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tg.ValidateTokenFormat(tt.token))
		})
	}
}

func TestTokenGenerator_ExtractPrefix(t *testing.T) {
	tg := NewTokenGenerator()
	assert.Equal(t, "folio_abcdefgh", tg.ExtractPrefix("folio_abcdefghijkl"))
	assert.Equal(t, "folio_abc", tg.ExtractPrefix("folio_abc"))
	assert.Equal(t, "", tg.ExtractPrefix("other_abcdefghijkl"))
}

func TestValidateScopes(t *testing.T) {
	assert.NoError(t, ValidateScopes([]string{ScopePostsSearch, "posts:custom-fields"}))
	assert.NoError(t, ValidateScopes([]string{ScopeAll}))
	assert.Error(t, ValidateScopes(nil))
	assert.Error(t, ValidateScopes([]string{"posts"}))
	assert.Error(t, ValidateScopes([]string{"Posts:Search"}))
}

func TestParseScopes(t *testing.T) {
	assert.Equal(t, []string{"posts:search", "media:search"}, ParseScopes(" posts:search, ,media:search,"))
	assert.Nil(t, ParseScopes(""))
}

func newManager(t *testing.T) (*TokenManager, *time.Time) {
	t.Helper()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tm := NewTokenManager(openStore(t), observability.NewLogger(observability.ErrorLevel, &bytes.Buffer{}))
	tm.now = func() time.Time { return now }
	return tm, &now
}

func TestTokenManager_Lifecycle(t *testing.T) {
	tm, now := newManager(t)
	ctx := context.Background()

	key, token, err := tm.CreateToken(ctx, "org-1", "site search", []string{ScopePostsSearch}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, key.ID)
	assert.Equal(t, tm.generator.ExtractPrefix(token), key.KeyPrefix)

	got, err := tm.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, key.ID, got.ID)
	assert.Equal(t, "org-1", got.OrganizationID)
	assert.Equal(t, []string{ScopePostsSearch}, got.Scopes)

	keys, err := tm.ListTokens(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.NotNil(t, keys[0].LastUsedAt, "validation records usage")
	assert.True(t, now.Equal(*keys[0].LastUsedAt))

	require.NoError(t, tm.RevokeToken(ctx, "org-1", key.ID))
	_, err = tm.ValidateToken(ctx, token)
	assert.True(t, errors.Is(err, ErrTokenRevoked))

	assert.True(t, errors.Is(tm.RevokeToken(ctx, "org-1", key.ID), ErrKeyNotFound), "already revoked")
}

func TestTokenManager_Rejects(t *testing.T) {
	tm, now := newManager(t)
	ctx := context.Background()

	expires := now.Add(time.Hour)
	_, token, err := tm.CreateToken(ctx, "org-1", "temporary", []string{ScopeAll}, &expires)
	require.NoError(t, err)

	_, err = tm.ValidateToken(ctx, token)
	require.NoError(t, err)

	*now = now.Add(2 * time.Hour)
	_, err = tm.ValidateToken(ctx, token)
	assert.True(t, errors.Is(err, ErrTokenExpired))

	_, err = tm.ValidateToken(ctx, "not-a-token")
	assert.True(t, errors.Is(err, ErrInvalidToken))

	unknown, _, _, err := tm.generator.GenerateToken()
	require.NoError(t, err)
	_, err = tm.ValidateToken(ctx, unknown)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestTokenManager_CreateValidation(t *testing.T) {
	tm, _ := newManager(t)
	ctx := context.Background()

	_, _, err := tm.CreateToken(ctx, "", "x", []string{ScopePostsSearch}, nil)
	assert.Error(t, err)
	_, _, err = tm.CreateToken(ctx, "org-1", "x", []string{"bogus"}, nil)
	assert.Error(t, err)
}
