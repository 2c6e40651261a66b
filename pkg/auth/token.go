package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/folio/pkg/observability"
)

const (
	// TokenPrefix identifies Folio API keys
	TokenPrefix = "folio_"
	// TokenLength is the total length of random bytes (32 bytes = 256 bits)
	TokenLength = 32
)

var (
	// ErrInvalidToken is returned for malformed or unknown keys
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenRevoked is returned for revoked keys
	ErrTokenRevoked = errors.New("token revoked")
	// ErrTokenExpired is returned for keys past their expiry
	ErrTokenExpired = errors.New("token expired")
)

var scopePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*:[a-z][a-z0-9-]*$`)

// ValidateScopes checks that every scope is the wildcard or a resource:action pair
func ValidateScopes(scopes []string) error {
	if len(scopes) == 0 {
		return fmt.Errorf("at least one scope is required")
	}
	for _, s := range scopes {
		if s != ScopeAll && !scopePattern.MatchString(s) {
			return fmt.Errorf("invalid scope %q", s)
		}
	}
	return nil
}

// ParseScopes splits a comma-separated scope list
func ParseScopes(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// TokenGenerator generates and validates API tokens
type TokenGenerator struct{}

// NewTokenGenerator creates a new token generator
func NewTokenGenerator() *TokenGenerator {
	return &TokenGenerator{}
}

// GenerateToken creates a new API token
// Format: folio_<base64url(32 random bytes)>
func (tg *TokenGenerator) GenerateToken() (token string, tokenHash string, tokenPrefix string, err error) {
	randomBytes := make([]byte, TokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	fullToken := TokenPrefix + base64.RawURLEncoding.EncodeToString(randomBytes)
	return fullToken, tg.HashToken(fullToken), tg.ExtractPrefix(fullToken), nil
}

// HashToken computes the SHA256 hash of a token for lookup
func (tg *TokenGenerator) HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// ValidateTokenFormat checks if a token has the correct format
func (tg *TokenGenerator) ValidateTokenFormat(token string) error {
	if !strings.HasPrefix(token, TokenPrefix) {
		return fmt.Errorf("token must start with %q", TokenPrefix)
	}

	encodedPart := strings.TrimPrefix(token, TokenPrefix)
	if len(encodedPart) == 0 {
		return fmt.Errorf("token is too short")
	}

	decoded, err := base64.RawURLEncoding.DecodeString(encodedPart)
	if err != nil {
		return fmt.Errorf("invalid token encoding: %w", err)
	}
	if len(decoded) != TokenLength {
		return fmt.Errorf("token has %d random bytes, want %d", len(decoded), TokenLength)
	}

	return nil
}

// ExtractPrefix extracts the prefix (first 8 chars after "folio_") for display
func (tg *TokenGenerator) ExtractPrefix(token string) string {
	if !strings.HasPrefix(token, TokenPrefix) {
		return ""
	}

	encodedPart := strings.TrimPrefix(token, TokenPrefix)
	if len(encodedPart) >= 8 {
		return TokenPrefix + encodedPart[:8]
	}

	return token
}

// TokenManager manages API key lifecycle over a KeyStore
type TokenManager struct {
	generator *TokenGenerator
	store     KeyStore
	logger    *observability.Logger
	now       func() time.Time
}

// NewTokenManager creates a new token manager
func NewTokenManager(store KeyStore, logger *observability.Logger) *TokenManager {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &TokenManager{
		generator: NewTokenGenerator(),
		store:     store,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateToken creates and stores a new API key, returning the plaintext once
func (tm *TokenManager) CreateToken(ctx context.Context, organizationID, name string, scopes []string, expiresAt *time.Time) (*APIKey, string, error) {
	if organizationID == "" {
		return nil, "", fmt.Errorf("organization id is required")
	}
	if err := ValidateScopes(scopes); err != nil {
		return nil, "", err
	}

	token, tokenHash, tokenPrefix, err := tm.generator.GenerateToken()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	key := &APIKey{
		ID:             uuid.NewString(),
		OrganizationID: organizationID,
		Name:           name,
		KeyHash:        tokenHash,
		KeyPrefix:      tokenPrefix,
		Scopes:         scopes,
		ExpiresAt:      expiresAt,
		CreatedAt:      tm.now().UTC(),
	}
	if err := tm.store.CreateKey(ctx, key); err != nil {
		return nil, "", fmt.Errorf("failed to store token: %w", err)
	}

	return key, token, nil
}

// ValidateToken resolves a presented token to its key. Unknown, revoked and
// expired keys are rejected.
func (tm *TokenManager) ValidateToken(ctx context.Context, token string) (*APIKey, error) {
	if err := tm.generator.ValidateTokenFormat(token); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	key, err := tm.store.GetKeyByHash(ctx, tm.generator.HashToken(token))
	if errors.Is(err, ErrKeyNotFound) {
		return nil, ErrInvalidToken
	} else if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}

	now := tm.now()
	if key.Revoked() {
		return nil, ErrTokenRevoked
	}
	if key.Expired(now) {
		return nil, ErrTokenExpired
	}

	if err := tm.store.TouchKey(ctx, key.ID, now.UTC()); err != nil {
		tm.logger.WithError(err).WithField("key_prefix", key.KeyPrefix).Warn("failed to record key usage")
	}
	return key, nil
}

// RevokeToken revokes a key of the organization
func (tm *TokenManager) RevokeToken(ctx context.Context, organizationID, keyID string) error {
	return tm.store.RevokeKey(ctx, organizationID, keyID, tm.now().UTC())
}

// ListTokens lists an organization's keys, newest first
func (tm *TokenManager) ListTokens(ctx context.Context, organizationID string) ([]*APIKey, error) {
	return tm.store.ListKeys(ctx, organizationID)
}
