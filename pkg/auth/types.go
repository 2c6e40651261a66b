package auth

import (
	"time"

	"github.com/platinummonkey/folio/pkg/search"
)

// Search scopes granted to API keys
const (
	ScopePostsSearch      = "posts:search"
	ScopeMediaSearch      = "media:search"
	ScopeUsersSearch      = "users:search"
	ScopeTaxonomiesSearch = "taxonomies:search"
	ScopeAnalyticsRead    = "analytics:read"
	ScopeAll              = search.ScopeWildcard // All permissions (for admin)
)

// APIKey is an organization-scoped API key. The plaintext key is shown once
// at creation and only its hash is stored.
type APIKey struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	Name           string     `json:"name"`
	KeyHash        string     `json:"-"` // Never expose hash
	KeyPrefix      string     `json:"key_prefix"`
	Scopes         []string   `json:"scopes"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	LastUsedAt     *time.Time `json:"last_used_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	RevokedAt      *time.Time `json:"revoked_at,omitempty"`
}

// Expired reports whether the key has passed its expiry at now
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && !now.Before(*k.ExpiresAt)
}

// Revoked reports whether the key has been revoked
func (k *APIKey) Revoked() bool {
	return k.RevokedAt != nil
}

// AuthContext holds the authenticated caller of a request
type AuthContext struct {
	Key            *APIKey
	OrganizationID string
	Scopes         search.ScopeSet
}

// NewAuthContext builds the context for a validated key
func NewAuthContext(key *APIKey) *AuthContext {
	return &AuthContext{
		Key:            key,
		OrganizationID: key.OrganizationID,
		Scopes:         search.NewScopeSet(key.Scopes...),
	}
}

// HasScope checks if the context has a specific scope
func (ac *AuthContext) HasScope(scope string) bool {
	return ac.Scopes.Has(scope)
}

// Caller returns the search identity of the context
func (ac *AuthContext) Caller() search.Caller {
	return search.Caller{OrganizationID: ac.OrganizationID, Scopes: ac.Scopes}
}
