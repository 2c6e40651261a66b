// Package auth provides API key authentication for the Folio search API.
//
// # Overview
//
// Every request is made with an organization-scoped API key. The key
// determines the organization whose content is searched and the scopes the
// caller holds.
//
// # API Keys
//
// Key format: folio_<base64url(32 random bytes)>. The plaintext is returned
// once at creation; the store keeps its SHA-256 hash and an 8 character
// display prefix.
//
//	manager := auth.NewTokenManager(auth.NewSQLKeyStore(db, sqlstore.Postgres), logger)
//	key, plaintext, err := manager.CreateToken(ctx, "org-1", "site search",
//		[]string{auth.ScopePostsSearch, auth.ScopeTaxonomiesSearch}, nil)
//
// Validation rejects unknown, revoked and expired keys and records the last use:
//
//	key, err := manager.ValidateToken(ctx, plaintext)
//	if errors.Is(err, auth.ErrTokenExpired) {
//		...
//	}
//
// # Scopes
//
//	posts:search       - Search posts
//	media:search       - Search media
//	users:search       - Search organization members
//	taxonomies:search  - Search taxonomies
//	*                  - Full access
//
// Additional resource:action scopes may guard individual properties through
// the search property policy.
//
// # Authorization Context
//
// The auth middleware stores an *AuthContext on the request context; the
// search handler turns it into a search.Caller.
//
// # Related Packages
//
//   - pkg/middleware: Bearer authentication
//   - pkg/search: Scope checks
package auth
