package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/contextkeys"
	"github.com/platinummonkey/folio/pkg/httputil"
	"github.com/platinummonkey/folio/pkg/observability"
)

// TokenValidator resolves a presented bearer token to its API key
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*auth.APIKey, error)
}

// AuthMiddleware provides authentication middleware
type AuthMiddleware struct {
	validator TokenValidator
	audit     *auth.AuditLogger
	optional  bool // If true, allow requests without auth
}

// NewAuthMiddleware creates a new authentication middleware. audit may be nil.
func NewAuthMiddleware(validator TokenValidator, audit *auth.AuditLogger, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		audit:     audit,
		optional:  optional,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Format: "Bearer <token>"
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		key, err := m.validator.ValidateToken(r.Context(), strings.TrimSpace(parts[1]))
		m.logAuth(r, key, err)
		if err != nil {
			if isCredentialError(err) {
				httputil.WriteUnauthorized(w, "invalid or expired token")
				return
			}
			observability.FromContext(r.Context()).WithError(err).Error("api key lookup failed")
			httputil.WriteInternalError(w, "")
			return
		}

		ctx := contextkeys.WithAuth(r.Context(), auth.NewAuthContext(key))
		ctx = observability.WithLogger(ctx, observability.GetLogger(ctx).WithField("organization_id", key.OrganizationID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) logAuth(r *http.Request, key *auth.APIKey, err error) {
	if m.audit == nil {
		return
	}
	if logErr := m.audit.LogAuth(r, key, err); logErr != nil {
		observability.FromContext(r.Context()).WithError(logErr).Warn("failed to write audit event")
	}
}

func isCredentialError(err error) bool {
	return errors.Is(err, auth.ErrInvalidToken) ||
		errors.Is(err, auth.ErrTokenRevoked) ||
		errors.Is(err, auth.ErrTokenExpired)
}

// GetAuthContext extracts auth context from request
func GetAuthContext(r *http.Request) *auth.AuthContext {
	authCtx, ok := r.Context().Value(contextkeys.AuthKey).(*auth.AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}

// RequireScope creates middleware that checks for a specific scope
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := GetAuthContext(r)
			if authCtx == nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			if !authCtx.HasScope(scope) {
				httputil.WriteError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions", httputil.ErrorDetail{
					Field: "scope", Code: "FORBIDDEN", Message: "missing scope " + scope,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
