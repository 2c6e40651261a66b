package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/contextkeys"
	"github.com/platinummonkey/folio/pkg/observability"
)

type fakeValidator struct {
	keys  map[string]*auth.APIKey
	err   error
	calls int
}

func (f *fakeValidator) ValidateToken(_ context.Context, token string) (*auth.APIKey, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	key, ok := f.keys[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return key, nil
}

func newValidator() *fakeValidator {
	return &fakeValidator{keys: map[string]*auth.APIKey{
		"folio_good": {ID: "k1", OrganizationID: "org-1", KeyPrefix: "folio_good", Scopes: []string{auth.ScopePostsSearch}},
	}}
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	return body.Error.Code
}

func TestAuthMiddleware_Handler(t *testing.T) {
	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"no Bearer prefix", "folio_good", http.StatusUnauthorized},
		{"Basic auth", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"Bearer without token", "Bearer", http.StatusUnauthorized},
		{"unknown token", "Bearer folio_bad", http.StatusUnauthorized},
		{"valid token", "Bearer folio_good", http.StatusOK},
		{"lowercase scheme", "bearer folio_good", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *auth.AuthContext
			handler := NewAuthMiddleware(newValidator(), nil, false).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = GetAuthContext(r)
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/search", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status != http.StatusOK {
				assert.Equal(t, "UNAUTHORIZED", errorCode(t, w))
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, "org-1", got.OrganizationID)
			assert.True(t, got.HasScope(auth.ScopePostsSearch))
		})
	}
}

func TestAuthMiddleware_Optional(t *testing.T) {
	called := false
	handler := NewAuthMiddleware(newValidator(), nil, true).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Nil(t, GetAuthContext(r))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}

func TestAuthMiddleware_CredentialErrors(t *testing.T) {
	for _, err := range []error{auth.ErrTokenRevoked, auth.ErrTokenExpired, auth.ErrInvalidToken} {
		v := &fakeValidator{err: err}
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Bearer folio_x")

		NewAuthMiddleware(v, nil, false).Handler(http.NotFoundHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code, err.Error())
		assert.NotContains(t, w.Body.String(), err.Error(), "key state is not disclosed")
	}
}

func TestAuthMiddleware_LookupFailure(t *testing.T) {
	v := &fakeValidator{err: errors.New("connection refused")}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer folio_x")

	NewAuthMiddleware(v, nil, false).Handler(http.NotFoundHandler()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestAuthMiddleware_Audit(t *testing.T) {
	var buf bytes.Buffer
	audit := auth.NewAuditLogger(observability.NewLogger(observability.InfoLevel, &buf))
	handler := NewAuthMiddleware(newValidator(), audit, false).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer folio_bad")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Contains(t, buf.String(), auth.ActionAuthFailure)
}

func TestRequireScope(t *testing.T) {
	tests := []struct {
		name    string
		authCtx *auth.AuthContext
		status  int
		code    string
	}{
		{"unauthenticated", nil, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"missing scope", auth.NewAuthContext(&auth.APIKey{OrganizationID: "org-1", Scopes: []string{auth.ScopeMediaSearch}}), http.StatusForbidden, "FORBIDDEN"},
		{"granted", auth.NewAuthContext(&auth.APIKey{OrganizationID: "org-1", Scopes: []string{auth.ScopePostsSearch}}), http.StatusOK, ""},
		{"wildcard", auth.NewAuthContext(&auth.APIKey{OrganizationID: "org-1", Scopes: []string{auth.ScopeAll}}), http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequireScope(auth.ScopePostsSearch)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.authCtx != nil {
				req = req.WithContext(contextkeys.WithAuth(req.Context(), tt.authCtx))
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.code != "" {
				assert.Equal(t, tt.code, errorCode(t, w))
			}
		})
	}
}
