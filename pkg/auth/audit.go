package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/platinummonkey/folio/pkg/contextkeys"
	"github.com/platinummonkey/folio/pkg/observability"
)

// AuditLog is a security audit event
type AuditLog struct {
	Action         string    `json:"action"`
	OrganizationID string    `json:"organization_id,omitempty"`
	KeyPrefix      string    `json:"key_prefix,omitempty"`
	IPAddress      string    `json:"ip_address,omitempty"`
	UserAgent      string    `json:"user_agent,omitempty"`
	Path           string    `json:"path,omitempty"`
	Status         string    `json:"status"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// AuditLogger writes security audit events to the structured log
type AuditLogger struct {
	logger *observability.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *observability.Logger) *AuditLogger {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &AuditLogger{logger: logger.WithField("audit", true)}
}

// LogAction logs an audit event
func (al *AuditLogger) LogAction(ctx context.Context, log *AuditLog) error {
	if log.Action == "" {
		return fmt.Errorf("action is required")
	}
	if log.Status == "" {
		return fmt.Errorf("status is required")
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	entry := al.logger.WithFields(map[string]interface{}{
		"action":          log.Action,
		"status":          log.Status,
		"organization_id": log.OrganizationID,
		"key_prefix":      log.KeyPrefix,
		"ip_address":      log.IPAddress,
		"user_agent":      log.UserAgent,
		"path":            log.Path,
	})
	if requestID := contextkeys.GetRequestID(ctx); requestID != "" {
		entry = entry.WithField("request_id", requestID)
	}
	if log.ErrorMessage != "" {
		entry = entry.WithField("error", log.ErrorMessage)
	}

	if log.Status == StatusSuccess {
		entry.Info("audit event")
	} else {
		entry.Warn("audit event")
	}
	return nil
}

// LogAuth records the outcome of authenticating a request. key is nil when
// authentication failed.
func (al *AuditLogger) LogAuth(r *http.Request, key *APIKey, err error) error {
	log := &AuditLog{
		Action:    ActionAuthSuccess,
		IPAddress: ClientIP(r),
		UserAgent: r.UserAgent(),
		Path:      r.URL.Path,
		Status:    StatusSuccess,
	}
	if key != nil {
		log.OrganizationID = key.OrganizationID
		log.KeyPrefix = key.KeyPrefix
	}
	if err != nil {
		log.Action = ActionAuthFailure
		log.Status = StatusFailure
		log.ErrorMessage = err.Error()
	}
	return al.LogAction(r.Context(), log)
}

// ClientIP returns the originating client address of a request
func ClientIP(r *http.Request) string {
	// first hop of X-Forwarded-For when behind a proxy
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	return r.RemoteAddr
}

// Audit action constants
const (
	ActionAuthSuccess = "auth.success"
	ActionAuthFailure = "auth.failure"
	ActionKeyCreate   = "key.create"
	ActionKeyRevoke   = "key.revoke"
)

// Status constants
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusDenied  = "denied"
)
