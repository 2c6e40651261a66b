package api

import (
	"net/http"

	"github.com/platinummonkey/folio/pkg/httputil"
	"github.com/platinummonkey/folio/pkg/middleware"
	"github.com/platinummonkey/folio/pkg/observability"
)

const (
	defaultReportDays  = 7
	maxReportDays      = 90
	defaultReportLimit = 10
	maxReportLimit     = 100
)

// handleAnalytics handles GET /api/v1/search/analytics
// Query parameters:
//   - days: reporting window ending now (default: 7, max: 90)
//   - limit: entries per query list (default: 10, max: 100)
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)

	days, err := httputil.ParseQueryInt(r, "days", defaultReportDays, 1, maxReportDays)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error(), httputil.ErrorDetail{Field: "days", Code: httputil.CodeBadRequest, Message: err.Error()})
		return
	}
	limit, err := httputil.ParseQueryInt(r, "limit", defaultReportLimit, 1, maxReportLimit)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error(), httputil.ErrorDetail{Field: "limit", Code: httputil.CodeBadRequest, Message: err.Error()})
		return
	}

	since := s.now().UTC().AddDate(0, 0, -days)
	report, err := s.reporter.GetReport(r.Context(), authCtx.OrganizationID, since, limit)
	if err != nil {
		observability.FromContext(r.Context()).
			WithError(err).
			WithField("organization_id", authCtx.OrganizationID).
			Error("failed to build search analytics report")
		httputil.WriteInternalError(w, "")
		return
	}
	_ = httputil.WriteSuccess(w, report)
}
