package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/platinummonkey/folio/pkg/httputil"
	"github.com/platinummonkey/folio/pkg/middleware"
	"github.com/platinummonkey/folio/pkg/observability"
	"github.com/platinummonkey/folio/pkg/search"
)

// handleSearch handles POST /api/v1/search
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var req search.RawRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, err := s.engine.Search(r.Context(), authCtx.Caller(), req)
	if err != nil {
		s.writeSearchError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, result)
}

func (s *Server) writeSearchError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		httputil.WriteTimeout(w)
		return
	case errors.Is(ctx.Err(), context.Canceled):
		// client is gone
		return
	}

	serr, ok := search.AsError(err)
	if !ok {
		observability.FromContext(ctx).WithError(err).Error("search failed")
		httputil.WriteInternalError(w, "")
		return
	}
	httputil.WriteError(w, statusForCode(serr.Code), serr.Code, serr.Message, errorDetails(serr.Details)...)
}

func statusForCode(code string) int {
	switch code {
	case search.CodeForbidden:
		return http.StatusForbidden
	case search.CodeStorage:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func errorDetails(details []search.Detail) []httputil.ErrorDetail {
	if len(details) == 0 {
		return nil
	}
	out := make([]httputil.ErrorDetail, len(details))
	for i, d := range details {
		out[i] = httputil.ErrorDetail{Field: d.Field, Code: d.Code, Message: d.Message}
	}
	return out
}
