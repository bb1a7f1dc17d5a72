package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aretw0/pipeprep"
	"github.com/aretw0/pipeprep/pkg/domain"
	"github.com/aretw0/pipeprep/pkg/preparation"
	"github.com/aretw0/pipeprep/pkg/preview"
	"github.com/aretw0/pipeprep/pkg/validation"
)

// ErrorResponse is the JSON body of a failed request.
type ErrorResponse struct {
	Error        string                 `json:"error"`
	Notification *domain.Notification   `json:"notification,omitempty"`
	Violations   []validation.Violation `json:"violations,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnknownDatasource),
		errors.Is(err, preview.ErrMalformedOutputs):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrWrongStep),
		errors.Is(err, domain.ErrNotReady),
		errors.Is(err, domain.ErrNoDatasource),
		errors.Is(err, domain.ErrAlreadyDispatched),
		errors.Is(err, domain.ErrStaleResponse),
		errors.Is(err, preparation.ErrDispatchInFlight):
		return http.StatusConflict
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, pipeprep.ErrNoUploader),
		errors.Is(err, preparation.ErrNoDispatcher):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: err.Error()}
	if vs := validation.Violations(err); len(vs) > 0 {
		resp.Violations = vs
		if n, ok := validation.FirstNotification(vs); ok {
			resp.Notification = &n
		}
	}

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(r.Context(), level, "Request failed",
		"method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	writeJSON(w, status, resp)
}

func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.logger.Warn(msg, "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg})
}
