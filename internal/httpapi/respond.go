package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/biblioteca/libaccess/internal/libaccess/service"
	"github.com/biblioteca/libaccess/internal/libaccess/types"
)

type errorResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{OK: false, Error: code, Message: msg})
}

// classify maps a service error to an HTTP status, an error code and a
// client-safe message.
func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, service.ErrInvalidMemberID):
		return http.StatusBadRequest, "invalid_member_id", err.Error()
	case errors.Is(err, service.ErrInvalidQRCode):
		return http.StatusBadRequest, "invalid_qr_code", err.Error()
	case errors.Is(err, service.ErrInvalidRange):
		return http.StatusBadRequest, "invalid_range", err.Error()
	case errors.Is(err, service.ErrMemberNotFound):
		return http.StatusNotFound, "member_not_found", err.Error()
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found", err.Error()
	case errors.Is(err, service.ErrAlreadyInside):
		return http.StatusConflict, "already_inside", err.Error()
	case errors.Is(err, service.ErrNoActiveSession):
		return http.StatusConflict, "no_active_session", err.Error()
	case errors.Is(err, service.ErrStorage):
		return http.StatusServiceUnavailable, "storage_unavailable", "storage temporarily unavailable"
	default:
		return http.StatusInternalServerError, "internal_error", "unexpected server error"
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, status, code, msg)
}

func (s *Server) writeScanError(w http.ResponseWriter, r *http.Request, action types.Action, err error) {
	status, code, msg := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "scan failed", "action", action, "error", err)
	}
	writeJSON(w, status, types.ScanResponse{OK: false, Action: action, Error: code, Message: msg})
}
