package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged server-side with the request ID and returned to
// the client as a JSON body carrying the operator message from
// core.MapError and its support code.

import (
	"errors"
	"net/http"

	"github.com/OnlyOnCloud/TallySyncService/internal/core"
	"github.com/OnlyOnCloud/TallySyncService/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs the technical error and writes the mapped message.
// A zero statusCode is derived from the error.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	if statusCode == 0 {
		statusCode = statusFor(err)
	}
	userMsg := core.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	writeJSON(w, statusCode, ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrUnknownTable):
		return http.StatusNotFound
	case errors.Is(err, core.ErrCycleInProgress), errors.Is(err, core.ErrTableBusy):
		return http.StatusConflict
	case errors.Is(err, core.ErrSyncAborted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
