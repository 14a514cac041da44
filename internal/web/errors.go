package web

// errors.go turns handler errors into responses.
//
// Every error is logged with its technical detail and the request id, then
// mapped through core.MapError to a message, an action and a code. HTMX
// requests get an HTML fragment, API requests get JSON, anything else gets
// plain text. The status code is derived from the error itself.

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"

	"github.com/JonMunkholm/recordimport/internal/core"
	"github.com/JonMunkholm/recordimport/internal/logging"
)

var (
	errNoFile          = errors.New("no file provided")
	errUnsupportedType = errors.New("unsupported file type")
)

// ErrorResponse is the JSON body of an API error.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Action    string `json:"action,omitempty"`
	Code      string `json:"code"`
	Retryable *bool  `json:"retryable,omitempty"` // Set for commit failures
}

// statusFor picks the HTTP status for an error.
func statusFor(err error) int {
	var (
		decodeErr *core.DecodeError
		commitErr *core.CommitError
		maxErr    *http.MaxBytesError
	)
	switch {
	case errors.Is(err, core.ErrUnknownSchema), errors.Is(err, core.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrFileTooLarge), errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errUnsupportedType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, errNoFile):
		return http.StatusBadRequest
	case errors.As(err, &decodeErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrInvalidTransition),
		errors.Is(err, core.ErrCommitInFlight),
		errors.Is(err, core.ErrCollectionBusy),
		errors.Is(err, core.ErrNothingToCommit):
		return http.StatusConflict
	case errors.Is(err, core.ErrTooManySessions), errors.Is(err, core.ErrTooManyCommits):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &commitErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the user-facing response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode := statusFor(err)
	userMsg := core.MapError(err)

	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if hints := errors.GetAllHints(err); len(hints) > 0 {
		attrs = append(attrs, "hint", strings.Join(hints, "; "))
	}
	logger := logging.FromContext(r.Context())
	if statusCode >= 500 {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	if statusCode == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}

	switch {
	case isHTMX(r):
		renderFragment(w, r, statusCode, ErrorAlert(userMsg))
	case wantsJSON(r):
		resp := ErrorResponse{
			Error:   userMsg.Message,
			Message: userMsg.Message,
			Action:  userMsg.Action,
			Code:    userMsg.Code,
		}
		var commitErr *core.CommitError
		if errors.As(err, &commitErr) {
			retryable := commitErr.Retryable()
			resp.Retryable = &retryable
		}
		writeJSONStatus(w, statusCode, resp)
	default:
		http.Error(w, userMsg.Message+" ("+userMsg.Code+")", statusCode)
	}
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON checks if the client prefers a JSON response. API routes
// default to JSON.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}

// writeJSON encodes v with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

// writeJSONStatus encodes v as JSON. Encoding errors are logged since the
// header is already sent.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := jsoniter.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
