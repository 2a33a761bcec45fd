package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JonMunkholm/ovdsync/internal/core"
	"github.com/JonMunkholm/ovdsync/internal/logging"
)

// CodeSuccess is the envelope code of every 2xx response.
const CodeSuccess = "SUCCESS"

// Envelope is the body of every JSON response. Successful responses carry
// Data; errors carry the error kind in Code plus the support code and a
// suggested action when one is known.
type Envelope struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Data        any    `json:"data,omitempty"`
	Action      string `json:"action,omitempty"`
	SupportCode string `json:"supportCode,omitempty"`
	TraceID     string `json:"traceId,omitempty"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind core.ErrorKind) int {
	switch kind {
	case core.KindFormat, core.KindValidation:
		return http.StatusBadRequest
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindConfiguration:
		return http.StatusUnprocessableEntity
	case core.KindConnectivity:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondOK writes a SUCCESS envelope.
func respondOK(w http.ResponseWriter, r *http.Request, status int, message string, data any) {
	writeJSON(w, r, status, Envelope{
		Code:    CodeSuccess,
		Message: message,
		Data:    data,
		TraceID: logging.TraceIDFromContext(r.Context()),
	})
}

// respondError logs the technical error and writes an error envelope.
// Internal errors never reach the client verbatim; they are replaced by the
// mapped user message.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := core.KindOf(err)
	status := statusFor(kind)
	userMsg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"kind", kind,
		"code", userMsg.Code,
		"error", err.Error(),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	env := Envelope{
		Code:    string(kind),
		Message: clientMessage(err),
		TraceID: logging.TraceIDFromContext(r.Context()),
	}
	if core.IsUserFacing(err) {
		env.Action = userMsg.Action
		env.SupportCode = userMsg.Code
	}
	if status == http.StatusInternalServerError {
		env.Code = string(core.KindInternal)
		env.Message = userMsg.Message
		env.Action = userMsg.Action
		env.SupportCode = userMsg.Code
	}
	writeJSON(w, r, status, env)
}

// respondStatus writes an error envelope for failures raised by the web
// layer itself, such as auth and rate limiting.
func respondStatus(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	env := Envelope{
		Code:    code,
		Message: message,
		TraceID: logging.TraceIDFromContext(r.Context()),
	}
	if err := errors.New(message); core.IsUserFacing(err) {
		userMsg := core.MapError(err)
		env.Action = userMsg.Action
		env.SupportCode = userMsg.Code
	}
	writeJSON(w, r, status, env)
}

// clientMessage is the part of err that is safe to show: the message of the
// outermost core.Error, or the error text for parser errors.
func clientMessage(err error) string {
	var e *core.Error
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
		if e.Err != nil {
			return e.Err.Error()
		}
	}
	return err.Error()
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}
