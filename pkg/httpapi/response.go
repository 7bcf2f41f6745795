package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/dmitrymomot/notifycore/pkg/logger"
	"github.com/dmitrymomot/notifycore/pkg/notify"
	"github.com/dmitrymomot/notifycore/pkg/orchestrator"
	"github.com/dmitrymomot/notifycore/pkg/queue"
)

// Response is the envelope of every JSON response.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Error *ErrorDetail   `json:"error,omitempty"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (a *API) ok(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Response{Data: data})
}

// fail maps err to a status and code. Client errors log at Warn, the rest at
// Error.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)

	var rl *notify.RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rl.RetryAfter.Seconds()))))
	}

	level := slog.LevelError
	if status < http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	a.logger.LogAttrs(r.Context(), level, "request failed",
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		logger.Error(err),
	)

	writeJSON(w, status, Response{Error: &ErrorDetail{
		Code:      code,
		Message:   err.Error(),
		RequestID: RequestIDFromContext(r.Context()),
	}})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidUserID), errors.Is(err, ErrInvalidBody),
		errors.Is(err, notify.ErrInvalidRequest), errors.Is(err, orchestrator.ErrNoRecipients):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, notify.ErrUserNotFound):
		return http.StatusNotFound, "user_not_found"
	case errors.Is(err, queue.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, queue.ErrNotCancellable):
		return http.StatusConflict, "not_cancellable"
	case errors.Is(err, notify.ErrPreferenceDisabled):
		return http.StatusUnprocessableEntity, "preference_disabled"
	case errors.Is(err, notify.ErrUnsafeContent):
		return http.StatusUnprocessableEntity, "unsafe_content"
	case errors.Is(err, notify.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, notify.ErrNotDelivered):
		return http.StatusBadGateway, "not_delivered"
	case errors.Is(err, ErrStreaming):
		return http.StatusNotImplemented, "streaming_unsupported"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
