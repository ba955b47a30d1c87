// Package httpx renders API failures as a stable JSON envelope so clients
// and log pipelines never have to parse free-form error text.
package httpx

import (
	"context"
	"encoding/json"
	"maps"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/printbound/api/internal/platform/requestctx"
)

// Error is the wire shape of every non-2xx response: a machine-readable
// code, a human-readable message, and the correlation IDs needed to find
// the request in the logs.
type Error struct {
	Code      string
	Message   string
	Status    int
	RequestID string
	TraceID   string
	Details   map[string]any
}

// NewError builds an envelope for the given code and HTTP status. A zero
// status falls back to 500 rather than producing an invalid response.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    clip(code, 80),
		Message: clip(message, 512),
		Status:  status,
	}
}

// WithRequestID overrides the request ID taken from the context.
func (e Error) WithRequestID(id string) Error {
	e.RequestID = clip(id, 80)
	return e
}

// WithTraceID overrides the trace ID taken from the context.
func (e Error) WithTraceID(id string) Error {
	e.TraceID = clip(id, 64)
	return e
}

// WithDetails merges extra JSON-serialisable fields into the envelope.
func (e Error) WithDetails(details map[string]any) Error {
	if len(details) == 0 {
		return e
	}
	e.Details = maps.Clone(details)
	return e
}

// WriteError encodes the envelope. Request and trace IDs default to the
// values carried by the request context when the caller did not set them.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	payload := map[string]any{
		"error":   err.Code,
		"message": err.Message,
		"status":  status,
	}

	if requestID := firstNonEmpty(err.RequestID, clip(middleware.GetReqID(ctx), 80)); requestID != "" {
		payload["request_id"] = requestID
	}
	if traceID := firstNonEmpty(err.TraceID, clip(requestctx.TraceID(ctx), 64)); traceID != "" {
		payload["trace_id"] = traceID
	}
	for k, v := range err.Details {
		payload[k] = v
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// clip flattens newlines and bounds the length so caller-supplied text
// cannot smuggle extra lines or oversized fields into the envelope.
func clip(value string, limit int) string {
	if limit <= 0 {
		limit = 256
	}
	value = strings.NewReplacer("\n", " ", "\r", " ").Replace(value)
	value = strings.TrimSpace(value)
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}
