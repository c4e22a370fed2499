// Package http holds the JSON response and request helpers shared by handlers and middleware.
package http

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"clinic-console/internal/common/errors"
	"clinic-console/internal/common/logging"
)

// ErrorResponse is the body of every non-2xx JSON response
type ErrorResponse struct {
	Error        string `json:"error"`
	Type         string `json:"type,omitempty"`
	RetryAfterMs int64  `json:"retryAfterMs,omitempty"`
}

// WriteJSON writes v with the given status code
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode response", err)
	}
}

// WriteError maps err to its status code and writes a uniform error body.
// Internal errors are logged and their details withheld.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.WithContext(r.Context()).Error("request failed", err,
			logging.String("path", r.URL.Path),
			logging.String("method", r.Method))
	}

	WriteJSON(w, status, ErrorResponse{
		Error: errors.PublicMessage(err),
		Type:  string(errors.GetType(err)),
	})
}

// WriteRateLimited writes a 429 with Retry-After rounded up to whole seconds
func WriteRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	seconds := int64((retryAfter + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.FormatInt(seconds, 10))
	WriteJSON(w, http.StatusTooManyRequests, ErrorResponse{
		Error:        "too many requests",
		Type:         string(errors.ErrTypeRateLimit),
		RetryAfterMs: retryAfter.Milliseconds(),
	})
}

// DecodeJSON decodes the request body into dst, rejecting unknown fields
func DecodeJSON(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return errors.ValidationError("invalid request body").WithContext("cause", err.Error())
	}
	return nil
}

// ClientIP returns the caller address, preferring the first X-Forwarded-For hop
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
