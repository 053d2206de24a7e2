package http

import (
	"encoding/json"
	"net/http"
)

var (
	ErrInvalidJSON         = &HTTPError{Code: "invalid_json", Message: "Invalid JSON format", Status: http.StatusBadRequest}
	ErrBadRequest          = &HTTPError{Code: "bad_request", Message: "Bad request", Status: http.StatusBadRequest}
	ErrUnauthorized        = &HTTPError{Code: "unauthorized", Message: "Unauthorized", Status: http.StatusUnauthorized}
	ErrForbidden           = &HTTPError{Code: "forbidden", Message: "Forbidden", Status: http.StatusForbidden}
	ErrNotFound            = &HTTPError{Code: "not_found", Message: "Not found", Status: http.StatusNotFound}
	ErrConflict            = &HTTPError{Code: "conflict", Message: "Conflict", Status: http.StatusConflict}
	ErrQuotaExceeded       = &HTTPError{Code: "quota_exceeded", Message: "Plan quota exceeded", Status: http.StatusConflict}
	ErrRateLimited         = &HTTPError{Code: "rate_limited", Message: "Too many requests", Status: http.StatusTooManyRequests}
	ErrInternalServerError = &HTTPError{Code: "internal_error", Message: "Internal server error", Status: http.StatusInternalServerError}
	ErrServiceUnavailable  = &HTTPError{Code: "service_unavailable", Message: "Service unavailable", Status: http.StatusServiceUnavailable}
)

// HTTPError is the standard API error body.
type HTTPError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	Status  int    `json:"-"`
}

func (e *HTTPError) Error() string {
	if e.Detail != "" {
		return e.Message + ": " + e.Detail
	}
	return e.Message
}

// WithDetail returns a copy carrying extra context.
func (e *HTTPError) WithDetail(detail string) *HTTPError {
	return &HTTPError{Code: e.Code, Message: e.Message, Detail: detail, Status: e.Status}
}

// WriteError writes err as a JSON error response. Unknown error types come
// out as internal_error so nothing leaks.
func WriteError(w http.ResponseWriter, err error) {
	httpErr, ok := err.(*HTTPError)
	if !ok {
		httpErr = ErrInternalServerError
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(httpErr.Status)
	_ = json.NewEncoder(w).Encode(httpErr)
}

// WriteJSON writes v with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

const maxBodySize = 64 * 1024 // 64KB

// ReadJSON decodes the request body into v with a size cap.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return ErrInvalidJSON
	}
	return nil
}
