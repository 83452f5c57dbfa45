// Package httpjson holds the JSON response and request helpers shared by the
// HTTP handlers. Every API error uses the envelope
//
//	{"error": {"code": "...", "message": "..."}}
package httpjson

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// DefaultMaxBody caps request bodies when a handler has no stricter limit.
const DefaultMaxBody int64 = 1 << 20

// APIError is the body of the error envelope.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the error envelope.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Write encodes v with the given status. Responses are never cached.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes the error envelope.
func Error(w http.ResponseWriter, status int, code, msg string) {
	Write(w, status, ErrorResponse{Error: APIError{Code: code, Message: msg}})
}

// Decode reads exactly one JSON object into dst. Unknown fields are ignored;
// trailing data is rejected. maxBytes <= 0 means DefaultMaxBody.
func Decode(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer func() { _ = r.Body.Close() }()

	if maxBytes <= 0 {
		maxBytes = DefaultMaxBody
	}
	body := http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("extra data after JSON object")
	}
	return nil
}
