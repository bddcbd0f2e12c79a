// Package httpx provides the JSON response envelope shared by all handlers.
package httpx

import (
	"encoding/json"
	"net/http"
	"time"
)

// Envelope is the success shape returned by every API endpoint.
type Envelope struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Cached    *bool     `json:"cached,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorBody is the failure shape returned by every API endpoint.
type ErrorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// OK sends a success envelope.
func OK(w http.ResponseWriter, status int, data any) {
	JSON(w, status, Envelope{Success: true, Data: data, Timestamp: time.Now().UTC()})
}

// OKCached sends a success envelope annotated with cache provenance.
func OKCached(w http.ResponseWriter, data any, cached bool) {
	JSON(w, http.StatusOK, Envelope{Success: true, Data: data, Cached: &cached, Timestamp: time.Now().UTC()})
}

// Error sends a plain error body.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorBody{Error: message})
}

// DecodeJSON decodes the JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}
