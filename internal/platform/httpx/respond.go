// Package httpx provides JSON response utilities for the API envelope.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/taskdeck/taskdeck/internal/shared"
)

// Envelope is the response shape shared by every API endpoint.
type Envelope struct {
	Status  bool               `json:"status"`
	Message string             `json:"message,omitempty"`
	Data    any                `json:"data,omitempty"`
	Meta    *shared.Pagination `json:"meta,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// OK sends a success envelope with optional data.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Envelope{Status: true, Data: data})
}

// OKMessage sends a success envelope carrying a message and optional data.
func OKMessage(w http.ResponseWriter, message string, data any) {
	JSON(w, http.StatusOK, Envelope{Status: true, Message: message, Data: data})
}

// Created sends a 201 envelope carrying a message and data.
func Created(w http.ResponseWriter, message string, data any) {
	JSON(w, http.StatusCreated, Envelope{Status: true, Message: message, Data: data})
}

// Paginated sends a success envelope with list data and pagination meta.
func Paginated(w http.ResponseWriter, data any, meta shared.Pagination) {
	JSON(w, http.StatusOK, Envelope{Status: true, Data: data, Meta: &meta})
}

// Fail sends a failure envelope with the given HTTP status.
func Fail(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Envelope{Status: false, Message: message})
}

// DecodeJSON decodes the JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}
