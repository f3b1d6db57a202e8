// Package httpx holds the JSON response helpers shared by every handler.
package httpx

import (
	"encoding/json"
	"net/http"
)

// Notification is the user-facing body returned for failures. Action names
// the attempted operation when there is one.
type Notification struct {
	Level   string `json:"level"`
	Action  string `json:"action,omitempty"`
	Message string `json:"message"`
}

// WriteJSON encodes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes an error notification.
func Error(w http.ResponseWriter, status int, action, message string) {
	WriteJSON(w, status, Notification{Level: "error", Action: action, Message: message})
}

// Decode reads a JSON request body into v.
func Decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
