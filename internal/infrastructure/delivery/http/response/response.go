// Package response writes the JSON envelope used by every endpoint.
package response

import (
	"encoding/json"
	"net/http"
)

// Response is the JSON envelope.
type Response struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// WriteJSON writes the envelope with status.
func WriteJSON(w http.ResponseWriter, status int, message string, data any, err error) {
	var errorMsg string
	if err != nil {
		errorMsg = err.Error()
	}

	body, err := json.Marshal(Response{
		Message: message,
		Data:    data,
		Error:   errorMsg,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// OK writes a 200 response.
func OK(w http.ResponseWriter, message string, res any, err error) {
	WriteJSON(w, http.StatusOK, message, res, err)
}

// NotFound writes a 404 response.
func NotFound(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusNotFound, message, nil, nil)
}

// InternalServerError writes a 500 response.
func InternalServerError(w http.ResponseWriter, message string, res any, err error) {
	WriteJSON(w, http.StatusInternalServerError, message, res, err)
}
