package httputil

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/peopleops/hrms-backend/pkg/apperr"
)

// Response is the standard API envelope.
type Response struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    interface{}         `json:"data"`
	Errors  []apperr.FieldError `json:"errors,omitempty"`
}

// JSON sends a success envelope.
func JSON(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := Response{
		Success: statusCode >= 200 && statusCode < 300,
		Message: message,
		Data:    data,
	}

	json.NewEncoder(w).Encode(response)
}

// Created sends a 201 Created envelope.
func Created(w http.ResponseWriter, message string, data interface{}) {
	JSON(w, http.StatusCreated, message, data)
}

// NoContent sends a 204 No Content response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error sends an error envelope. Unknown errors render as a generic 500;
// store internals and stack traces never reach the client.
func Error(w http.ResponseWriter, err error) {
	var appErr *apperr.Error
	if apperr.As(err, &appErr) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(appErr.StatusCode)

		json.NewEncoder(w).Encode(Response{
			Success: false,
			Message: appErr.Message,
			Data:    nil,
			Errors:  appErr.Fields,
		})
		return
	}

	if apperr.Is(err, context.DeadlineExceeded) {
		Error(w, apperr.Timeout("request deadline exceeded"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)

	json.NewEncoder(w).Encode(Response{
		Success: false,
		Message: "an unexpected error occurred",
		Data:    nil,
	})
}

// DecodeJSON decodes the request body into the provided struct.
func DecodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.InvalidInput("invalid JSON body")
	}
	return nil
}
