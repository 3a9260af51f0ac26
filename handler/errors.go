package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/stevemurr/simple-record-server/log"
	"github.com/stevemurr/simple-record-server/record"
)

// ErrorCode represents standard API error codes.
type ErrorCode string

const (
	ErrCodeInvalidRequest ErrorCode = "invalid_request"
	ErrCodeNotFound       ErrorCode = "not_found"
	ErrCodeConflict       ErrorCode = "conflict"
	ErrCodeInternalError  ErrorCode = "internal_error"
)

// APIError is the body of every JSON error response.
type APIError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorResponse wraps an APIError for JSON responses.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// WriteError writes an error response to the HTTP response writer.
func WriteError(w http.ResponseWriter, status int, err APIError) {
	writeJSON(w, status, ErrorResponse{Error: err})
}

// WriteInvalidRequest writes a 400 Bad Request error.
func WriteInvalidRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, APIError{Code: ErrCodeInvalidRequest, Message: message})
}

// WriteInternalError writes a 500 Internal Server Error.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, APIError{Code: ErrCodeInternalError, Message: message})
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeText(w, http.StatusMethodNotAllowed, "Method Not Allowed")
}

// writeRecordError translates a record error into its HTTP status.
func writeRecordError(w http.ResponseWriter, err error) {
	var recErr *record.Error
	if !errors.As(err, &recErr) {
		log.Errorf("unexpected error: %v", err)
		WriteInternalError(w, "internal server error")
		return
	}

	switch recErr.Code {
	case record.CodeValidation:
		WriteError(w, http.StatusBadRequest, APIError{
			Code:    ErrCodeInvalidRequest,
			Message: recErr.Message,
			Details: recErr.Details,
		})
	case record.CodeNotFound:
		WriteError(w, http.StatusNotFound, APIError{Code: ErrCodeNotFound, Message: recErr.Message})
	case record.CodeConflict:
		WriteError(w, http.StatusConflict, APIError{Code: ErrCodeConflict, Message: recErr.Message})
	default:
		log.Errorf("%v", recErr)
		apiErr := APIError{Code: ErrCodeInternalError, Message: recErr.Message}
		if recErr.Cause != nil {
			apiErr.Details = map[string]any{"cause": recErr.Cause.Error()}
		}
		WriteError(w, http.StatusInternalServerError, apiErr)
	}
}
