package api

import (
	"encoding/json"
	"net/http"
)

// Error codes carried in ErrorResponse.Error.
const (
	ErrInvalidBody        = "invalid upload"
	ErrInvalidFileType    = "invalid file type"
	ErrEmptyFile          = "empty file"
	ErrPayloadTooLarge    = "payload too large"
	ErrServiceUnavailable = "service unavailable"
	ErrTranscription      = "transcription failed"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg})
}

// WriteErrorWithCode writes a JSON error response with a stable error code and
// a human-readable detail.
func WriteErrorWithCode(w http.ResponseWriter, status int, code, detail string) {
	WriteJSON(w, status, ErrorResponse{Error: code, Detail: detail})
}
