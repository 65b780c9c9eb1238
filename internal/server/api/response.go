package api

import (
	"encoding/json"
	"net/http"

	"github.com/dberezin/vidhub/internal/common"
)

// Envelope is the uniform success wrapper: success is derived from the
// status code, never set independently.
type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// ErrorEnvelope is the uniform error wrapper.
type ErrorEnvelope struct {
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Success    bool     `json:"success"`
	Errors     []string `json:"errors"`
}

// JSON writes a success envelope with the given status.
func JSON(w http.ResponseWriter, status int, data any, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(Envelope{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < 400,
	})
}

// Error writes the error envelope for err, deriving the status from the
// common taxonomy (unknown errors become 500).
func Error(w http.ResponseWriter, err error) {
	status := common.StatusOf(err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(ErrorEnvelope{
		StatusCode: status,
		Message:    err.Error(),
		Success:    false,
		Errors:     []string{},
	})
}

// BadRequest is a shortcut for malformed requests detected in the transport
// layer itself.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, common.NewValidation(message))
}

// Unauthorized is a shortcut for session-middleware rejections.
func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, common.NewUnauthorized(message))
}
