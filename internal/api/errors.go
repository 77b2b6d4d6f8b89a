package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

const (
	DefaultErrorMessage = "Erro na requisição"
	UploadErrorMessage  = "Erro no upload"
	CallbackFailure     = "Falha no callback da API"
)

// ErrUnauthorized matches any Error carrying a 401.
var ErrUnauthorized = errors.New("sessão inválida ou expirada")

// Error is a non-2xx answer from the backend. Message is the backend's
// "error" field verbatim, or a generic fallback.
type Error struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

func newError(status int, body []byte, fallback string) *Error {
	if fallback == "" {
		fallback = DefaultErrorMessage
	}
	var payload struct {
		Error any `json:"error"`
	}
	msg := ""
	if err := json.Unmarshal(body, &payload); err == nil {
		if s, ok := payload.Error.(string); ok {
			msg = strings.TrimSpace(s)
		}
	}
	if msg == "" {
		msg = fallback
	}
	return &Error{StatusCode: status, Message: msg}
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
