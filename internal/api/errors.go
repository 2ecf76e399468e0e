package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransport marks failures to reach the server at all.
	ErrTransport = errors.New("transport failure")
	// ErrRejected marks responses the server answered with a non-2xx status
	// or a body that could not be decoded.
	ErrRejected = errors.New("request rejected")
)

// Error describes a failed gateway call.
type Error struct {
	Op         string // register, login, search, ...
	StatusCode int    // 0 for transport failures
	Message    string
	Err        error // ErrTransport or ErrRejected, possibly wrapping the cause
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func transportError(op string, cause error) *Error {
	return &Error{
		Op:      op,
		Message: cause.Error(),
		Err:     fmt.Errorf("%w: %w", ErrTransport, cause),
	}
}

func rejectedError(op string, status int, body []byte) *Error {
	return &Error{
		Op:         op,
		StatusCode: status,
		Message:    serverMessage(body),
		Err:        ErrRejected,
	}
}

// maxMessageRunes caps plain-text error bodies shown to the user.
const maxMessageRunes = 200

// serverMessage pulls a human message out of an error body. JSON bodies of
// the form {"error": "..."} or {"message": "..."} are unwrapped.
func serverMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "no response body"
	}
	if runes := []rune(msg); len(runes) > maxMessageRunes {
		msg = string(runes[:maxMessageRunes]) + "..."
	}
	return msg
}
