package errx

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
	// TransportErrorMessage describes a request to the Linksort API that did not complete.
	TransportErrorMessage = "linksort api request failed"
	// ConversationCreateMessage describes a failed conversation bootstrap.
	ConversationCreateMessage = "failed to create conversation"

	maxBodySnippet = 200
)

var (
	// ErrTurnInProgress is returned when a message is sent while another turn is connecting or streaming.
	ErrTurnInProgress = errors.New("a chat turn is already in progress")
	// ErrSessionClosed is returned by a session after Close.
	ErrSessionClosed = errors.New("chat session closed")
	// ErrEmptyMessage is returned when the outgoing message is blank.
	ErrEmptyMessage = errors.New("message is empty")
)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// WrapRedis maps Redis errors to AppError with an appropriate status.
func WrapRedis(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return New(err, http.StatusNotFound, RedisNotFoundMessage)
	}
	return New(err, http.StatusBadGateway, RedisErrorMessage)
}

// WrapTransport wraps a request that never produced a response (dial, TLS, reset).
func WrapTransport(err error) error {
	if err == nil {
		return nil
	}
	return New(err, http.StatusBadGateway, TransportErrorMessage)
}

// FromResponse builds the error for a non-2xx API response. The body is
// trimmed and truncated before it becomes part of the message.
func FromResponse(status int, body string) *AppError {
	body = strings.TrimSpace(body)
	if len(body) > maxBodySnippet {
		body = body[:maxBodySnippet] + "..."
	}
	err := fmt.Errorf("unexpected status %d", status)
	if body != "" {
		err = fmt.Errorf("unexpected status %d: %s", status, body)
	}
	return New(err, status, TransportErrorMessage)
}

// WrapConversationCreate wraps a failure to bootstrap a conversation.
func WrapConversationCreate(err error) error {
	if err == nil {
		return nil
	}
	status := http.StatusBadGateway
	var appErr *AppError
	if errors.As(err, &appErr) {
		status = appErr.Status
	}
	return New(err, status, ConversationCreateMessage)
}

// StatusOf returns the HTTP status carried by err, or 0 when err is not an AppError.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return 0
}

// Is reports whether the target matches the underlying error.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}
