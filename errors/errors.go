package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is the API error type returned by services. Status carries the
// HTTP status code the handler should respond with.
type Error struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

var (
	ErrBadRequest          = New("bad request", http.StatusBadRequest)
	ErrUnauthorized        = New("unauthorized", http.StatusUnauthorized)
	ErrForbidden           = New("forbidden", http.StatusForbidden)
	ErrNotFound            = New("not found", http.StatusNotFound)
	ErrInternalServerError = New("internal server error", http.StatusInternalServerError)
)

// ErrRecordNotFound is used by repositories that do not want to leak
// gorm's sentinel to callers.
var ErrRecordNotFound = errors.New("record not found")

func New(message string, status int) *Error {
	return &Error{
		Message: message,
		Status:  status,
	}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// Errorf is a convenience wrapper around New with a formatted message.
func Errorf(status int, format string, args ...interface{}) *Error {
	return New(fmt.Sprintf(format, args...), status)
}
