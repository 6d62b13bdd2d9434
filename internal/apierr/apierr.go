// Package apierr carries an HTTP status alongside an error message so that
// handlers can pick a response code without writing the response themselves.
package apierr

import (
	"fmt"
	"net/http"
)

type Error struct {
	Status int
	Msg    string
}

func (e *Error) Error() string { return e.Msg }

func New(status int, format string, args ...any) *Error {
	return &Error{Status: status, Msg: fmt.Sprintf(format, args...)}
}

func BadRequest(format string, args ...any) *Error {
	return New(http.StatusBadRequest, format, args...)
}
func Unauthorized(msg string) *Error { return New(http.StatusUnauthorized, "%s", msg) }
func Forbidden(msg string) *Error    { return New(http.StatusForbidden, "%s", msg) }
func NotFound(msg string) *Error     { return New(http.StatusNotFound, "%s", msg) }
func Conflict(msg string) *Error     { return New(http.StatusConflict, "%s", msg) }
