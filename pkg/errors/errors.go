package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// Error codes for the emergency lifecycle. Handlers map these to HTTP statuses;
// everything else in the codebase matches on the code, never on the message.
const (
	CodeValidation             = 40001
	CodeNotFound               = 40401
	CodeIllegalStateTransition = 40902
	CodeMissingResponder       = 40903
	CodeStaleWrite             = 40904
	CodeTransientIO            = 50301
)

// Error represents a coded error with stack trace
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"` // 原始错误，不序列化
	Stack   string `json:"stack,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap implements the errors.Wrapper interface
func (e *Error) Unwrap() error {
	return e.Err
}

// WithCode creates a new error with code
func WithCode(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Stack:   captureStack(),
	}
}

// WithCodef creates a new error with code and formatted message
func WithCodef(code int, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(),
	}
}

// Wrap wraps an error with a code and message, keeping the cause
func Wrap(err error, code int, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
		Stack:   captureStack(),
	}
}

// Wrapf wraps an error with a code and formatted message
func Wrapf(err error, code int, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
		Stack:   captureStack(),
	}
}

// Is re-exports errors.Is so callers need only one errors import
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As re-exports errors.As
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// GetCode returns the error code, or 0 for plain errors
func GetCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

// IsCode reports whether err carries the given code
func IsCode(err error, code int) bool {
	return GetCode(err) == code
}

// HTTPStatus maps an error code to an HTTP status for the API surface
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeIllegalStateTransition, CodeMissingResponder, CodeStaleWrite:
		return http.StatusConflict
	case CodeTransientIO:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Cause returns the underlying error
func Cause(err error) error {
	for err != nil {
		var e *Error
		if errors.As(err, &e) && e.Err != nil {
			err = e.Err
		} else {
			return err
		}
	}
	return err
}

// captureStack captures the current stack trace
func captureStack() string {
	buf := make([]byte, 1024)
	n := runtime.Stack(buf, false)
	stack := string(buf[:n])

	// 移除顶部几行（captureStack 自身的调用帧）
	lines := strings.Split(stack, "\n")
	if len(lines) > 6 {
		stack = strings.Join(lines[6:], "\n")
	}
	return strings.TrimSpace(stack)
}
