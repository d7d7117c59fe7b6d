package utils

import "fmt"

// AppError wraps an operation, a human-facing message and the underlying error
// kind. errors.Is and errors.As see through it to Err.
type AppError struct {
	Op  string
	Msg string
	Err error
}

func (e *AppError) Error() string {
	switch {
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	case e.Msg == "":
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	}
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}
