package scope

import (
	"errors"
	"strings"

	"github.com/conorfennell/tinithink/internal/validate"
)

var (
	ErrNoActiveCourse = errors.New("no course selected")
	ErrPathComplete   = errors.New("all levels are set")
	ErrPathTooShort   = errors.New("set course and subject first")
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotConfirmed   = errors.New("removal not confirmed")
)

// ValidationError reports user input that was rejected. The operation that
// returned it made no state change.
type ValidationError struct {
	Err    error
	Fields []validate.FieldError
}

func (e *ValidationError) Error() string {
	msg := ErrInvalidInput.Error()
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if len(e.Fields) == 0 {
		return msg
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return msg + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// PersistenceError is returned when the Store refused a mutation. The local
// collection is left as it was before the call.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return "failed to " + e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func invalid(err error, fields ...validate.FieldError) error {
	return &ValidationError{Err: err, Fields: fields}
}
