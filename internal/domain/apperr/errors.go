// Package apperr is the error taxonomy shared by every layer. Usecases return
// *Error values (or wrap them); the HTTP boundary maps Kind to a status code.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation Kind = "VALIDATION"
	KindAuth       Kind = "AUTH"
	KindForbidden  Kind = "FORBIDDEN"
	KindNotFound   Kind = "NOT_FOUND"
	KindConflict   Kind = "STATE_CONFLICT"
	KindInfra      Kind = "INFRA"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind+Code so a derived error (extra fields, wrapped cause)
// still satisfies errors.Is against its sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// WithFields returns a copy carrying field-level details.
func (e *Error) WithFields(fields ...FieldError) *Error {
	cp := *e
	cp.Fields = append(append([]FieldError(nil), e.Fields...), fields...)
	return &cp
}

// WithMessage returns a copy with a more specific human message.
func (e *Error) WithMessage(msg string) *Error {
	cp := *e
	cp.Message = msg
	return &cp
}

// Wrap returns a copy with cause attached.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

func newErr(k Kind, code, msg string) *Error { return &Error{Kind: k, Code: code, Message: msg} }

func Validation(code, msg string, fields ...FieldError) *Error {
	return newErr(KindValidation, code, msg).WithFields(fields...)
}
func Auth(code, msg string) *Error      { return newErr(KindAuth, code, msg) }
func Forbidden(code, msg string) *Error { return newErr(KindForbidden, code, msg) }
func NotFound(code, msg string) *Error  { return newErr(KindNotFound, code, msg) }
func Conflict(code, msg string) *Error  { return newErr(KindConflict, code, msg) }
func Infra(code, msg string, cause error) *Error {
	e := newErr(KindInfra, code, msg)
	e.Err = cause
	return e
}

// KindOf reports the taxonomy kind of err; unknown errors are INFRA.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInfra
}

// As extracts the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var ae *Error
	ok := errors.As(err, &ae)
	return ae, ok
}
