package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
)

type appError struct {
	code    ErrorCode
	message string
	err     error
	data    any
}

// Error renders "message: data: cause", omitting the parts that are unset.
func (e *appError) Error() string {
	msg := e.message
	if msg == "" {
		msg = GetErrorMessage(e.code)
	}

	parts := []string{msg}
	if e.data != nil {
		parts = append(parts, fmt.Sprint(e.data))
	}
	if e.err != nil {
		parts = append(parts, e.err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *appError) Code() ErrorCode { return e.code }
func (e *appError) GetData() any    { return e.data }
func (e *appError) Unwrap() error   { return e.err }

// Is matches another coded error with the same code, so callers can compare
// against a bare errors.New().New(code).
func (e *appError) Is(target error) bool {
	t, ok := target.(*appError)
	return ok && t.err == nil && t.data == nil && t.code == e.code
}

func (e *appError) WithMessage(msg string) Error {
	c := *e
	c.message = msg
	return &c
}

func (e *appError) WithData(data any) Error {
	c := *e
	c.data = data
	return &c
}

type defaultFactory struct{}

func (*defaultFactory) New(code ErrorCode) Error {
	return &appError{code: code}
}

func (*defaultFactory) Wrap(code ErrorCode, err error) Error {
	return &appError{code: code, err: err}
}

func (*defaultFactory) WithMessage(code ErrorCode, msg string) Error {
	return &appError{code: code, message: msg}
}

func (*defaultFactory) WithData(code ErrorCode, data any) Error {
	return &appError{code: code, data: data}
}

// New returns the Factory used across the module.
func New() Factory {
	return &defaultFactory{}
}

// CodeOf returns the code of the outermost Coded error in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var coded Coded
	if As(err, &coded) {
		return coded.Code(), true
	}
	return "", false
}

// HasCode reports whether any error in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if coded, ok := err.(Coded); ok && coded.Code() == code {
			return true
		}
		err = Unwrap(err)
	}
	return false
}
