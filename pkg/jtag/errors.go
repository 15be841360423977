package jtag

import (
	"errors"
	"fmt"

	"github.com/OpenTraceLab/jtagmaster/pkg/pspi"
)

// ErrorCode classifies controller failures.
type ErrorCode uint8

const (
	CodeUnknown ErrorCode = iota
	CodeInvalidArgument
	CodeInvalidState
	CodeBusy
	CodeTimeout
	CodeOutOfMemory
	CodeIO
	CodeInvalidFrequency
)

var codeNames = map[ErrorCode]string{
	CodeUnknown:          "unknown error",
	CodeInvalidArgument:  "invalid argument",
	CodeInvalidState:     "invalid state",
	CodeBusy:             "busy",
	CodeTimeout:          "timeout",
	CodeOutOfMemory:      "out of memory",
	CodeIO:               "i/o error",
	CodeInvalidFrequency: "invalid frequency",
}

func (c ErrorCode) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("ErrorCode(%d)", uint8(c))
}

// Error is returned by every controller operation.
type Error struct {
	Code ErrorCode
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := "jtag: "
	if e.Op != "" {
		msg += e.Op + ": "
	}
	msg += e.Code.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so errors.Is(err, ErrTimeout)
// holds for every timeout regardless of operation.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidArgument  = &Error{Code: CodeInvalidArgument}
	ErrInvalidState     = &Error{Code: CodeInvalidState}
	ErrBusy             = &Error{Code: CodeBusy}
	ErrTimeout          = &Error{Code: CodeTimeout}
	ErrOutOfMemory      = &Error{Code: CodeOutOfMemory}
	ErrIO               = &Error{Code: CodeIO}
	ErrInvalidFrequency = &Error{Code: CodeInvalidFrequency}
)

// CodeOf returns the code of the outermost *Error in err's chain.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

func newError(code ErrorCode, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

func errorf(code ErrorCode, op, format string, args ...any) *Error {
	return newError(code, op, fmt.Errorf(format, args...))
}

// channelError maps a hardware channel failure onto the taxonomy.
func channelError(op string, err error) *Error {
	switch {
	case errors.Is(err, pspi.ErrTimeout):
		return newError(CodeTimeout, op, err)
	case errors.Is(err, pspi.ErrBusy):
		return newError(CodeBusy, op, err)
	case errors.Is(err, pspi.ErrInvalidFrequency):
		return newError(CodeInvalidFrequency, op, err)
	case errors.Is(err, pspi.ErrShortBuffer), errors.Is(err, pspi.ErrInvalidLength):
		return newError(CodeInvalidArgument, op, err)
	case errors.Is(err, pspi.ErrNoInterrupt):
		return newError(CodeInvalidState, op, err)
	default:
		return newError(CodeIO, op, err)
	}
}
