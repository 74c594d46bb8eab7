package proactor

import (
	"errors"
	"fmt"
	"syscall"
)

// Error represents a structured proactor error: the operation that
// failed, a high-level category, and (when the failure originated in the
// kernel) the raw errno.
type Error struct {
	Op    string        // Operation that failed (e.g. "ring.new", "handle.push")
	Tag   uint64        // Ticket tag involved, 0 if not applicable
	Code  ErrorCode     // High-level error category
	Errno syscall.Errno // Kernel errno (0 if not applicable)
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	var parts []string

	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Tag != 0 {
		parts = append(parts, fmt.Sprintf("tag=%d", e.Tag))
	}
	if e.Errno != 0 {
		parts = append(parts, fmt.Sprintf("errno=%d", e.Errno))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}

	if len(parts) > 0 {
		return fmt.Sprintf("proactor: %s (%s)", msg, parts[0])
	}
	return fmt.Sprintf("proactor: %s", msg)
}

func (e *Error) Unwrap() error {
	return e.Inner
}

func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// ErrorCode categorizes proactor failures.
type ErrorCode string

const (
	ErrCodeRingSetup          ErrorCode = "ring setup failed"
	ErrCodeSubmitBackpressure ErrorCode = "submission back-pressure exhausted"
	ErrCodeKernelResult       ErrorCode = "kernel reported an error result"
	ErrCodeDisconnected       ErrorCode = "handle disconnected from proactor"
	ErrCodeInvariant          ErrorCode = "runtime invariant violated"
	ErrCodeCancelled          ErrorCode = "operation cancelled"
)

// NewError creates a structured error with no kernel errno attached.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewErrnoError creates a structured error from a kernel errno.
func NewErrnoError(op string, errno syscall.Errno) *Error {
	return &Error{Op: op, Code: mapErrnoToCode(errno), Errno: errno, Msg: errno.Error()}
}

// NewTagError creates a structured error tied to a specific ticket tag,
// for failures discovered while dispatching a completion.
func NewTagError(op string, tag uint64, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Tag: tag, Code: code, Msg: msg}
}

// WrapError wraps inner with proactor context, mapping syscall.Errno
// values to their category through mapErrnoToCode.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if pe, ok := inner.(*Error); ok {
		return &Error{Op: op, Tag: pe.Tag, Code: pe.Code, Errno: pe.Errno, Msg: pe.Msg, Inner: pe.Inner}
	}
	if errno, ok := inner.(syscall.Errno); ok {
		return &Error{Op: op, Code: mapErrnoToCode(errno), Errno: errno, Msg: errno.Error(), Inner: inner}
	}
	return &Error{Op: op, Code: ErrCodeKernelResult, Msg: inner.Error(), Inner: inner}
}

func mapErrnoToCode(errno syscall.Errno) ErrorCode {
	switch errno {
	case syscall.ECANCELED:
		return ErrCodeCancelled
	case syscall.EBUSY, syscall.EAGAIN:
		return ErrCodeSubmitBackpressure
	case syscall.EINVAL, syscall.ENOSYS, syscall.EOPNOTSUPP:
		return ErrCodeInvariant
	default:
		return ErrCodeKernelResult
	}
}

// IsCode reports whether err is a *Error with the given category.
func IsCode(err error, code ErrorCode) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// IsErrno reports whether err is a *Error carrying the given errno.
func IsErrno(err error, errno syscall.Errno) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Errno == errno
	}
	return false
}
