package vision

import (
	"errors"
	"fmt"
)

// ErrorCode is the stable numeric failure code shared with host languages.
type ErrorCode int32

const (
	CodeNone                   ErrorCode = 0
	CodeInvalidInput           ErrorCode = 1
	CodeFrameNotDetected       ErrorCode = 2
	CodeLaneExtractionFailed   ErrorCode = 3
	CodeTensorConversionFailed ErrorCode = 4
	CodeMemoryAllocationFailed ErrorCode = 5
	CodeProcessingError        ErrorCode = 6
)

func (c ErrorCode) String() string {
	switch c {
	case CodeNone:
		return "none"
	case CodeInvalidInput:
		return "invalid input"
	case CodeFrameNotDetected:
		return "frame not detected"
	case CodeLaneExtractionFailed:
		return "lane extraction failed"
	case CodeTensorConversionFailed:
		return "tensor conversion failed"
	case CodeMemoryAllocationFailed:
		return "memory allocation failed"
	case CodeProcessingError:
		return "processing error"
	default:
		return fmt.Sprintf("error code %d", int32(c))
	}
}

// Retryable reports whether the caller should simply try the next frame.
func (c ErrorCode) Retryable() bool {
	return c == CodeFrameNotDetected
}

// Error is a typed pipeline failure.
//
// Op names the stage operation that failed ("preprocess", "warp", ...).
// Err, when set, is the underlying cause.
type Error struct {
	Code ErrorCode
	Op   string
	Err  error
}

// Sentinel values for errors.Is comparisons. Only the Code is compared.
var (
	ErrInvalidInput           = &Error{Code: CodeInvalidInput}
	ErrFrameNotDetected       = &Error{Code: CodeFrameNotDetected}
	ErrLaneExtractionFailed   = &Error{Code: CodeLaneExtractionFailed}
	ErrTensorConversionFailed = &Error{Code: CodeTensorConversionFailed}
	ErrMemoryAllocationFailed = &Error{Code: CodeMemoryAllocationFailed}
	ErrProcessing             = &Error{Code: CodeProcessingError}
)

// NewError builds an *Error.
func NewError(code ErrorCode, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// Errorf builds an *Error whose cause is a formatted message.
func Errorf(code ErrorCode, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Code.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Code, so
// errors.Is(err, vision.ErrFrameNotDetected) works on wrapped errors.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf maps err to its ErrorCode. nil is CodeNone and any error that is
// not an *Error is treated as CodeProcessingError.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return CodeNone
	}
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Code
	}
	return CodeProcessingError
}
