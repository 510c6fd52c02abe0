// Package errors provides a structured error type with wrapping and metadata
package errors

// Always import the project errors package as perr (platform/errors)

import (
	stderrs "errors"
	"fmt"
	"net/http"
)

// ErrorCode defines supported error codes used across services
// Values are stable for wire compatibility; add sparingly
type ErrorCode uint16

const (
	// ErrorCodeUnknown is for unclassified errors
	ErrorCodeUnknown ErrorCode = iota

	// ErrorCodePanic is for recovered panics
	ErrorCodePanic

	// transport family

	// ErrorCodeUnauthorized is for failed credentials (401)
	ErrorCodeUnauthorized

	// ErrorCodeForbidden is for missing permissions (403)
	ErrorCodeForbidden

	// ErrorCodeNotFound is for missing remote or local resources
	ErrorCodeNotFound

	// ErrorCodeRateLimited is for provider throttling after retries are spent
	ErrorCodeRateLimited

	// ErrorCodeServer is for provider 5xx responses
	ErrorCodeServer

	// ErrorCodeTimeout is for deadlines exceeded talking to a provider
	ErrorCodeTimeout

	// ErrorCodeConnection is for dial/reset/EOF level failures
	ErrorCodeConnection

	// ErrorCodeProtocol is for unparseable or contract-breaking responses
	ErrorCodeProtocol

	// ErrorCodeCancelled is for context cancellation observed mid-operation
	ErrorCodeCancelled

	// validation family

	// ErrorCodeInvalidInput is for malformed input data
	ErrorCodeInvalidInput

	// ErrorCodeOutOfRange is for values outside their allowed bounds
	ErrorCodeOutOfRange

	// ErrorCodeMissingField is for absent required fields
	ErrorCodeMissingField

	// engine family

	// ErrorCodeNoWorkItems is for an empty work item candidate set
	ErrorCodeNoWorkItems

	// ErrorCodeNoMeetings is for an empty meeting set after fetch/filter
	ErrorCodeNoMeetings

	// ErrorCodeConflictUnresolved is for conflicts left standing after resolution
	ErrorCodeConflictUnresolved

	// ErrorCodeWriteRejected is for writes refused by pre-write validation
	ErrorCodeWriteRejected

	// persistence family

	// ErrorCodeIO is for file read/write failures
	ErrorCodeIO

	// ErrorCodeCorruptStore is for stores that load but fail to decode
	ErrorCodeCorruptStore

	// ErrorCodeDuplicateEntry is for entry id collisions
	ErrorCodeDuplicateEntry
)

// codeNames are the stable snake_case identities used on the wire and in logs
var codeNames = map[ErrorCode]string{
	ErrorCodeUnknown:            "unknown",
	ErrorCodePanic:              "panic",
	ErrorCodeUnauthorized:       "unauthorized",
	ErrorCodeForbidden:          "forbidden",
	ErrorCodeNotFound:           "not_found",
	ErrorCodeRateLimited:        "rate_limited",
	ErrorCodeServer:             "server",
	ErrorCodeTimeout:            "timeout",
	ErrorCodeConnection:         "connection",
	ErrorCodeProtocol:           "protocol",
	ErrorCodeCancelled:          "cancelled",
	ErrorCodeInvalidInput:       "invalid_input",
	ErrorCodeOutOfRange:         "out_of_range",
	ErrorCodeMissingField:       "missing_field",
	ErrorCodeNoWorkItems:        "no_work_items",
	ErrorCodeNoMeetings:         "no_meetings",
	ErrorCodeConflictUnresolved: "conflict_unresolved",
	ErrorCodeWriteRejected:      "write_rejected",
	ErrorCodeIO:                 "io_error",
	ErrorCodeCorruptStore:       "corrupt_store",
	ErrorCodeDuplicateEntry:     "duplicate_entry",
}

// String returns the stable snake_case name for the code
func (c ErrorCode) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return "unknown"
}

// MarshalJSON emits the snake_case name rather than the numeric value
func (c ErrorCode) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

// Family groups codes for logging and CLI summaries
func Family(c ErrorCode) string {
	switch c {
	case ErrorCodeUnauthorized, ErrorCodeForbidden, ErrorCodeNotFound,
		ErrorCodeRateLimited, ErrorCodeServer, ErrorCodeTimeout,
		ErrorCodeConnection, ErrorCodeProtocol, ErrorCodeCancelled:
		return "transport"
	case ErrorCodeInvalidInput, ErrorCodeOutOfRange, ErrorCodeMissingField:
		return "validation"
	case ErrorCodeNoWorkItems, ErrorCodeNoMeetings,
		ErrorCodeConflictUnresolved, ErrorCodeWriteRejected:
		return "engine"
	case ErrorCodeIO, ErrorCodeCorruptStore, ErrorCodeDuplicateEntry:
		return "persistence"
	default:
		return "general"
	}
}

// HTTPStatusCode turns an ErrorCode into an http status code
func HTTPStatusCode(c ErrorCode) int {
	switch c {
	case ErrorCodeNotFound, ErrorCodeNoWorkItems, ErrorCodeNoMeetings:
		return http.StatusNotFound
	case ErrorCodeInvalidInput, ErrorCodeMissingField:
		return http.StatusBadRequest
	case ErrorCodeOutOfRange, ErrorCodeWriteRejected:
		return http.StatusUnprocessableEntity
	case ErrorCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrorCodeForbidden:
		return http.StatusForbidden
	case ErrorCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrorCodeConflictUnresolved, ErrorCodeDuplicateEntry:
		return http.StatusConflict
	case ErrorCodeTimeout:
		return http.StatusGatewayTimeout
	case ErrorCodeServer, ErrorCodeConnection, ErrorCodeProtocol:
		return http.StatusBadGateway
	case ErrorCodeCancelled:
		return http.StatusRequestTimeout
	case ErrorCodeIO, ErrorCodeCorruptStore, ErrorCodePanic, ErrorCodeUnknown:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ErrNotFound is a sentinel not found error for convenience
var ErrNotFound = New(ErrorCodeNotFound, "not found")

// Error is the structured error type with wrapping and metadata
// msg is human/developer facing; code is machine facing
// field is optional (for validation); op is optional operation tag
// orig is the wrapped cause
type Error struct {
	orig  error
	msg   string
	code  ErrorCode
	field string
	op    string
}

// Wire is the JSON-serializable form surfaced by the daemon and run logs
type Wire struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.orig != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.orig)
	}
	return e.msg
}

// Unwrap returns the wrapped error, if any
func (e *Error) Unwrap() error { return e.orig }

// Code returns the error code
func (e *Error) Code() ErrorCode { return e.code }

// Field returns the offending field, if any
func (e *Error) Field() string { return e.field }

// Op returns the operation label, if set
func (e *Error) Op() string { return e.op }

// ToWire converts an *Error to a Wire payload
func (e *Error) ToWire() Wire { return Wire{Code: e.code, Message: e.msg, Field: e.field} }

// WireFrom converts any error into a Wire payload with best-effort mapping
// If err is nil, returns the zero-value Wire (no error)
func WireFrom(err error) Wire {
	if err == nil {
		return Wire{}
	}
	if e, ok := As(err); ok {
		return e.ToWire()
	}
	return Wire{Code: ErrorCodeUnknown, Message: err.Error()}
}

// Root returns the deepest wrapped cause
func Root(err error) error {
	for err != nil {
		u := stderrs.Unwrap(err)
		if u == nil {
			return err
		}
		err = u
	}
	return nil
}

// CodeOf extracts an ErrorCode from any error, defaulting to Unknown
func CodeOf(err error) ErrorCode {
	if e, ok := As(err); ok {
		return e.code
	}
	return ErrorCodeUnknown
}

// IsCode reports whether err has the given code
func IsCode(err error, code ErrorCode) bool { return CodeOf(err) == code }

// HTTPStatus returns the mapped HTTP status for any error
func HTTPStatus(err error) int { return HTTPStatusCode(CodeOf(err)) }

// As unwraps and returns (*Error, true) if err is one of ours
func As(err error) (*Error, bool) {
	var e *Error
	if stderrs.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Mutators (copy-on-write)

// WithField attaches a field to an *Error (copy-on-write). If err isn't *Error, returns err unchanged
func WithField(err error, field string) error {
	if e, ok := As(err); ok {
		c := *e
		c.field = field
		return &c
	}
	return err
}

// WithOp attaches an operation label to an *Error (copy-on-write). If err isn't *Error, returns err unchanged
func WithOp(err error, op string) error {
	if e, ok := As(err); ok {
		c := *e
		c.op = op
		return &c
	}
	return err
}

// WithFieldChain sets field on *Error or wraps a foreign error into an *Error with Unknown code (copy-on-write)
func WithFieldChain(err error, field string) error {
	if e, ok := As(err); ok {
		c := *e
		c.field = field
		return &c
	}
	return &Error{code: ErrorCodeUnknown, msg: err.Error(), field: field, orig: err}
}

// Constructors

// New returns a new *Error with the given code and message
func New(code ErrorCode, msg string) error { return &Error{code: code, msg: msg} }

// Newf returns a new *Error with code and formatted message
func Newf(code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...)}
}

// Wrap returns a new *Error that wraps orig with code and message
func Wrap(orig error, code ErrorCode, msg string) error {
	return &Error{code: code, msg: msg, orig: orig}
}

// Wrapf returns a new *Error that wraps orig with code and formatted message
func Wrapf(orig error, code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...), orig: orig}
}

// WrapIf wraps only when err != nil (helper for 1-liners)
func WrapIf(err error, code ErrorCode, msg string) error {
	if err == nil {
		return nil
	}
	return Wrap(err, code, msg)
}

// Sugar

// Unauthorizedf returns an unauthorized error
func Unauthorizedf(format string, a ...any) error { return Newf(ErrorCodeUnauthorized, format, a...) }

// Forbiddenf returns a forbidden error
func Forbiddenf(format string, a ...any) error { return Newf(ErrorCodeForbidden, format, a...) }

// NotFoundf returns a not found error
func NotFoundf(format string, a ...any) error { return Newf(ErrorCodeNotFound, format, a...) }

// RateLimitedf returns a rate limited error
func RateLimitedf(format string, a ...any) error { return Newf(ErrorCodeRateLimited, format, a...) }

// Serverf returns a provider server error
func Serverf(format string, a ...any) error { return Newf(ErrorCodeServer, format, a...) }

// Timeoutf returns a timeout error
func Timeoutf(format string, a ...any) error { return Newf(ErrorCodeTimeout, format, a...) }

// Connectionf returns a connection error
func Connectionf(format string, a ...any) error { return Newf(ErrorCodeConnection, format, a...) }

// Protocolf returns a protocol error
func Protocolf(format string, a ...any) error { return Newf(ErrorCodeProtocol, format, a...) }

// Cancelledf returns a cancellation error
func Cancelledf(format string, a ...any) error { return Newf(ErrorCodeCancelled, format, a...) }

// InvalidInputf returns an invalid input error
func InvalidInputf(format string, a ...any) error { return Newf(ErrorCodeInvalidInput, format, a...) }

// OutOfRangef returns an out of range error
func OutOfRangef(format string, a ...any) error { return Newf(ErrorCodeOutOfRange, format, a...) }

// MissingFieldf returns a missing field error
func MissingFieldf(format string, a ...any) error { return Newf(ErrorCodeMissingField, format, a...) }

// NoWorkItemsf returns an empty work item set error
func NoWorkItemsf(format string, a ...any) error { return Newf(ErrorCodeNoWorkItems, format, a...) }

// NoMeetingsf returns an empty meeting set error
func NoMeetingsf(format string, a ...any) error { return Newf(ErrorCodeNoMeetings, format, a...) }

// ConflictUnresolvedf returns an unresolved conflict error
func ConflictUnresolvedf(format string, a ...any) error {
	return Newf(ErrorCodeConflictUnresolved, format, a...)
}

// WriteRejectedf returns a write rejected error
func WriteRejectedf(format string, a ...any) error { return Newf(ErrorCodeWriteRejected, format, a...) }

// IOErrf returns a file io error
func IOErrf(format string, a ...any) error { return Newf(ErrorCodeIO, format, a...) }

// CorruptStoref returns a corrupt store error
func CorruptStoref(format string, a ...any) error { return Newf(ErrorCodeCorruptStore, format, a...) }

// DuplicateEntryf returns a duplicate entry error
func DuplicateEntryf(format string, a ...any) error {
	return Newf(ErrorCodeDuplicateEntry, format, a...)
}

// PanicErrf returns a panic error
func PanicErrf(format string, a ...any) error { return Newf(ErrorCodePanic, format, a...) }

// Internalf returns a generic internal error
func Internalf(format string, a ...any) error { return Newf(ErrorCodeUnknown, format, a...) }

// HTTP bundles status + wire in one shot (nice for handlers)
func HTTP(err error) (int, Wire) {
	if err == nil {
		return http.StatusOK, Wire{}
	}
	return HTTPStatus(err), WireFrom(err)
}

// Retry semantics

// Retryable reports whether a retry of the failed operation may succeed
func Retryable(err error) bool {
	switch CodeOf(err) {
	case ErrorCodeRateLimited, ErrorCodeServer, ErrorCodeTimeout, ErrorCodeConnection:
		return true
	default:
		return false
	}
}
