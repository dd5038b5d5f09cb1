package service

import (
	"errors"
	"fmt"
)

// Kind tags every failure a pipeline reports. The HTTP layer switches on it
// exhaustively, so a new Kind needs a status mapping before it can be returned.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindExpired
	KindQuotaExceeded
	KindBlobMissing
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindExpired:
		return "expired"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindBlobMissing:
		return "blob_missing"
	case KindUpstream:
		return "upstream"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error carries a user-safe Message and, optionally, the internal cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func ValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func NotFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func ExpiredError(message string) *Error {
	return &Error{Kind: KindExpired, Message: message}
}

func QuotaExceededError(message string) *Error {
	return &Error{Kind: KindQuotaExceeded, Message: message}
}

func BlobMissingError(message string, err error) *Error {
	return &Error{Kind: KindBlobMissing, Message: message, Err: err}
}

func UpstreamError(message string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: message, Err: err}
}

// AsError extracts the tagged error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ErrCodeSpaceExhausted means every code drawn in a row collided with a live one.
var ErrCodeSpaceExhausted = errors.New("share code generation exhausted")
