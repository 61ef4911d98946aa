package gateway

import (
	"fmt"

	"github.com/jrsteele09/go-session-client/auth"
)

// Kind classifies a failed exchange with the backend
type Kind int

const (
	// KindNetwork means no HTTP response was received
	KindNetwork Kind = iota + 1
	// KindRejected means the backend answered with a non-2xx status
	KindRejected
	// KindMalformed means a 2xx body could not be understood
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindRejected:
		return "rejected"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Error is returned by every Client operation. Error() yields a message fit
// for display: the server's own message when it sent one, else a fixed
// fallback per operation.
type Error struct {
	Kind       Kind
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is maps the error onto the auth failure sentinels
func (e *Error) Is(target error) bool {
	switch target {
	case auth.ErrNetworkFailure:
		return e.Kind == KindNetwork
	case auth.ErrServerRejection:
		return e.Kind == KindRejected
	case auth.ErrMalformedResponse:
		return e.Kind == KindMalformed
	}
	return false
}

// Unauthorized reports whether the backend rejected the credentials with 401
func (e *Error) Unauthorized() bool {
	return e.Kind == KindRejected && e.StatusCode == 401
}

// Detail describes the failure for logs, including the status and cause
func (e *Error) Detail() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s (status %d): %v", e.Op, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s (status %d)", e.Op, e.Kind, e.StatusCode)
}

// IsUnauthorized reports whether err is a gateway 401
func IsUnauthorized(err error) bool {
	var gwErr *Error
	return asError(err, &gwErr) && gwErr.Unauthorized()
}
