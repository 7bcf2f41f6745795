package retry

import (
	"context"
	"errors"
	"net"
	"syscall"
)

// Error is a delivery failure annotated with its kind.
type Error struct {
	Kind Kind
	Err  error
}

// Wrap annotates err with a kind. A nil err yields nil.
func Wrap(k Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: k, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Classify returns the kind of err. Explicitly wrapped kinds win, then
// context deadlines and net errors are recognized. Everything else is
// KindUnknown.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetworkTimeout
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return KindNetworkUnavailable
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindNetworkUnavailable
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindNetworkTimeout
		}
		return KindNetworkUnavailable
	}

	return KindUnknown
}
