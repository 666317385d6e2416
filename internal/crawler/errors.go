package crawler

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrEmptyPage marks a fetch that succeeded but parsed to zero validated
// records on a page that was expected to have some. It earns the same
// bounded retries as a transport failure.
var ErrEmptyPage = errors.New("page contained no validated records")

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d fetching %s", e.Code, e.URL)
}

// TransientError wraps a network-level failure that is worth retrying.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient %s failure: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsRetryable reports whether an attempt failure should go through backoff.
// Context cancellation is never retryable. Everything else the fetch loop
// can produce is: status errors and empty pages present during rate limiting
// and soft blocks, and parser errors usually signal template drift rather
// than a programming fault, so they all earn the same bounded retries.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// IsTransient reports whether the error is a network-level failure, as
// opposed to a definitive remote answer. Used for logging classification
// only; the retry decision is IsRetryable.
func IsTransient(err error) bool {
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
