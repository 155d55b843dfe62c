package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/tidwall/gjson"
)

// Sentinel errors for the normalized failure classes. Callers match with
// errors.Is; the message is already human readable.
var (
	// ErrTimeout replaces transport-level timeouts.
	ErrTimeout = errors.New("request timed out, please try again")
	// ErrNetwork replaces failures where no response was received at all.
	ErrNetwork = errors.New("network error, please check your connection")
	// ErrUnauthorized is returned for HTTP 401. The client clears the
	// session before propagating it.
	ErrUnauthorized = errors.New("authentication required")
)

// StatusError carries a non-2xx response with the backend-provided detail
// message when one was present.
type StatusError struct {
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// normalizeTransport maps a failed round trip (no response at all) onto the
// taxonomy. Context cancellation passes through untouched so callers can
// distinguish their own teardown from a broken network.
func normalizeTransport(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return ErrTimeout
	}
	return ErrNetwork
}

// statusError builds the error for a non-2xx response, extracting the
// backend "detail" field when the body carries one.
func statusError(status int, body []byte) error {
	if status == 401 {
		return ErrUnauthorized
	}
	detail := gjson.GetBytes(body, "detail").String()
	return &StatusError{Status: status, Detail: detail}
}
