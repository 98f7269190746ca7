// Package checker sends GraphQL probe queries to the endpoint under test and
// classifies each exchange as a parsed QueryResult or a TransportError.
package checker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultMaxBodySize = 1 << 20 // 1MB
	// MaxBodySizeLimit is the largest accepted Options.MaxBodySize.
	MaxBodySizeLimit = 1 << 30 // 1GB
)

// Options tune the HTTP executor. The zero value is usable.
type Options struct {
	Timeout       time.Duration
	ProxyURL      string
	SkipTLSVerify bool
	BlockPrivate  bool
	// RateLimit caps outbound requests per second; 0 disables pacing.
	RateLimit   float64
	MaxBodySize int64
	UserAgent   string
}

// TransportError means no GraphQL response could be obtained: DNS or
// connection failure, timeout, TLS failure, or a body that is not a GraphQL
// JSON object. StatusCode is set when an HTTP response was received.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: got status code %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the exchange failed by running out of time.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// ResponseReceived reports whether the server answered with an HTTP status
// before the exchange failed.
func (e *TransportError) ResponseReceived() bool {
	return e.StatusCode != 0
}
