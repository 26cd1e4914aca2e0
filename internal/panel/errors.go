package panel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies a failure against the panel API before it crosses the
// package boundary. The slug doubles as the problem-type identifier the
// inbound API relays upstream.
type Kind string

const (
	KindAuthenticationFailed   Kind = "authentication-failed"
	KindInsufficientPrivileges Kind = "insufficient-privileges"
	KindEndpointUnavailable    Kind = "endpoint-unavailable"
	KindRemoteServerError      Kind = "remote-server-error"
	KindConnectionFailure      Kind = "connection-failure"
	KindMalformedResponse      Kind = "malformed-response"
	KindAggregateFailure       Kind = "aggregate-failure"
)

// Error is the classified form every low-level failure takes. Status is an
// HTTP-status-like code suitable for relaying to our own callers, not
// necessarily the code the panel answered with.
type Error struct {
	Kind    Kind
	Status  int
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

// KindOf extracts the classification from err, or "" when err is not ours.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// RelayStatus returns the HTTP status the caller should answer with.
func RelayStatus(err error) int {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Status
	}
	return http.StatusInternalServerError
}

func authFailed(msg string, cause error) *Error {
	return &Error{Kind: KindAuthenticationFailed, Status: http.StatusUnauthorized, Message: msg, Err: cause}
}

func malformed(endpoint string, cause error) *Error {
	return &Error{Kind: KindMalformedResponse, Status: http.StatusBadGateway, Message: "unexpected response envelope from " + endpoint, Err: cause}
}

func aggregateFailure(cause error) *Error {
	return &Error{Kind: KindAggregateFailure, Status: http.StatusBadGateway, Message: "all settings endpoints failed", Err: cause}
}

// classifyStatus maps a non-2xx panel answer (other than 401, which the
// executor handles itself) to its classification.
func classifyStatus(status int, endpoint string) *Error {
	switch {
	case status == http.StatusForbidden:
		return &Error{Kind: KindInsufficientPrivileges, Status: http.StatusForbidden, Message: "panel denied access to " + endpoint}
	case status == http.StatusNotFound:
		return &Error{Kind: KindEndpointUnavailable, Status: http.StatusNotFound, Message: endpoint + " not available on this panel"}
	default:
		return &Error{Kind: KindRemoteServerError, Status: http.StatusBadGateway, Message: fmt.Sprintf("panel answered %d on %s", status, endpoint)}
	}
}

// classifyTransport maps network errors and timeouts.
func classifyTransport(err error, endpoint string) *Error {
	msg := "request to " + endpoint + " failed"
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() || errors.Is(err, context.DeadlineExceeded) {
		msg = "request to " + endpoint + " timed out"
	}
	return &Error{Kind: KindConnectionFailure, Status: http.StatusBadGateway, Message: msg, Err: err}
}
