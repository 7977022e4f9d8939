package linkup

import "fmt"

// The client reports failures in three classes so callers can react
// without string matching: transport (retryable network trouble),
// protocol (the service answered something unusable) and auth (the
// credentials or ticket were rejected).

// TransportError wraps a network-level failure: DNS, connect, timeout.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("linkup %s: transport: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying error to errors.Is/As.
func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError means the service responded but outside the expected
// protocol: an unexpected HTTP status or an undecodable body.
type ProtocolError struct {
	Op string
	// StatusCode is the HTTP status, or zero when decoding failed.
	StatusCode int
	Err        error
}

func (e *ProtocolError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("linkup %s: protocol: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("linkup %s: protocol: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// AuthError means the service rejected the credentials or ticket.
type AuthError struct {
	Op string
	// Status is the envelope status for in-band rejections, or the HTTP
	// status for 401/403 responses.
	Status int
	// Message is the server-provided explanation, empty when none came.
	Message string
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("linkup %s: auth rejected (status %d): %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("linkup %s: auth rejected (status %d)", e.Op, e.Status)
}
