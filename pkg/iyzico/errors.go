package iyzico

import (
	"errors"
	"fmt"
)

// ErrEmptySecretKey is returned when a signature is requested but no secret
// key is configured. The call is not sent in that case.
var ErrEmptySecretKey = errors.New("iyzico: secret key is empty")

// TransportError wraps DNS/connect/timeout failures. These happened before a
// well-formed gateway answer arrived, so the caller may decide to retry;
// this layer never does.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("iyzico: transport failure on %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// BusinessError is a well-formed gateway response declaring failure (card
// declined, 3DS failed, fraud hold). Code and Message carry the gateway's own
// values verbatim.
type BusinessError struct {
	Code    string
	Message string
	Group   string
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("iyzico: gateway declared failure %s: %s", e.Code, e.Message)
}

// ProtocolError marks a response that arrived but does not match the expected
// schema (undecodable body, or a 2xx answer missing required fields).
type ProtocolError struct {
	Op     string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("iyzico: protocol error on %s: %s", e.Op, e.Reason)
}
