package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// APIError is a protocol failure: the backend answered, but with a non-2xx
// status. It carries enough for a caller to render a message without
// re-inspecting the raw response.
type APIError struct {
	Status  int
	Message string
	// Body is the raw error payload when one was received, nil otherwise.
	Body json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// IsClientError reports whether the failure is 4xx-class, i.e. retrying the
// identical request cannot help.
func (e *APIError) IsClientError() bool {
	return e.Status >= 400 && e.Status < 500
}

// TransportError is a network-level failure: no response was received at
// all (offline, DNS, timeout). Kept distinct from APIError so callers can
// tell "offline" from "rejected".
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransportError reports whether err is (or wraps) a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
