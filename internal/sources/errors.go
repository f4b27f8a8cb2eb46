// Package sources defines the shared vocabulary of the external activity
// sources: which sources exist and how their failures are classified. The
// per-source clients live in the jira and github subpackages.
package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
)

// Name identifies one external activity source.
type Name string

const (
	Jira   Name = "jira"
	GitHub Name = "github"
)

// Kind classifies a source failure.
type Kind int

const (
	KindUnavailable Kind = iota
	KindTimeout
	KindAuthFailure
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindAuthFailure:
		return "auth_failure"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "unavailable"
	}
}

// MarshalJSON renders the kind as its string form.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON accepts the string form produced by MarshalJSON.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "timeout":
		*k = KindTimeout
	case "auth_failure":
		*k = KindAuthFailure
	case "rate_limited":
		*k = KindRateLimited
	default:
		*k = KindUnavailable
	}
	return nil
}

// Error is the typed failure every client call returns on the error path.
// The orchestrator captures it in the envelope; it never propagates further.
type Error struct {
	Source Name   `json:"source"`
	Kind   Kind   `json:"kind"`
	Detail string `json:"detail,omitempty"`
	Err    error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Source, e.Kind, e.Detail)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Source, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a typed source error.
func NewError(source Name, kind Kind, detail string) *Error {
	return &Error{Source: source, Kind: kind, Detail: detail}
}

// WrapError classifies a transport-level error from a client call.
// Context deadlines and net timeouts become KindTimeout; everything else
// is KindUnavailable.
func WrapError(source Name, err error) *Error {
	kind := KindUnavailable
	if isTimeout(err) {
		kind = KindTimeout
	}
	return &Error{Source: source, Kind: kind, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Ensure returns err as a typed source error, classifying and wrapping it
// when a client handed back something untyped.
func Ensure(source Name, err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return WrapError(source, err)
}

// KindOf extracts the failure kind from an error returned by a client.
// Unrecognized errors report KindUnavailable.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnavailable
}
