package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies why a backend attempt failed.
type Kind string

const (
	KindNetwork     Kind = "network"
	KindAuth        Kind = "auth"
	KindQuota       Kind = "quota"
	KindMalformed   Kind = "malformed"
	KindTimeout     Kind = "timeout"
	KindUnavailable Kind = "unavailable"
)

// BackendError is returned by Completer implementations so the gateway can log a
// uniform failure kind regardless of provider.
type BackendError struct {
	Backend string
	Kind    Kind
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Backend, e.Kind, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func NewBackendError(backend string, kind Kind, err error) *BackendError {
	return &BackendError{Backend: backend, Kind: kind, Err: err}
}

// Classify maps an HTTP status (0 when no response arrived) and transport error to a BackendError.
func Classify(backend string, status int, err error) *BackendError {
	if status > 0 {
		return NewBackendError(backend, KindForStatus(status), err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewBackendError(backend, KindTimeout, err)
	}
	return NewBackendError(backend, KindNetwork, err)
}

func KindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests, status == http.StatusPaymentRequired:
		return KindQuota
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return KindTimeout
	case status >= 500:
		return KindUnavailable
	default:
		return KindMalformed
	}
}

// KindOf extracts the failure kind from any error a backend returned.
func KindOf(err error) Kind {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindNetwork
}
