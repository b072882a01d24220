package live

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a live provider failure.
type Kind string

const (
	// KindTransient covers timeouts, connection and DNS failures, and
	// provider-side unavailability. Only this kind is retried.
	KindTransient   Kind = "transient"
	KindPermission  Kind = "permission"
	KindQuota       Kind = "quota"
	KindInvalid     Kind = "invalid"
	KindCircuitOpen Kind = "circuit-open"
)

// APIError is returned by every failed Fetch.
type APIError struct {
	Kind       Kind
	StatusCode int    // HTTP status, 0 when the request never completed
	Status     string // provider status such as PERMISSION_DENIED
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("live provider %s error (HTTP %d): %s", e.Kind, e.StatusCode, msg)
	}
	return fmt.Sprintf("live provider %s error: %s", e.Kind, msg)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the call may succeed.
func (e *APIError) Temporary() bool {
	return e.Kind == KindTransient
}

// IsKind reports whether err is an APIError of the given kind.
func IsKind(err error, kind Kind) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// errorBody is the provider's JSON error envelope.
type errorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

var statusKinds = map[string]Kind{
	"UNAVAILABLE":         KindTransient,
	"DEADLINE_EXCEEDED":   KindTransient,
	"INTERNAL":            KindTransient,
	"ABORTED":             KindTransient,
	"PERMISSION_DENIED":   KindPermission,
	"UNAUTHENTICATED":     KindPermission,
	"RESOURCE_EXHAUSTED":  KindQuota,
	"INVALID_ARGUMENT":    KindInvalid,
	"NOT_FOUND":           KindInvalid,
	"FAILED_PRECONDITION": KindInvalid,
	"OUT_OF_RANGE":        KindInvalid,
}

// classifyResponse builds the error for a non-2xx response. The provider
// status wins over the HTTP status when both are present.
func classifyResponse(statusCode int, body errorBody, propertyID string) *APIError {
	e := &APIError{
		StatusCode: statusCode,
		Status:     body.Error.Status,
		Message:    body.Error.Message,
	}
	if e.Message == "" {
		e.Message = http.StatusText(statusCode)
	}

	kind, ok := statusKinds[body.Error.Status]
	if !ok {
		kind = kindForHTTPStatus(statusCode)
	}
	e.Kind = kind

	if kind == KindPermission {
		e.Message = fmt.Sprintf("property %s is not readable with the configured credentials: %s", propertyID, e.Message)
	}
	return e
}

func kindForHTTPStatus(code int) Kind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindPermission
	case code == http.StatusTooManyRequests:
		return KindQuota
	case code == http.StatusRequestTimeout || code >= 500:
		return KindTransient
	default:
		return KindInvalid
	}
}

// classifyTransport wraps a failure that happened before a response arrived.
// Caller cancellation is returned unchanged so it is never retried.
func classifyTransport(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &APIError{Kind: KindTransient, Err: err}
}
