package services

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies an API failure for retry decisions.
type ErrorKind int

const (
	// KindPermanent failures are not retried.
	KindPermanent ErrorKind = iota
	// KindConflict means the resource already exists on the target.
	KindConflict
	// KindTransient failures are retried with exponential backoff.
	KindTransient
	// KindBlock means the service refused the client outright and a
	// cooldown should pass before the next attempt.
	KindBlock
)

func (k ErrorKind) String() string {
	switch k {
	case KindConflict:
		return "conflict"
	case KindTransient:
		return "transient"
	case KindBlock:
		return "block"
	default:
		return "permanent"
	}
}

// APIError is a failed API call with its classification. The kind is assigned
// once where the HTTP response is read, so callers never re-parse status codes.
type APIError struct {
	Op      string
	Status  int
	Kind    ErrorKind
	Message string
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// KindOf extracts the classification from err. Errors that did not pass
// through the API boundary (transport failures, timeouts) are matched on
// message text as a fallback.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return classifyMessage(err.Error())
}

func classifyMessage(msg string) ErrorKind {
	lower := strings.ToLower(msg)
	for _, marker := range []string{"429", "500", "502", "503", "504", "timeout", "connection reset", "temporarily unavailable"} {
		if strings.Contains(lower, marker) {
			return KindTransient
		}
	}
	return KindPermanent
}

// classifyStatus maps an HTTP status to a kind. A 403 with an HTML body means
// the WAF rejected the client rather than the request.
func classifyStatus(status int, contentType string) ErrorKind {
	switch {
	case status == 409:
		return KindConflict
	case status == 429 || status >= 500:
		return KindTransient
	case status == 403 && strings.Contains(contentType, "text/html"):
		return KindBlock
	default:
		return KindPermanent
	}
}
