package ai

import (
	"errors"
	"fmt"
)

// Rewriter failures. Callers match them with errors.Is.
var (
	ErrConfigIncomplete    = errors.New("ai settings incomplete: api key and/or model missing")
	ErrTransport           = errors.New("ai request failed")
	ErrHTTPStatus          = errors.New("ai provider returned an unexpected status")
	ErrResponseDecode      = errors.New("ai response is not valid json")
	ErrEmptyText           = errors.New("ai response contains no text")
	ErrResultDecode        = errors.New("ai result is not the expected json document")
	ErrMissingFields       = errors.New("ai result has neither title nor content")
	ErrUnsupportedProvider = errors.New("unsupported ai provider")
)

// StatusError carries a non-2xx provider response. It matches ErrHTTPStatus.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected response (HTTP %d): %s", e.Provider, e.Code, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrHTTPStatus
}
