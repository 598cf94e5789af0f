package push

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Error kinds. Errors returned by this package wrap one of these, so callers
// can match with errors.Is regardless of message detail.
var (
	// ErrInvalidArgument reports a bad constructor argument: an empty job
	// name, or a gateway URL that does not parse or has a non-http(s) scheme.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidLabelSet reports a grouping-key label name that is reserved
	// or not a valid Prometheus label name.
	ErrInvalidLabelSet = errors.New("invalid label set")

	// ErrLabelCollision reports a grouping-key label that is also used by a
	// metric in the pushed source. Raised before any request is sent.
	ErrLabelCollision = errors.New("label collision")

	// Gateway response kinds, derived from the HTTP status code.
	ErrRedirect    = errors.New("gateway redirect")
	ErrClientError = errors.New("gateway client error")
	ErrServerError = errors.New("gateway server error")
)

// maxErrorBody bounds how much of an error response body is retained in a
// StatusError. Gateway error bodies are one-line parse messages; anything
// larger is noise.
const maxErrorBody = 4096

// StatusError is returned when the gateway answers with a status code of 300
// or above. errors.Is matches it against ErrRedirect (3xx), ErrClientError
// (4xx) or ErrServerError (5xx and up).
type StatusError struct {
	Code   int    // HTTP status code
	Status string // status line, e.g. "400 Bad Request"
	Body   string // response body, truncated to maxErrorBody bytes
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("gateway returned %s", e.Status)
	}
	return fmt.Sprintf("gateway returned %s: %s", e.Status, e.Body)
}

// Unwrap maps the status code onto its kind sentinel.
func (e *StatusError) Unwrap() error {
	switch {
	case e.Code >= 500:
		return ErrServerError
	case e.Code >= 400:
		return ErrClientError
	case e.Code >= 300:
		return ErrRedirect
	}
	return nil
}

// newStatusError captures the status line and up to maxErrorBody bytes of the
// response body.
func newStatusError(resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Code:   resp.StatusCode,
		Status: resp.Status,
		Body:   strings.TrimSpace(string(body)),
	}
}
