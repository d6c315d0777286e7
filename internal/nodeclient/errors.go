package nodeclient

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreachable covers connection failures and timeouts.
	ErrUnreachable = errors.New("node unreachable")

	// ErrMalformed is returned when a 200 response cannot be decoded or lacks
	// a required field.
	ErrMalformed = errors.New("malformed response")
)

// APIError represents a non-200 HTTP response from a node.
type APIError struct {
	StatusCode int
	Body       string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d from %s: %s", e.StatusCode, e.Endpoint, e.Body)
}

// IsBadResponse reports whether err came from a node that answered, but not
// with something usable.
func IsBadResponse(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) || errors.Is(err, ErrMalformed)
}

// Reason classifies err for metrics labels.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnreachable):
		return "unreachable"
	case IsBadResponse(err):
		return "bad_response"
	default:
		return "other"
	}
}
