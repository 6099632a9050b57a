package genai

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrRateLimited  = errors.New("rate limited")
	ErrServer       = errors.New("server error")
	ErrClient       = errors.New("client error")
	ErrTransport    = errors.New("transport error")
	ErrTimeout      = errors.New("attempt timed out")
	ErrMalformed    = errors.New("malformed response")
	ErrNoCandidates = errors.New("response has no candidates")
	ErrExhausted    = errors.New("generation failed after retries")
)

// StatusError is a non-200 reply from the service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

// Unwrap maps the status code to a sentinel kind.
func (e *StatusError) Unwrap() error {
	switch {
	case e.Code == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.Code >= http.StatusInternalServerError:
		return ErrServer
	default:
		return ErrClient
	}
}

func retryable(err error) bool {
	for _, kind := range []error{ErrRateLimited, ErrServer, ErrTransport, ErrTimeout, ErrMalformed, ErrNoCandidates} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// outcome is the metrics label for err.
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrServer):
		return "server_error"
	case errors.Is(err, ErrClient):
		return "client_error"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrTransport):
		return "transport_error"
	case errors.Is(err, ErrNoCandidates):
		return "empty"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	default:
		return "cancelled"
	}
}
