package providers

import (
	"context"
	"errors"
	"strings"
)

// Transient errors are worth retrying (rate limits, 5xx, timeouts).
var ErrTransient = errors.New("provider: transient error")

// BadRequest errors come from something about the request itself and will
// never succeed on retry (invalid argument, auth failure, oversized input).
var ErrBadRequest = errors.New("provider: bad request")

// UpstreamMalformed is returned when the provider responded 2xx but the body
// could not be parsed into the shape the adapter expects.
var ErrUpstreamMalformed = errors.New("provider: malformed upstream response")

// Classify maps a raw provider error into one of the three adapter error
// classes. Providers here are invoked through SDKs rather than raw HTTP, so
// classification leans on the error text and well-known sentinel values
// rather than a status-code switch.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return wrap(ErrTransient, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "429", "rate limit", "resource exhausted", "unavailable", "503", "502", "500", "internal error"):
		return wrap(ErrTransient, err)
	case containsAny(msg, "400", "invalid argument", "401", "unauthenticated", "403", "permission denied", "invalid api key"):
		return wrap(ErrBadRequest, err)
	case containsAny(msg, "unmarshal", "unexpected end of json", "no candidates", "empty response", "malformed"):
		return wrap(ErrUpstreamMalformed, err)
	default:
		return wrap(ErrTransient, err)
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func wrap(class, cause error) error {
	return &classified{class: class, cause: cause}
}

type classified struct {
	class error
	cause error
}

func (c *classified) Error() string { return c.class.Error() + ": " + c.cause.Error() }
func (c *classified) Unwrap() []error { return []error{c.class, c.cause} }
