package booking

import "fmt"

// InvalidRequestError reports a booking request that failed validation. It is
// raised before any call is placed and is always recoverable by correcting
// the request.
type InvalidRequestError struct {
	Field  string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid booking request: %s: %s", e.Field, e.Reason)
}

// DialError reports a destination the provider cannot dial at all. Ordinary
// call outcomes such as no-answer and busy are result statuses, not errors.
type DialError struct {
	Destination string
	Reason      string
}

func (e *DialError) Error() string {
	return fmt.Sprintf("cannot dial %s: %s", e.Destination, e.Reason)
}
