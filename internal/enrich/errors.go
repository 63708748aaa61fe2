package enrich

import "fmt"

// MalformedOutputError means the model answered but the answer could not be
// read as a valid result. Asking again is not expected to help.
type MalformedOutputError struct {
	Raw string
	Err error
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("malformed model output: %v", e.Err)
}

func (e *MalformedOutputError) Unwrap() error { return e.Err }

// ServiceUnavailableError means the text-generation service could not be
// reached or refused the request. Retryable marks throttling, 5xx and network
// failures.
type ServiceUnavailableError struct {
	Err       error
	Retryable bool
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("generation service unavailable: %v", e.Err)
}

func (e *ServiceUnavailableError) Unwrap() error { return e.Err }
