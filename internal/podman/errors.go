package podman

import "fmt"

// DomainError is a failure reported by the runtime itself: a missing
// container, an image that cannot be pulled, a container in the wrong state.
// It is part of a tool's normal output, not a protocol failure.
type DomainError struct {
	Op     string
	Status int
	Reason string
}

func (e *DomainError) Error() string {
	return e.Reason
}

// TransportError means the runtime could not be reached or answered with
// something that is not a valid API response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
