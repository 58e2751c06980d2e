package artifacts

import (
	"errors"
	"fmt"
)

var (
	// ErrCyclicArtifactDependency is returned when an artifact requires
	// itself, directly or through other artifacts.
	ErrCyclicArtifactDependency = errors.New("cyclic artifact dependency")
	// ErrUnknownArtifact is returned for names that were never registered.
	ErrUnknownArtifact = errors.New("unknown artifact")
	// ErrCacheClosed is returned by Resolve and Register after Close.
	ErrCacheClosed = errors.New("artifact cache is closed")
	// ErrDuplicateArtifact is returned when a name is registered twice.
	ErrDuplicateArtifact = errors.New("artifact already registered")
)

// ComputationError is the memoized failure of an artifact's compute function.
type ComputationError struct {
	Name string
	Err  error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("computing artifact '%s' failed: %v", e.Name, e.Err)
}

func (e *ComputationError) Unwrap() error { return e.Err }
