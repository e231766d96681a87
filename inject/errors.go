package inject

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnresolvable is returned when no binding or default satisfies a
	// desire.
	ErrUnresolvable = errors.New("unresolvable dependency")

	// ErrDepthLimitExceeded is returned when resolution recurses deeper than
	// the solver's maximum depth, usually because of a dependency cycle.
	ErrDepthLimitExceeded = errors.New("resolution depth limit exceeded")

	// ErrPlaceholder is returned when a graph still holds a placeholder
	// satisfaction for a type that is not a data access object.
	ErrPlaceholder = errors.New("placeholder not removed")

	// ErrNoSuchComponent is returned by injector lookups when no node in the
	// graph satisfies the requested type and qualifier.
	ErrNoSuchComponent = errors.New("no component satisfies request")

	// ErrInvalidComponent is returned when a constructor, provider or struct
	// type cannot be used as a component.
	ErrInvalidComponent = errors.New("invalid component")

	// ErrAlreadyClosed is returned when a lifecycle manager or injector is
	// used after Close.
	ErrAlreadyClosed = errors.New("already closed")
)

// ResolutionError reports a failure to resolve a desire. Path holds the
// desires from the root down to the failing one.
type ResolutionError struct {
	Path []Desire
	Err  error
}

func (e *ResolutionError) Error() string {
	chain := make([]string, len(e.Path))
	for i, d := range e.Path {
		chain[i] = d.String()
	}
	return fmt.Sprintf("%s: %s", e.Err, strings.Join(chain, " -> "))
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// ConfigurationError reports a graph that cannot be used as configured.
type ConfigurationError struct {
	Satisfaction Satisfaction
	Err          error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err, e.Satisfaction)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// InstantiationError wraps a failure to construct a graph node with the
// node's label.
type InstantiationError struct {
	Node string
	Err  error
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("instantiating %s: %s", e.Node, e.Err)
}

func (e *InstantiationError) Unwrap() error { return e.Err }
