package inject

import (
	"fmt"
	"strings"
)

// CachePolicy controls how many instances a graph node produces.
type CachePolicy int

const (
	// NoPreference defers to the satisfaction's default policy.
	NoPreference CachePolicy = iota

	// Memoize constructs the node once per instantiator and reuses the
	// instance for every dependent.
	Memoize

	// NewInstance constructs a fresh instance for every dependent. Nodes with
	// this policy are never shared.
	NewInstance
)

// String returns the human-readable name of the policy.
func (p CachePolicy) String() string {
	switch p {
	case NoPreference:
		return "no-preference"
	case Memoize:
		return "memoize"
	case NewInstance:
		return "new-instance"
	default:
		return "unknown"
	}
}

// ParseCachePolicy parses the output of [CachePolicy.String]. Underscores
// and case are ignored.
func ParseCachePolicy(s string) (CachePolicy, error) {
	switch strings.ReplaceAll(strings.ToLower(s), "_", "-") {
	case "", "no-preference":
		return NoPreference, nil
	case "memoize":
		return Memoize, nil
	case "new-instance":
		return NewInstance, nil
	}
	return NoPreference, fmt.Errorf("unknown cache policy %q", s)
}
