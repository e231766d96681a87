package store

import "errors"

var (
	// ErrBuilderConsumed is returned when a collection or index builder is
	// used after Build.
	ErrBuilderConsumed = errors.New("builder already built")

	// ErrWrongEntityType is returned when an entity's type differs from the
	// collection's type. It wraps entities.ErrIllegalArgument.
	ErrWrongEntityType = errors.New("wrong entity type")

	// ErrUnindexable is returned when an index is requested on an attribute
	// whose values cannot be map keys.
	ErrUnindexable = errors.New("attribute cannot be indexed")
)
