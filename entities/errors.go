package entities

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSuchAttribute is returned when an entity or builder does not know
	// the requested attribute.
	ErrNoSuchAttribute = errors.New("no such attribute")

	// ErrIllegalArgument is returned when a value does not match the
	// declared type of its attribute, or an entity has the wrong type.
	ErrIllegalArgument = errors.New("illegal argument")

	// ErrIllegalState is returned when a builder is asked to build before it
	// has enough data, most often because no id was set.
	ErrIllegalState = errors.New("illegal state")

	// ErrUnknownType is returned when a type name cannot be resolved.
	ErrUnknownType = errors.New("unknown type name")
)

// NoSuchAttributeError reports a lookup of an attribute that is absent, or
// present with a type incompatible with the requested one.
type NoSuchAttributeError struct {
	Name         string
	Incompatible bool
}

func (e *NoSuchAttributeError) Error() string {
	if e.Incompatible {
		return fmt.Sprintf("%v: %s (incompatible type)", ErrNoSuchAttribute, e.Name)
	}
	return fmt.Sprintf("%v: %s", ErrNoSuchAttribute, e.Name)
}

func (e *NoSuchAttributeError) Unwrap() error { return ErrNoSuchAttribute }

func noSuchAttribute(name string, code int) error {
	return &NoSuchAttributeError{Name: name, Incompatible: code == LookupIncompatible}
}
