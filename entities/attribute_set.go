package entities

import (
	"reflect"
	"strings"
)

// Lookup results for absent and incompatible attributes.
const (
	LookupAbsent       = -1
	LookupIncompatible = -2
)

// EntityType identifies a category of entities such as "user" or "rating".
// Entity types are interned and lower-cased, so they compare with ==.
type EntityType struct {
	name string
}

// EntityTypeFor returns the canonical entity type from the default interner.
func EntityTypeFor(name string) *EntityType {
	return defaultInterner.EntityType(name)
}

// Name returns the lower-cased type name.
func (t *EntityType) Name() string { return t.name }

func (t *EntityType) String() string { return t.name }

// AttributeSet is an interned, ordered list of typed names describing the
// attributes carried by a family of entities. When the id attribute is
// present it sits at index 0.
//
// Sets are small, so lookups scan linearly with identity comparisons.
type AttributeSet struct {
	names []*TypedName
}

// NewAttributeSet returns the canonical attribute set from the default
// interner.
func NewAttributeSet(names ...*TypedName) *AttributeSet {
	return defaultInterner.AttributeSet(names...)
}

func newAttributeSet(names []*TypedName) *AttributeSet {
	return &AttributeSet{names: names}
}

// Size returns the number of attributes.
func (s *AttributeSet) Size() int { return len(s.names) }

// Attribute returns the attribute at position i.
func (s *AttributeSet) Attribute(i int) *TypedName { return s.names[i] }

// Attributes returns a copy of the attributes in order.
func (s *AttributeSet) Attributes() []*TypedName {
	out := make([]*TypedName, len(s.names))
	copy(out, s.names)
	return out
}

// Names returns the attribute names in order.
func (s *AttributeSet) Names() []string {
	out := make([]string, len(s.names))
	for i, n := range s.names {
		out[i] = n.name
	}
	return out
}

// Contains reports whether n is in the set with exactly its type.
func (s *AttributeSet) Contains(n *TypedName) bool {
	return s.Lookup(n) >= 0
}

// LookupName returns the index of the attribute called name, or
// [LookupAbsent].
func (s *AttributeSet) LookupName(name string) int {
	for i, a := range s.names {
		if a.name == name {
			return i
		}
	}
	return LookupAbsent
}

// Lookup returns the index of n. It returns [LookupAbsent] when no
// attribute has n's name and [LookupIncompatible] when one does but with a
// different type. Callers that care about type safety must check the sign,
// not only whether the result is non-negative.
func (s *AttributeSet) Lookup(n *TypedName) int {
	return s.lookup(n, false)
}

// LookupCompatible is like Lookup but also accepts an attribute whose type
// is assignable to n's type.
func (s *AttributeSet) LookupCompatible(n *TypedName) int {
	return s.lookup(n, true)
}

func (s *AttributeSet) lookup(n *TypedName, matchSubtypes bool) int {
	for i, a := range s.names {
		if a == n {
			return i
		}
	}
	for i, a := range s.names {
		if a.name != n.name {
			continue
		}
		if a.typ == n.typ || (matchSubtypes && a.typ.AssignableTo(n.typ)) {
			return i
		}
		return LookupIncompatible
	}
	return LookupAbsent
}

func (s *AttributeSet) String() string {
	parts := make([]string, len(s.names))
	for i, n := range s.names {
		parts[i] = n.name + ":" + TypeName(n.typ)
	}
	return "AttributeSet[" + strings.Join(parts, ", ") + "]"
}

func isIDName(n *TypedName) bool {
	return n == AttrID || (n.name == AttrID.name && n.typ == AttrID.typ)
}

var int64Type = reflect.TypeFor[int64]()
