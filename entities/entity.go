package entities

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Entity is an immutable record identified by its type and id. Values are
// never nil; an absent attribute is simply not present.
type Entity interface {
	// Type returns the entity type.
	Type() *EntityType
	// ID returns the id, unique within the entity type.
	ID() int64

	// AttributeSet returns the schema, with the id at index 0.
	AttributeSet() *AttributeSet
	// Values returns the attribute values in AttributeSet order.
	Values() []Attribute

	// HasAttribute reports whether an attribute called name is present.
	HasAttribute(name string) bool
	// HasTypedAttribute reports whether n is present with a compatible type.
	HasTypedAttribute(n *TypedName) bool

	// Get returns the value of n, failing with [ErrNoSuchAttribute] when it
	// is absent or has an incompatible type.
	Get(n *TypedName) (any, error)
	// MaybeGet returns the value of the attribute called name, or nil.
	MaybeGet(name string) any
	// MaybeGetTyped returns the value of n, or nil when absent.
	MaybeGetTyped(n *TypedName) any

	// GetLong returns an integer attribute as int64.
	GetLong(n *TypedName) (int64, error)
	// GetDouble returns a numeric attribute as float64.
	GetDouble(n *TypedName) (float64, error)

	fmt.Stringer
}

// Attribute is a typed name with its value.
type Attribute struct {
	Name  *TypedName
	Value any
}

// GetAs fetches n from e and asserts it to T.
func GetAs[T any](e Entity, n *TypedName) (T, error) {
	var zero T
	v, err := e.Get(n)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s holds %T, not %s", ErrIllegalArgument, n.name, v, reflect.TypeFor[T]())
	}
	return out, nil
}

// GetInt returns an integer attribute as int. A value outside the range of
// int fails with [ErrIllegalArgument].
func GetInt(e Entity, n *TypedName) (int, error) {
	l, err := e.GetLong(n)
	if err != nil {
		return 0, err
	}
	if !fitsBits(l, strconv.IntSize) {
		return 0, fmt.Errorf("%w: %s value %d overflows int", ErrIllegalArgument, n.name, l)
	}
	return int(l), nil
}

// fitsBits reports whether l is representable as a signed integer of the
// given width.
func fitsBits(l int64, bits int) bool {
	if bits >= 64 {
		return true
	}
	limit := int64(1) << (bits - 1)
	return l >= -limit && l < limit
}

// GetBoolean returns a boolean attribute.
func GetBoolean(e Entity, n *TypedName) (bool, error) {
	return GetAs[bool](e, n)
}

// AttributeNames returns the names of e's attributes in order.
func AttributeNames(e Entity) []string {
	return e.AttributeSet().Names()
}

// Equal reports whether a and b have the same type, id and attribute values.
func Equal(a, b Entity) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Type() != b.Type() || a.ID() != b.ID() {
		return false
	}
	av, bv := a.Values(), b.Values()
	if len(av) != len(bv) {
		return false
	}
	for _, attr := range av {
		if !b.HasTypedAttribute(attr.Name) {
			return false
		}
		if !reflect.DeepEqual(attr.Value, b.MaybeGetTyped(attr.Name)) {
			return false
		}
	}
	return true
}

// Format renders an entity the way every Entity implementation's String
// does: type, then attributes in schema order.
func Format(e Entity) string {
	var b strings.Builder
	b.WriteString("Entity[type=")
	b.WriteString(e.Type().name)
	for _, a := range e.Values() {
		b.WriteString(", ")
		b.WriteString(a.Name.name)
		b.WriteByte('=')
		fmt.Fprint(&b, a.Value)
	}
	b.WriteByte(']')
	return b.String()
}

func asLong(name string, v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int8:
		return int64(x), nil
	}
	return 0, fmt.Errorf("%w: %s holds %T, not an integer", ErrIllegalArgument, name, v)
}

func asDouble(name string, v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	}
	if l, err := asLong(name, v); err == nil {
		return float64(l), nil
	}
	return math.NaN(), fmt.Errorf("%w: %s holds %T, not a number", ErrIllegalArgument, name, v)
}

// ---------------------------------------------------------------------------
// Bare entities
// ---------------------------------------------------------------------------

type bareEntity struct {
	typ *EntityType
	id  int64
}

// NewBareEntity creates an entity carrying only its id.
func NewBareEntity(typ *EntityType, id int64) Entity {
	return bareEntity{typ: typ, id: id}
}

var idOnly = NewAttributeSet(AttrID)

func (e bareEntity) Type() *EntityType           { return e.typ }
func (e bareEntity) ID() int64                   { return e.id }
func (e bareEntity) AttributeSet() *AttributeSet { return idOnly }
func (e bareEntity) Values() []Attribute         { return []Attribute{{Name: AttrID, Value: e.id}} }
func (e bareEntity) HasAttribute(name string) bool {
	return name == AttrID.name
}
func (e bareEntity) HasTypedAttribute(n *TypedName) bool { return isIDName(n) }

func (e bareEntity) Get(n *TypedName) (any, error) {
	if isIDName(n) {
		return e.id, nil
	}
	return nil, noSuchAttribute(n.name, idOnly.Lookup(n))
}

func (e bareEntity) MaybeGet(name string) any {
	if name == AttrID.name {
		return e.id
	}
	return nil
}

func (e bareEntity) MaybeGetTyped(n *TypedName) any {
	if isIDName(n) {
		return e.id
	}
	return nil
}

func (e bareEntity) GetLong(n *TypedName) (int64, error) {
	if isIDName(n) {
		return e.id, nil
	}
	return 0, noSuchAttribute(n.name, idOnly.Lookup(n))
}

func (e bareEntity) GetDouble(n *TypedName) (float64, error) {
	if isIDName(n) {
		return float64(e.id), nil
	}
	return math.NaN(), noSuchAttribute(n.name, idOnly.Lookup(n))
}

func (e bareEntity) String() string { return Format(e) }

// ---------------------------------------------------------------------------
// Basic entities
// ---------------------------------------------------------------------------

// basicEntity stores values in a slice parallel to its attribute set;
// values[i-1] belongs to attribute i, and the id is not stored.
type basicEntity struct {
	typ    *EntityType
	id     int64
	attrs  *AttributeSet
	values []any
}

func (e *basicEntity) Type() *EntityType           { return e.typ }
func (e *basicEntity) ID() int64                   { return e.id }
func (e *basicEntity) AttributeSet() *AttributeSet { return e.attrs }

func (e *basicEntity) Values() []Attribute {
	out := make([]Attribute, e.attrs.Size())
	out[0] = Attribute{Name: e.attrs.names[0], Value: e.id}
	for i, v := range e.values {
		out[i+1] = Attribute{Name: e.attrs.names[i+1], Value: v}
	}
	return out
}

func (e *basicEntity) HasAttribute(name string) bool {
	return e.attrs.LookupName(name) >= 0
}

func (e *basicEntity) HasTypedAttribute(n *TypedName) bool {
	return e.attrs.LookupCompatible(n) >= 0
}

func (e *basicEntity) at(i int) any {
	if i == 0 {
		return e.id
	}
	return e.values[i-1]
}

func (e *basicEntity) Get(n *TypedName) (any, error) {
	i := e.attrs.LookupCompatible(n)
	if i < 0 {
		return nil, noSuchAttribute(n.name, i)
	}
	return e.at(i), nil
}

func (e *basicEntity) MaybeGet(name string) any {
	i := e.attrs.LookupName(name)
	if i < 0 {
		return nil
	}
	return e.at(i)
}

func (e *basicEntity) MaybeGetTyped(n *TypedName) any {
	i := e.attrs.LookupCompatible(n)
	if i < 0 {
		return nil
	}
	return e.at(i)
}

func (e *basicEntity) GetLong(n *TypedName) (int64, error) {
	v, err := e.Get(n)
	if err != nil {
		return 0, err
	}
	return asLong(n.name, v)
}

func (e *basicEntity) GetDouble(n *TypedName) (float64, error) {
	v, err := e.Get(n)
	if err != nil {
		return math.NaN(), err
	}
	return asDouble(n.name, v)
}

func (e *basicEntity) String() string { return Format(e) }
