package entities

import (
	"fmt"
	"math"
	"reflect"
)

// ---------------------------------------------------------------------------
// Bean entities
// ---------------------------------------------------------------------------

// BeanAttribute maps one attribute of bean type B to its getter.
type BeanAttribute[B any] struct {
	Name *TypedName
	Get  func(B) any

	// Optional unboxed fast paths.
	Long   func(B) int64
	Double func(B) float64
}

// Getter describes an attribute read through a typed getter.
func Getter[B, V any](n *TypedName, get func(B) V) BeanAttribute[B] {
	return BeanAttribute[B]{Name: n, Get: func(b B) any { return get(b) }}
}

// LongGetter describes an int64 attribute with an unboxed fast path.
func LongGetter[B any](n *TypedName, get func(B) int64) BeanAttribute[B] {
	return BeanAttribute[B]{
		Name:   n,
		Get:    func(b B) any { return get(b) },
		Long:   get,
		Double: func(b B) float64 { return float64(get(b)) },
	}
}

// DoubleGetter describes a float64 attribute with an unboxed fast path.
func DoubleGetter[B any](n *TypedName, get func(B) float64) BeanAttribute[B] {
	return BeanAttribute[B]{
		Name:   n,
		Get:    func(b B) any { return get(b) },
		Double: get,
	}
}

// BeanSchema is the attribute table of a bean entity type. It is built once,
// usually into a package-level variable next to the type.
type BeanSchema[B any] struct {
	attrs   *AttributeSet
	getters []BeanAttribute[B] // getters[i-1] serves attrs position i
}

// NewBeanSchema builds the attribute table for B. The id attribute is
// implicit and must not be listed.
func NewBeanSchema[B any](attrs ...BeanAttribute[B]) (*BeanSchema[B], error) {
	names := make([]*TypedName, 0, len(attrs)+1)
	names = append(names, AttrID)
	byName := make(map[*TypedName]BeanAttribute[B], len(attrs))
	for _, a := range attrs {
		if a.Name == nil || a.Get == nil {
			return nil, fmt.Errorf("%w: bean attribute without name or getter", ErrIllegalArgument)
		}
		if isIDName(a.Name) {
			return nil, fmt.Errorf("%w: id attribute is implicit", ErrIllegalArgument)
		}
		if _, dup := byName[a.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate bean attribute %s", ErrIllegalArgument, a.Name)
		}
		byName[a.Name] = a
		names = append(names, a.Name)
	}

	set := NewAttributeSet(names...)
	getters := make([]BeanAttribute[B], set.Size()-1)
	for i, n := range set.names[1:] {
		getters[i] = byName[n]
	}
	return &BeanSchema[B]{attrs: set, getters: getters}, nil
}

// MustBeanSchema is like NewBeanSchema but panics on error.
func MustBeanSchema[B any](attrs ...BeanAttribute[B]) *BeanSchema[B] {
	s, err := NewBeanSchema(attrs...)
	if err != nil {
		panic(err)
	}
	return s
}

// AttributeSet returns the schema's attributes.
func (s *BeanSchema[B]) AttributeSet() *AttributeSet { return s.attrs }

// Bind returns the embedded entity state for a bean value. self must be the
// value embedding the result.
func (s *BeanSchema[B]) Bind(typ *EntityType, id int64, self B) BeanEntity[B] {
	return BeanEntity[B]{schema: s, typ: typ, id: id, self: self}
}

// BeanEntity implements [Entity] for a struct that embeds it, reading
// attributes through the struct's [BeanSchema].
//
//	type Rating struct {
//	    entities.BeanEntity[*Rating]
//	    user int64
//	}
type BeanEntity[B any] struct {
	schema *BeanSchema[B]
	typ    *EntityType
	id     int64
	self   B
}

func (e *BeanEntity[B]) Type() *EntityType           { return e.typ }
func (e *BeanEntity[B]) ID() int64                   { return e.id }
func (e *BeanEntity[B]) AttributeSet() *AttributeSet { return e.schema.attrs }

func (e *BeanEntity[B]) Values() []Attribute {
	out := make([]Attribute, e.schema.attrs.Size())
	out[0] = Attribute{Name: e.schema.attrs.names[0], Value: e.id}
	for i, g := range e.schema.getters {
		out[i+1] = Attribute{Name: g.Name, Value: g.Get(e.self)}
	}
	return out
}

func (e *BeanEntity[B]) HasAttribute(name string) bool {
	return e.schema.attrs.LookupName(name) >= 0
}

func (e *BeanEntity[B]) HasTypedAttribute(n *TypedName) bool {
	return e.schema.attrs.LookupCompatible(n) >= 0
}

func (e *BeanEntity[B]) at(i int) any {
	if i == 0 {
		return e.id
	}
	return e.schema.getters[i-1].Get(e.self)
}

func (e *BeanEntity[B]) Get(n *TypedName) (any, error) {
	i := e.schema.attrs.LookupCompatible(n)
	if i < 0 {
		return nil, noSuchAttribute(n.name, i)
	}
	return e.at(i), nil
}

func (e *BeanEntity[B]) MaybeGet(name string) any {
	i := e.schema.attrs.LookupName(name)
	if i < 0 {
		return nil
	}
	return e.at(i)
}

func (e *BeanEntity[B]) MaybeGetTyped(n *TypedName) any {
	i := e.schema.attrs.LookupCompatible(n)
	if i < 0 {
		return nil
	}
	return e.at(i)
}

func (e *BeanEntity[B]) GetLong(n *TypedName) (int64, error) {
	i := e.schema.attrs.LookupCompatible(n)
	switch {
	case i < 0:
		return 0, noSuchAttribute(n.name, i)
	case i == 0:
		return e.id, nil
	}
	if g := e.schema.getters[i-1]; g.Long != nil {
		return g.Long(e.self), nil
	}
	return asLong(n.name, e.at(i))
}

func (e *BeanEntity[B]) GetDouble(n *TypedName) (float64, error) {
	i := e.schema.attrs.LookupCompatible(n)
	switch {
	case i < 0:
		return math.NaN(), noSuchAttribute(n.name, i)
	case i == 0:
		return float64(e.id), nil
	}
	if g := e.schema.getters[i-1]; g.Double != nil {
		return g.Double(e.self), nil
	}
	return asDouble(n.name, e.at(i))
}

func (e *BeanEntity[B]) String() string { return Format(e) }

// ---------------------------------------------------------------------------
// Bean builders
// ---------------------------------------------------------------------------

// BeanSetter maps one attribute of builder type B to its setter and
// optional clearer.
type BeanSetter[B any] struct {
	Name  *TypedName
	Set   func(B, any) error
	Clear func(B)

	valueType reflect.Type
}

// Setter describes an attribute written through a typed setter. clear may
// be nil when the attribute cannot be cleared.
func Setter[B, V any](n *TypedName, set func(B, V) error, clear func(B)) BeanSetter[B] {
	s := BeanSetter[B]{Name: n, Clear: clear, valueType: reflect.TypeFor[V]()}
	if set != nil {
		s.Set = func(b B, v any) error {
			tv, ok := v.(V)
			if !ok {
				return fmt.Errorf("%w: value %v (%T) for %s", ErrIllegalArgument, v, v, n)
			}
			return set(b, tv)
		}
	}
	return s
}

// ExtraAttributeSetter is implemented by bean builders that accept
// attributes outside their setter table.
type ExtraAttributeSetter interface {
	SetExtraAttribute(n *TypedName, v any) error
	ClearExtraAttribute(n *TypedName) error
}

// BeanBuilderSchema is the setter table of a bean builder type.
type BeanBuilderSchema[B any] struct {
	setters map[string]BeanSetter[B]
}

// NewBeanBuilderSchema builds the setter table for B. A clearer without a
// setter is rejected.
func NewBeanBuilderSchema[B any](setters ...BeanSetter[B]) (*BeanBuilderSchema[B], error) {
	table := make(map[string]BeanSetter[B], len(setters))
	for _, s := range setters {
		if s.Name == nil {
			return nil, fmt.Errorf("%w: bean setter without name", ErrIllegalArgument)
		}
		if s.Set == nil {
			if s.Clear != nil {
				return nil, fmt.Errorf("%w: clearer for %s without setter", ErrIllegalArgument, s.Name)
			}
			return nil, fmt.Errorf("%w: no setter for %s", ErrIllegalArgument, s.Name)
		}
		if s.valueType != nil && !s.valueType.AssignableTo(s.Name.typ) {
			return nil, fmt.Errorf("%w: setter for %s takes %s", ErrIllegalArgument, s.Name, s.valueType)
		}
		if _, dup := table[s.Name.name]; dup {
			return nil, fmt.Errorf("%w: duplicate setter for %s", ErrIllegalArgument, s.Name.name)
		}
		table[s.Name.name] = s
	}
	return &BeanBuilderSchema[B]{setters: table}, nil
}

// MustBeanBuilderSchema is like NewBeanBuilderSchema but panics on error.
func MustBeanBuilderSchema[B any](setters ...BeanSetter[B]) *BeanBuilderSchema[B] {
	s, err := NewBeanBuilderSchema(setters...)
	if err != nil {
		panic(err)
	}
	return s
}

// Bind returns the embedded builder state for a bean builder value.
func (s *BeanBuilderSchema[B]) Bind(typ *EntityType, self B) BeanEntityBuilder[B] {
	return BeanEntityBuilder[B]{schema: s, typ: typ, self: self}
}

// BeanEntityBuilder implements the attribute-routing half of
// [EntityBuilder] for a builder struct that embeds it. The embedding type
// supplies Build and Reset.
type BeanEntityBuilder[B any] struct {
	schema *BeanBuilderSchema[B]
	typ    *EntityType
	id     int64
	idSet  bool
	self   B
}

func (b *BeanEntityBuilder[B]) Type() *EntityType { return b.typ }

func (b *BeanEntityBuilder[B]) SetID(id int64) {
	b.id = id
	b.idSet = true
}

// HasID reports whether an id has been set.
func (b *BeanEntityBuilder[B]) HasID() bool { return b.idSet }

// RequireID returns the id, or [ErrIllegalState] if none was set.
func (b *BeanEntityBuilder[B]) RequireID() (int64, error) {
	if !b.idSet {
		return 0, fmt.Errorf("%w: no id set for %s entity", ErrIllegalState, b.typ)
	}
	return b.id, nil
}

// ResetID clears the id.
func (b *BeanEntityBuilder[B]) ResetID() {
	b.id = 0
	b.idSet = false
}

func (b *BeanEntityBuilder[B]) SetAttribute(n *TypedName, v any) error {
	if isIDName(n) {
		id, err := asLong(n.name, v)
		if err != nil {
			return err
		}
		b.SetID(id)
		return nil
	}
	if s, ok := b.schema.setters[n.name]; ok {
		return s.Set(b.self, v)
	}
	if x, ok := any(b.self).(ExtraAttributeSetter); ok {
		return x.SetExtraAttribute(n, v)
	}
	return noSuchAttribute(n.name, LookupAbsent)
}

func (b *BeanEntityBuilder[B]) ClearAttribute(n *TypedName) error {
	if isIDName(n) {
		b.ResetID()
		return nil
	}
	if s, ok := b.schema.setters[n.name]; ok {
		if s.Clear == nil {
			return fmt.Errorf("%w: %s cannot be cleared", ErrIllegalArgument, n)
		}
		s.Clear(b.self)
		return nil
	}
	if x, ok := any(b.self).(ExtraAttributeSetter); ok {
		return x.ClearExtraAttribute(n)
	}
	return noSuchAttribute(n.name, LookupAbsent)
}
