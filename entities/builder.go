package entities

import (
	"fmt"
	"slices"
	"sync"
)

// EntityBuilder stages the id and attributes of an entity. Builders are
// single-writer objects.
type EntityBuilder interface {
	// Type returns the type of entity being built.
	Type() *EntityType
	// SetID sets the entity id.
	SetID(id int64)
	// SetAttribute sets n to v. Setting the id attribute delegates to SetID.
	// A value whose type does not match n fails with [ErrIllegalArgument].
	SetAttribute(n *TypedName, v any) error
	// ClearAttribute removes n.
	ClearAttribute(n *TypedName) error
	// Build returns the entity. It fails with [ErrIllegalState] when no id
	// has been set.
	Build() (Entity, error)
	// Reset clears the builder for reuse.
	Reset()
}

// BasicEntityBuilder is a map-backed [EntityBuilder] that accepts any
// attribute.
type BasicEntityBuilder struct {
	interner *Interner
	typ      *EntityType
	id       int64
	idSet    bool
	order    []*TypedName
	values   map[*TypedName]any
}

// NewBasicEntityBuilder creates a builder for entities of typ.
func NewBasicEntityBuilder(typ *EntityType) *BasicEntityBuilder {
	return &BasicEntityBuilder{
		interner: defaultInterner,
		typ:      typ,
		values:   make(map[*TypedName]any),
	}
}

// WithInterner makes the builder intern attribute sets in in.
func (b *BasicEntityBuilder) WithInterner(in *Interner) *BasicEntityBuilder {
	b.interner = in
	return b
}

func (b *BasicEntityBuilder) Type() *EntityType { return b.typ }

func (b *BasicEntityBuilder) SetID(id int64) {
	b.id = id
	b.idSet = true
}

func (b *BasicEntityBuilder) SetAttribute(n *TypedName, v any) error {
	if isIDName(n) {
		id, err := asLong(n.name, v)
		if err != nil {
			return err
		}
		b.SetID(id)
		return nil
	}
	if !n.Accepts(v) {
		return fmt.Errorf("%w: value %v (%T) for %s", ErrIllegalArgument, v, v, n)
	}

	if _, ok := b.values[n]; !ok {
		b.removeNamed(n.name)
		b.order = append(b.order, n)
	}
	b.values[n] = v
	return nil
}

func (b *BasicEntityBuilder) ClearAttribute(n *TypedName) error {
	if isIDName(n) {
		b.idSet = false
		b.id = 0
		return nil
	}
	b.removeNamed(n.name)
	return nil
}

func (b *BasicEntityBuilder) removeNamed(name string) {
	i := slices.IndexFunc(b.order, func(a *TypedName) bool { return a.name == name })
	if i < 0 {
		return
	}
	delete(b.values, b.order[i])
	b.order = slices.Delete(b.order, i, i+1)
}

func (b *BasicEntityBuilder) Build() (Entity, error) {
	if !b.idSet {
		return nil, fmt.Errorf("%w: no id set for %s entity", ErrIllegalState, b.typ)
	}
	if len(b.order) == 0 {
		return NewBareEntity(b.typ, b.id), nil
	}

	names := make([]*TypedName, 0, len(b.order)+1)
	names = append(names, AttrID)
	names = append(names, b.order...)
	attrs := b.interner.AttributeSet(names...)

	values := make([]any, attrs.Size()-1)
	for i, n := range attrs.names[1:] {
		values[i] = b.values[n]
	}
	return &basicEntity{typ: b.typ, id: b.id, attrs: attrs, values: values}, nil
}

func (b *BasicEntityBuilder) Reset() {
	b.id = 0
	b.idSet = false
	b.order = nil
	b.values = make(map[*TypedName]any)
}

// ---------------------------------------------------------------------------
// Builder registry
// ---------------------------------------------------------------------------

// BasicBuilderName is the registered name of [BasicEntityBuilder].
const BasicBuilderName = "basic"

// BuilderFactory creates a builder for entities of the given type.
type BuilderFactory func(typ *EntityType) EntityBuilder

var builders sync.Map // string -> BuilderFactory

//nolint:gochecknoinits // the basic builder must always be resolvable
func init() {
	RegisterBuilder(BasicBuilderName, func(typ *EntityType) EntityBuilder {
		return NewBasicEntityBuilder(typ)
	})
}

// RegisterBuilder makes a builder factory available under name, replacing
// any previous registration.
func RegisterBuilder(name string, f BuilderFactory) {
	builders.Store(name, f)
}

// NewBuilder creates a builder for typ using the factory registered as name.
// An empty name selects the basic builder.
func NewBuilder(name string, typ *EntityType) (EntityBuilder, error) {
	if name == "" {
		name = BasicBuilderName
	}
	f, ok := builders.Load(name)
	if !ok {
		return nil, fmt.Errorf("%w: no entity builder named %q", ErrIllegalArgument, name)
	}
	return f.(BuilderFactory)(typ), nil
}
