package store

import (
	"fmt"
	"io"
	"reflect"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"github.com/ARTM2000/lenskit/entities"
	"github.com/ARTM2000/lenskit/internal/logging"
	"github.com/ARTM2000/lenskit/internal/metrics"
)

// EntityCollection is an immutable set of entities of one type, keyed by id
// and optionally indexed by attribute. It is safe for concurrent reads.
type EntityCollection struct {
	typ     *entities.EntityType
	byID    map[int64]entities.Entity
	ids     []int64
	indexes map[string]EntityIndex
	hash    string
}

// Type returns the entity type of the collection.
func (c *EntityCollection) Type() *entities.EntityType { return c.typ }

// Size returns the number of entities.
func (c *EntityCollection) Size() int { return len(c.ids) }

// IDs returns the entity ids in ascending order.
func (c *EntityCollection) IDs() []int64 { return slices.Clone(c.ids) }

// Entities returns the entities in id order.
func (c *EntityCollection) Entities() []entities.Entity {
	out := make([]entities.Entity, len(c.ids))
	for i, id := range c.ids {
		out[i] = c.byID[id]
	}
	return out
}

// Lookup returns the entity with the given id, or nil.
func (c *EntityCollection) Lookup(id int64) entities.Entity {
	return c.byID[id]
}

// HasIndex reports whether an index exists for the attribute called name.
func (c *EntityCollection) HasIndex(name string) bool {
	_, ok := c.indexes[name]
	return ok
}

// ContentHash returns a hex fingerprint of every entity added while the
// collection was built. It detects changes; it is not cryptographic.
func (c *EntityCollection) ContentHash() string { return c.hash }

// Find returns the entities, in id order, whose attribute n equals v. An
// index on n's name is used when present; otherwise every entity is
// scanned. Numeric values are converted to n's type when the conversion is
// exact, so Find(AttrUser, 42) matches int64(42). When n has an interface
// type, v is converted to each stored value's type instead.
func (c *EntityCollection) Find(n *entities.TypedName, v any) []entities.Entity {
	if x, ok := c.indexes[n.Name()]; ok {
		return slices.Clone(x.Entities(coerce(x.Attribute().Type(), v)))
	}

	dynamic := n.Type().Kind() == reflect.Interface
	if !dynamic {
		v = coerce(n.Type(), v)
	}
	var out []entities.Entity
	for _, id := range c.ids {
		e := c.byID[id]
		av := e.MaybeGetTyped(n)
		if av == nil {
			continue
		}
		want := v
		if dynamic {
			want = coerce(reflect.TypeOf(av), v)
		}
		if equalValues(av, want) {
			out = append(out, e)
		}
	}
	return out
}

// FindByName is like Find for an attribute known only by name.
func (c *EntityCollection) FindByName(name string, v any) []entities.Entity {
	if x, ok := c.indexes[name]; ok {
		return slices.Clone(x.Entities(coerce(x.Attribute().Type(), v)))
	}

	var out []entities.Entity
	for _, id := range c.ids {
		e := c.byID[id]
		if av := e.MaybeGet(name); av != nil && equalValues(av, coerce(reflect.TypeOf(av), v)) {
			out = append(out, e)
		}
	}
	return out
}

// coerce converts numeric v to typ when the conversion round-trips exactly.
func coerce(typ reflect.Type, v any) any {
	if v == nil || typ == nil {
		return v
	}
	rv := reflect.ValueOf(v)
	if rv.Type() == typ || !isNumeric(rv.Kind()) || !isNumeric(typ.Kind()) {
		return v
	}
	cv := rv.Convert(typ)
	if cv.Convert(rv.Type()).Interface() != v {
		return v
	}
	return cv.Interface()
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func equalValues(a, b any) bool {
	if reflect.TypeOf(a).Comparable() && reflect.TypeOf(b) != nil && reflect.TypeOf(b).Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// ---------------------------------------------------------------------------
// Builder
// ---------------------------------------------------------------------------

// CollectionBuilder accumulates entities for an [EntityCollection]. It is a
// single-use, single-writer builder: after Build every method fails with
// [ErrBuilderConsumed].
type CollectionBuilder struct {
	typ     *entities.EntityType
	store   map[int64]entities.Entity
	indexes map[string]EntityIndexBuilder
	hash    *xxhash.Digest
	log     zerolog.Logger
}

// NewCollectionBuilder creates a builder for entities of typ.
func NewCollectionBuilder(typ *entities.EntityType) *CollectionBuilder {
	return &CollectionBuilder{
		typ:     typ,
		store:   make(map[int64]entities.Entity),
		indexes: make(map[string]EntityIndexBuilder),
		hash:    xxhash.New(),
		log:     logging.Component("store.collection").With().Str("entity_type", typ.Name()).Logger(),
	}
}

// Type returns the entity type of the collection being built.
func (b *CollectionBuilder) Type() *entities.EntityType { return b.typ }

// AddIndex registers an index on attr. Entities added so far are indexed
// immediately; later additions are indexed as they arrive. Adding an index
// for an already indexed name is a no-op.
func (b *CollectionBuilder) AddIndex(attr *entities.TypedName) error {
	if b.store == nil {
		return ErrBuilderConsumed
	}
	if _, ok := b.indexes[attr.Name()]; ok {
		return nil
	}

	ib, err := NewIndexBuilder(attr)
	if err != nil {
		return err
	}
	for _, id := range b.sortedIDs() {
		ib.Add(b.store[id])
	}
	b.indexes[attr.Name()] = ib

	b.log.Debug().
		Str("attribute", attr.Name()).
		Int("backfilled", len(b.store)).
		Msg("added index")
	return nil
}

// AddIndexByName registers an index on the attribute called name, with
// values of any comparable type.
func (b *CollectionBuilder) AddIndexByName(name string) error {
	return b.AddIndex(entities.TypedNameOf[any](name))
}

// Add adds e, replacing any entity with the same id.
func (b *CollectionBuilder) Add(e entities.Entity) error {
	return b.AddEntity(e, true)
}

// AddEntity adds e. If an entity with the same id is present and replace is
// false, e is silently dropped.
func (b *CollectionBuilder) AddEntity(e entities.Entity, replace bool) error {
	if b.store == nil {
		return ErrBuilderConsumed
	}
	if e.Type() != b.typ {
		return fmt.Errorf("%w: %w: %s entity in %s collection", entities.ErrIllegalArgument, ErrWrongEntityType, e.Type(), b.typ)
	}

	old, exists := b.store[e.ID()]
	if exists {
		if !replace {
			b.log.Trace().Int64("id", e.ID()).Msg("dropping duplicate entity")
			return nil
		}
		for _, ib := range b.indexes {
			ib.Remove(old)
		}
	}

	b.store[e.ID()] = e
	for _, ib := range b.indexes {
		ib.Add(e)
	}
	_, _ = b.hash.WriteString(e.String())
	return nil
}

// AddAll adds every entity with replacement.
func (b *CollectionBuilder) AddAll(es []entities.Entity) error {
	for _, e := range es {
		if err := b.Add(e); err != nil {
			return err
		}
	}
	return nil
}

// Size returns the number of entities added so far.
func (b *CollectionBuilder) Size() int { return len(b.store) }

// Entities returns the entities added so far, in id order.
func (b *CollectionBuilder) Entities() []entities.Entity {
	ids := b.sortedIDs()
	out := make([]entities.Entity, len(ids))
	for i, id := range ids {
		out[i] = b.store[id]
	}
	return out
}

func (b *CollectionBuilder) sortedIDs() []int64 {
	ids := make([]int64, 0, len(b.store))
	for id := range b.store {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Build returns the collection and releases the builder's state.
func (b *CollectionBuilder) Build() (*EntityCollection, error) {
	if b.store == nil {
		return nil, ErrBuilderConsumed
	}

	c := &EntityCollection{
		typ:     b.typ,
		byID:    b.store,
		ids:     b.sortedIDs(),
		indexes: make(map[string]EntityIndex, len(b.indexes)),
		hash:    fmt.Sprintf("%016x", b.hash.Sum64()),
	}
	for name, ib := range b.indexes {
		c.indexes[name] = ib.Build()
	}

	b.store = nil
	b.indexes = nil
	b.hash = nil

	metrics.RecordCollection(c.typ.Name(), len(c.ids))
	b.log.Debug().
		Int("entities", len(c.ids)).
		Int("indexes", len(c.indexes)).
		Str("hash", c.hash).
		Msg("built entity collection")
	return c, nil
}

// ---------------------------------------------------------------------------
// Loading and derivation
// ---------------------------------------------------------------------------

// LoadJSON reads JSON-lines entities with f into a new collection indexed
// on the given attributes.
func LoadJSON(r io.Reader, f *entities.JSONFormat, indexes ...*entities.TypedName) (*EntityCollection, error) {
	b := NewCollectionBuilder(f.Type)
	for _, attr := range indexes {
		if err := b.AddIndex(attr); err != nil {
			return nil, err
		}
	}
	es, err := f.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if err := b.AddAll(es); err != nil {
		return nil, err
	}
	return b.Build()
}

// Derive applies d: for each source collection of one of d's source types,
// every value of d's attribute becomes a bare entity in into, unless into
// already holds an entity with that id.
func Derive(d *entities.EntityDerivation, into *CollectionBuilder, sources ...*EntityCollection) error {
	if d.Type() != into.Type() {
		return fmt.Errorf("%w: %w: deriving %s into %s collection", entities.ErrIllegalArgument, ErrWrongEntityType, d.Type(), into.Type())
	}
	for _, src := range sources {
		if !d.HasSource(src.Type()) {
			continue
		}
		for _, e := range src.Entities() {
			id, err := e.GetLong(d.Attribute())
			if err != nil {
				continue
			}
			if err := into.AddEntity(entities.NewBareEntity(d.Type(), id), false); err != nil {
				return err
			}
		}
	}
	return nil
}
