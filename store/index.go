package store

import (
	"fmt"
	"reflect"
	"slices"
	"sort"

	"github.com/ARTM2000/lenskit/entities"
)

// EntityIndex maps attribute values to the entities carrying them. Indexes
// are immutable.
type EntityIndex interface {
	// Attribute returns the indexed attribute.
	Attribute() *entities.TypedName
	// Entities returns the entities whose attribute equals v, in id order.
	Entities(v any) []entities.Entity
	// Values returns the distinct indexed values.
	Values() []any
}

// EntityIndexBuilder accumulates an index. Build is destructive: the
// builder cannot be used afterwards.
type EntityIndexBuilder interface {
	// Add indexes e if it carries the attribute.
	Add(e entities.Entity)
	// Remove drops e from the index.
	Remove(e entities.Entity)
	// Build returns the finished index.
	Build() EntityIndex
}

// NewIndexBuilder creates the index builder suited to attr: a compact
// sorted-array index for int64 attributes and a hash index otherwise.
func NewIndexBuilder(attr *entities.TypedName) (EntityIndexBuilder, error) {
	if attr.Type() == reflect.TypeFor[int64]() {
		return &longIndexBuilder{attr: attr, lists: make(map[int64][]entities.Entity)}, nil
	}
	if !attr.Type().Comparable() {
		return nil, fmt.Errorf("%w: %s", ErrUnindexable, attr)
	}
	return &genericIndexBuilder{attr: attr, lists: make(map[any][]entities.Entity)}, nil
}

func sortByID(es []entities.Entity) {
	slices.SortFunc(es, func(a, b entities.Entity) int {
		switch {
		case a.ID() < b.ID():
			return -1
		case a.ID() > b.ID():
			return 1
		}
		return 0
	})
}

func removeEntity(es []entities.Entity, e entities.Entity) []entities.Entity {
	return slices.DeleteFunc(es, func(x entities.Entity) bool { return x.ID() == e.ID() })
}

// ---------------------------------------------------------------------------
// Long index
// ---------------------------------------------------------------------------

type longIndexBuilder struct {
	attr  *entities.TypedName
	lists map[int64][]entities.Entity
}

func (b *longIndexBuilder) Add(e entities.Entity) {
	if b.lists == nil {
		panic("store: index builder used after Build")
	}
	v, err := e.GetLong(b.attr)
	if err != nil {
		return
	}
	b.lists[v] = append(b.lists[v], e)
}

func (b *longIndexBuilder) Remove(e entities.Entity) {
	if b.lists == nil {
		panic("store: index builder used after Build")
	}
	v, err := e.GetLong(b.attr)
	if err != nil {
		return
	}
	if rest := removeEntity(b.lists[v], e); len(rest) > 0 {
		b.lists[v] = rest
	} else {
		delete(b.lists, v)
	}
}

func (b *longIndexBuilder) Build() EntityIndex {
	if b.lists == nil {
		panic("store: index builder used after Build")
	}
	keys := make([]int64, 0, len(b.lists))
	for k := range b.lists {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	values := make([][]entities.Entity, len(keys))
	for i, k := range keys {
		es := slices.Clip(b.lists[k])
		sortByID(es)
		values[i] = es
	}

	b.lists = nil
	return &longIndex{attr: b.attr, keys: keys, values: values}
}

// longIndex keeps sorted keys parallel to their entity lists.
type longIndex struct {
	attr   *entities.TypedName
	keys   []int64
	values [][]entities.Entity
}

func (x *longIndex) Attribute() *entities.TypedName { return x.attr }

func (x *longIndex) Entities(v any) []entities.Entity {
	k, ok := v.(int64)
	if !ok {
		return nil
	}
	i := sort.Search(len(x.keys), func(i int) bool { return x.keys[i] >= k })
	if i < len(x.keys) && x.keys[i] == k {
		return x.values[i]
	}
	return nil
}

func (x *longIndex) Values() []any {
	out := make([]any, len(x.keys))
	for i, k := range x.keys {
		out[i] = k
	}
	return out
}

// ---------------------------------------------------------------------------
// Generic index
// ---------------------------------------------------------------------------

type genericIndexBuilder struct {
	attr  *entities.TypedName
	lists map[any][]entities.Entity
}

func (b *genericIndexBuilder) Add(e entities.Entity) {
	if b.lists == nil {
		panic("store: index builder used after Build")
	}
	v := e.MaybeGetTyped(b.attr)
	if v == nil || !reflect.TypeOf(v).Comparable() {
		return
	}
	b.lists[v] = append(b.lists[v], e)
}

func (b *genericIndexBuilder) Remove(e entities.Entity) {
	if b.lists == nil {
		panic("store: index builder used after Build")
	}
	v := e.MaybeGetTyped(b.attr)
	if v == nil || !reflect.TypeOf(v).Comparable() {
		return
	}
	if rest := removeEntity(b.lists[v], e); len(rest) > 0 {
		b.lists[v] = rest
	} else {
		delete(b.lists, v)
	}
}

func (b *genericIndexBuilder) Build() EntityIndex {
	if b.lists == nil {
		panic("store: index builder used after Build")
	}
	var types []reflect.Type
	for k, es := range b.lists {
		es = slices.Clip(es)
		sortByID(es)
		b.lists[k] = es
		if t := reflect.TypeOf(k); !slices.Contains(types, t) {
			types = append(types, t)
		}
	}
	x := &genericIndex{attr: b.attr, lists: b.lists, types: types}
	b.lists = nil
	return x
}

// genericIndex hashes values. When the attribute is declared with an
// interface type, the concrete key types are kept so that numeric queries
// can be converted to each of them.
type genericIndex struct {
	attr  *entities.TypedName
	lists map[any][]entities.Entity
	types []reflect.Type
}

func (x *genericIndex) Attribute() *entities.TypedName { return x.attr }

func (x *genericIndex) Entities(v any) []entities.Entity {
	if v == nil || !reflect.TypeOf(v).Comparable() {
		return nil
	}
	if x.attr.Type().Kind() != reflect.Interface {
		return x.lists[v]
	}

	var out []entities.Entity
	merged := false
	for _, t := range x.types {
		cv := coerce(t, v)
		if reflect.TypeOf(cv) != t {
			continue
		}
		es := x.lists[cv]
		if len(es) == 0 {
			continue
		}
		if out != nil {
			merged = true
		}
		out = append(out, es...)
	}
	if merged {
		sortByID(out)
	}
	return out
}

func (x *genericIndex) Values() []any {
	out := make([]any, 0, len(x.lists))
	for k := range x.lists {
		out = append(out, k)
	}
	return out
}
