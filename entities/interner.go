package entities

import (
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"weak"
)

// Interner owns the canonical instances of typed names, entity types and
// attribute sets. Values created by one interner compare by identity with
// each other; the package-level constructors use [DefaultInterner].
//
// Typed names and entity types are never evicted. Attribute sets are held
// weakly and disappear once no entity references them.
type Interner struct {
	names     sync.Map // nameKey -> *TypedName
	types     sync.Map // string -> *EntityType
	sets      sync.Map // string -> weak.Pointer[AttributeSet]
	typeNames sync.Map // string -> reflect.Type
}

type nameKey struct {
	name string
	typ  reflect.Type
}

var defaultInterner = NewInterner()

// NewInterner creates an empty interner.
func NewInterner() *Interner {
	return &Interner{}
}

// DefaultInterner returns the interner behind the package-level
// constructors.
func DefaultInterner() *Interner {
	return defaultInterner
}

// TypedName returns the canonical typed name for (name, typ).
func (in *Interner) TypedName(name string, typ reflect.Type) *TypedName {
	typ = normalizeType(typ)
	key := nameKey{name: name, typ: typ}
	if v, ok := in.names.Load(key); ok {
		return v.(*TypedName)
	}
	v, _ := in.names.LoadOrStore(key, &TypedName{name: name, typ: typ})
	return v.(*TypedName)
}

// EntityType returns the canonical entity type for name, ignoring case.
func (in *Interner) EntityType(name string) *EntityType {
	name = strings.ToLower(name)
	if v, ok := in.types.Load(name); ok {
		return v.(*EntityType)
	}
	v, _ := in.types.LoadOrStore(name, &EntityType{name: name})
	return v.(*EntityType)
}

// AttributeSet returns the canonical attribute set holding names. The id
// attribute, if present, is moved to position 0; exact duplicates are
// dropped.
func (in *Interner) AttributeSet(names ...*TypedName) *AttributeSet {
	ordered := canonicalOrder(names)
	key := attributeSetKey(ordered)

	for {
		if v, ok := in.sets.Load(key); ok {
			wp := v.(weak.Pointer[AttributeSet])
			if s := wp.Value(); s != nil {
				return s
			}
			cand := newAttributeSet(ordered)
			nwp := weak.Make(cand)
			if in.sets.CompareAndSwap(key, wp, nwp) {
				in.watch(key, cand, nwp)
				return cand
			}
			continue
		}

		cand := newAttributeSet(ordered)
		nwp := weak.Make(cand)
		if _, loaded := in.sets.LoadOrStore(key, nwp); !loaded {
			in.watch(key, cand, nwp)
			return cand
		}
	}
}

// watch drops the cache entry once the set has been collected.
func (in *Interner) watch(key string, s *AttributeSet, wp weak.Pointer[AttributeSet]) {
	runtime.AddCleanup(s, func(wp weak.Pointer[AttributeSet]) {
		in.sets.CompareAndDelete(key, wp)
	}, wp)
}

func canonicalOrder(names []*TypedName) []*TypedName {
	out := make([]*TypedName, 0, len(names))
	seen := make(map[*TypedName]bool, len(names))
	var id *TypedName
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		if id == nil && isIDName(n) {
			id = n
			continue
		}
		out = append(out, n)
	}
	if id != nil {
		out = append([]*TypedName{id}, out...)
	}
	return out
}

func attributeSetKey(names []*TypedName) string {
	// Typed names are never evicted, so their addresses are stable keys.
	var b strings.Builder
	for _, n := range names {
		b.WriteString(strconv.FormatUint(uint64(reflect.ValueOf(n).Pointer()), 16))
		b.WriteByte(',')
	}
	return b.String()
}
