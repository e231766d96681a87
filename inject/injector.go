package inject

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ARTM2000/lenskit/internal/logging"
)

// StaticInjector looks up and instantiates components of a resolved graph.
// Components it constructs are memoized per node and, if they implement
// [io.Closer], closed by Close. Prefer [WithInjector], which guarantees the
// injector is closed.
type StaticInjector struct {
	mu           sync.RWMutex
	graph        *Graph
	lifecycle    *LifecycleManager
	instantiator *NodeInstantiator
	closed       bool
	log          zerolog.Logger
}

// NewStaticInjector returns an injector over g. The caller must Close it.
func NewStaticInjector(g *Graph) *StaticInjector {
	lm := NewLifecycleManager()
	return &StaticInjector{
		graph:        g,
		lifecycle:    lm,
		instantiator: NewNodeInstantiator(lm),
		log:          logging.Component("inject.injector").With().Str("session", uuid.NewString()).Logger(),
	}
}

// WithInjector runs fn with an injector over g and closes the injector
// when fn returns, joining any close error with fn's.
func WithInjector(g *Graph, fn func(*StaticInjector) error) error {
	inj := NewStaticInjector(g)
	err := fn(inj)
	return errors.Join(err, inj.Close())
}

// Graph returns the injector's graph.
func (i *StaticInjector) Graph() *Graph { return i.graph }

// GetInstance returns an instance of typ. A root edge for an unqualified
// desire of typ is preferred; otherwise the closest unqualified node whose
// values are assignable to typ is used. It fails with [ErrNoSuchComponent]
// if there is none.
func (i *StaticInjector) GetInstance(typ reflect.Type) (any, error) {
	v, found, err := i.get("", typ)
	if err == nil && !found {
		err = fmt.Errorf("%w: %s", ErrNoSuchComponent, typ)
	}
	return v, err
}

// GetQualifiedInstance is like GetInstance for a qualified type.
func (i *StaticInjector) GetQualifiedInstance(q string, typ reflect.Type) (any, error) {
	v, found, err := i.get(q, typ)
	if err == nil && !found {
		err = fmt.Errorf("%w: %s @%s", ErrNoSuchComponent, typ, q)
	}
	return v, err
}

// TryGetInstance is like GetInstance but returns nil, nil when nothing
// satisfies typ.
func (i *StaticInjector) TryGetInstance(typ reflect.Type) (any, error) {
	v, _, err := i.get("", typ)
	return v, err
}

// Instantiate returns the value of node id.
func (i *StaticInjector) Instantiate(id NodeID) (any, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.closed {
		return nil, ErrAlreadyClosed
	}
	return i.instantiator.Instantiate(i.graph, id)
}

func (i *StaticInjector) get(q string, typ reflect.Type) (any, bool, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.closed {
		return nil, false, ErrAlreadyClosed
	}

	id, ok := i.find(q, typ)
	if !ok {
		i.log.Debug().Str("type", typ.String()).Str("qualifier", q).Msg("no satisfying node")
		return nil, false, nil
	}
	v, err := i.instantiator.Instantiate(i.graph, id)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (i *StaticInjector) find(q string, typ reflect.Type) (NodeID, bool) {
	if e, ok := i.graph.OutgoingEdge(i.graph.Root(), QualifiedDesire(q, typ)); ok {
		return e.Target, true
	}
	return FindSatisfyingNode(i.graph, MatchQualifier(q), typ)
}

// Close closes every closer the injector constructed, in reverse order.
// Subsequent calls return [ErrAlreadyClosed].
func (i *StaticInjector) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return ErrAlreadyClosed
	}
	i.closed = true
	i.log.Debug().Int("closers", i.lifecycle.Len()).Msg("closing injector")
	return i.lifecycle.Close()
}

// ---------------------------------------------------------------------------
// Generic helpers
// ---------------------------------------------------------------------------

// Get is a generic helper around [StaticInjector.GetInstance]:
//
//	scorer, err := inject.Get[ItemScorer](inj)
func Get[T any](i *StaticInjector) (T, error) {
	var zero T
	t := reflect.TypeFor[T]()

	v, err := i.GetInstance(t)
	if err != nil {
		return zero, err
	}
	return convert[T](v, t)
}

// GetQualified is a generic helper around
// [StaticInjector.GetQualifiedInstance].
func GetQualified[T any](i *StaticInjector, q string) (T, error) {
	var zero T
	t := reflect.TypeFor[T]()

	v, err := i.GetQualifiedInstance(q, t)
	if err != nil {
		return zero, err
	}
	return convert[T](v, t)
}

func convert[T any](v any, t reflect.Type) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cannot convert %T to %s", v, t)
	}
	return out, nil
}
