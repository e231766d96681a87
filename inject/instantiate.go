package inject

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ARTM2000/lenskit/internal/logging"
	"github.com/ARTM2000/lenskit/internal/metrics"
)

// NodeInstantiator constructs the values of graph nodes. Values are
// memoized per node unless the node's policy is [NewInstance]. Constructed
// values implementing [io.Closer] are registered with the lifecycle
// manager, if any. It is safe for concurrent use.
type NodeInstantiator struct {
	mu        sync.Mutex
	cache     map[*node]any
	handles   map[*node]Handle
	lifecycle *LifecycleManager
}

// NewNodeInstantiator returns an instantiator registering closers with lm,
// which may be nil.
func NewNodeInstantiator(lm *LifecycleManager) *NodeInstantiator {
	return &NodeInstantiator{
		cache:     make(map[*node]any),
		handles:   make(map[*node]Handle),
		lifecycle: lm,
	}
}

// Instantiate returns the value of node id, constructing it and its
// dependencies as needed.
func (ni *NodeInstantiator) Instantiate(g *Graph, id NodeID) (any, error) {
	ni.mu.Lock()
	defer ni.mu.Unlock()
	return ni.instantiate(g, id)
}

func (ni *NodeInstantiator) instantiate(g *Graph, id NodeID) (any, error) {
	n := g.node(id)
	if v, ok := ni.cache[n]; ok {
		return v, nil
	}

	sat := n.label.Satisfaction
	deps := sat.Dependencies()
	args := make([]any, len(deps))
	for i, d := range deps {
		e, ok := g.OutgoingEdge(id, d)
		if !ok {
			return nil, &InstantiationError{Node: n.label.String(), Err: fmt.Errorf("%w: no edge for %s", ErrUnresolvable, d)}
		}
		v, err := ni.instantiate(g, e.Target)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	v, err := sat.instantiate(args)
	if err != nil {
		return nil, &InstantiationError{Node: n.label.String(), Err: err}
	}

	policy := n.label.Policy
	if policy == NoPreference {
		policy = sat.DefaultCachePolicy()
	}
	if policy != NewInstance {
		ni.cache[n] = v
	}

	if c, ok := v.(io.Closer); ok && ni.lifecycle != nil && !sat.HasInstance() {
		h, err := ni.lifecycle.Track(c)
		if err != nil {
			return nil, &InstantiationError{Node: n.label.String(), Err: err}
		}
		if policy != NewInstance {
			ni.handles[n] = h
		}
	}
	return v, nil
}

// retain hands ownership of node id's memoized value from the lifecycle
// manager to the caller.
func (ni *NodeInstantiator) retain(g *Graph, id NodeID) {
	ni.mu.Lock()
	defer ni.mu.Unlock()

	n := g.node(id)
	if h, ok := ni.handles[n]; ok {
		ni.lifecycle.ReleaseHandle(h)
		delete(ni.handles, n)
	}
}

// ---------------------------------------------------------------------------
// RecommenderInstantiator
// ---------------------------------------------------------------------------

// RecommenderInstantiator pre-instantiates the shareable part of a
// recommender graph.
type RecommenderInstantiator struct {
	graph *Graph
	log   zerolog.Logger
}

// NewRecommenderInstantiator returns an instantiator for g.
func NewRecommenderInstantiator(g *Graph) *RecommenderInstantiator {
	return &RecommenderInstantiator{
		graph: g,
		log:   logging.Component("inject.instantiator"),
	}
}

// Graph returns the graph being instantiated.
func (ri *RecommenderInstantiator) Graph() *Graph { return ri.graph }

// Instantiate constructs every shareable node and returns a graph in which
// those nodes hold their instances. Closers constructed only as transient
// dependencies are closed before returning, whether or not instantiation
// succeeds.
func (ri *RecommenderInstantiator) Instantiate() (g *Graph, err error) {
	lm := NewLifecycleManager()
	defer func() {
		if cerr := lm.Close(); cerr != nil {
			g, err = nil, errors.Join(err, cerr)
		}
	}()
	return ri.replaceShareableNodes("instantiate", InstantiatingProcessor(NewNodeInstantiator(lm)))
}

// Simulate returns the graph Instantiate would produce, with null
// satisfactions in place of instances, without constructing anything.
func (ri *RecommenderInstantiator) Simulate() (*Graph, error) {
	return ri.replaceShareableNodes("simulate", SimulatingProcessor())
}

func (ri *RecommenderInstantiator) replaceShareableNodes(mode string, proc NodeProcessor) (*Graph, error) {
	log := ri.log.With().Str("session", uuid.NewString()).Str("mode", mode).Logger()
	start := time.Now()

	nodes := ShareableNodes(ri.graph)
	log.Debug().
		Int("nodes", ri.graph.Size()).
		Int("shared", len(nodes)).
		Msg("replacing shareable nodes")

	g, err := ProcessNodes(ri.graph, nodes, proc)
	if err != nil {
		log.Debug().Err(err).Msg("node processing failed")
		return nil, err
	}

	metrics.RecordInstantiation(mode, len(nodes), time.Since(start))
	log.Debug().Int("nodes", g.Size()).Dur("elapsed", time.Since(start)).Msg("replaced shareable nodes")
	return g, nil
}
