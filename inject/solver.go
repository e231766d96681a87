package inject

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ARTM2000/lenskit/internal/logging"
	"github.com/ARTM2000/lenskit/internal/metrics"
)

// MaxResolveDepth bounds how deep resolution may recurse. It is a hard
// ceiling: deeper graphs fail with [ErrDepthLimitExceeded].
const MaxResolveDepth = 100

// ContextElement is one ancestor in a resolution context.
type ContextElement struct {
	Satisfaction Satisfaction
	Qualifier    string
}

// ResolutionContext lists the satisfactions being resolved above a desire,
// outermost first.
type ResolutionContext []ContextElement

// BindingResult is the outcome of applying a binding function to a desire.
type BindingResult struct {
	// Desire replaces the desire being resolved.
	Desire Desire
	// Policy overrides the cache policy unless it is NoPreference.
	Policy CachePolicy
	// Terminal stops the binding chain at Desire.
	Terminal bool
}

// BindingFunction maps a desire to a narrower one. It returns nil when it
// has no binding for the desire.
type BindingFunction interface {
	Bind(ctx ResolutionContext, d Desire) (*BindingResult, error)
}

// BindingFunc adapts a function to [BindingFunction].
type BindingFunc func(ctx ResolutionContext, d Desire) (*BindingResult, error)

// Bind calls f.
func (f BindingFunc) Bind(ctx ResolutionContext, d Desire) (*BindingResult, error) {
	return f(ctx, d)
}

// ---------------------------------------------------------------------------
// Default binding function
// ---------------------------------------------------------------------------

var nullSatisfactions sync.Map // reflect.Type -> Satisfaction

// DefaultBindingFunction satisfies unbound struct pointer types with a zero
// struct and unbound optional points with nil.
func DefaultBindingFunction() BindingFunction {
	return BindingFunc(bindDefault)
}

func bindDefault(_ ResolutionContext, d Desire) (*BindingResult, error) {
	if d.Instantiable() {
		return nil, nil
	}
	if isStructPointer(d.Type) {
		sat, err := defaultStructSatisfaction(d.Type)
		if err != nil {
			return nil, err
		}
		return &BindingResult{Desire: Desire{Point: d.Point, Type: d.Type, Satisfaction: sat}, Terminal: true}, nil
	}
	if d.Point.Optional {
		sat, _ := nullSatisfactions.LoadOrStore(d.Type, NullOf(d.Type))
		return &BindingResult{Desire: Desire{Point: d.Point, Type: d.Type, Satisfaction: sat.(Satisfaction)}, Terminal: true}, nil
	}
	return nil, nil
}

// ---------------------------------------------------------------------------
// Solver
// ---------------------------------------------------------------------------

type solverFunction struct {
	fn              BindingFunction
	triggersRewrite bool
}

// SolverBuilder configures a [DependencySolver].
type SolverBuilder struct {
	functions     []solverFunction
	defaultPolicy CachePolicy
	maxDepth      int
}

// NewSolverBuilder returns a builder with no binding functions, the
// Memoize default policy and the [MaxResolveDepth] limit.
func NewSolverBuilder() *SolverBuilder {
	return &SolverBuilder{defaultPolicy: Memoize, maxDepth: MaxResolveDepth}
}

// AddBindingFunction appends fn. Functions are consulted in the order they
// were added and the first one with a binding wins. When rewriting a graph,
// only bindings from functions with triggersRewrite set cause an edge to be
// re-resolved.
func (b *SolverBuilder) AddBindingFunction(fn BindingFunction, triggersRewrite bool) *SolverBuilder {
	b.functions = append(b.functions, solverFunction{fn: fn, triggersRewrite: triggersRewrite})
	return b
}

// SetDefaultPolicy sets the policy given to nodes whose binding expresses
// no preference.
func (b *SolverBuilder) SetDefaultPolicy(p CachePolicy) *SolverBuilder {
	b.defaultPolicy = p
	return b
}

// SetMaxDepth sets the resolution depth limit. Values above
// [MaxResolveDepth] or below 1 are clamped.
func (b *SolverBuilder) SetMaxDepth(n int) *SolverBuilder {
	b.maxDepth = min(max(n, 1), MaxResolveDepth)
	return b
}

// Build returns a solver with an empty graph.
func (b *SolverBuilder) Build() *DependencySolver {
	return &DependencySolver{
		functions:     slices.Clone(b.functions),
		defaultPolicy: b.defaultPolicy,
		maxDepth:      b.maxDepth,
		graph:         newGraph(),
		merge:         make(map[Component][]NodeID),
		log:           logging.Component("inject.solver"),
	}
}

// DependencySolver resolves desires into a dependency graph. Nodes with the
// same label and the same outgoing edges are merged. A solver is
// single-writer.
type DependencySolver struct {
	functions     []solverFunction
	defaultPolicy CachePolicy
	maxDepth      int
	graph         *Graph
	merge         map[Component][]NodeID
	log           zerolog.Logger
}

type resolution struct {
	sat       Satisfaction
	policy    CachePolicy
	chain     []Desire
	triggered bool
}

// Resolve resolves d and its dependencies, adding d as a root edge of the
// graph. Resolving a desire that is already a root is a no-op.
func (s *DependencySolver) Resolve(d Desire) error {
	root := s.graph.node(s.graph.root)
	if _, ok := s.graph.OutgoingEdge(s.graph.root, d); ok {
		return nil
	}

	id, chain, err := s.resolveFully(d, nil, nil)
	if err != nil {
		outcome := "unresolvable"
		if errors.Is(err, ErrDepthLimitExceeded) {
			outcome = "depth_limit"
		}
		metrics.RecordResolution(outcome)
		s.log.Debug().Err(err).Str("desire", d.String()).Msg("resolution failed")
		return err
	}

	edges := append(slices.Clip(root.edges), Edge{Target: id, Dep: Dependency{Chain: chain}})
	s.graph.nodes[s.graph.root] = &node{label: root.label, edges: edges}
	metrics.RecordResolution("ok")
	s.log.Debug().Str("desire", d.String()).Int("node", int(id)).Msg("resolved root")
	return nil
}

// Graph returns a snapshot of the graph resolved so far.
func (s *DependencySolver) Graph() *Graph {
	g := &Graph{nodes: slices.Clone(s.graph.nodes), root: s.graph.root}
	metrics.GraphNodes.Observe(float64(g.Size()))
	return g
}

// Rewrite re-resolves the edges of g. An edge whose resolution involves a
// rewrite-triggering binding that selects a different satisfaction or
// policy is replaced by a freshly resolved subgraph; all other edges keep
// their targets, whose own edges are examined in turn. The result is a new
// graph; g is unchanged.
func (s *DependencySolver) Rewrite(g *Graph) (*Graph, error) {
	rw := &DependencySolver{
		functions:     s.functions,
		defaultPolicy: s.defaultPolicy,
		maxDepth:      s.maxDepth,
		graph:         newGraph(),
		merge:         make(map[Component][]NodeID),
		log:           s.log,
	}

	root := g.node(g.root)
	edges := make([]Edge, 0, len(root.edges))
	for _, e := range root.edges {
		id, chain, err := rw.rewriteEdge(g, e, nil, nil)
		if err != nil {
			return nil, err
		}
		edges = append(edges, Edge{Target: id, Dep: Dependency{Chain: chain}})
	}
	rw.graph.nodes[rw.graph.root] = &node{label: root.label, edges: edges}
	return rw.Graph(), nil
}

func (s *DependencySolver) rewriteEdge(g *Graph, e Edge, ctx ResolutionContext, path []Desire) (NodeID, []Desire, error) {
	d := e.Dep.InitialDesire()
	path = appendPath(path, d)
	if len(ctx) >= s.maxDepth {
		return 0, nil, &ResolutionError{Path: path, Err: ErrDepthLimitExceeded}
	}

	target := g.Label(e.Target)
	res, err := s.resolveDesire(d, ctx, path)
	if err == nil && res.triggered &&
		(res.sat != target.Satisfaction || s.effectivePolicy(res.policy) != target.Policy) {
		s.log.Debug().
			Str("desire", d.String()).
			Str("old", target.Satisfaction.String()).
			Str("new", res.sat.String()).
			Msg("rewriting dependency")
		id, err := s.buildNode(res, ctx, path)
		return id, res.chain, err
	}

	n := g.node(e.Target)
	childCtx := append(slices.Clip(ctx), ContextElement{Satisfaction: n.label.Satisfaction, Qualifier: d.Point.Qualifier})
	edges := make([]Edge, 0, len(n.edges))
	for _, ce := range n.edges {
		id, chain, err := s.rewriteEdge(g, ce, childCtx, path)
		if err != nil {
			return 0, nil, err
		}
		edges = append(edges, Edge{Target: id, Dep: Dependency{Chain: chain}})
	}
	SortEdges(edges)
	return s.intern(n.label, edges), e.Dep.Chain, nil
}

func (s *DependencySolver) resolveFully(d Desire, ctx ResolutionContext, path []Desire) (NodeID, []Desire, error) {
	path = appendPath(path, d)
	if len(ctx) >= s.maxDepth {
		return 0, nil, &ResolutionError{Path: path, Err: ErrDepthLimitExceeded}
	}
	res, err := s.resolveDesire(d, ctx, path)
	if err != nil {
		return 0, nil, err
	}
	id, err := s.buildNode(res, ctx, path)
	if err != nil {
		return 0, nil, err
	}
	return id, res.chain, nil
}

// resolveDesire follows the binding chain of d until a terminal binding,
// no binding, or a repeated desire.
func (s *DependencySolver) resolveDesire(d Desire, ctx ResolutionContext, path []Desire) (resolution, error) {
	res := resolution{chain: []Desire{d}, policy: NoPreference}
	cur := d
	for {
		if len(res.chain) > s.maxDepth {
			return resolution{}, &ResolutionError{Path: path, Err: ErrDepthLimitExceeded}
		}

		var result *BindingResult
		var triggers bool
		for _, f := range s.functions {
			r, err := f.fn.Bind(ctx, cur)
			if err != nil {
				return resolution{}, &ResolutionError{Path: path, Err: err}
			}
			if r != nil {
				result, triggers = r, f.triggersRewrite
				break
			}
		}
		if result == nil || slices.Contains(res.chain, result.Desire) {
			break
		}

		s.log.Trace().Str("from", cur.String()).Str("to", result.Desire.String()).Msg("applied binding")
		res.chain = append(res.chain, result.Desire)
		res.triggered = res.triggered || triggers
		if result.Policy != NoPreference {
			res.policy = result.Policy
		}
		cur = result.Desire
		if result.Terminal {
			break
		}
	}

	if !cur.Instantiable() {
		return resolution{}, &ResolutionError{Path: path, Err: fmt.Errorf("%w: %s", ErrUnresolvable, cur)}
	}
	res.sat = cur.Satisfaction
	return res, nil
}

func (s *DependencySolver) effectivePolicy(p CachePolicy) CachePolicy {
	if p == NoPreference {
		return s.defaultPolicy
	}
	return p
}

// buildNode resolves the dependencies of a resolved satisfaction and adds
// its node.
func (s *DependencySolver) buildNode(res resolution, ctx ResolutionContext, path []Desire) (NodeID, error) {
	label := Component{Satisfaction: res.sat, Policy: s.effectivePolicy(res.policy)}
	childCtx := append(slices.Clip(ctx), ContextElement{Satisfaction: res.sat, Qualifier: res.chain[0].Point.Qualifier})

	deps := res.sat.Dependencies()
	edges := make([]Edge, 0, len(deps))
	for _, dep := range deps {
		id, chain, err := s.resolveFully(dep, childCtx, path)
		if err != nil {
			return 0, err
		}
		edges = append(edges, Edge{Target: id, Dep: Dependency{Chain: chain}})
	}
	SortEdges(edges)
	return s.intern(label, edges), nil
}

// intern returns an existing node with the same label and edges, or adds
// one.
func (s *DependencySolver) intern(label Component, edges []Edge) NodeID {
	for _, id := range s.merge[label] {
		if edgesEqual(s.graph.node(id).edges, edges) {
			return id
		}
	}
	id := s.graph.add(label, edges)
	s.merge[label] = append(s.merge[label], id)
	return id
}

func edgesEqual(a, b []Edge) bool {
	return slices.EqualFunc(a, b, func(x, y Edge) bool {
		return x.Target == y.Target && x.Dep.equal(y.Dep)
	})
}

func appendPath(path []Desire, d Desire) []Desire {
	return append(slices.Clip(path), d)
}

// contextDepth returns how deep in ctx an ancestor of type t sits, counting
// from 1 at the outermost element, or -1 if none does. A nil t matches at
// depth 0.
func contextDepth(ctx ResolutionContext, t reflect.Type) int {
	if t == nil {
		return 0
	}
	for i := len(ctx) - 1; i >= 0; i-- {
		if et := ctx[i].Satisfaction.ErasedType(); et != nil && et.AssignableTo(t) {
			return i + 1
		}
	}
	return -1
}
