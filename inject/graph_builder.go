package inject

import (
	"reflect"
	"slices"

	"github.com/rs/zerolog"

	"github.com/ARTM2000/lenskit/internal/logging"
)

// Configuration pairs a rule set with the root types it should resolve.
type Configuration struct {
	Bindings *Bindings
	Roots    []reflect.Type
}

// GraphBuilder composes binding rule sets and root types into a dependency
// solver and resolves the recommender graph. Bindings added later take
// precedence over bindings added earlier.
type GraphBuilder struct {
	configs       []*Bindings
	roots         []reflect.Type
	defaultPolicy CachePolicy
	log           zerolog.Logger
}

// GraphBuilderOption configures a [GraphBuilder].
type GraphBuilderOption func(*GraphBuilder)

// WithDefaultPolicy sets the cache policy of nodes whose bindings express
// no preference. The default is [Memoize].
func WithDefaultPolicy(p CachePolicy) GraphBuilderOption {
	return func(gb *GraphBuilder) {
		gb.defaultPolicy = p
	}
}

// NewGraphBuilder returns an empty graph builder.
func NewGraphBuilder(opts ...GraphBuilderOption) *GraphBuilder {
	gb := &GraphBuilder{
		defaultPolicy: Memoize,
		log:           logging.Component("inject.graph"),
	}
	for _, opt := range opts {
		opt(gb)
	}
	return gb
}

// AddBindings adds a rule set. Add the most important bindings last.
func (gb *GraphBuilder) AddBindings(b *Bindings) *GraphBuilder {
	gb.configs = append(gb.configs, b)
	return gb
}

// AddRoots adds root types. Duplicates are ignored; roots resolve in the
// order first added.
func (gb *GraphBuilder) AddRoots(types ...reflect.Type) *GraphBuilder {
	for _, t := range types {
		if !slices.Contains(gb.roots, t) {
			gb.roots = append(gb.roots, t)
		}
	}
	return gb
}

// AddConfiguration adds a configuration's bindings and roots.
func (gb *GraphBuilder) AddConfiguration(c Configuration) *GraphBuilder {
	if c.Bindings != nil {
		gb.AddBindings(c.Bindings)
	}
	return gb.AddRoots(c.Roots...)
}

// BuildSolver returns a solver over the added bindings.
func (gb *GraphBuilder) BuildSolver() *DependencySolver {
	return gb.buildSolver(func(b *Bindings) *Bindings { return b })
}

// BuildUnsolver returns a solver whose bindings target placeholders. Using
// it to rewrite a graph replaces every bound component with a placeholder
// for the bound type.
func (gb *GraphBuilder) BuildUnsolver() *DependencySolver {
	return gb.buildSolver((*Bindings).Placeholders)
}

func (gb *GraphBuilder) buildSolver(transform func(*Bindings) *Bindings) *DependencySolver {
	sb := NewSolverBuilder()
	for _, cfg := range slices.Backward(gb.configs) {
		b := transform(cfg)
		sb.AddBindingFunction(b.Build(Explicit), true)
		sb.AddBindingFunction(b.Build(IntermediateTypes), true)
		sb.AddBindingFunction(b.Build(SuperTypes), true)
	}
	sb.AddBindingFunction(DefaultBindingFunction(), false)
	sb.SetDefaultPolicy(gb.defaultPolicy)
	sb.SetMaxDepth(MaxResolveDepth)
	return sb.Build()
}

// BuildGraph resolves every root and returns the graph.
func (gb *GraphBuilder) BuildGraph() (*Graph, error) {
	solver := gb.BuildSolver()
	for _, root := range gb.roots {
		if err := solver.Resolve(NewDesire(root)); err != nil {
			return nil, err
		}
	}
	g := solver.Graph()
	gb.log.Debug().
		Int("roots", len(gb.roots)).
		Int("bindings", len(gb.configs)).
		Int("nodes", g.Size()).
		Msg("built dependency graph")
	return g, nil
}
