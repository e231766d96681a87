package inject

import (
	"reflect"
	"slices"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/ARTM2000/lenskit/internal/logging"
)

func analysisLog() *zerolog.Logger {
	l := logging.Component("inject.analysis")
	return &l
}

// IsShareable reports whether node id may be shared across sessions on its
// own merits: it already holds an instance, or it does not require a new
// instance per use and its satisfaction carries the shareable capability.
// Unmarked components are not shareable.
func IsShareable(g *Graph, id NodeID) bool {
	label := g.Label(id)
	sat := label.Satisfaction

	if sat.HasInstance() {
		analysisLog().Trace().Int("node", int(id)).Msg("shareable: has an instance")
		return true
	}
	if label.Policy == NewInstance {
		analysisLog().Trace().Int("node", int(id)).Msg("not shareable: new-instance policy")
		return false
	}
	if sat.Shareable() {
		analysisLog().Trace().Int("node", int(id)).Str("satisfaction", sat.String()).Msg("shareable: marked")
		return true
	}
	analysisLog().Trace().Int("node", int(id)).Str("satisfaction", sat.String()).Msg("not shareable by default")
	return false
}

// ShareableNodes returns the nodes that can be instantiated once and shared,
// in topological order. A node qualifies if it is shareable itself and
// every non-transient dependency is also in the result.
func ShareableNodes(g *Graph) []NodeID {
	shared := make(map[NodeID]bool)
	var out []NodeID
	for _, id := range g.SortedNodes() {
		if !IsShareable(g, id) {
			continue
		}
		ok := true
		for _, e := range g.node(id).edges {
			if EdgeIsTransient(e) || shared[e.Target] {
				continue
			}
			ok = false
			analysisLog().Debug().
				Int("node", int(id)).
				Int("dependency", int(e.Target)).
				Msg("node not shared due to non-transient dependency")
		}
		if ok {
			shared[id] = true
			out = append(out, id)
		}
	}
	return out
}

// PlaceholderNodes returns the reachable nodes with placeholder
// satisfactions.
func PlaceholderNodes(g *Graph) []NodeID {
	var out []NodeID
	for _, id := range g.ReachableNodes() {
		if _, ok := g.Label(id).Satisfaction.(*PlaceholderSatisfaction); ok {
			out = append(out, id)
		}
	}
	return out
}

// CheckForPlaceholders fails with a [*ConfigurationError] wrapping
// [ErrPlaceholder] if g holds a placeholder for anything other than a data
// access object. Every offender is logged; the first is reported.
func CheckForPlaceholders(g *Graph) error {
	var first Satisfaction
	for _, id := range PlaceholderNodes(g) {
		sat := g.Label(id).Satisfaction
		if IsDataAccessObject(sat.ErasedType()) {
			analysisLog().Debug().Str("satisfaction", sat.String()).Msg("found DAO placeholder")
			continue
		}
		if first == nil {
			first = sat
		}
		analysisLog().Debug().Str("satisfaction", sat.String()).Msg("placeholder not removed")
	}
	if first != nil {
		return &ConfigurationError{Satisfaction: first, Err: ErrPlaceholder}
	}
	return nil
}

// DesireIsTransient reports whether d was declared at a transient point.
func DesireIsTransient(d Desire) bool {
	return d.Point.Transient
}

// EdgeIsTransient reports whether e's initial desire is transient.
func EdgeIsTransient(e Edge) bool {
	return DesireIsTransient(e.Dep.InitialDesire())
}

// EdgeOrderKey returns the key edges are ordered by: the injection point
// kind, then member name and parameter index.
func EdgeOrderKey(e Edge) []string {
	p := e.Dep.InitialDesire().Point
	switch p.Kind {
	case ConstructorPoint:
		return []string{"0: constructor", strconv.Itoa(p.Index)}
	case SetterPoint:
		return []string{"1: setter", p.Member, strconv.Itoa(p.Index)}
	case FieldPoint:
		return []string{"2: field", p.Member}
	case SimplePoint:
		return []string{"5: simple"}
	default:
		return []string{"9: unknown", p.Member}
	}
}

// CompareEdges orders edges lexicographically by [EdgeOrderKey].
func CompareEdges(a, b Edge) int {
	return slices.Compare(EdgeOrderKey(a), EdgeOrderKey(b))
}

// SortEdges sorts edges stably by [CompareEdges].
func SortEdges(edges []Edge) {
	slices.SortStableFunc(edges, CompareEdges)
}

// FindSatisfyingNode searches g breadth-first for the closest edge whose
// target produces values assignable to typ and whose injection point
// qualifier is selected by m.
func FindSatisfyingNode(g *Graph, m QualifierMatcher, typ reflect.Type) (NodeID, bool) {
	seen := map[NodeID]bool{g.root: true}
	queue := []NodeID{g.root}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, e := range g.node(id).edges {
			et := g.Label(e.Target).Satisfaction.ErasedType()
			if et != nil && et.AssignableTo(typ) && m.Matches(e.Dep.InitialDesire().Point.Qualifier) {
				return e.Target, true
			}
		}
		for _, e := range g.node(id).edges {
			if !seen[e.Target] {
				seen[e.Target] = true
				queue = append(queue, e.Target)
			}
		}
	}
	return 0, false
}
