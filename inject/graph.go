package inject

import (
	"fmt"
	"slices"
)

// NodeID addresses a node within a [Graph].
type NodeID int

// Component labels a graph node: how to satisfy it and how to cache it.
type Component struct {
	Satisfaction Satisfaction
	Policy       CachePolicy
}

func (c Component) String() string {
	if c.Policy == NoPreference {
		return c.Satisfaction.String()
	}
	return fmt.Sprintf("%s [%s]", c.Satisfaction, c.Policy)
}

// Dependency labels an edge with the chain of desires that led from the
// injection point to the target's satisfaction. The first element is the
// initial desire.
type Dependency struct {
	Chain []Desire
}

// InitialDesire returns the desire recorded at the injection point.
func (d Dependency) InitialDesire() Desire { return d.Chain[0] }

// FinalDesire returns the desire the target satisfies.
func (d Dependency) FinalDesire() Desire { return d.Chain[len(d.Chain)-1] }

func (d Dependency) equal(o Dependency) bool {
	return slices.Equal(d.Chain, o.Chain)
}

// Edge is an outgoing dependency edge.
type Edge struct {
	Target NodeID
	Dep    Dependency
}

// NodeSpec describes a node to add to a graph. Its edges refer to nodes of
// the graph it is added to.
type NodeSpec struct {
	Label Component
	Edges []Edge
}

type node struct {
	label Component
	edges []Edge
}

// Graph is an immutable dependency DAG stored as an arena of nodes. A
// synthetic root node carries one edge per resolved root desire. Rewriting
// a graph appends new node records and leaves the original intact, so
// unchanged nodes keep their ids across versions.
type Graph struct {
	nodes []*node
	root  NodeID
}

// newGraph returns a graph holding only a root node.
func newGraph() *Graph {
	return &Graph{nodes: []*node{{label: Component{Satisfaction: graphRoot, Policy: Memoize}}}}
}

func (g *Graph) add(label Component, edges []Edge) NodeID {
	g.nodes = append(g.nodes, &node{label: label, edges: edges})
	return NodeID(len(g.nodes) - 1)
}

func (g *Graph) node(id NodeID) *node {
	return g.nodes[id]
}

// Root returns the root node.
func (g *Graph) Root() NodeID { return g.root }

// Label returns the component labelling id.
func (g *Graph) Label(id NodeID) Component { return g.nodes[id].label }

// Edges returns the outgoing edges of id in dependency edge order.
func (g *Graph) Edges(id NodeID) []Edge { return slices.Clone(g.nodes[id].edges) }

// OutgoingEdge returns the edge of id whose initial desire equals d.
func (g *Graph) OutgoingEdge(id NodeID, d Desire) (Edge, bool) {
	for _, e := range g.nodes[id].edges {
		if e.Dep.InitialDesire() == d {
			return e, true
		}
	}
	return Edge{}, false
}

// ReachableNodes returns every node reachable from the root, excluding the
// root, in breadth-first order.
func (g *Graph) ReachableNodes() []NodeID {
	seen := map[NodeID]bool{g.root: true}
	queue := []NodeID{g.root}
	var out []NodeID
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, e := range g.nodes[id].edges {
			if !seen[e.Target] {
				seen[e.Target] = true
				out = append(out, e.Target)
				queue = append(queue, e.Target)
			}
		}
	}
	return out
}

// SortedNodes returns the nodes reachable from the root, excluding the
// root, in topological order: every node follows all of its dependencies.
func (g *Graph) SortedNodes() []NodeID {
	visited := make(map[NodeID]bool)
	var out []NodeID
	var visit func(NodeID)
	visit = func(id NodeID) {
		visited[id] = true
		for _, e := range g.nodes[id].edges {
			if !visited[e.Target] {
				visit(e.Target)
			}
		}
		out = append(out, id)
	}
	visit(g.root)
	return out[:len(out)-1]
}

// Size returns the number of nodes reachable from the root.
func (g *Graph) Size() int { return len(g.ReachableNodes()) }

// ReplaceNode returns a new graph in which old is replaced by a node built
// from spec. Every node with a path to old is rebuilt with its edges
// retargeted; all other nodes are shared with g. memory receives an entry
// mapping each replaced node to its successor, so callers replacing several
// nodes in turn can find the current version of a node they saw earlier.
func (g *Graph) ReplaceNode(old NodeID, spec NodeSpec, memory map[NodeID]NodeID) *Graph {
	ng := &Graph{nodes: slices.Clip(g.nodes), root: g.root}
	repl := ng.add(spec.Label, slices.Clone(spec.Edges))
	memory[old] = repl

	done := map[NodeID]NodeID{old: repl}
	ng.root = ng.rewrite(ng.root, done, memory)
	return ng
}

func (g *Graph) rewrite(id NodeID, done, memory map[NodeID]NodeID) NodeID {
	if r, ok := done[id]; ok {
		return r
	}

	n := g.nodes[id]
	var edges []Edge
	for i, e := range n.edges {
		t := g.rewrite(e.Target, done, memory)
		if t == e.Target {
			continue
		}
		if edges == nil {
			edges = slices.Clone(n.edges)
		}
		edges[i].Target = t
	}

	r := id
	if edges != nil {
		r = g.add(n.label, edges)
		memory[id] = r
	}
	done[id] = r
	return r
}
