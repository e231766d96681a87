package inject

import (
	"github.com/ARTM2000/lenskit/internal/logging"
)

// NodeProcessor transforms graph nodes. ProcessNode receives the current
// version of a node and the id it had when processing began; it returns a
// replacement, or nil to keep the node.
type NodeProcessor interface {
	ProcessNode(g *Graph, node, original NodeID) (*NodeSpec, error)
}

// NodeProcessorFunc adapts a function to [NodeProcessor].
type NodeProcessorFunc func(g *Graph, node, original NodeID) (*NodeSpec, error)

// ProcessNode calls f.
func (f NodeProcessorFunc) ProcessNode(g *Graph, node, original NodeID) (*NodeSpec, error) {
	return f(g, node, original)
}

// ProcessNodes applies proc to each of nodes in order and returns the graph
// with every replacement applied. Replacing a node rebuilds its dependents,
// so a node listed later may already have a newer version; the replacement
// memory is followed to find it. If proc fails, the error is returned and
// g is unchanged.
func ProcessNodes(g *Graph, nodes []NodeID, proc NodeProcessor) (*Graph, error) {
	memory := make(map[NodeID]NodeID)
	cur := g
	for _, original := range nodes {
		id := original
		for {
			next, ok := memory[id]
			if !ok {
				break
			}
			id = next
		}

		spec, err := proc.ProcessNode(cur, id, original)
		if err != nil {
			return nil, err
		}
		if spec != nil {
			cur = cur.ReplaceNode(id, *spec, memory)
		}
	}
	return cur, nil
}

// InstantiatingProcessor replaces each node that does not yet hold an
// instance with one holding the value ni constructs for it. Transient edges
// are dropped from the replacement, since the value no longer needs them.
// The value is owned by the resulting graph and released from ni's
// lifecycle manager.
func InstantiatingProcessor(ni *NodeInstantiator) NodeProcessor {
	return NodeProcessorFunc(func(g *Graph, id, _ NodeID) (*NodeSpec, error) {
		label := g.Label(id)
		if label.Satisfaction.HasInstance() {
			return nil, nil
		}

		obj, err := ni.Instantiate(g, id)
		if err != nil {
			return nil, err
		}
		ni.retain(g, id)

		sat := InstanceOf(obj)
		if obj == nil {
			sat = NullOf(label.Satisfaction.ErasedType())
		}
		return &NodeSpec{
			Label: Component{Satisfaction: sat, Policy: label.Policy},
			Edges: nonTransientEdges(g, id),
		}, nil
	})
}

// SimulatingProcessor replaces each node that does not yet hold an
// instance with a null satisfaction of its type, without constructing
// anything.
func SimulatingProcessor() NodeProcessor {
	return NodeProcessorFunc(func(g *Graph, id, _ NodeID) (*NodeSpec, error) {
		label := g.Label(id)
		if label.Satisfaction.HasInstance() {
			return nil, nil
		}
		log := logging.Component("inject.instantiator")
		log.Debug().Str("node", label.String()).Msg("simulating instantiation")
		return &NodeSpec{
			Label: Component{Satisfaction: NullOf(label.Satisfaction.ErasedType()), Policy: label.Policy},
			Edges: nonTransientEdges(g, id),
		}, nil
	})
}

func nonTransientEdges(g *Graph, id NodeID) []Edge {
	var out []Edge
	for _, e := range g.node(id).edges {
		if !EdgeIsTransient(e) {
			out = append(out, e)
		}
	}
	return out
}
