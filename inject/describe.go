package inject

import (
	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"
	"github.com/vmihailenco/msgpack/v5"
)

// GraphDescription is a serializable summary of a graph. Node ids are
// renumbered from 0 in topological order, so equal graphs describe equally
// however their arenas were built.
type GraphDescription struct {
	Roots []EdgeDescription `json:"roots" msgpack:"roots"`
	Nodes []NodeDescription `json:"nodes" msgpack:"nodes"`
}

// NodeDescription summarizes one node.
type NodeDescription struct {
	ID           int               `json:"id" msgpack:"id"`
	Satisfaction string            `json:"satisfaction" msgpack:"satisfaction"`
	Type         string            `json:"type" msgpack:"type"`
	Policy       string            `json:"policy" msgpack:"policy"`
	Shareable    bool              `json:"shareable,omitempty" msgpack:"shareable,omitempty"`
	HasInstance  bool              `json:"has_instance,omitempty" msgpack:"has_instance,omitempty"`
	Edges        []EdgeDescription `json:"edges,omitempty" msgpack:"edges,omitempty"`
}

// EdgeDescription summarizes one edge.
type EdgeDescription struct {
	Target    int      `json:"target" msgpack:"target"`
	Point     string   `json:"point" msgpack:"point"`
	Qualifier string   `json:"qualifier,omitempty" msgpack:"qualifier,omitempty"`
	Transient bool     `json:"transient,omitempty" msgpack:"transient,omitempty"`
	Optional  bool     `json:"optional,omitempty" msgpack:"optional,omitempty"`
	Chain     []string `json:"chain" msgpack:"chain"`
}

// Describe summarizes the nodes reachable from g's root.
func Describe(g *Graph) GraphDescription {
	sorted := g.SortedNodes()
	ids := make(map[NodeID]int, len(sorted))
	for i, id := range sorted {
		ids[id] = i
	}

	describeEdges := func(id NodeID) []EdgeDescription {
		var out []EdgeDescription
		for _, e := range g.node(id).edges {
			p := e.Dep.InitialDesire().Point
			chain := make([]string, len(e.Dep.Chain))
			for i, d := range e.Dep.Chain {
				chain[i] = d.String()
			}
			out = append(out, EdgeDescription{
				Target:    ids[e.Target],
				Point:     p.String(),
				Qualifier: p.Qualifier,
				Transient: p.Transient,
				Optional:  p.Optional,
				Chain:     chain,
			})
		}
		return out
	}

	desc := GraphDescription{
		Roots: describeEdges(g.root),
		Nodes: make([]NodeDescription, len(sorted)),
	}
	for i, id := range sorted {
		label := g.Label(id)
		desc.Nodes[i] = NodeDescription{
			ID:           i,
			Satisfaction: label.Satisfaction.String(),
			Type:         typeString(label.Satisfaction.ErasedType()),
			Policy:       label.Policy.String(),
			Shareable:    IsShareable(g, id),
			HasInstance:  label.Satisfaction.HasInstance(),
			Edges:        describeEdges(id),
		}
	}
	return desc
}

// MarshalJSON encodes the graph's description.
func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(Describe(g))
}

// Fingerprint hashes the graph's description. Graphs with the same
// structure, satisfactions and policies have the same fingerprint.
func Fingerprint(g *Graph) (uint64, error) {
	b, err := msgpack.Marshal(Describe(g))
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(b), nil
}
