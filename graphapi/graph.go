package graphapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrDuplicateNode is returned when a node name is already taken.
	ErrDuplicateNode = errors.New("duplicate node name")
	// ErrDanglingRef is returned when an input references a node that was
	// never added to the graph.
	ErrDanglingRef = errors.New("reference to missing node")
)

// NodeGraph is a collection of uniquely named nodes plus the ordered list of
// nodes whose results the backend should deliver. It serializes to the API
// prompt format: a mapping from node name to class type and inputs.
type NodeGraph struct {
	nodes   map[string]*Node
	outputs []string
}

func NewNodeGraph() *NodeGraph {
	return &NodeGraph{
		nodes: make(map[string]*Node),
	}
}

// Add inserts node under the given name and returns a reference to its first
// output slot. Names are unique across the whole graph; reusing one is an
// error, not an overwrite.
func (g *NodeGraph) Add(name string, node *Node) (NodeRef, error) {
	if _, ok := g.nodes[name]; ok {
		return NodeRef{}, fmt.Errorf("%w: %q", ErrDuplicateNode, name)
	}
	if node.Inputs == nil {
		node.Inputs = make(map[string]interface{})
	}
	g.nodes[name] = node
	return NodeRef{Node: name}, nil
}

// GetNodeByName returns the node stored under name, or nil.
func (g *NodeGraph) GetNodeByName(name string) *Node {
	return g.nodes[name]
}

// GetNodesByType returns the names of all nodes with the given class type,
// sorted.
func (g *NodeGraph) GetNodesByType(classType string) []string {
	var names []string
	for name, node := range g.nodes {
		if node.ClassType == classType {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Len returns the number of nodes in the graph.
func (g *NodeGraph) Len() int {
	return len(g.nodes)
}

// MarkOutput records name as a final output of the pipeline. First-marking
// order is preserved; marking the same node twice is a no-op.
func (g *NodeGraph) MarkOutput(name string) {
	for _, existing := range g.outputs {
		if existing == name {
			return
		}
	}
	g.outputs = append(g.outputs, name)
}

// Outputs returns the output node names in the order they were marked.
func (g *NodeGraph) Outputs() []string {
	out := make([]string, len(g.outputs))
	copy(out, g.outputs)
	return out
}

// Validate checks that every node reference points at a node present in the
// graph. References are weak until serialization, so this is where a
// dangling name surfaces.
func (g *NodeGraph) Validate() error {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for input, value := range g.nodes[name].Inputs {
			ref, ok := value.(NodeRef)
			if !ok {
				continue
			}
			if _, present := g.nodes[ref.Node]; !present {
				return fmt.Errorf("%w: %s.%s -> %s", ErrDanglingRef, name, input, ref.Node)
			}
		}
	}

	for _, name := range g.outputs {
		if _, present := g.nodes[name]; !present {
			return fmt.Errorf("%w: output %s", ErrDanglingRef, name)
		}
	}
	return nil
}

func (g *NodeGraph) MarshalJSON() ([]byte, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(g.nodes)
}

func (g *NodeGraph) UnmarshalJSON(b []byte) error {
	var nodes map[string]*Node
	if err := json.Unmarshal(b, &nodes); err != nil {
		return err
	}
	if nodes == nil {
		nodes = make(map[string]*Node)
	}

	// Input tuples come back as []interface{}; turn them into NodeRefs so a
	// decoded graph behaves like a built one.
	for _, node := range nodes {
		for input, value := range node.Inputs {
			tmp, ok := value.([]interface{})
			if !ok || len(tmp) != 2 {
				continue
			}
			name, nameOK := tmp[0].(string)
			slot, slotOK := tmp[1].(float64)
			if !nameOK || !slotOK {
				continue
			}
			node.Inputs[input] = NodeRef{Node: name, Slot: int(slot)}
		}
	}

	g.nodes = nodes
	return nil
}
