package graphapi

import (
	"encoding/json"
	"errors"
)

// Node is a single entry in the API prompt format: a ComfyUI class type plus
// its inputs.
type Node struct {
	// Inputs can be one of:
	//	float64
	//	int64
	//	string
	//	bool
	//	NodeRef referencing another node's output slot
	Inputs    map[string]interface{} `json:"inputs"`
	ClassType string                 `json:"class_type"`
}

// NodeRef is a weak reference to an output slot of another node in the same
// graph. It is held by name and only resolved against the node collection
// when the graph is serialized. On the wire it is the two element tuple
// ComfyUI expects: ["node name", slot].
type NodeRef struct {
	Node string
	Slot int
}

// Output returns a reference to a different output slot of the same node.
func (r NodeRef) Output(slot int) NodeRef {
	r.Slot = slot
	return r
}

func (r NodeRef) MarshalJSON() ([]byte, error) {
	tmp := []interface{}{
		r.Node,
		r.Slot,
	}
	return json.Marshal(tmp)
}

func (r *NodeRef) UnmarshalJSON(b []byte) error {
	var tmp []interface{}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	if len(tmp) != 2 {
		return errors.New("wrong number of fields in JSON array")
	}

	name, ok := tmp[0].(string)
	if !ok {
		return errors.New("node name is not a string")
	}
	slot, ok := tmp[1].(float64)
	if !ok {
		return errors.New("slot index is not a number")
	}

	r.Node = name
	r.Slot = int(slot)

	return nil
}
