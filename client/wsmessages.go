package client

import (
	"encoding/json"
	"log/slog"
)

// WSMessage is the envelope for every event the backend pushes over the
// websocket. Data is selected by Type during unmarshaling.
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func (m *WSMessage) UnmarshalJSON(b []byte) error {
	// Unmarshal into an anonymous equivalent to avoid infinite recursion
	var temp struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &temp); err != nil {
		return err
	}

	m.Type = temp.Type

	switch m.Type {
	case "status":
		m.Data = &WSMessageDataStatus{}
	case "execution_start":
		m.Data = &WSMessageDataExecutionStart{}
	case "execution_cached":
		m.Data = &WSMessageDataExecutionCached{}
	case "executing":
		m.Data = &WSMessageDataExecuting{}
	case "progress":
		m.Data = &WSMessageDataProgress{}
	case "executed":
		m.Data = &WSMessageDataExecuted{}
	case "execution_interrupted":
		m.Data = &WSMessageDataExecutionInterrupted{}
	case "execution_error":
		m.Data = &WSMessageDataExecutionError{}
	default:
		m.Data = nil
	}

	if m.Data != nil && len(temp.Data) > 0 {
		if err := json.Unmarshal(temp.Data, m.Data); err != nil {
			return err
		}
	}

	return nil
}

type WSMessageDataStatus struct {
	Status struct {
		ExecInfo struct {
			QueueRemaining int `json:"queue_remaining"`
		} `json:"exec_info"`
	} `json:"status"`
}

/*
{"type": "status", "data": {"status": {"exec_info": {"queue_remaining": 1}}}}
*/

type WSMessageDataExecutionStart struct {
	PromptID string `json:"prompt_id"`
}

/*
{"type": "execution_start", "data": {"prompt_id": "ed986d60-2a27-4d28-8871-2fdb36582902"}}
*/

type WSMessageDataExecutionCached struct {
	Nodes    []string `json:"nodes"`
	PromptID string   `json:"prompt_id"`
}

/*
{"type": "execution_cached", "data": {"nodes": [], "prompt_id": "ed986d60-2a27-4d28-8871-2fdb36582902"}}
*/

// WSMessageDataExecuting names the node the backend moved on to. Node is nil
// once the whole prompt has finished executing.
type WSMessageDataExecuting struct {
	Node     *string `json:"node"`
	PromptID string  `json:"prompt_id"`
}

/*
{"type": "executing", "data": {"node": "Sampler", "prompt_id": "ed986d60-2a27-4d28-8871-2fdb36582902"}}
{"type": "executing", "data": {"node": null, "prompt_id": "ed986d60-2a27-4d28-8871-2fdb36582902"}}
*/

type WSMessageDataProgress struct {
	Value int `json:"value"`
	Max   int `json:"max"`
}

/*
{"type": "progress", "data": {"value": 1, "max": 20}}
*/

type WSMessageDataExecuted struct {
	Node     string                  `json:"node"`
	Output   map[string][]DataOutput `json:"output"`
	PromptID string                  `json:"prompt_id"`
}

// Output entries are usually file references, but some node packs emit bare
// strings. Both forms are folded into DataOutput.
func (m *WSMessageDataExecuted) UnmarshalJSON(b []byte) error {
	var temp struct {
		Node     string                       `json:"node"`
		Output   map[string][]json.RawMessage `json:"output"`
		PromptID string                       `json:"prompt_id"`
	}
	if err := json.Unmarshal(b, &temp); err != nil {
		return err
	}

	m.Node = temp.Node
	m.PromptID = temp.PromptID
	m.Output = make(map[string][]DataOutput)
	for key, entries := range temp.Output {
		outs := make([]DataOutput, 0, len(entries))
		for _, raw := range entries {
			var file DataOutput
			if err := json.Unmarshal(raw, &file); err == nil && file.Filename != "" {
				outs = append(outs, file)
				continue
			}
			var text string
			if err := json.Unmarshal(raw, &text); err == nil {
				outs = append(outs, DataOutput{Type: "text", Text: text})
				continue
			}
			slog.Warn("unrecognized output entry", "node", temp.Node, "key", key)
		}
		m.Output[key] = outs
	}
	return nil
}

/*
{"type": "executed", "data": {"node": "SaveImage", "output": {"images": [{"filename": "comfyforge_00046_.png", "subfolder": "", "type": "output"}]}, "prompt_id": "ed986d60-2a27-4d28-8871-2fdb36582902"}}

// when there are multiple outputs, each output node receives an "executed"
{"type": "executed", "data": {"node": "Preview", "output": {"images": [{"filename": "comfyforge_temp_00001_.png", "subfolder": "", "type": "temp"}]}, "prompt_id": "3bcf5bac-19e1-4219-a0eb-50a84e4db2ea"}}
*/

type WSMessageDataExecutionInterrupted struct {
	PromptID string   `json:"prompt_id"`
	Node     string   `json:"node_id"`
	NodeType string   `json:"node_type"`
	Executed []string `json:"executed"`
}

/*
{"type": "execution_interrupted", "data": {"prompt_id": "dc7093d7-980a-4fe6-bf0c-f6fef932c74b", "node_id": "SaveImage", "node_type": "SaveImage", "executed": ["EmptyLatent", "CheckpointLoader", "PositiveCLIP", "NegativeCLIP"]}}
*/

type WSMessageDataExecutionError struct {
	PromptID         string                 `json:"prompt_id"`
	Node             string                 `json:"node_id"`
	NodeType         string                 `json:"node_type"`
	Executed         []string               `json:"executed"`
	ExceptionMessage string                 `json:"exception_message"`
	ExceptionType    string                 `json:"exception_type"`
	Traceback        []string               `json:"traceback"`
	CurrentInputs    map[string]interface{} `json:"current_inputs"`
	CurrentOutputs   map[string]interface{} `json:"current_outputs"`
}
