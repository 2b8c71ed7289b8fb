package client

import "github.com/sandmoen/comfyforge/graphapi"

// QueueItem tracks one prompt from submission until the backend reports it
// stopped. Messages carries the event stream for this prompt only; after a
// "stopped" message the channel is closed and receives nothing further.
type QueueItem struct {
	PromptID   string                 `json:"prompt_id"`
	Number     int                    `json:"number"`
	NodeErrors map[string]interface{} `json:"node_errors"`

	Messages   chan PromptMessage             `json:"-"`
	Graph      *graphapi.NodeGraph            `json:"-"`
	Parameters *graphapi.GenerationParameters `json:"-"`
}
