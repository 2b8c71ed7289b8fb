package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/sandmoen/comfyforge/graphapi"
)

/*
Backend routes used by the client:

@routes.get("/view")
@routes.get("/system_stats")
@routes.get("/prompt")
@routes.get("/embeddings")

@routes.post("/prompt")
@routes.post("/interrupt")
@routes.post("/free")
@routes.post("/history")
*/

// PromptEnvelope is the POST /prompt request body. Parameters ride along
// under extra_pnginfo so the backend embeds them in every image it saves.
type PromptEnvelope struct {
	ClientID  string              `json:"client_id"`
	Prompt    *graphapi.NodeGraph `json:"prompt"`
	ExtraData PromptExtraData     `json:"extra_data"`
}

type PromptExtraData struct {
	PngInfo PromptPngInfo `json:"extra_pnginfo"`
}

type PromptPngInfo struct {
	ComfyForge PromptMetadata `json:"comfyforge"`
}

type PromptMetadata struct {
	Parameters *graphapi.GenerationParameters `json:"parameters"`
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := fmt.Sprintf("http://%s%s", c.serverBaseAddress, path)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req, path)
}

func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	u := fmt.Sprintf("http://%s%s", c.serverBaseAddress, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path)
}

// do runs the request and reads the whole response. On a non-OK status the
// body is still returned, the backend explains refusals there.
func (c *Client) do(req *http.Request, path string) ([]byte, error) {
	resp, err := c.httpclient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return body, fmt.Errorf("%s %s: %s", req.Method, path, resp.Status)
	}
	return body, nil
}

// QueuePrompt submits a built graph for execution. The returned QueueItem
// carries the event stream for this prompt; consume it with ProcessMessages
// or read the Messages channel directly.
func (c *Client) QueuePrompt(ctx context.Context, graph *graphapi.NodeGraph, params *graphapi.GenerationParameters) (*QueueItem, error) {
	if err := c.CheckConnection(); err != nil {
		return nil, err
	}

	envelope := &PromptEnvelope{
		ClientID: c.clientid,
		Prompt:   graph,
	}
	envelope.ExtraData.PngInfo.ComfyForge.Parameters = params
	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, err
	}

	// prevent a race where the socket may deliver messages about a queued
	// item before we add the item to our internal map
	c.webSocket.LockRead()
	defer c.webSocket.UnlockRead()

	body, err := c.post(ctx, "/prompt", data)
	if err != nil {
		perror := &PromptErrorMessage{}
		if len(body) > 0 && json.Unmarshal(body, perror) == nil && perror.Error.Message != "" {
			return nil, errors.New(perror.Error.Message)
		}
		return nil, err
	}

	item := &QueueItem{
		Graph:      graph,
		Parameters: params,
		Messages:   make(chan PromptMessage),
	}
	if err := json.Unmarshal(body, item); err != nil {
		slog.Error("unexpected queue response", "body", string(body))
		return nil, err
	}
	c.queueditems[item.PromptID] = item
	return item, nil
}

// Interrupt asks the backend to stop the currently executing prompt.
func (c *Client) Interrupt(ctx context.Context) error {
	_, err := c.post(ctx, "/interrupt", []byte("{}"))
	return err
}

// FreeMemory asks the backend to unload models and release cached VRAM.
func (c *Client) FreeMemory(ctx context.Context) error {
	_, err := c.post(ctx, "/free", []byte(`{"unload_models": true, "free_memory": true}`))
	return err
}

// GetImage downloads one generated output.
func (c *Client) GetImage(ctx context.Context, output DataOutput) ([]byte, error) {
	params := url.Values{}
	params.Add("filename", output.Filename)
	params.Add("subfolder", output.Subfolder)
	params.Add("type", output.Type)
	return c.get(ctx, "/view", params)
}

// GetSystemStats reports OS and accelerator details for the backend host.
func (c *Client) GetSystemStats(ctx context.Context) (*SystemStats, error) {
	body, err := c.get(ctx, "/system_stats", nil)
	if err != nil {
		return nil, err
	}
	retv := &SystemStats{}
	if err := json.Unmarshal(body, retv); err != nil {
		return nil, err
	}
	return retv, nil
}

// GetQueueInfo returns how many prompts the backend still has queued.
func (c *Client) GetQueueInfo(ctx context.Context) (*QueueExecInfo, error) {
	body, err := c.get(ctx, "/prompt", nil)
	if err != nil {
		return nil, err
	}
	retv := &QueueExecInfo{}
	if err := json.Unmarshal(body, retv); err != nil {
		return nil, err
	}
	return retv, nil
}

// GetEmbeddings lists the embedding models installed on the backend.
func (c *Client) GetEmbeddings(ctx context.Context) ([]string, error) {
	body, err := c.get(ctx, "/embeddings", nil)
	if err != nil {
		return nil, err
	}
	retv := make([]string, 0)
	if err := json.Unmarshal(body, &retv); err != nil {
		return nil, err
	}
	return retv, nil
}

// EraseHistory clears the backend's prompt history.
func (c *Client) EraseHistory(ctx context.Context) error {
	_, err := c.post(ctx, "/history", []byte(`{"clear": "clear"}`))
	return err
}

// EraseHistoryItem removes a single prompt from the backend's history.
func (c *Client) EraseHistoryItem(ctx context.Context, promptID string) error {
	data, err := json.Marshal(map[string][]string{"delete": {promptID}})
	if err != nil {
		return err
	}
	_, err = c.post(ctx, "/history", data)
	return err
}
