package client

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/sandmoen/comfyforge/graphapi"
)

func testGraph(t *testing.T) *graphapi.NodeGraph {
	t.Helper()
	g := graphapi.NewNodeGraph()
	latent, err := graphapi.AddEmptyLatent(g, "EmptyLatent", graphapi.Size{Width: 512, Height: 512}, 1)
	if err != nil {
		t.Fatalf("Failed to add latent: %v", err)
	}
	_, _, vae, err := graphapi.AddCheckpointLoader(g, "CheckpointLoader", "photon_v1.safetensors")
	if err != nil {
		t.Fatalf("Failed to add checkpoint loader: %v", err)
	}
	decoded, err := graphapi.AddVAEDecode(g, "VAEDecode", latent, vae)
	if err != nil {
		t.Fatalf("Failed to add decode: %v", err)
	}
	if _, err := graphapi.AddSaveImage(g, "SaveImage", decoded, "comfyforge"); err != nil {
		t.Fatalf("Failed to add save image: %v", err)
	}
	g.MarkOutput("SaveImage")
	return g
}

// newTestClient points a client at the test server and marks the websocket
// connected, so the HTTP surface can be exercised without a socket.
func newTestClient(t *testing.T, ts *httptest.Server) *Client {
	t.Helper()
	u, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatalf("Failed to parse test server URL: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("Failed to parse test server port: %v", err)
	}
	c := New(u.Hostname(), port, nil)
	c.initialized = true
	c.webSocket.IsConnected = true
	return c
}

func TestPromptEnvelopeShape(t *testing.T) {
	g := testGraph(t)
	params := &graphapi.GenerationParameters{Prompt: "a lighthouse at dusk", Seed: 42}

	envelope := &PromptEnvelope{ClientID: "test-client", Prompt: g}
	envelope.ExtraData.PngInfo.ComfyForge.Parameters = params

	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("Failed to marshal envelope: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Failed to unmarshal envelope: %v", err)
	}

	if raw["client_id"] != "test-client" {
		t.Errorf("Expected client_id test-client, got %v", raw["client_id"])
	}

	prompt, ok := raw["prompt"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected prompt to be an object, got %T", raw["prompt"])
	}
	decode, ok := prompt["VAEDecode"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected a VAEDecode node in the prompt")
	}
	if decode["class_type"] != "VAEDecode" {
		t.Errorf("Expected class_type VAEDecode, got %v", decode["class_type"])
	}
	inputs := decode["inputs"].(map[string]interface{})
	samples, ok := inputs["samples"].([]interface{})
	if !ok || len(samples) != 2 {
		t.Fatalf("Expected samples to be a 2 element tuple, got %v", inputs["samples"])
	}
	if samples[0] != "EmptyLatent" || samples[1].(float64) != 0 {
		t.Errorf("Expected [EmptyLatent 0], got %v", samples)
	}

	extra := raw["extra_data"].(map[string]interface{})
	pnginfo := extra["extra_pnginfo"].(map[string]interface{})
	forge := pnginfo["comfyforge"].(map[string]interface{})
	stored := forge["parameters"].(map[string]interface{})
	if stored["prompt"] != "a lighthouse at dusk" {
		t.Errorf("Expected the embedded prompt text, got %v", stored["prompt"])
	}
	if stored["seed"].(float64) != 42 {
		t.Errorf("Expected embedded seed 42, got %v", stored["seed"])
	}
}

func TestQueuePrompt(t *testing.T) {
	var received []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/prompt" {
			t.Errorf("Expected POST /prompt, got %s %s", r.Method, r.URL.Path)
		}
		received, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"prompt_id": "abc-123", "number": 7, "node_errors": {}}`))
	}))
	defer ts.Close()

	c := newTestClient(t, ts)
	g := testGraph(t)
	params := &graphapi.GenerationParameters{Prompt: "a lighthouse at dusk"}

	item, err := c.QueuePrompt(context.Background(), g, params)
	if err != nil {
		t.Fatalf("Failed to queue prompt: %v", err)
	}
	if item.PromptID != "abc-123" {
		t.Errorf("Expected prompt id abc-123, got %s", item.PromptID)
	}
	if item.Number != 7 {
		t.Errorf("Expected queue number 7, got %d", item.Number)
	}
	if c.GetQueuedItem("abc-123") != item {
		t.Errorf("Queued item was not registered with the client")
	}
	if item.Graph != g || item.Parameters != params {
		t.Errorf("Queued item should carry the submitted graph and parameters")
	}

	envelope := &PromptEnvelope{}
	if err := json.Unmarshal(received, envelope); err != nil {
		t.Fatalf("Backend received an invalid envelope: %v", err)
	}
	if envelope.ClientID != c.ClientID() {
		t.Errorf("Expected client id %s, got %s", c.ClientID(), envelope.ClientID)
	}
	if envelope.Prompt.GetNodeByName("SaveImage") == nil {
		t.Errorf("Backend did not receive the graph nodes")
	}
}

func TestQueuePromptBackendError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"type": "prompt_no_outputs", "message": "Prompt has no outputs", "details": "", "extra_info": {}}, "node_errors": []}`))
	}))
	defer ts.Close()

	c := newTestClient(t, ts)
	item, err := c.QueuePrompt(context.Background(), testGraph(t), &graphapi.GenerationParameters{})
	if err == nil {
		t.Fatalf("Expected an error from the backend")
	}
	if item != nil {
		t.Errorf("Expected no queue item on error")
	}
	if err.Error() != "Prompt has no outputs" {
		t.Errorf("Expected the backend error message, got %q", err.Error())
	}
}

func TestQueuePromptCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"prompt_id": "x"}`))
	}))
	defer ts.Close()

	c := newTestClient(t, ts)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.QueuePrompt(ctx, testGraph(t), &graphapi.GenerationParameters{}); err == nil {
		t.Fatalf("Expected an error for a cancelled context")
	}
}

func TestOnMessageDispatch(t *testing.T) {
	c := New("localhost", 8188, nil)
	qi := &QueueItem{
		PromptID: "d2a34e45",
		Messages: make(chan PromptMessage, 8),
		Graph:    testGraph(t),
	}
	c.queueditems[qi.PromptID] = qi

	c.OnMessage(`{"type": "execution_start", "data": {"prompt_id": "d2a34e45"}}`)
	c.OnMessage(`{"type": "executing", "data": {"node": "VAEDecode", "prompt_id": "d2a34e45"}}`)
	c.OnMessage(`{"type": "progress", "data": {"value": 5, "max": 20}}`)
	c.OnMessage(`{"type": "executed", "data": {"node": "SaveImage", "output": {"images": [{"filename": "comfyforge_00001_.png", "subfolder": "", "type": "output"}]}, "prompt_id": "d2a34e45"}}`)
	c.OnMessage(`{"type": "executing", "data": {"node": null, "prompt_id": "d2a34e45"}}`)

	started := <-qi.Messages
	if started.Type != "started" {
		t.Fatalf("Expected started, got %s", started.Type)
	}

	executing := <-qi.Messages
	if executing.Type != "executing" {
		t.Fatalf("Expected executing, got %s", executing.Type)
	}
	exec := executing.ToPromptMessageExecuting()
	if exec.NodeName != "VAEDecode" || exec.ClassType != "VAEDecode" {
		t.Errorf("Expected VAEDecode node and class, got %s/%s", exec.NodeName, exec.ClassType)
	}

	progress := <-qi.Messages
	if progress.Type != "progress" {
		t.Fatalf("Expected progress, got %s", progress.Type)
	}
	if p := progress.ToPromptMessageProgress(); p.Value != 5 || p.Max != 20 {
		t.Errorf("Expected progress 5/20, got %d/%d", p.Value, p.Max)
	}

	data := <-qi.Messages
	if data.Type != "data" {
		t.Fatalf("Expected data, got %s", data.Type)
	}
	images := data.ToPromptMessageData().Data["images"]
	if len(images) != 1 || images[0].Filename != "comfyforge_00001_.png" {
		t.Errorf("Expected one image output, got %v", images)
	}

	stopped := <-qi.Messages
	if stopped.Type != "stopped" {
		t.Fatalf("Expected stopped, got %s", stopped.Type)
	}
	if stopped.ToPromptMessageStopped().Exception != nil {
		t.Errorf("Expected a clean stop")
	}
	if c.GetQueuedItem("d2a34e45") != nil {
		t.Errorf("Stopped item should be removed from the queue map")
	}
	if _, open := <-qi.Messages; open {
		t.Errorf("Messages channel should be closed after stopped")
	}
}

func TestOnMessageExecutionError(t *testing.T) {
	var stoppedReason QueuedItemStoppedReason
	c := New("localhost", 8188, &Callbacks{
		QueuedItemStopped: func(_ *Client, _ *QueueItem, reason QueuedItemStoppedReason) {
			stoppedReason = reason
		},
	})
	qi := &QueueItem{PromptID: "err-1", Messages: make(chan PromptMessage, 2), Graph: graphapi.NewNodeGraph()}
	c.queueditems[qi.PromptID] = qi

	c.OnMessage(`{"type": "execution_error", "data": {"prompt_id": "err-1", "node_id": "Sampler", "node_type": "KSampler", "executed": [], "exception_message": "out of memory", "exception_type": "OOM", "traceback": []}}`)

	msg := <-qi.Messages
	if msg.Type != "stopped" {
		t.Fatalf("Expected stopped, got %s", msg.Type)
	}
	stopped := msg.ToPromptMessageStopped()
	if stopped.Exception == nil {
		t.Fatalf("Expected an exception on the stopped message")
	}
	if stopped.Exception.NodeName != "Sampler" || stopped.Exception.ExceptionMessage != "out of memory" {
		t.Errorf("Exception not carried through: %+v", stopped.Exception)
	}
	if stoppedReason != QueuedItemStoppedReasonError {
		t.Errorf("Expected stop reason error, got %s", stoppedReason)
	}
}

func TestWSMessageParsing(t *testing.T) {
	msg := &WSMessage{}
	if err := json.Unmarshal([]byte(`{"type": "status", "data": {"status": {"exec_info": {"queue_remaining": 2}}}}`), msg); err != nil {
		t.Fatalf("Failed to parse status message: %v", err)
	}
	status, ok := msg.Data.(*WSMessageDataStatus)
	if !ok {
		t.Fatalf("Expected WSMessageDataStatus, got %T", msg.Data)
	}
	if status.Status.ExecInfo.QueueRemaining != 2 {
		t.Errorf("Expected 2 remaining, got %d", status.Status.ExecInfo.QueueRemaining)
	}

	if err := json.Unmarshal([]byte(`{"type": "executing", "data": {"node": null, "prompt_id": "p1"}}`), msg); err != nil {
		t.Fatalf("Failed to parse executing message: %v", err)
	}
	executing := msg.Data.(*WSMessageDataExecuting)
	if executing.Node != nil {
		t.Errorf("Expected a nil node for the final executing message")
	}
	if executing.PromptID != "p1" {
		t.Errorf("Expected prompt id p1, got %s", executing.PromptID)
	}

	if err := json.Unmarshal([]byte(`{"type": "fancy_extension_event", "data": {"x": 1}}`), msg); err != nil {
		t.Fatalf("Unknown message types should not fail: %v", err)
	}
	if msg.Data != nil {
		t.Errorf("Expected nil data for an unknown message type")
	}
}

func TestExecutedOutputForms(t *testing.T) {
	raw := `{"type": "executed", "data": {"node": "SaveImage", "output": {"images": [{"filename": "a.png", "subfolder": "s", "type": "output"}], "text": ["hello"]}, "prompt_id": "p1"}}`
	msg := &WSMessage{}
	if err := json.Unmarshal([]byte(raw), msg); err != nil {
		t.Fatalf("Failed to parse executed message: %v", err)
	}
	executed := msg.Data.(*WSMessageDataExecuted)
	images := executed.Output["images"]
	if len(images) != 1 || images[0].Filename != "a.png" || images[0].Subfolder != "s" {
		t.Errorf("Image output not parsed: %v", images)
	}
	texts := executed.Output["text"]
	if len(texts) != 1 || texts[0].Type != "text" || texts[0].Text != "hello" {
		t.Errorf("Text output not parsed: %v", texts)
	}
}

func TestProcessMessages(t *testing.T) {
	qi := &QueueItem{PromptID: "p1", Messages: make(chan PromptMessage, 4)}

	var got []string
	handlers := (&MessageHandlers{}).
		WithStartedHandler(func(*PromptMessageStarted) { got = append(got, "started") }).
		WithDataHandler(func(*PromptMessageData) { got = append(got, "data") }).
		WithStoppedHandler(func(*PromptMessageStopped) { got = append(got, "stopped") }).
		WithCompleteHandler(func() { got = append(got, "complete") })

	qi.Messages <- PromptMessage{Type: "started", Message: &PromptMessageStarted{PromptID: "p1"}}
	qi.Messages <- PromptMessage{Type: "data", Message: &PromptMessageData{NodeName: "SaveImage"}}
	qi.Messages <- PromptMessage{Type: "stopped", Message: &PromptMessageStopped{QueueItem: qi}}

	if err := qi.ProcessMessages(handlers); err != nil {
		t.Fatalf("Expected a clean run, got %v", err)
	}
	want := []string{"started", "data", "stopped", "complete"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, got)
		}
	}
}

func TestProcessMessagesError(t *testing.T) {
	qi := &QueueItem{PromptID: "p1", Messages: make(chan PromptMessage, 1)}
	qi.Messages <- PromptMessage{
		Type: "stopped",
		Message: &PromptMessageStopped{
			QueueItem: qi,
			Exception: &PromptMessageStoppedException{
				NodeName:         "Sampler",
				ExceptionType:    "OOM",
				ExceptionMessage: "out of memory",
			},
		},
	}

	var seen *PromptMessageStoppedException
	err := qi.ProcessMessages((&MessageHandlers{}).WithErrorHandler(func(e *PromptMessageStoppedException) {
		seen = e
	}))
	if err == nil {
		t.Fatalf("Expected an execution error")
	}
	if seen == nil || seen.NodeName != "Sampler" {
		t.Errorf("Error handler did not receive the exception")
	}
}

func buildTestPNG(chunks map[string]string) []byte {
	var buf bytes.Buffer
	buf.Write(pngHeader)
	for keyword, content := range chunks {
		data := append([]byte(keyword), 0)
		data = append(data, []byte(content)...)
		binary.Write(&buf, binary.BigEndian, uint32(len(data)))
		buf.WriteString("tEXt")
		buf.Write(data)
		// CRC is skipped by the reader, the value does not matter
		buf.Write([]byte{0, 0, 0, 0})
	}
	return buf.Bytes()
}

func TestParametersFromPNG(t *testing.T) {
	params := &graphapi.GenerationParameters{
		Prompt: "a lighthouse at dusk",
		Width:  768,
		Height: 512,
		Seed:   99,
	}
	content, err := json.Marshal(&PromptMetadata{Parameters: params})
	if err != nil {
		t.Fatalf("Failed to marshal metadata: %v", err)
	}
	png := buildTestPNG(map[string]string{"comfyforge": string(content)})

	recovered, err := ParametersFromPNG(bytes.NewReader(png))
	if err != nil {
		t.Fatalf("Failed to recover parameters: %v", err)
	}
	if recovered.Prompt != params.Prompt || recovered.Width != 768 || recovered.Seed != 99 {
		t.Errorf("Recovered parameters do not match: %+v", recovered)
	}
}

func TestParametersFromPNGMissing(t *testing.T) {
	png := buildTestPNG(map[string]string{"workflow": "{}"})
	if _, err := ParametersFromPNG(bytes.NewReader(png)); err == nil {
		t.Fatalf("Expected an error for a PNG without parameters")
	}

	if _, err := ParametersFromPNG(bytes.NewReader([]byte("not a png stream"))); err == nil {
		t.Fatalf("Expected an error for a non PNG stream")
	}
}
