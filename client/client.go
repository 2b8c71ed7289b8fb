package client

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type QueuedItemStoppedReason string

const (
	QueuedItemStoppedReasonFinished    QueuedItemStoppedReason = "finished"
	QueuedItemStoppedReasonInterrupted QueuedItemStoppedReason = "interrupted"
	QueuedItemStoppedReasonError       QueuedItemStoppedReason = "error"
)

// Callbacks are optional hooks invoked while queued prompts move through the
// backend. Any field may be nil. They run on the websocket dispatch
// goroutine, so they must not block and must not queue prompts themselves.
type Callbacks struct {
	QueueCountChanged       func(*Client, int)
	QueuedItemStarted       func(*Client, *QueueItem)
	QueuedItemStopped       func(*Client, *QueueItem, QueuedItemStoppedReason)
	QueuedItemDataAvailable func(*Client, *QueueItem, *PromptMessageData)
}

// Client talks to a single ComfyUI-compatible backend over HTTP plus a
// websocket event stream.
type Client struct {
	serverBaseAddress string
	serverAddress     string
	serverPort        int
	clientid          string
	webSocket         *WebSocketConnection
	initialized       bool
	queueditems       map[string]*QueueItem
	queuecount        int
	callbacks         *Callbacks
	lastPromptID      string
	timeout           int
	httpclient        *http.Client
}

// New creates a client for the backend at serverAddress:serverPort. The
// websocket is not connected until Init or the first queued prompt.
func New(serverAddress string, serverPort int, callbacks *Callbacks) *Client {
	return NewWithTimeout(serverAddress, serverPort, callbacks, -1, 5)
}

// NewWithTimeout creates a client with a websocket connection timeout in
// seconds (zero or negative waits indefinitely) and a maximum connect retry
// count.
func NewWithTimeout(serverAddress string, serverPort int, callbacks *Callbacks, timeout int, maxRetry int) *Client {
	sbaseaddr := serverAddress + ":" + strconv.Itoa(serverPort)
	cid := uuid.New().String()
	retv := &Client{
		serverBaseAddress: sbaseaddr,
		serverAddress:     serverAddress,
		serverPort:        serverPort,
		clientid:          cid,
		queueditems:       make(map[string]*QueueItem),
		callbacks:         callbacks,
		timeout:           timeout,
		httpclient:        &http.Client{},
	}
	retv.webSocket = &WebSocketConnection{
		WebSocketURL:   fmt.Sprintf("ws://%s/ws?clientId=%s", sbaseaddr, cid),
		ConnectionDone: make(chan bool, 1),
		MaxRetry:       maxRetry,
		BaseDelay:      1 * time.Second,
		MaxDelay:       1 * time.Minute,
		Callback:       retv,
		Dialer:         websocket.Dialer{},
	}
	return retv
}

// IsInitialized returns true while the websocket event stream is connected.
func (c *Client) IsInitialized() bool {
	return c.initialized && c.webSocket.IsConnected
}

// CheckConnection initializes the client if the websocket is not connected.
func (c *Client) CheckConnection() error {
	if !c.IsInitialized() {
		return c.Init()
	}
	return nil
}

// Init opens the websocket event stream. It blocks until the connection is
// established or the configured timeout elapses.
func (c *Client) Init() error {
	if err := c.webSocket.ConnectWithManager(c.timeout); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

// Close shuts the websocket down. Queued items stop receiving messages.
func (c *Client) Close() error {
	c.initialized = false
	return c.webSocket.Close()
}

// ClientID returns the unique client ID for the connection to the backend.
func (c *Client) ClientID() string {
	return c.clientid
}

// QueueCount returns the backend queue depth from the latest status message.
func (c *Client) QueueCount() int {
	return c.queuecount
}

// HTTPClient returns the underlying http client.
func (c *Client) HTTPClient() *http.Client {
	return c.httpclient
}

// SetHTTPClient replaces the underlying http client.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpclient = client
}

// GetQueuedItem returns a QueueItem that was queued with this client and has
// not finished yet. Stopped items are no longer available here.
func (c *Client) GetQueuedItem(promptID string) *QueueItem {
	return c.queueditems[promptID]
}

// OnMessage translates each websocket event into a PromptMessage on the
// owning QueueItem's channel. Events for prompts this client did not queue
// are dropped.
func (c *Client) OnMessage(msg string) {
	message := &WSMessage{}
	if err := json.Unmarshal([]byte(msg), message); err != nil {
		slog.Error("deserializing websocket message", "error", err)
		return
	}

	switch message.Type {
	case "status":
		s := message.Data.(*WSMessageDataStatus)
		c.queuecount = s.Status.ExecInfo.QueueRemaining
		if c.callbacks != nil && c.callbacks.QueueCountChanged != nil {
			c.callbacks.QueueCountChanged(c, c.queuecount)
		}
	case "execution_start":
		s := message.Data.(*WSMessageDataExecutionStart)
		c.lastPromptID = s.PromptID
		qi := c.GetQueuedItem(s.PromptID)
		if qi != nil {
			if c.callbacks != nil && c.callbacks.QueuedItemStarted != nil {
				c.callbacks.QueuedItemStarted(c, qi)
			}
			qi.Messages <- PromptMessage{
				Type:    "started",
				Message: &PromptMessageStarted{PromptID: qi.PromptID},
			}
		}
	case "execution_cached":
		// the backend reused node outputs, nothing to surface
	case "executing":
		s := message.Data.(*WSMessageDataExecuting)
		qi := c.GetQueuedItem(s.PromptID)
		if qi == nil {
			return
		}
		if s.Node == nil {
			// final node was processed
			c.stopItem(qi, QueuedItemStoppedReasonFinished, nil)
			return
		}
		exec := &PromptMessageExecuting{NodeName: *s.Node}
		if node := qi.Graph.GetNodeByName(*s.Node); node != nil {
			exec.ClassType = node.ClassType
		}
		qi.Messages <- PromptMessage{Type: "executing", Message: exec}
	case "progress":
		// progress events carry no prompt id, they belong to the prompt
		// that most recently started
		s := message.Data.(*WSMessageDataProgress)
		qi := c.GetQueuedItem(c.lastPromptID)
		if qi != nil {
			qi.Messages <- PromptMessage{
				Type:    "progress",
				Message: &PromptMessageProgress{Value: s.Value, Max: s.Max},
			}
		}
	case "executed":
		s := message.Data.(*WSMessageDataExecuted)
		qi := c.GetQueuedItem(s.PromptID)
		if qi != nil {
			mdata := &PromptMessageData{NodeName: s.Node, Data: s.Output}
			if c.callbacks != nil && c.callbacks.QueuedItemDataAvailable != nil {
				c.callbacks.QueuedItemDataAvailable(c, qi, mdata)
			}
			qi.Messages <- PromptMessage{Type: "data", Message: mdata}
		}
	case "execution_interrupted":
		s := message.Data.(*WSMessageDataExecutionInterrupted)
		qi := c.GetQueuedItem(s.PromptID)
		if qi != nil {
			c.stopItem(qi, QueuedItemStoppedReasonInterrupted, nil)
		}
	case "execution_error":
		s := message.Data.(*WSMessageDataExecutionError)
		qi := c.GetQueuedItem(s.PromptID)
		if qi != nil {
			exception := &PromptMessageStoppedException{
				NodeName:         s.Node,
				NodeType:         s.NodeType,
				ExceptionMessage: s.ExceptionMessage,
				ExceptionType:    s.ExceptionType,
				Traceback:        s.Traceback,
			}
			c.stopItem(qi, QueuedItemStoppedReasonError, exception)
		}
	case "crystools.monitor":
		// periodic hardware telemetry from a popular extension, ignored
	default:
		slog.Warn("unhandled websocket message", "type", message.Type)
	}
}

// stopItem retires a queued item. The item is removed from the queue map
// before the stopped message is sent; no further messages follow, so the
// channel is closed behind it.
func (c *Client) stopItem(qi *QueueItem, reason QueuedItemStoppedReason, exception *PromptMessageStoppedException) {
	if c.callbacks != nil && c.callbacks.QueuedItemStopped != nil {
		c.callbacks.QueuedItemStopped(c, qi, reason)
	}
	delete(c.queueditems, qi.PromptID)
	qi.Messages <- PromptMessage{
		Type: "stopped",
		Message: &PromptMessageStopped{
			QueueItem: qi,
			Exception: exception,
		},
	}
	close(qi.Messages)
}
