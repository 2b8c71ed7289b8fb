package client

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketCallback receives each raw text message read from the socket.
type WebSocketCallback interface {
	OnMessage(message string)
}

type WebSocketConnection struct {
	WebSocketURL   string
	Conn           *websocket.Conn
	ConnectionDone chan bool
	IsConnected    bool
	MaxRetry       int
	RetryCount     int
	mu             sync.Mutex
	Callback       WebSocketCallback

	// Exponential backoff configuration
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Dialer    websocket.Dialer
}

// ConnectWithManager dials the socket, retrying with exponential backoff up
// to MaxRetry attempts. timeoutSeconds bounds the wait for the first
// successful connection; zero or negative waits indefinitely.
func (w *WebSocketConnection) ConnectWithManager(timeoutSeconds int) error {
	// A previous session's read loop may have left its exit signal behind;
	// drain it so it cannot stop this round of attempts.
	select {
	case <-w.ConnectionDone:
	default:
	}

	// Closed on success and on giving up, so the caller never waits on a
	// connection that stopped being attempted.
	connected := make(chan bool, 1)
	// Channel for connection attempts (ensures connect() is not called concurrently)
	attemptConnect := make(chan bool, 1)
	attemptConnect <- true

	go func() {
		for {
			select {
			case <-attemptConnect:
				err := w.connect()
				if err != nil {
					w.IsConnected = false
					if w.RetryCount >= w.MaxRetry {
						slog.Error("websocket connect giving up", "attempts", w.RetryCount, "error", err)
						close(connected)
						return
					}
					delay := w.reconnectDelay()
					slog.Warn("websocket connect failed, retrying", "delay", delay, "error", err)
					time.AfterFunc(delay, func() {
						attemptConnect <- true
					})
				} else {
					w.IsConnected = true
					w.RetryCount = 0
					close(connected)
					w.handleMessages()
					return
				}
			case <-w.ConnectionDone:
				return
			}
		}
	}()

	if timeoutSeconds > 0 {
		select {
		case <-connected:
		case <-time.After(time.Duration(timeoutSeconds) * time.Second):
			return fmt.Errorf("websocket connection timeout after %ds", timeoutSeconds)
		}
	} else {
		<-connected
	}

	if !w.IsConnected {
		return fmt.Errorf("websocket connection failed after %d attempts", w.RetryCount)
	}
	return nil
}

func (w *WebSocketConnection) connect() error {
	conn, _, err := w.Dialer.Dial(w.WebSocketURL, nil)
	if err != nil {
		return err
	}
	w.Conn = conn
	return nil
}

// Ping verifies the connection is still writable.
func (w *WebSocketConnection) Ping() error {
	return w.Conn.WriteMessage(websocket.PingMessage, nil)
}

// Close tears the connection down. The read loop exits on the closed
// connection and signals ConnectionDone.
func (w *WebSocketConnection) Close() error {
	w.IsConnected = false
	if w.Conn == nil {
		return nil
	}
	return w.Conn.Close()
}

// handleMessages pumps incoming messages into the callback until the
// connection drops. Dispatch holds the read lock so callers can pause it
// while they update state the dispatch path observes.
func (w *WebSocketConnection) handleMessages() {
	defer func() {
		w.Conn.Close()
		w.IsConnected = false
		w.ConnectionDone <- true
	}()
	for {
		_, message, err := w.Conn.ReadMessage()
		if err != nil {
			slog.Warn("websocket read error", "error", err)
			break
		}
		if w.Callback != nil {
			w.mu.Lock()
			w.Callback.OnMessage(string(message))
			w.mu.Unlock()
		}
	}
}

// reconnectDelay is BaseDelay * 2^RetryCount, capped at MaxDelay.
func (w *WebSocketConnection) reconnectDelay() time.Duration {
	delay := w.BaseDelay * time.Duration(math.Pow(2, float64(w.RetryCount)))
	if delay > w.MaxDelay {
		delay = w.MaxDelay
	}
	w.RetryCount++
	return delay
}

// LockRead pauses message dispatch until UnlockRead.
func (w *WebSocketConnection) LockRead() {
	w.mu.Lock()
}

func (w *WebSocketConnection) UnlockRead() {
	w.mu.Unlock()
}
