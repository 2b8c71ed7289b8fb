package client

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sandmoen/comfyforge/graphapi"
)

// MessageHandlers defines optional callbacks for the messages a QueueItem
// emits. All handlers are optional - only provide handlers for the messages
// you care about.
type MessageHandlers struct {
	// OnStarted is called when execution begins
	OnStarted func(*PromptMessageStarted)

	// OnExecuting is called when a node starts executing
	OnExecuting func(*PromptMessageExecuting)

	// OnProgress is called with progress updates during node execution
	OnProgress func(*PromptMessageProgress)

	// OnData is called when output data is available
	OnData func(*PromptMessageData)

	// OnStopped is called when execution stops (success, error, or interruption)
	OnStopped func(*PromptMessageStopped)

	// OnError is called if there was an exception during execution.
	// This is called before OnStopped when an error occurs
	OnError func(*PromptMessageStoppedException)

	// OnComplete is called after the message loop exits, regardless of
	// success or failure. Useful for cleanup operations
	OnComplete func()
}

// DefaultMessageHandlers returns MessageHandlers with sensible defaults:
// started, executing and stopped messages are logged, as are errors.
// No progress rendering; add your own handler for that.
func DefaultMessageHandlers() *MessageHandlers {
	return &MessageHandlers{
		OnStarted: func(msg *PromptMessageStarted) {
			slog.Info("execution started", "prompt_id", msg.PromptID)
		},
		OnExecuting: func(msg *PromptMessageExecuting) {
			slog.Info("executing node", "node", msg.NodeName, "class_type", msg.ClassType)
		},
		OnError: func(err *PromptMessageStoppedException) {
			slog.Error("execution error",
				"node", err.NodeName,
				"node_type", err.NodeType,
				"error", err.ExceptionMessage,
			)
		},
		OnStopped: func(msg *PromptMessageStopped) {
			if msg.Exception == nil {
				slog.Info("execution completed successfully")
			}
		},
	}
}

// WithStartedHandler adds a started handler (builder pattern)
func (h *MessageHandlers) WithStartedHandler(fn func(*PromptMessageStarted)) *MessageHandlers {
	h.OnStarted = fn
	return h
}

// WithExecutingHandler adds an executing handler (builder pattern)
func (h *MessageHandlers) WithExecutingHandler(fn func(*PromptMessageExecuting)) *MessageHandlers {
	h.OnExecuting = fn
	return h
}

// WithProgressHandler adds a progress handler (builder pattern)
func (h *MessageHandlers) WithProgressHandler(fn func(*PromptMessageProgress)) *MessageHandlers {
	h.OnProgress = fn
	return h
}

// WithDataHandler adds a data handler (builder pattern)
func (h *MessageHandlers) WithDataHandler(fn func(*PromptMessageData)) *MessageHandlers {
	h.OnData = fn
	return h
}

// WithStoppedHandler adds a stopped handler (builder pattern)
func (h *MessageHandlers) WithStoppedHandler(fn func(*PromptMessageStopped)) *MessageHandlers {
	h.OnStopped = fn
	return h
}

// WithErrorHandler adds an error handler (builder pattern)
func (h *MessageHandlers) WithErrorHandler(fn func(*PromptMessageStoppedException)) *MessageHandlers {
	h.OnError = fn
	return h
}

// WithCompleteHandler adds a complete handler (builder pattern)
func (h *MessageHandlers) WithCompleteHandler(fn func()) *MessageHandlers {
	h.OnComplete = fn
	return h
}

// ProcessMessages consumes the item's message stream until execution stops.
// It blocks, and returns a non-nil error when the backend reported an
// execution error.
func (qi *QueueItem) ProcessMessages(handlers *MessageHandlers) error {
	if handlers == nil {
		handlers = &MessageHandlers{}
	}

	var executionError error

	if handlers.OnComplete != nil {
		defer handlers.OnComplete()
	}

	for msg := range qi.Messages {
		switch msg.Type {
		case "started":
			if handlers.OnStarted != nil {
				handlers.OnStarted(msg.ToPromptMessageStarted())
			}

		case "executing":
			if handlers.OnExecuting != nil {
				handlers.OnExecuting(msg.ToPromptMessageExecuting())
			}

		case "progress":
			if handlers.OnProgress != nil {
				handlers.OnProgress(msg.ToPromptMessageProgress())
			}

		case "data":
			if handlers.OnData != nil {
				handlers.OnData(msg.ToPromptMessageData())
			}

		case "stopped":
			stopped := msg.ToPromptMessageStopped()

			// Handle error first if present
			if stopped.Exception != nil {
				if handlers.OnError != nil {
					handlers.OnError(stopped.Exception)
				}
				executionError = fmt.Errorf("execution failed: %s - %s",
					stopped.Exception.ExceptionType,
					stopped.Exception.ExceptionMessage)
			}

			if handlers.OnStopped != nil {
				handlers.OnStopped(stopped)
			}

			return executionError

		default:
			slog.Warn("unknown message type received", "type", msg.Type)
		}
	}
	return executionError
}

// QueuePromptAndProcess queues a prompt and immediately starts consuming its
// message stream, avoiding the gap where events could arrive unobserved.
// It blocks until execution completes or fails.
func (c *Client) QueuePromptAndProcess(ctx context.Context, graph *graphapi.NodeGraph, params *graphapi.GenerationParameters, handlers *MessageHandlers) error {
	item, err := c.QueuePrompt(ctx, graph, params)
	if err != nil {
		return fmt.Errorf("failed to queue prompt: %w", err)
	}
	return item.ProcessMessages(handlers)
}
