// Package inference orchestrates the build/submit loop: it turns a card set
// into one queued prompt per batch item, streams execution messages back, and
// hands finished images to an output sink.
package inference

import (
	"context"
	"fmt"

	"github.com/sandmoen/comfyforge/client"
	"github.com/sandmoen/comfyforge/graphapi"
	"github.com/sandmoen/comfyforge/logger"
)

// Submitter queues prompts and fetches their outputs. *client.Client
// satisfies it; tests substitute their own.
type Submitter interface {
	QueuePrompt(ctx context.Context, graph *graphapi.NodeGraph, params *graphapi.GenerationParameters) (*client.QueueItem, error)
	GetImage(ctx context.Context, output client.DataOutput) ([]byte, error)
}

// Image is one finished output image together with the parameters that
// produced it.
type Image struct {
	Filename   string
	Subfolder  string
	Data       []byte
	Parameters *graphapi.GenerationParameters
}

// OutputSink receives finished images. ClearOutputs is called once per
// generation run, after the first item has built successfully.
type OutputSink interface {
	ClearOutputs()
	AddOutput(img Image)
}

// NotifyLevel classifies user-facing notifications.
type NotifyLevel string

const (
	NotifyInfo    NotifyLevel = "info"
	NotifyWarning NotifyLevel = "warning"
	NotifyError   NotifyLevel = "error"
)

// Notifier surfaces human-readable status messages. A nil Notifier is
// silently skipped.
type Notifier interface {
	Notify(level NotifyLevel, message string)
}

// Options tweak a single Generate call.
type Options struct {
	// ForceHiresFix enables the hires fix pass even when the card has it off.
	ForceHiresFix bool

	// OnProgress, when set, receives per-node sampling progress.
	OnProgress func(value, max int)
}

// Runner drives full generation runs against a backend.
type Runner struct {
	Submitter Submitter
	Resolver  graphapi.ModelResolver
	Sink      OutputSink
	Notifier  Notifier
}

// Generate builds and executes one prompt per batch item. The seed is drawn
// once at the start of the run and later items use consecutive seeds, so a
// run is reproducible from its first seed alone. The sink is cleared once the
// first item has built successfully, never earlier, so a run that fails
// validation leaves previous outputs intact. A failure on any item abandons
// the remaining ones.
func (r *Runner) Generate(ctx context.Context, cards graphapi.CardSet, opts Options) error {
	baseSeed := cards.Seed.NewSeed()

	count := cards.Batch.BatchCount
	if count < 1 {
		count = 1
	}

	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			r.notify(NotifyWarning, "generation cancelled")
			return err
		}

		seed := baseSeed + int64(i)
		result, err := graphapi.BuildPrompt(graphapi.PromptRequest{
			Cards:         cards,
			SeedOverride:  &seed,
			ForceHiresFix: opts.ForceHiresFix,
		}, r.Resolver)
		if err != nil {
			r.notify(NotifyError, fmt.Sprintf("failed to build prompt: %v", err))
			return fmt.Errorf("building batch item %d: %w", i+1, err)
		}

		// The record carries the seed this item actually ran with, not the
		// card's base seed, so reloading it reproduces this exact image.
		params := &graphapi.GenerationParameters{}
		cards.SaveState(params)
		params.Seed = result.Seed

		if i == 0 {
			r.clearSink()
		}

		if err := r.submit(ctx, result, params, opts); err != nil {
			r.notify(NotifyError, fmt.Sprintf("generation failed: %v", err))
			return fmt.Errorf("batch item %d: %w", i+1, err)
		}
		logger.Info("batch item complete", "item", i+1, "count", count, "seed", result.Seed)
	}

	r.notify(NotifyInfo, "generation complete")
	return nil
}

func (r *Runner) submit(ctx context.Context, result *graphapi.BuildResult, params *graphapi.GenerationParameters, opts Options) error {
	item, err := r.Submitter.QueuePrompt(ctx, result.Graph, params)
	if err != nil {
		return err
	}

	handlers := client.DefaultMessageHandlers().
		WithDataHandler(func(msg *client.PromptMessageData) {
			r.deliver(ctx, params, msg.Data)
		})
	if opts.OnProgress != nil {
		handlers = handlers.WithProgressHandler(func(msg *client.PromptMessageProgress) {
			opts.OnProgress(msg.Value, msg.Max)
		})
	}

	return item.ProcessMessages(handlers)
}

// deliver fetches every image the node produced and hands it to the sink.
// Temp previews and non-image entries are skipped. A fetch failure loses that
// one image, not the run.
func (r *Runner) deliver(ctx context.Context, params *graphapi.GenerationParameters, data map[string][]client.DataOutput) {
	for _, outputs := range data {
		for _, out := range outputs {
			if out.Filename == "" || out.Type == "temp" {
				continue
			}
			img, err := r.Submitter.GetImage(ctx, out)
			if err != nil {
				logger.Error("failed to fetch image", "filename", out.Filename, "error", err)
				r.notify(NotifyError, fmt.Sprintf("failed to fetch %s: %v", out.Filename, err))
				continue
			}
			if r.Sink != nil {
				r.Sink.AddOutput(Image{
					Filename:   out.Filename,
					Subfolder:  out.Subfolder,
					Data:       img,
					Parameters: params,
				})
			}
		}
	}
}

func (r *Runner) clearSink() {
	if r.Sink != nil {
		r.Sink.ClearOutputs()
	}
}

func (r *Runner) notify(level NotifyLevel, message string) {
	if r.Notifier != nil {
		r.Notifier.Notify(level, message)
	}
}
