package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hako/durafmt"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/sandmoen/comfyforge/graphapi"
	"github.com/sandmoen/comfyforge/inference"
	"github.com/sandmoen/comfyforge/logger"
)

var generateFlags struct {
	prompt        string
	negative      string
	model         string
	refiner       string
	vae           string
	width         int64
	height        int64
	steps         int
	cfgScale      float64
	sampler       string
	scheduler     string
	denoise       float64
	seed          int64
	batchCount    int
	batchSize     int
	hires         bool
	hiresScale    float64
	hiresSteps    int
	hiresDenoise  float64
	hiresUpscaler string
	upscale       bool
	upscaleScale  float64
	upscaleModel  string
	freeu         bool
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Build a prompt from generation settings and run it",
	Run: func(cmd *cobra.Command, args []string) {
		cards, err := cardsFromFlags(cmd)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		ix, err := openIndex()
		if err != nil {
			fmt.Printf("Error opening model index: %v\n", err)
			os.Exit(1)
		}
		defer ix.Close()

		c, err := connect()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		defer c.Close()

		sink := &dirSink{dir: config.Outputs.Dir}
		runner := &inference.Runner{
			Submitter: c,
			Resolver:  ix,
			Sink:      sink,
			Notifier:  printNotifier{},
		}

		// one bar per sampling node, recreated when the step count changes
		var bar *progressbar.ProgressBar
		opts := inference.Options{
			OnProgress: func(value, max int) {
				if bar == nil || bar.GetMax() != max {
					bar = progressbar.Default(int64(max), "sampling")
				}
				bar.Set(value)
			},
		}

		start := time.Now()
		if err := runner.Generate(cmd.Context(), cards, opts); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		elapsed := durafmt.Parse(time.Since(start).Round(time.Second)).String()
		fmt.Printf("Generated %d image(s) in %s\n", sink.saved, elapsed)
	},
}

func cardsFromFlags(cmd *cobra.Command) (graphapi.CardSet, error) {
	f := &generateFlags
	cards := graphapi.NewCardSet()

	cards.Prompt.Positive = f.prompt
	cards.Prompt.Negative = f.negative

	cards.Model.Model = graphapi.ModelReference{Type: graphapi.ModelCheckpoint, Name: f.model}
	if f.refiner != "" {
		cards.Model.Refiner = graphapi.ModelReference{Type: graphapi.ModelCheckpoint, Name: f.refiner}
	}
	if f.vae != "" {
		cards.Model.VAE = graphapi.ModelReference{Type: graphapi.ModelVAE, Name: f.vae}
	}

	cards.Sampler.Width = f.width
	cards.Sampler.Height = f.height
	cards.Sampler.Steps = f.steps
	cards.Sampler.CFGScale = f.cfgScale
	cards.Sampler.DenoiseStrength = f.denoise
	cards.Sampler.Sampler = f.sampler
	cards.Sampler.Scheduler = f.scheduler

	if cmd.Flags().Changed("seed") {
		cards.Seed.Seed = f.seed
		cards.Seed.Randomize = false
	}
	cards.Batch.BatchCount = f.batchCount
	cards.Batch.BatchSize = f.batchSize

	cards.HiresFix.Enabled = f.hires
	cards.HiresFix.Scale = f.hiresScale
	cards.HiresFix.Steps = f.hiresSteps
	cards.HiresFix.DenoiseStrength = f.hiresDenoise
	up, err := parseUpscaler(f.hiresUpscaler)
	if err != nil {
		return cards, err
	}
	cards.HiresFix.Upscaler = up

	cards.Upscale.Enabled = f.upscale
	cards.Upscale.Scale = f.upscaleScale
	if f.upscaleModel != "" {
		cards.Upscale.Upscaler = graphapi.Upscaler{Name: f.upscaleModel, Kind: graphapi.UpscalerModel}
	}

	cards.FreeU.Enabled = f.freeu
	return cards, nil
}

// parseUpscaler reads selections of the form kind:name, for example
// latent:nearest-exact or model:4x-UltraSharp.pth. Empty means none.
func parseUpscaler(s string) (graphapi.Upscaler, error) {
	if s == "" {
		return graphapi.NoUpscaler, nil
	}
	kind, name, ok := strings.Cut(s, ":")
	if !ok || name == "" {
		return graphapi.Upscaler{}, fmt.Errorf("upscaler %q must be kind:name", s)
	}
	switch k := graphapi.UpscalerKind(kind); k {
	case graphapi.UpscalerLatent, graphapi.UpscalerModel:
		return graphapi.Upscaler{Name: name, Kind: k}, nil
	default:
		return graphapi.Upscaler{}, fmt.Errorf("unknown upscaler kind %q", kind)
	}
}

// dirSink writes finished images into the configured outputs directory.
type dirSink struct {
	dir   string
	saved int
}

func (s *dirSink) ClearOutputs() {
	s.saved = 0
}

func (s *dirSink) AddOutput(img inference.Image) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		logger.Error("failed to create output directory", "dir", s.dir, "error", err)
		return
	}
	path := filepath.Join(s.dir, img.Filename)
	if err := os.WriteFile(path, img.Data, 0o644); err != nil {
		logger.Error("failed to write image", "path", path, "error", err)
		return
	}
	s.saved++
	fmt.Printf("Saved %s\n", path)
}

type printNotifier struct{}

func (printNotifier) Notify(level inference.NotifyLevel, message string) {
	fmt.Printf("[%s] %s\n", level, message)
}

func init() {
	f := generateCmd.Flags()
	f.StringVarP(&generateFlags.prompt, "prompt", "p", "", "Positive prompt text")
	f.StringVarP(&generateFlags.negative, "negative", "n", "", "Negative prompt text")
	f.StringVarP(&generateFlags.model, "model", "m", "", "Checkpoint model name")
	f.StringVar(&generateFlags.refiner, "refiner", "", "Refiner checkpoint name")
	f.StringVar(&generateFlags.vae, "vae", "", "VAE override name")
	f.Int64Var(&generateFlags.width, "width", 512, "Image width")
	f.Int64Var(&generateFlags.height, "height", 512, "Image height")
	f.IntVar(&generateFlags.steps, "steps", 20, "Sampling steps")
	f.Float64Var(&generateFlags.cfgScale, "cfg", 7, "CFG scale")
	f.StringVar(&generateFlags.sampler, "sampler", "", "Sampler name (euler, dpmpp_2m, ...)")
	f.StringVar(&generateFlags.scheduler, "scheduler", "", "Scheduler name (normal, karras, ...)")
	f.Float64Var(&generateFlags.denoise, "denoise", 1, "Denoise strength")
	f.Int64Var(&generateFlags.seed, "seed", 0, "Seed (random when not given)")
	f.IntVar(&generateFlags.batchCount, "batch-count", 1, "Sequential generations to run")
	f.IntVar(&generateFlags.batchSize, "batch-size", 1, "Latent batch size per generation")
	f.BoolVar(&generateFlags.hires, "hires", false, "Enable the hires fix pass")
	f.Float64Var(&generateFlags.hiresScale, "hires-scale", 1.5, "Hires fix scale factor")
	f.IntVar(&generateFlags.hiresSteps, "hires-steps", 12, "Hires fix sampling steps")
	f.Float64Var(&generateFlags.hiresDenoise, "hires-denoise", 0.5, "Hires fix denoise strength")
	f.StringVar(&generateFlags.hiresUpscaler, "hires-upscaler", "", "Hires fix upscaler as kind:name")
	f.BoolVar(&generateFlags.upscale, "upscale", false, "Enable the post-generation upscale")
	f.Float64Var(&generateFlags.upscaleScale, "upscale-scale", 2, "Post-generation upscale factor")
	f.StringVar(&generateFlags.upscaleModel, "upscale-model", "", "Post-generation upscale model name")
	f.BoolVar(&generateFlags.freeu, "freeu", false, "Enable the FreeU model patch")

	generateCmd.MarkFlagRequired("prompt")
	generateCmd.MarkFlagRequired("model")
	generateCmd.MarkFlagRequired("sampler")
	generateCmd.MarkFlagRequired("scheduler")

	rootCmd.AddCommand(generateCmd)
}
