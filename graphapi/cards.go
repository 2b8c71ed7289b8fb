package graphapi

import (
	"math/rand"
)

// CardState is the capability cards implement to round-trip their values
// through a GenerationParameters record. The builder only ever reads cards;
// load and save are driven by the owning controller.
type CardState interface {
	LoadState(p *GenerationParameters)
	SaveState(p *GenerationParameters)
}

// PromptCard holds the positive and negative prompt text.
type PromptCard struct {
	Positive string
	Negative string
}

func (c *PromptCard) LoadState(p *GenerationParameters) {
	c.Positive = p.Prompt
	c.Negative = p.NegativePrompt
}

func (c *PromptCard) SaveState(p *GenerationParameters) {
	p.Prompt = c.Positive
	p.NegativePrompt = c.Negative
}

// SamplerCard holds the base sampling settings. Sampler and Scheduler are
// selections from SamplerNames and SchedulerNames; empty means nothing is
// selected yet, which the builder rejects at sampling time.
type SamplerCard struct {
	Width           int64
	Height          int64
	Steps           int
	CFGScale        float64
	DenoiseStrength float64
	Sampler         string
	Scheduler       string
}

func (c *SamplerCard) LoadState(p *GenerationParameters) {
	c.Width = p.Width
	c.Height = p.Height
	c.Steps = p.Steps
	c.CFGScale = p.CFGScale
	c.DenoiseStrength = p.DenoiseStrength
	c.Sampler = p.Sampler
	c.Scheduler = p.Scheduler
}

func (c *SamplerCard) SaveState(p *GenerationParameters) {
	p.Width = c.Width
	p.Height = c.Height
	p.Steps = c.Steps
	p.CFGScale = c.CFGScale
	p.DenoiseStrength = c.DenoiseStrength
	p.Sampler = c.Sampler
	p.Scheduler = c.Scheduler
}

// ModelCard holds the model selections. Refiner and VAE default to the
// sentinel reference, which skips their pipeline stages entirely.
type ModelCard struct {
	Model   ModelReference
	Refiner ModelReference
	VAE     ModelReference
}

func (c *ModelCard) LoadState(p *GenerationParameters) {
	c.Model = p.Model
	c.Refiner = p.Refiner
	c.VAE = p.VAE
}

func (c *ModelCard) SaveState(p *GenerationParameters) {
	p.Model = c.Model
	p.Refiner = c.Refiner
	p.VAE = c.VAE
}

// SeedCard holds the base seed. When Randomize is set, NewSeed draws a fresh
// one before a generation starts.
type SeedCard struct {
	Seed      int64
	Randomize bool
}

// NewSeed replaces the current seed with a random one when Randomize is
// enabled and returns the seed to use either way.
func (c *SeedCard) NewSeed() int64 {
	if c.Randomize {
		c.Seed = rand.Int63()
	}
	return c.Seed
}

func (c *SeedCard) LoadState(p *GenerationParameters) {
	c.Seed = p.Seed
	c.Randomize = p.RandomizeSeed
}

func (c *SeedCard) SaveState(p *GenerationParameters) {
	p.Seed = c.Seed
	p.RandomizeSeed = c.Randomize
}

// BatchCard holds the batch settings. BatchCount is how many sequential
// builds a generation runs; BatchSize is the latent batch dimension within
// one build.
type BatchCard struct {
	BatchCount int
	BatchSize  int
}

func (c *BatchCard) LoadState(p *GenerationParameters) {
	c.BatchCount = p.BatchCount
	c.BatchSize = p.BatchSize
}

func (c *BatchCard) SaveState(p *GenerationParameters) {
	p.BatchCount = c.BatchCount
	p.BatchSize = c.BatchSize
}

// HiresFixCard holds the settings for the secondary upscale-and-resample
// pass.
type HiresFixCard struct {
	Enabled         bool
	Scale           float64
	Steps           int
	DenoiseStrength float64
	Upscaler        Upscaler
}

func (c *HiresFixCard) LoadState(p *GenerationParameters) {
	c.Enabled = p.HiresEnabled
	c.Scale = p.HiresScale
	c.Steps = p.HiresSteps
	c.DenoiseStrength = p.HiresDenoise
	c.Upscaler = p.HiresUpscaler
}

func (c *HiresFixCard) SaveState(p *GenerationParameters) {
	p.HiresEnabled = c.Enabled
	p.HiresScale = c.Scale
	p.HiresSteps = c.Steps
	p.HiresDenoise = c.DenoiseStrength
	p.HiresUpscaler = c.Upscaler
}

// UpscaleCard holds the post-generation upscale settings. Its scale factor
// applies on top of whatever size the pipeline reached before it.
type UpscaleCard struct {
	Enabled  bool
	Scale    float64
	Upscaler Upscaler
}

func (c *UpscaleCard) LoadState(p *GenerationParameters) {
	c.Enabled = p.UpscaleEnabled
	c.Scale = p.UpscaleScale
	c.Upscaler = p.UpscaleUpscaler
}

func (c *UpscaleCard) SaveState(p *GenerationParameters) {
	p.UpscaleEnabled = c.Enabled
	p.UpscaleScale = c.Scale
	p.UpscaleUpscaler = c.Upscaler
}

// FreeUCard holds the FreeU model patch coefficients.
type FreeUCard struct {
	Enabled bool
	B1      float64
	B2      float64
	S1      float64
	S2      float64
}

func (c *FreeUCard) LoadState(p *GenerationParameters) {
	c.Enabled = p.FreeUEnabled
	c.B1 = p.FreeUB1
	c.B2 = p.FreeUB2
	c.S1 = p.FreeUS1
	c.S2 = p.FreeUS2
}

func (c *FreeUCard) SaveState(p *GenerationParameters) {
	p.FreeUEnabled = c.Enabled
	p.FreeUB1 = c.B1
	p.FreeUB2 = c.B2
	p.FreeUS1 = c.S1
	p.FreeUS2 = c.S2
}

// CardSet bundles the cards one build pass reads.
type CardSet struct {
	Prompt   *PromptCard
	Sampler  *SamplerCard
	Model    *ModelCard
	Seed     *SeedCard
	Batch    *BatchCard
	HiresFix *HiresFixCard
	Upscale  *UpscaleCard
	FreeU    *FreeUCard
}

// NewCardSet returns a card set with the usual starting values. Sampler and
// scheduler are left unselected.
func NewCardSet() CardSet {
	return CardSet{
		Prompt: &PromptCard{},
		Sampler: &SamplerCard{
			Width:           512,
			Height:          512,
			Steps:           20,
			CFGScale:        7,
			DenoiseStrength: 1,
		},
		Model: &ModelCard{
			Model:   ModelReference{Type: ModelCheckpoint},
			Refiner: ModelReference{Type: ModelCheckpoint},
			VAE:     ModelReference{Type: ModelVAE},
		},
		Seed:  &SeedCard{Randomize: true},
		Batch: &BatchCard{BatchCount: 1, BatchSize: 1},
		HiresFix: &HiresFixCard{
			Scale:           1.5,
			Steps:           12,
			DenoiseStrength: 0.5,
			Upscaler:        NoUpscaler,
		},
		Upscale: &UpscaleCard{
			Scale:    2,
			Upscaler: NoUpscaler,
		},
		FreeU: &FreeUCard{
			B1: 1.1,
			B2: 1.2,
			S1: 0.9,
			S2: 0.2,
		},
	}
}

func (s CardSet) cards() []CardState {
	return []CardState{
		s.Prompt,
		s.Sampler,
		s.Model,
		s.Seed,
		s.Batch,
		s.HiresFix,
		s.Upscale,
		s.FreeU,
	}
}

// LoadState fans the record out to every card.
func (s CardSet) LoadState(p *GenerationParameters) {
	for _, c := range s.cards() {
		c.LoadState(p)
	}
}

// SaveState collects every card's state into the record.
func (s CardSet) SaveState(p *GenerationParameters) {
	for _, c := range s.cards() {
		c.SaveState(p)
	}
}
