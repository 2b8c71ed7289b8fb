package graphapi

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSampler is returned when a build reaches a sampling step with no
	// sampler selected.
	ErrNoSampler = errors.New("no sampler selected")
	// ErrNoScheduler is the scheduler counterpart of ErrNoSampler.
	ErrNoScheduler = errors.New("no scheduler selected")
)

// ModelResolver resolves a model reference to the file name the backend
// knows it by. A miss aborts the build.
type ModelResolver interface {
	ResolveModel(ref ModelReference) (string, error)
}

// PromptRequest bundles what one build pass needs: the cards, an optional
// seed override for batch items, and per-request toggles.
type PromptRequest struct {
	SeedOverride  *int64
	ForceHiresFix bool
	Cards         CardSet
}

// BuildResult is one built batch item: the graph, its ordered output node
// names, the seed baked into the samplers, and the final primary size.
type BuildResult struct {
	Graph   *NodeGraph
	Outputs []string
	Seed    int64
	Size    Size
}

const (
	refinerPrefix   = "Refiner_"
	saveImagePrefix = "comfyforge"
)

// BuildPrompt assembles the node graph for one generation from the request's
// cards. Construction is synchronous and single pass; nodes only ever
// reference nodes added before them, so the graph is acyclic by
// construction. Any validation error abandons the partial graph.
func BuildPrompt(req PromptRequest, resolver ModelResolver) (*BuildResult, error) {
	b := &builder{
		graph:    NewNodeGraph(),
		cards:    req.Cards,
		resolver: resolver,
	}
	if err := b.run(req); err != nil {
		return nil, err
	}
	return &BuildResult{
		Graph:   b.graph,
		Outputs: b.graph.Outputs(),
		Seed:    b.conn.Seed,
		Size:    b.conn.PrimarySize,
	}, nil
}

type builder struct {
	graph    *NodeGraph
	conn     Connections
	cards    CardSet
	resolver ModelResolver
}

func (b *builder) run(req PromptRequest) error {
	b.conn.Seed = b.cards.Seed.Seed
	if req.SeedOverride != nil {
		b.conn.Seed = *req.SeedOverride
	}
	b.conn.BatchSize = b.cards.Batch.BatchSize

	if err := b.addEmptyLatent(); err != nil {
		return err
	}
	if err := b.addStage(""); err != nil {
		return err
	}
	if !b.cards.Model.Refiner.IsDefault() {
		if err := b.addStage(refinerPrefix); err != nil {
			return err
		}
	}
	if err := b.addVAEOverride(); err != nil {
		return err
	}
	if req.ForceHiresFix || b.cards.HiresFix.Enabled {
		if err := b.addHiresFix(); err != nil {
			return err
		}
	}
	if b.cards.Upscale.Enabled {
		if err := b.addUpscale(); err != nil {
			return err
		}
	}
	return b.addOutput()
}

func (b *builder) addEmptyLatent() error {
	size := Size{Width: b.cards.Sampler.Width, Height: b.cards.Sampler.Height}
	latent, err := AddEmptyLatent(b.graph, "EmptyLatent", size, b.conn.BatchSize)
	if err != nil {
		return err
	}
	b.conn.Primary = &latent
	b.conn.PrimaryKind = PrimaryLatent
	b.conn.PrimarySize = size
	return nil
}

// addStage builds one sampling stage: checkpoint load, optional FreeU patch,
// prompt conditioning, and the KSampler. The prefix keeps node names unique
// between the base and refiner stages; a collision here would let a later
// stage shadow an earlier one.
func (b *builder) addStage(prefix string) error {
	modelRef := b.cards.Model.Model
	if prefix != "" {
		modelRef = b.cards.Model.Refiner
	}
	ckpt, err := b.resolver.ResolveModel(modelRef)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", modelRef, err)
	}

	model, clip, vae, err := AddCheckpointLoader(b.graph, prefix+"CheckpointLoader", ckpt)
	if err != nil {
		return err
	}
	if b.cards.FreeU.Enabled {
		fu := b.cards.FreeU
		model, err = AddFreeU(b.graph, prefix+"FreeU", model, fu.B1, fu.B2, fu.S1, fu.S2)
		if err != nil {
			return err
		}
	}

	positive, err := AddCLIPTextEncode(b.graph, prefix+"PositiveCLIP", b.cards.Prompt.Positive, clip)
	if err != nil {
		return err
	}
	negative, err := AddCLIPTextEncode(b.graph, prefix+"NegativeCLIP", b.cards.Prompt.Negative, clip)
	if err != nil {
		return err
	}

	if err := b.requireSampling(); err != nil {
		return err
	}
	sc := b.cards.Sampler
	sampled, err := AddKSampler(b.graph, prefix+"Sampler", model, positive, negative, *b.conn.Primary,
		b.conn.Seed, sc.Steps, sc.CFGScale, sc.Sampler, sc.Scheduler, sc.DenoiseStrength)
	if err != nil {
		return err
	}
	b.conn.Primary = &sampled
	b.conn.PrimaryKind = PrimaryLatent

	if prefix == "" {
		b.conn.BaseModel = model
		b.conn.BaseCLIP = clip
		b.conn.VAE = vae
		b.conn.PositiveBase = positive
		b.conn.NegativeBase = negative
	} else {
		b.conn.RefinerModel = &model
		b.conn.RefinerCLIP = &clip
		b.conn.PositiveRefiner = &positive
		b.conn.NegativeRefiner = &negative
	}
	return nil
}

// requireSampling rejects a build that reaches a sampling step without a
// sampler and scheduler selected. Selections are never defaulted.
func (b *builder) requireSampling() error {
	if b.cards.Sampler.Sampler == "" {
		return ErrNoSampler
	}
	if b.cards.Sampler.Scheduler == "" {
		return ErrNoScheduler
	}
	return nil
}

func (b *builder) addVAEOverride() error {
	if b.cards.Model.VAE.IsDefault() {
		return nil
	}
	vaeName, err := b.resolver.ResolveModel(b.cards.Model.VAE)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", b.cards.Model.VAE, err)
	}
	vae, err := AddVAELoader(b.graph, "VAELoader", vaeName)
	if err != nil {
		return err
	}
	b.conn.VAE = vae
	return nil
}

// addHiresFix runs the secondary pass: upscale the primary to the scaled
// target size when an upscaler is selected, then resample it. The hires
// sampler uses the refiner model and conditioning when a refiner stage was
// built, otherwise it falls back to the base stage.
func (b *builder) addHiresFix() error {
	card := b.cards.HiresFix
	target := b.conn.PrimarySize.ScaleBy(card.Scale)

	if !card.Upscaler.IsNone() {
		if err := b.addUpscaleGroup("HiresFix", card.Upscaler, target); err != nil {
			return err
		}
	}

	if err := b.requireSampling(); err != nil {
		return err
	}
	latent, err := b.ensureLatent("Hires_VAEEncode")
	if err != nil {
		return err
	}
	positive, negative := b.conn.StageConditioning()
	sampled, err := AddKSampler(b.graph, "Hires_Sampler", b.conn.StageModel(), positive, negative, latent,
		b.conn.Seed, card.Steps, b.cards.Sampler.CFGScale, b.cards.Sampler.Sampler, b.cards.Sampler.Scheduler,
		card.DenoiseStrength)
	if err != nil {
		return err
	}
	b.conn.Primary = &sampled
	b.conn.PrimaryKind = PrimaryLatent
	return nil
}

// addUpscale runs the post-generation upscale. The scale factor applies to
// the current primary size, so it compounds with any hires-fix scaling that
// came before it.
func (b *builder) addUpscale() error {
	card := b.cards.Upscale
	if card.Upscaler.IsNone() {
		return nil
	}
	target := b.conn.PrimarySize.ScaleBy(card.Scale)
	return b.addUpscaleGroup("Upscale", card.Upscaler, target)
}

// addUpscaleGroup inserts the nodes that bring the primary to target size.
// Latent upscalers stay in latent space; model upscalers work on pixels, so
// the primary is decoded first and left as an image, with an exact-size
// scale after the model's fixed factor.
func (b *builder) addUpscaleGroup(prefix string, up Upscaler, target Size) error {
	switch up.Kind {
	case UpscalerLatent:
		latent, err := b.ensureLatent(prefix + "_VAEEncode")
		if err != nil {
			return err
		}
		scaled, err := AddLatentUpscale(b.graph, prefix+"_LatentUpscale", latent, up.Name, target)
		if err != nil {
			return err
		}
		b.conn.Primary = &scaled
		b.conn.PrimaryKind = PrimaryLatent
	case UpscalerModel:
		image, err := b.ensureImage(prefix + "_VAEDecode")
		if err != nil {
			return err
		}
		loader, err := AddUpscaleModelLoader(b.graph, prefix+"_UpscaleLoader", up.Name)
		if err != nil {
			return err
		}
		upscaled, err := AddImageUpscaleWithModel(b.graph, prefix+"_ImageUpscale", loader, image)
		if err != nil {
			return err
		}
		exact, err := AddImageScale(b.graph, prefix+"_ImageScale", upscaled, "bilinear", target)
		if err != nil {
			return err
		}
		b.conn.Primary = &exact
		b.conn.PrimaryKind = PrimaryImage
	default:
		return fmt.Errorf("unknown upscaler kind %q", up.Kind)
	}
	b.conn.PrimarySize = target
	return nil
}

func (b *builder) addOutput() error {
	image, err := b.ensureImage("VAEDecode")
	if err != nil {
		return err
	}
	if _, err := AddSaveImage(b.graph, "SaveImage", image, saveImagePrefix); err != nil {
		return err
	}
	b.graph.MarkOutput("SaveImage")
	return nil
}

// ensureLatent returns the primary as a latent handle, encoding pixels
// through the current VAE under the given node name when needed.
func (b *builder) ensureLatent(name string) (NodeRef, error) {
	if b.conn.PrimaryKind == PrimaryLatent {
		return *b.conn.Primary, nil
	}
	latent, err := AddVAEEncode(b.graph, name, *b.conn.Primary, b.conn.VAE)
	if err != nil {
		return NodeRef{}, err
	}
	b.conn.Primary = &latent
	b.conn.PrimaryKind = PrimaryLatent
	return latent, nil
}

// ensureImage is the pixel-side counterpart of ensureLatent.
func (b *builder) ensureImage(name string) (NodeRef, error) {
	if b.conn.PrimaryKind == PrimaryImage {
		return *b.conn.Primary, nil
	}
	image, err := AddVAEDecode(b.graph, name, *b.conn.Primary, b.conn.VAE)
	if err != nil {
		return NodeRef{}, err
	}
	b.conn.Primary = &image
	b.conn.PrimaryKind = PrimaryImage
	return image, nil
}
