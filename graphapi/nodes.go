package graphapi

// Stateless factories for the node classes the builder emits. Each one adds
// a single node under the given name and returns typed references to its
// output slots. Input port names and class types follow the stock ComfyUI
// node definitions.

// AddCheckpointLoader adds a CheckpointLoaderSimple node. Outputs: model,
// CLIP, VAE.
func AddCheckpointLoader(g *NodeGraph, name, ckptName string) (model, clip, vae NodeRef, err error) {
	ref, err := g.Add(name, &Node{
		ClassType: "CheckpointLoaderSimple",
		Inputs: map[string]interface{}{
			"ckpt_name": ckptName,
		},
	})
	if err != nil {
		return NodeRef{}, NodeRef{}, NodeRef{}, err
	}
	return ref.Output(0), ref.Output(1), ref.Output(2), nil
}

// AddCLIPTextEncode adds a CLIPTextEncode node producing conditioning from
// prompt text.
func AddCLIPTextEncode(g *NodeGraph, name, text string, clip NodeRef) (NodeRef, error) {
	return g.Add(name, &Node{
		ClassType: "CLIPTextEncode",
		Inputs: map[string]interface{}{
			"text": text,
			"clip": clip,
		},
	})
}

// AddEmptyLatent adds an EmptyLatentImage node.
func AddEmptyLatent(g *NodeGraph, name string, size Size, batchSize int) (NodeRef, error) {
	return g.Add(name, &Node{
		ClassType: "EmptyLatentImage",
		Inputs: map[string]interface{}{
			"width":      size.Width,
			"height":     size.Height,
			"batch_size": batchSize,
		},
	})
}

// AddKSampler adds a KSampler node.
func AddKSampler(g *NodeGraph, name string, model, positive, negative, latent NodeRef,
	seed int64, steps int, cfg float64, samplerName, scheduler string, denoise float64) (NodeRef, error) {
	return g.Add(name, &Node{
		ClassType: "KSampler",
		Inputs: map[string]interface{}{
			"model":        model,
			"seed":         seed,
			"steps":        steps,
			"cfg":          cfg,
			"sampler_name": samplerName,
			"scheduler":    scheduler,
			"positive":     positive,
			"negative":     negative,
			"latent_image": latent,
			"denoise":      denoise,
		},
	})
}

// AddFreeU adds a FreeU model patch node.
func AddFreeU(g *NodeGraph, name string, model NodeRef, b1, b2, s1, s2 float64) (NodeRef, error) {
	return g.Add(name, &Node{
		ClassType: "FreeU",
		Inputs: map[string]interface{}{
			"model": model,
			"b1":    b1,
			"b2":    b2,
			"s1":    s1,
			"s2":    s2,
		},
	})
}

// AddVAELoader adds a VAELoader node.
func AddVAELoader(g *NodeGraph, name, vaeName string) (NodeRef, error) {
	return g.Add(name, &Node{
		ClassType: "VAELoader",
		Inputs: map[string]interface{}{
			"vae_name": vaeName,
		},
	})
}

// AddVAEDecode adds a VAEDecode node turning latents into pixels.
func AddVAEDecode(g *NodeGraph, name string, samples, vae NodeRef) (NodeRef, error) {
	return g.Add(name, &Node{
		ClassType: "VAEDecode",
		Inputs: map[string]interface{}{
			"samples": samples,
			"vae":     vae,
		},
	})
}

// AddVAEEncode adds a VAEEncode node turning pixels into latents.
func AddVAEEncode(g *NodeGraph, name string, pixels, vae NodeRef) (NodeRef, error) {
	return g.Add(name, &Node{
		ClassType: "VAEEncode",
		Inputs: map[string]interface{}{
			"pixels": pixels,
			"vae":    vae,
		},
	})
}

// AddLatentUpscale adds a LatentUpscale node resizing latents to an exact
// size.
func AddLatentUpscale(g *NodeGraph, name string, samples NodeRef, method string, size Size) (NodeRef, error) {
	return g.Add(name, &Node{
		ClassType: "LatentUpscale",
		Inputs: map[string]interface{}{
			"samples":        samples,
			"upscale_method": method,
			"width":          size.Width,
			"height":         size.Height,
			"crop":           "disabled",
		},
	})
}

// AddUpscaleModelLoader adds an UpscaleModelLoader node.
func AddUpscaleModelLoader(g *NodeGraph, name, modelName string) (NodeRef, error) {
	return g.Add(name, &Node{
		ClassType: "UpscaleModelLoader",
		Inputs: map[string]interface{}{
			"model_name": modelName,
		},
	})
}

// AddImageUpscaleWithModel adds an ImageUpscaleWithModel node. The model
// upscales by its own fixed factor; pair with AddImageScale to reach an
// exact size.
func AddImageUpscaleWithModel(g *NodeGraph, name string, upscaleModel, image NodeRef) (NodeRef, error) {
	return g.Add(name, &Node{
		ClassType: "ImageUpscaleWithModel",
		Inputs: map[string]interface{}{
			"upscale_model": upscaleModel,
			"image":         image,
		},
	})
}

// AddImageScale adds an ImageScale node resizing pixels to an exact size.
func AddImageScale(g *NodeGraph, name string, image NodeRef, method string, size Size) (NodeRef, error) {
	return g.Add(name, &Node{
		ClassType: "ImageScale",
		Inputs: map[string]interface{}{
			"image":          image,
			"upscale_method": method,
			"width":          size.Width,
			"height":         size.Height,
			"crop":           "disabled",
		},
	})
}

// AddSaveImage adds a SaveImage output node.
func AddSaveImage(g *NodeGraph, name string, images NodeRef, filenamePrefix string) (NodeRef, error) {
	return g.Add(name, &Node{
		ClassType: "SaveImage",
		Inputs: map[string]interface{}{
			"images":          images,
			"filename_prefix": filenamePrefix,
		},
	})
}
