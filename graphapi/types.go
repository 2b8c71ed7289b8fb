package graphapi

// Size is a pixel extent.
type Size struct {
	Width  int64 `json:"width"`
	Height int64 `json:"height"`
}

// ScaleBy returns the size multiplied by factor, flooring each dimension to
// whole pixels.
func (s Size) ScaleBy(factor float64) Size {
	return Size{
		Width:  int64(float64(s.Width) * factor),
		Height: int64(float64(s.Height) * factor),
	}
}

// ModelType identifies the kind of model a reference points at. The values
// double as namespace keys in the model index.
type ModelType string

const (
	ModelCheckpoint ModelType = "checkpoint"
	ModelLora       ModelType = "lora"
	ModelLyCORIS    ModelType = "lycoris"
	ModelEmbedding  ModelType = "embedding"
	ModelVAE        ModelType = "vae"
	ModelUpscaler   ModelType = "upscaler"
)

// ModelReference selects a model by type and name. An empty or "None" name
// is the default sentinel: keep whatever the pipeline already provides.
type ModelReference struct {
	Type ModelType `json:"type" toml:"type"`
	Name string    `json:"name" toml:"name"`
}

func (m ModelReference) IsDefault() bool {
	return m.Name == "" || m.Name == "None"
}

func (m ModelReference) String() string {
	return string(m.Type) + ":" + m.Name
}

// UpscalerKind selects the mechanics of an upscale step: resizing the latent
// directly, or decoding to pixels and running an upscale model.
type UpscalerKind string

const (
	UpscalerNone   UpscalerKind = "none"
	UpscalerLatent UpscalerKind = "latent"
	UpscalerModel  UpscalerKind = "model"
)

// Upscaler is an upscale method selection. Latent upscalers name one of the
// built-in interpolation methods; model upscalers name an upscale model
// file.
type Upscaler struct {
	Name string       `json:"name" toml:"name"`
	Kind UpscalerKind `json:"kind" toml:"kind"`
}

// NoUpscaler is the "None" sentinel selection.
var NoUpscaler = Upscaler{Name: "None", Kind: UpscalerNone}

func (u Upscaler) IsNone() bool {
	return u.Kind == UpscalerNone || u.Kind == "" || u.Name == "" || u.Name == "None"
}

// LatentUpscaleMethods are the interpolation methods the LatentUpscale and
// ImageScale nodes accept.
var LatentUpscaleMethods = []string{
	"nearest-exact",
	"bilinear",
	"area",
	"bicubic",
	"bislerp",
}

// SamplerNames are the sampler selections a stock ComfyUI install offers.
var SamplerNames = []string{
	"euler",
	"euler_ancestral",
	"heun",
	"heunpp2",
	"dpm_2",
	"dpm_2_ancestral",
	"lms",
	"dpm_fast",
	"dpm_adaptive",
	"dpmpp_2s_ancestral",
	"dpmpp_sde",
	"dpmpp_sde_gpu",
	"dpmpp_2m",
	"dpmpp_2m_sde",
	"dpmpp_2m_sde_gpu",
	"dpmpp_3m_sde",
	"dpmpp_3m_sde_gpu",
	"ddpm",
	"lcm",
	"ddim",
	"uni_pc",
	"uni_pc_bh2",
}

// SchedulerNames are the noise schedule selections.
var SchedulerNames = []string{
	"normal",
	"karras",
	"exponential",
	"sgm_uniform",
	"simple",
	"ddim_uniform",
}
