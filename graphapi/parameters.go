package graphapi

// GenerationParameters is the flat record of everything that shaped one
// generation. Cards load and save their state against it, the client sends
// it along with each submission, and generated PNGs carry it so an image can
// be reproduced later.
type GenerationParameters struct {
	Prompt          string  `json:"prompt" toml:"prompt"`
	NegativePrompt  string  `json:"negative_prompt" toml:"negative_prompt"`
	Width           int64   `json:"width" toml:"width"`
	Height          int64   `json:"height" toml:"height"`
	Steps           int     `json:"steps" toml:"steps"`
	CFGScale        float64 `json:"cfg_scale" toml:"cfg_scale"`
	Sampler         string  `json:"sampler" toml:"sampler"`
	Scheduler       string  `json:"scheduler" toml:"scheduler"`
	DenoiseStrength float64 `json:"denoise_strength" toml:"denoise_strength"`

	Seed          int64 `json:"seed" toml:"seed"`
	RandomizeSeed bool  `json:"randomize_seed" toml:"randomize_seed"`
	BatchCount    int   `json:"batch_count" toml:"batch_count"`
	BatchSize     int   `json:"batch_size" toml:"batch_size"`

	Model   ModelReference `json:"model" toml:"model"`
	Refiner ModelReference `json:"refiner" toml:"refiner"`
	VAE     ModelReference `json:"vae" toml:"vae"`

	HiresEnabled  bool     `json:"hires_enabled" toml:"hires_enabled"`
	HiresScale    float64  `json:"hires_scale" toml:"hires_scale"`
	HiresSteps    int      `json:"hires_steps" toml:"hires_steps"`
	HiresDenoise  float64  `json:"hires_denoise" toml:"hires_denoise"`
	HiresUpscaler Upscaler `json:"hires_upscaler" toml:"hires_upscaler"`

	UpscaleEnabled  bool     `json:"upscale_enabled" toml:"upscale_enabled"`
	UpscaleScale    float64  `json:"upscale_scale" toml:"upscale_scale"`
	UpscaleUpscaler Upscaler `json:"upscale_upscaler" toml:"upscale_upscaler"`

	FreeUEnabled bool    `json:"freeu_enabled" toml:"freeu_enabled"`
	FreeUB1      float64 `json:"freeu_b1" toml:"freeu_b1"`
	FreeUB2      float64 `json:"freeu_b2" toml:"freeu_b2"`
	FreeUS1      float64 `json:"freeu_s1" toml:"freeu_s1"`
	FreeUS2      float64 `json:"freeu_s2" toml:"freeu_s2"`
}
