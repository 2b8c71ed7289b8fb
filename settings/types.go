package settings

import (
	"github.com/sandmoen/comfyforge/graphapi"
	"github.com/sandmoen/comfyforge/index"
	"github.com/sandmoen/comfyforge/logger"
)

type (
	Config struct {
		Comfy   ComfyConfig   `toml:"comfy" validate:"required"`
		Models  ModelsConfig  `toml:"models" validate:"required"`
		Outputs OutputsConfig `toml:"outputs" validate:"required"`
		Logging logger.Config `toml:"logging" validate:"required"`
	}

	ComfyConfig struct {
		Address string `toml:"address" validate:"required"`
		Port    int    `toml:"port" validate:"required,gte=1,lte=65535"`
		// Timeout bounds the initial connection wait in seconds. -1 waits
		// forever.
		Timeout  int `toml:"timeout" validate:"gte=-1"`
		MaxRetry int `toml:"max_retry" validate:"gte=1"`
	}

	ModelsConfig struct {
		IndexPath   string   `toml:"index_path" validate:"required"`
		Checkpoints []string `toml:"checkpoints"`
		Loras       []string `toml:"loras"`
		Lycoris     []string `toml:"lycoris"`
		Embeddings  []string `toml:"embeddings"`
		VAEs        []string `toml:"vaes"`
		Upscalers   []string `toml:"upscalers"`
	}

	OutputsConfig struct {
		Dir string `toml:"dir" validate:"required"`
	}
)

// Dirs maps the configured model directories to the index's model types.
func (m ModelsConfig) Dirs() index.Dirs {
	return index.Dirs{
		graphapi.ModelCheckpoint: m.Checkpoints,
		graphapi.ModelLora:       m.Loras,
		graphapi.ModelLyCORIS:    m.Lycoris,
		graphapi.ModelEmbedding:  m.Embeddings,
		graphapi.ModelVAE:        m.VAEs,
		graphapi.ModelUpscaler:   m.Upscalers,
	}
}
