// Package settings loads and validates the TOML configuration file.
package settings

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"github.com/sandmoen/comfyforge/logger"
)

// Default returns the configuration used when a key is absent from the file.
func Default() Config {
	return Config{
		Comfy: ComfyConfig{
			Address:  "127.0.0.1",
			Port:     8188,
			Timeout:  30,
			MaxRetry: 5,
		},
		Models: ModelsConfig{
			IndexPath: "models.db",
		},
		Outputs: OutputsConfig{
			Dir: "outputs",
		},
		Logging: logger.Config{
			Level:  logger.LevelInfo,
			Format: "text",
		},
	}
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	return validate.Struct(c)
}

// Load reads the configuration file at path over the defaults and validates
// the result. It returns a pointer to the Config struct or an error if
// loading fails.
func Load(path string) (*Config, error) {
	config := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Get absolute path for better error messages
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path // fallback to relative path
	}

	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file %s: %w", absPath, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}
