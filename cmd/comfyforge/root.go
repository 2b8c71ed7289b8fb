package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sandmoen/comfyforge/client"
	"github.com/sandmoen/comfyforge/index"
	"github.com/sandmoen/comfyforge/logger"
	"github.com/sandmoen/comfyforge/settings"
)

var (
	configPath string
	config     *settings.Config
)

var rootCmd = &cobra.Command{
	Use:   "comfyforge",
	Short: "comfyforge drives a ComfyUI backend from the command line",
	Long: `comfyforge builds Stable Diffusion node graphs from generation settings,
queues them on a ComfyUI backend, and collects the resulting images.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
}

// setup loads the configuration and points the logger at it. A missing file
// is only an error when --config named one explicitly; otherwise the
// defaults apply.
func setup() error {
	switch {
	case configPath != "":
		loaded, err := settings.Load(configPath)
		if err != nil {
			return err
		}
		config = loaded
	default:
		if _, err := os.Stat("config.toml"); err == nil {
			loaded, err := settings.Load("config.toml")
			if err != nil {
				return err
			}
			config = loaded
		} else {
			defaults := settings.Default()
			config = &defaults
		}
	}
	logger.Init(config.Logging)
	return nil
}

// connect dials the configured backend and waits for the websocket.
func connect() (*client.Client, error) {
	c := client.NewWithTimeout(config.Comfy.Address, config.Comfy.Port, nil, config.Comfy.Timeout, config.Comfy.MaxRetry)
	if err := c.Init(); err != nil {
		return nil, fmt.Errorf("connecting to %s:%d: %w", config.Comfy.Address, config.Comfy.Port, err)
	}
	return c, nil
}

func openIndex() (*index.LocalIndex, error) {
	return index.Open(config.Models.IndexPath, config.Models.Dirs())
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the config file (default config.toml when present)")
}
