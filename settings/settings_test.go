package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandmoen/comfyforge/graphapi"
	"github.com/sandmoen/comfyforge/logger"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
[comfy]
address = "gpubox.local"
port = 8189

[models]
index_path = "/var/lib/comfyforge/models.db"
checkpoints = ["/srv/models/checkpoints"]
loras = ["/srv/models/loras"]

[outputs]
dir = "/srv/outputs"

[logging]
level = "debug"
format = "json"
`)

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gpubox.local", config.Comfy.Address)
	assert.Equal(t, 8189, config.Comfy.Port)
	assert.Equal(t, 30, config.Comfy.Timeout, "absent keys keep their defaults")
	assert.Equal(t, 5, config.Comfy.MaxRetry)
	assert.Equal(t, "/srv/outputs", config.Outputs.Dir)
	assert.Equal(t, logger.LevelDebug, config.Logging.Level)
	assert.Equal(t, "json", config.Logging.Format)

	dirs := config.Models.Dirs()
	assert.Equal(t, []string{"/srv/models/checkpoints"}, dirs[graphapi.ModelCheckpoint])
	assert.Equal(t, []string{"/srv/models/loras"}, dirs[graphapi.ModelLora])
	assert.Empty(t, dirs[graphapi.ModelVAE])
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoadParseFailure(t *testing.T) {
	path := writeConfig(t, `[comfy`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error parsing config file")
}

func TestLoadValidationFailure(t *testing.T) {
	path := writeConfig(t, `
[comfy]
port = 0

[logging]
level = "loud"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestDefaultIsValid(t *testing.T) {
	config := Default()
	require.NoError(t, config.Validate())
}
