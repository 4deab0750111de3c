package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "8070", cfg.Server.Port)
	assert.Equal(t, 320, cfg.Preview.Width)
	assert.Equal(t, 480, cfg.Preview.Height)
	assert.Equal(t, "/ad", cfg.Preview.VirtualRoot)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("PREVIEW_WIDTH", "300")
	t.Setenv("PREVIEW_HEIGHT", "250")
	t.Setenv("BUNDLE_ROOT", "/creative")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 300, cfg.Preview.Width)
	assert.Equal(t, 250, cfg.Preview.Height)
	assert.Equal(t, "/creative", cfg.Preview.VirtualRoot)
}

func TestValidateRejectsBadDimensions(t *testing.T) {
	cfg := Default()
	cfg.Preview.Width = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Preview.Height = -1
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadRoot(t *testing.T) {
	cfg := Default()
	cfg.Preview.VirtualRoot = "ad"
	assert.Error(t, cfg.Validate())
}
