package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kirsch-edgemap/internal/kirsch"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kirsch.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	p, err := cfg.Params()
	require.NoError(t, err)
	assert.Equal(t, kirsch.DefaultParams(), p)
	assert.Equal(t, "_edge", cfg.Suffix)
	assert.Equal(t, "scalar", cfg.Backend)
	assert.False(t, cfg.Accelerate)
	assert.False(t, cfg.AllowFallback)
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
threshold = 200
scale = 3
palette = "FPGA"
border = "symmetric"
jobs = 2
`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, int64(200), cfg.Threshold)
	assert.Equal(t, 2, cfg.Jobs)
	assert.Equal(t, DefaultSuffix, cfg.Suffix)

	p, err := cfg.Params()
	require.NoError(t, err)
	assert.Equal(t, int32(200), p.Threshold)
	assert.Equal(t, 3, p.Scale)
	assert.Equal(t, "fpga", p.Palette.Name())
	assert.Equal(t, kirsch.BorderSymmetric, p.Border)
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	_, err := LoadFile(writeConfig(t, "treshold = 10\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, kirsch.ErrInvalidParameter)
	assert.Contains(t, err.Error(), "treshold")
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = LoadFile(writeConfig(t, "scale = \n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero scale", func(c *Config) { c.Scale = 0 }},
		{"negative scale", func(c *Config) { c.Scale = -2 }},
		{"threshold overflow", func(c *Config) { c.Threshold = 1 << 40 }},
		{"unknown palette", func(c *Config) { c.Palette = "rainbow" }},
		{"unknown border", func(c *Config) { c.Border = "wrap" }},
		{"empty backend", func(c *Config) { c.Backend = " " }},
		{"negative workers", func(c *Config) { c.Workers = -1 }},
		{"zero jobs", func(c *Config) { c.Jobs = 0 }},
		{"empty suffix", func(c *Config) { c.Suffix = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			assert.ErrorIs(t, cfg.Validate(), kirsch.ErrInvalidParameter)
		})
	}
}

func TestNegativeThresholdIsAllowed(t *testing.T) {
	cfg := Default()
	cfg.Threshold = -50
	require.NoError(t, cfg.Validate())
}
