package main

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kirsch-edgemap/internal/accel"
	"kirsch-edgemap/internal/config"
	"kirsch-edgemap/internal/kirsch"
)

func writeInput(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 6, 4))
	for y := 0; y < 4; y++ {
		for x := 3; x < 6; x++ {
			img.Pix[y*img.Stride+x] = 200
		}
	}
	path := filepath.Join(dir, "input.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(&stdout, &stderr)
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestRunWritesEdgeMap(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir)

	out, err := execute(t, "-r", "2", "--log-level", "error", input)
	require.NoError(t, err)
	assert.Contains(t, out, "[001/001] Processing File: input.png (Row 00004 of 00004)")
	assert.Contains(t, out, "Success.")

	f, err := os.Open(filepath.Join(dir, "input_edge.png"))
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Width)
	assert.Equal(t, 8, cfg.Height)
}

func TestBackendsProduceIdenticalFiles(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir)

	runs := map[string][]string{
		"_scalar":   {"--backend", "scalar"},
		"_parallel": {"--backend", "parallel", "--workers", "2"},
		"_lanes":    {"-a", "--device", accel.LanesDeviceName},
		"_opencv":   {"--backend", "accel", "--device", accel.OpenCVDeviceName},
	}
	files := map[string][]byte{}
	for suffix, flags := range runs {
		args := append([]string{"-q", "--log-level", "error", "-s", suffix, "-c", "fpga"}, flags...)
		_, err := execute(t, append(args, input)...)
		require.NoError(t, err, suffix)

		data, err := os.ReadFile(filepath.Join(dir, "input"+suffix+".png"))
		require.NoError(t, err)
		files[suffix] = data
	}

	assert.Equal(t, files["_scalar"], files["_parallel"])
	assert.Equal(t, files["_scalar"], files["_lanes"])
	assert.Equal(t, files["_scalar"], files["_opencv"])
}

func TestAcceleratedRunPrintsProgress(t *testing.T) {
	input := writeInput(t, t.TempDir())

	out, err := execute(t, "-a", "--device", accel.LanesDeviceName, "--log-level", "error", input)
	require.NoError(t, err)
	assert.Contains(t, out, "[001/001] Processing File: input.png (Row 00004 of 00004)\n")
	assert.Contains(t, out, "Success.")
}

func TestQuietSuppressesOutput(t *testing.T) {
	input := writeInput(t, t.TempDir())
	out, err := execute(t, "-q", "--log-level", "error", input)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestInvalidArguments(t *testing.T) {
	input := writeInput(t, t.TempDir())

	tests := map[string][]string{
		"no files":        {},
		"zero resize":     {"-r", "0", input},
		"unknown colour":  {"-c", "rainbow", input},
		"unknown backend": {"--backend", "quantum", input},
		"unknown device":  {"--device", "tpu", input},
		"bad log level":   {"--log-level", "loud", input},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := execute(t, args...)
			assert.Error(t, err)
		})
	}
}

func TestResolveConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kirsch.toml")
	require.NoError(t, os.WriteFile(path, []byte("threshold = 100\nscale = 4\npalette = \"mono\"\n"), 0o644))

	cmd := newRootCommand(&bytes.Buffer{}, &bytes.Buffer{})
	require.NoError(t, cmd.Flags().Parse([]string{"--config", path, "-t", "250"}))

	// The options live in the command's closure; read them back through the flags.
	threshold, err := cmd.Flags().GetInt64("threshold")
	require.NoError(t, err)
	configPath, err := cmd.Flags().GetString("config")
	require.NoError(t, err)

	opts := &rootOptions{cfg: config.Default(), configPath: configPath}
	opts.cfg.Threshold = threshold

	cfg, err := resolveConfig(cmd.Flags(), opts)
	require.NoError(t, err)
	assert.Equal(t, int64(250), cfg.Threshold)
	assert.Equal(t, 4, cfg.Scale)
	assert.Equal(t, "mono", cfg.Palette)
	assert.Equal(t, config.DefaultSuffix, cfg.Suffix)
}

func TestBackendName(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, "scalar", backendName(cfg))
	cfg.Accelerate = true
	assert.Equal(t, accel.Name, backendName(cfg))
}

func TestNewDevice(t *testing.T) {
	d, err := newDevice(accel.LanesDeviceName, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, accel.LanesDeviceName, d.Name())

	_, err = newDevice("tpu", nil, nil)
	assert.ErrorIs(t, err, kirsch.ErrInvalidParameter)
}
