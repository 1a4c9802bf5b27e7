// Package config holds the run configuration of the edge mapper. Values come
// from Default, are overlaid by an optional TOML file and finally by command
// line flags.
package config

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"kirsch-edgemap/internal/kirsch"
)

const (
	DefaultSuffix  = "_edge"
	DefaultBackend = "scalar"
	DefaultDevice  = "lanes"
)

type Config struct {
	Threshold     int64  `toml:"threshold"`
	Scale         int    `toml:"scale"`
	Palette       string `toml:"palette"`
	Border        string `toml:"border"`
	Backend       string `toml:"backend"`
	Device        string `toml:"device"`
	Accelerate    bool   `toml:"accelerate"`
	AllowFallback bool   `toml:"allow_fallback"`
	Workers       int    `toml:"workers"`
	Jobs          int    `toml:"jobs"`
	Suffix        string `toml:"suffix"`
	Progress      bool   `toml:"progress"`
	LogLevel      string `toml:"log_level"`
}

func Default() Config {
	return Config{
		Threshold: kirsch.DefaultThreshold,
		Scale:     1,
		Palette:   kirsch.Sim.Name(),
		Border:    kirsch.BorderSkip.String(),
		Backend:   DefaultBackend,
		Device:    DefaultDevice,
		Workers:   runtime.GOMAXPROCS(0),
		Jobs:      1,
		Suffix:    DefaultSuffix,
		Progress:  true,
	}
}

// LoadFile overlays the TOML document at path on top of Default. Unknown
// keys are rejected.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("could not read config %q: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return Config{}, fmt.Errorf("%w: unknown config keys in %q: %s",
			kirsch.ErrInvalidParameter, path, strings.Join(keys, ", "))
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := c.Params(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Backend) == "" {
		return fmt.Errorf("%w: backend must be set", kirsch.ErrInvalidParameter)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", kirsch.ErrInvalidParameter, c.Workers)
	}
	if c.Jobs <= 0 {
		return fmt.Errorf("%w: jobs must be positive, got %d", kirsch.ErrInvalidParameter, c.Jobs)
	}
	// An empty suffix would overwrite the input file.
	if c.Suffix == "" {
		return fmt.Errorf("%w: output suffix must not be empty", kirsch.ErrInvalidParameter)
	}
	return nil
}

// Params converts the classifier related fields to kirsch.Params.
func (c Config) Params() (kirsch.Params, error) {
	threshold, err := kirsch.ThresholdFromInt(c.Threshold)
	if err != nil {
		return kirsch.Params{}, err
	}

	palette, err := kirsch.PaletteByName(c.Palette)
	if err != nil {
		return kirsch.Params{}, err
	}

	border, err := kirsch.ParseBorderPolicy(c.Border)
	if err != nil {
		return kirsch.Params{}, err
	}

	p := kirsch.Params{
		Threshold: threshold,
		Scale:     c.Scale,
		Palette:   palette,
		Border:    border,
	}
	if err := p.Validate(); err != nil {
		return kirsch.Params{}, err
	}
	return p, nil
}
