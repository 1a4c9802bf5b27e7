package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"kirsch-edgemap/internal/accel"
	"kirsch-edgemap/internal/config"
	"kirsch-edgemap/internal/kirsch"
	"kirsch-edgemap/internal/logger"
)

const (
	AppName    = "kirsch-edgemap"
	AppVersion = "1.0.0"
)

type rootOptions struct {
	cfg        config.Config
	configPath string
	logLevel   string
	quiet      bool
}

func main() {
	cmd := newRootCommand(os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{cfg: config.Default()}

	cmd := &cobra.Command{
		Use:   AppName + " [flags] FILE...",
		Short: "Colour edge directions of images with the Kirsch compass operator",
		Long: "Each input image is converted to greyscale, run through the eight Kirsch " +
			"compass masks and written as <name><suffix><ext>, where every pixel whose " +
			"strongest response exceeds the threshold is painted with the colour of its " +
			"direction.",
		Version:       fmt.Sprintf("%s (%s)", AppVersion, runtime.Version()),
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.Flags(), opts, args, stdout, stderr)
		},
	}

	f := cmd.Flags()
	f.SortFlags = false
	f.StringVarP(&opts.cfg.Suffix, "suffix", "s", opts.cfg.Suffix, "suffix appended to output file names")
	f.BoolVarP(&opts.cfg.Accelerate, "accel-gpu", "a", false, "run the fused kernel on the acceleration device")
	f.StringVarP(&opts.cfg.Palette, "colour", "c", opts.cfg.Palette, "edge colour map: "+strings.Join(kirsch.PaletteNames(), ", "))
	f.Int64VarP(&opts.cfg.Threshold, "threshold", "t", opts.cfg.Threshold, "derivative threshold, edges need a strictly greater response")
	f.IntVarP(&opts.cfg.Scale, "resize", "r", opts.cfg.Scale, "output scale factor, a positive integer")
	f.StringVar(&opts.cfg.Border, "border", opts.cfg.Border, "border policy: skip or symmetric")
	f.StringVar(&opts.cfg.Backend, "backend", opts.cfg.Backend, "backend: scalar, parallel or accel")
	f.StringVar(&opts.cfg.Device, "device", opts.cfg.Device, "acceleration device: "+accel.LanesDeviceName+" or "+accel.OpenCVDeviceName)
	f.BoolVar(&opts.cfg.AllowFallback, "fallback", false, "fall back to the scalar backend when the device is unavailable")
	f.IntVar(&opts.cfg.Workers, "workers", opts.cfg.Workers, "worker pool size, 0 uses GOMAXPROCS")
	f.IntVar(&opts.cfg.Jobs, "jobs", opts.cfg.Jobs, "number of files processed at once")
	f.StringVar(&opts.configPath, "config", "", "TOML configuration file")
	f.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error (default $LOG_LEVEL or info)")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress progress output")

	return cmd
}

func run(ctx context.Context, flags *pflag.FlagSet, opts *rootOptions, files []string, stdout, stderr io.Writer) error {
	cfg, err := resolveConfig(flags, opts)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := newLogger(stderr, opts.logLevel, cfg.LogLevel)
	if err != nil {
		return err
	}

	app, err := newApplication(ctx, cfg, log, stdout)
	if err != nil {
		return err
	}
	defer app.Close()

	return app.Run(files)
}

// resolveConfig layers the config file over the defaults and the flags the
// user actually set over the file.
func resolveConfig(flags *pflag.FlagSet, opts *rootOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.LoadFile(opts.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	overrides := map[string]func(){
		"suffix":    func() { cfg.Suffix = opts.cfg.Suffix },
		"accel-gpu": func() { cfg.Accelerate = opts.cfg.Accelerate },
		"colour":    func() { cfg.Palette = opts.cfg.Palette },
		"threshold": func() { cfg.Threshold = opts.cfg.Threshold },
		"resize":    func() { cfg.Scale = opts.cfg.Scale },
		"border":    func() { cfg.Border = opts.cfg.Border },
		"backend":   func() { cfg.Backend = opts.cfg.Backend },
		"device":    func() { cfg.Device = opts.cfg.Device },
		"fallback":  func() { cfg.AllowFallback = opts.cfg.AllowFallback },
		"workers":   func() { cfg.Workers = opts.cfg.Workers },
		"jobs":      func() { cfg.Jobs = opts.cfg.Jobs },
	}
	flags.Visit(func(f *pflag.Flag) {
		if apply, ok := overrides[f.Name]; ok {
			apply()
		}
	})

	if opts.quiet {
		cfg.Progress = false
	}
	return cfg, nil
}

// newLogger picks the level from --log-level, then the config file, then
// LOG_LEVEL/DEBUG.
func newLogger(w io.Writer, flagLevel, fileLevel string) (logger.Logger, error) {
	level := logger.LevelFromEnv()
	for _, name := range []string{flagLevel, fileLevel} {
		if name == "" {
			continue
		}
		parsed, err := logger.ParseLevel(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", kirsch.ErrInvalidParameter, err)
		}
		level = parsed
		break
	}
	return logger.NewConsoleLogger(w, level), nil
}
