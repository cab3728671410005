// Package config provides configuration loading and access for the generator.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/voidcluster/dither"
	"github.com/pthm-cable/voidcluster/errs"
	"github.com/pthm-cable/voidcluster/lattice"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all generator configuration parameters.
type Config struct {
	Lattice   LatticeConfig   `yaml:"lattice"`
	Kernel    KernelConfig    `yaml:"kernel"`
	Seed      SeedConfig      `yaml:"seed"`
	Generator GeneratorConfig `yaml:"generator"`
	Output    OutputConfig    `yaml:"output"`
	Analysis  AnalysisConfig  `yaml:"analysis"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// LatticeConfig holds the lattice dimensions.
type LatticeConfig struct {
	Width  int `yaml:"width"`  // d0
	Height int `yaml:"height"` // d1
	Depth  int `yaml:"depth"`  // d2, one output layer per slice
}

// KernelConfig holds the Gaussian kernel parameters.
type KernelConfig struct {
	Size  int     `yaml:"size"` // odd
	Sigma float64 `yaml:"sigma"`
}

// SeedConfig selects the random source.
type SeedConfig struct {
	Value  uint64 `yaml:"value"`
	Random bool   `yaml:"random"` // ignore Value and draw a fresh seed
}

// GeneratorConfig holds algorithm tuning parameters.
type GeneratorConfig struct {
	InitialCount    int     `yaml:"initial_count"`   // 0 = scaled default
	ReportInterval  int     `yaml:"report_interval"` // progress events between reports
	VerifyEvery     int     `yaml:"verify_every"`    // 0 disables brute-force checks
	VerifyTolerance float64 `yaml:"verify_tolerance"`
}

// OutputConfig holds output locations and formats.
type OutputConfig struct {
	Dir          string  `yaml:"dir"` // empty = "<w>x<h>x<d>"
	LayerPrefix  string  `yaml:"layer_prefix"`
	LayerExt     string  `yaml:"layer_ext"`
	LayerDepth   int     `yaml:"layer_depth"` // 8 or 16 bits per pixel
	VolumeFile   string  `yaml:"volume_file"` // empty disables
	GLBFile      string  `yaml:"glb_file"`    // empty disables
	GLBThreshold float64 `yaml:"glb_threshold"`
	CSV          bool    `yaml:"csv"`
}

// AnalysisConfig holds spectral analysis parameters.
type AnalysisConfig struct {
	Thresholds []float64 `yaml:"thresholds"`
	LowCutoff  float64   `yaml:"low_cutoff"` // radius in frequency bins
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Size         int    // Width*Height*Depth
	InitialCount int    // effective seed count
	OutputDir    string // effective output directory
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Defaults returns the embedded defaults.
func Defaults() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only overwrites fields present in the file.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Finalize validates the configuration and recomputes derived values.
// Call it again after changing fields programmatically.
func (c *Config) Finalize() error {
	if err := c.Validate(); err != nil {
		return err
	}
	c.computeDerived()
	if n := c.Derived.InitialCount; n <= 0 || n >= c.Derived.Size {
		return errs.Config("generator.initial_count", n,
			fmt.Sprintf("must be in [1, %d)", c.Derived.Size))
	}
	return nil
}

// Validate checks parameter ranges. Returns the first *errs.ConfigError found.
func (c *Config) Validate() error {
	dims := []struct {
		field string
		v     int
	}{
		{"lattice.width", c.Lattice.Width},
		{"lattice.height", c.Lattice.Height},
		{"lattice.depth", c.Lattice.Depth},
	}
	for _, d := range dims {
		if d.v <= 0 {
			return errs.Config(d.field, d.v, "must be positive")
		}
	}
	if _, err := lattice.CellCount(c.Lattice.Width, c.Lattice.Height, c.Lattice.Depth); err != nil {
		return err
	}
	if c.Kernel.Size <= 0 || c.Kernel.Size%2 == 0 {
		return errs.Config("kernel.size", c.Kernel.Size, "must be a positive odd number")
	}
	if !(c.Kernel.Sigma > 0) {
		return errs.Config("kernel.sigma", c.Kernel.Sigma, "must be positive")
	}
	if c.Generator.InitialCount < 0 {
		return errs.Config("generator.initial_count", c.Generator.InitialCount, "must not be negative")
	}
	if c.Generator.VerifyEvery < 0 {
		return errs.Config("generator.verify_every", c.Generator.VerifyEvery, "must not be negative")
	}
	if c.Output.LayerDepth != 8 && c.Output.LayerDepth != 16 {
		return errs.Config("output.layer_depth", c.Output.LayerDepth, "must be 8 or 16")
	}
	for _, th := range c.Analysis.Thresholds {
		if th <= 0 || th >= 1 {
			return errs.Config("analysis.thresholds", th, "must be in (0, 1)")
		}
	}
	if c.Analysis.LowCutoff < 0 {
		return errs.Config("analysis.low_cutoff", c.Analysis.LowCutoff, "must not be negative")
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.Size = c.Lattice.Width * c.Lattice.Height * c.Lattice.Depth

	c.Derived.InitialCount = c.Generator.InitialCount
	if c.Derived.InitialCount == 0 {
		c.Derived.InitialCount = dither.DefaultInitialCount(c.Derived.Size)
	}

	c.Derived.OutputDir = c.Output.Dir
	if c.Derived.OutputDir == "" {
		c.Derived.OutputDir = c.DimsString()
	}
}

// DimsString formats the lattice dimensions as "WxHxD".
func (c *Config) DimsString() string {
	return strings.Join([]string{
		strconv.Itoa(c.Lattice.Width),
		strconv.Itoa(c.Lattice.Height),
		strconv.Itoa(c.Lattice.Depth),
	}, "x")
}

// SeedMode converts the seed section for the generator.
func (c *Config) SeedMode() dither.SeedMode {
	if c.Seed.Random {
		return dither.RandomSeed()
	}
	return dither.FixedSeed(c.Seed.Value)
}

// GeneratorOptions builds generator options from the config. Callers add
// Progress, Perf and Logger.
func (c *Config) GeneratorOptions() dither.Options {
	return dither.Options{
		D0:              c.Lattice.Width,
		D1:              c.Lattice.Height,
		D2:              c.Lattice.Depth,
		KernelSize:      c.Kernel.Size,
		Sigma:           c.Kernel.Sigma,
		Seed:            c.SeedMode(),
		ReportInterval:  c.Generator.ReportInterval,
		VerifyEvery:     c.Generator.VerifyEvery,
		VerifyTolerance: c.Generator.VerifyTolerance,
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
