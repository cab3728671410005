package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pthm-cable/voidcluster/errs"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Lattice.Width != 32 || cfg.Lattice.Height != 32 || cfg.Lattice.Depth != 32 {
		t.Errorf("default lattice = %+v", cfg.Lattice)
	}
	if cfg.Kernel.Size != 17 || cfg.Kernel.Sigma != 1.4 {
		t.Errorf("default kernel = %+v", cfg.Kernel)
	}
	if cfg.Seed.Random || cfg.Seed.Value != 0 {
		t.Errorf("default seed = %+v", cfg.Seed)
	}
	if cfg.Derived.Size != 32768 {
		t.Errorf("derived size = %d", cfg.Derived.Size)
	}
	if cfg.Derived.InitialCount != 279 {
		t.Errorf("derived initial count = %d, want 279", cfg.Derived.InitialCount)
	}
	if cfg.Derived.OutputDir != "32x32x32" {
		t.Errorf("derived output dir = %q", cfg.Derived.OutputDir)
	}
	if cfg.Generator.ReportInterval != 50 {
		t.Errorf("report interval = %d", cfg.Generator.ReportInterval)
	}
	if cfg.Output.LayerPrefix != "layer_" || cfg.Output.LayerExt != ".png" {
		t.Errorf("layer naming = %q %q", cfg.Output.LayerPrefix, cfg.Output.LayerExt)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.yaml")
	data := []byte("lattice:\n  width: 8\n  height: 8\n  depth: 4\nseed:\n  value: 7\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Lattice.Width != 8 || cfg.Lattice.Depth != 4 {
		t.Errorf("lattice not overridden: %+v", cfg.Lattice)
	}
	if cfg.Kernel.Size != 17 {
		t.Errorf("kernel size should keep default, got %d", cfg.Kernel.Size)
	}
	if cfg.Seed.Value != 7 {
		t.Errorf("seed = %d", cfg.Seed.Value)
	}
	if cfg.Derived.Size != 256 || cfg.Derived.OutputDir != "8x8x4" {
		t.Errorf("derived = %+v", cfg.Derived)
	}
	if n := cfg.Derived.InitialCount; n < 1 || n >= 256 {
		t.Errorf("scaled initial count %d out of range", n)
	}

	opts := cfg.GeneratorOptions()
	if opts.D0 != 8 || opts.D2 != 4 || opts.Seed.Value != 7 || opts.Seed.Random {
		t.Errorf("generator options = %+v", opts)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		field  string
		mutate func(*Config)
	}{
		{"zero width", "lattice.width", func(c *Config) { c.Lattice.Width = 0 }},
		{"negative depth", "lattice.depth", func(c *Config) { c.Lattice.Depth = -1 }},
		{"too many cells", "lattice.size", func(c *Config) { c.Lattice.Width, c.Lattice.Height = 1<<20, 1<<20 }},
		{"even kernel", "kernel.size", func(c *Config) { c.Kernel.Size = 16 }},
		{"zero sigma", "kernel.sigma", func(c *Config) { c.Kernel.Sigma = 0 }},
		{"negative initial", "generator.initial_count", func(c *Config) { c.Generator.InitialCount = -3 }},
		{"initial fills lattice", "generator.initial_count", func(c *Config) { c.Generator.InitialCount = 32768 }},
		{"bad depth", "output.layer_depth", func(c *Config) { c.Output.LayerDepth = 12 }},
		{"bad threshold", "analysis.thresholds", func(c *Config) { c.Analysis.Thresholds = []float64{1.5} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Finalize()
			if !errors.Is(err, errs.ErrConfig) {
				t.Fatalf("expected config error, got %v", err)
			}
			var cfgErr *errs.ConfigError
			if errors.As(err, &cfgErr) && cfgErr.Field != tt.field {
				t.Errorf("field = %q, want %q", cfgErr.Field, tt.field)
			}
		})
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg := Defaults()
	cfg.Lattice.Width = 16
	cfg.Seed.Random = true
	if err := cfg.Finalize(); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatal(err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if back.Lattice.Width != 16 || !back.Seed.Random {
		t.Errorf("round trip lost values: %+v %+v", back.Lattice, back.Seed)
	}
	if !back.SeedMode().Random {
		t.Error("SeedMode should be random")
	}
}

func TestInitAndCfg(t *testing.T) {
	defer func() { global = nil }()
	MustInit("")
	if Cfg().Derived.Size != 32768 {
		t.Errorf("global config not loaded")
	}
}
