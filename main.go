package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pthm-cable/voidcluster/analysis"
	"github.com/pthm-cable/voidcluster/config"
	"github.com/pthm-cable/voidcluster/dither"
	"github.com/pthm-cable/voidcluster/export"
	"github.com/pthm-cable/voidcluster/telemetry"
	"github.com/pthm-cable/voidcluster/volume"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	seed := flag.Uint64("seed", 0, "RNG seed (overrides config)")
	randomSeed := flag.Bool("random-seed", false, "Draw a fresh seed instead of a fixed one")
	outputDir := flag.String("output-dir", "", "Output directory (empty = config or <w>x<h>x<d>)")
	size := flag.Int("size", 0, "Cubic lattice edge length (0 = use config)")
	initial := flag.Int("initial", -1, "Initial seed count (0 = scaled default, -1 = use config)")
	progress := flag.String("progress", "console", "Progress output: console, log or none")
	verifyEvery := flag.Int("verify-every", -1, "Brute-force energy check every N steps (-1 = use config)")
	csv := flag.Bool("csv", false, "Write CSV telemetry and a config snapshot")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	// Flags override the loaded config.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "seed":
			cfg.Seed.Value = *seed
		case "random-seed":
			cfg.Seed.Random = *randomSeed
		case "output-dir":
			cfg.Output.Dir = *outputDir
		case "size":
			cfg.Lattice.Width, cfg.Lattice.Height, cfg.Lattice.Depth = *size, *size, *size
		case "initial":
			if *initial >= 0 {
				cfg.Generator.InitialCount = *initial
			}
		case "verify-every":
			if *verifyEvery >= 0 {
				cfg.Generator.VerifyEvery = *verifyEvery
			}
		case "csv":
			cfg.Output.CSV = *csv
		}
	})
	if err := cfg.Finalize(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, *progress, logger); err != nil {
		slog.Error("generation failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, progressMode string, logger *slog.Logger) error {
	dir := cfg.Derived.OutputDir

	var om *telemetry.OutputManager
	if cfg.Output.CSV {
		var err error
		om, err = telemetry.NewOutputManager(dir)
		if err != nil {
			return err
		}
		defer om.Close()
		if err := om.WriteConfig(cfg); err != nil {
			slog.Error("failed to write config snapshot", "error", err)
		}
	}

	perf := telemetry.NewPerfCollector(1)
	opts := cfg.GeneratorOptions()
	opts.Perf = perf
	opts.Logger = logger
	switch progressMode {
	case "console":
		opts.Progress = telemetry.NewProgressBar(os.Stderr).Report
	case "log":
		opts.Progress = telemetry.NewProgressLogger(logger, 10).Report
	case "none":
	default:
		return fmt.Errorf("unknown progress mode %q", progressMode)
	}

	gen, err := dither.New(opts)
	if err != nil {
		return err
	}

	slog.Info("starting generation", startAttrs(cfg)...)

	res, err := gen.Generate(cfg.Derived.InitialCount)
	if err != nil {
		return err
	}
	vol := res.Volume()

	// The array is complete; output failures are logged, not fatal.
	exportStart := time.Now()
	files := writeOutputs(cfg, dir, vol)
	perf.AddToLast(telemetry.PhaseExport, time.Since(exportStart))

	stats := res.Stats()
	checksum := fmt.Sprintf("%016x", vol.Checksum())
	record := telemetry.RunRecord{
		Run:            1,
		Seed:           res.Seed(),
		D0:             vol.D0,
		D1:             vol.D1,
		D2:             vol.D2,
		KernelSize:     cfg.Kernel.Size,
		Sigma:          cfg.Kernel.Sigma,
		InitialCount:   stats.InitialCount,
		SeedDraws:      stats.SeedDraws,
		RebalanceSwaps: stats.RebalanceSwaps,
		FillSteps:      stats.FillSteps,
		DurationMS:     stats.Duration.Milliseconds(),
		Checksum:       checksum,
	}
	slog.Info("run complete", "run", record)

	if om != nil {
		writeTelemetry(om, cfg, vol, record, perf.Stats())
	}

	snap := &telemetry.Snapshot{
		Version:      telemetry.SnapshotVersion,
		D0:           vol.D0,
		D1:           vol.D1,
		D2:           vol.D2,
		KernelSize:   cfg.Kernel.Size,
		Sigma:        cfg.Kernel.Sigma,
		Seed:         res.Seed(),
		RandomSeed:   cfg.Seed.Random,
		InitialCount: stats.InitialCount,
		Checksum:     checksum,
		Created:      time.Now().UTC(),
		Files:        files,
	}
	if path, err := telemetry.SaveSnapshot(snap, dir); err != nil {
		slog.Error("failed to write snapshot", "error", err)
	} else {
		slog.Info("snapshot written", "path", path)
	}

	perf.Stats().LogStats()
	return nil
}

// startAttrs describes a run before it starts. A random seed is only known
// once Generate resolves it, so the seed is logged for fixed runs only.
func startAttrs(cfg *config.Config) []any {
	attrs := []any{
		"dims", cfg.DimsString(),
		"kernel_size", cfg.Kernel.Size,
		"sigma", cfg.Kernel.Sigma,
		"random_seed", cfg.Seed.Random,
		"initial_count", cfg.Derived.InitialCount,
		"output_dir", cfg.Derived.OutputDir,
	}
	if !cfg.Seed.Random {
		attrs = append(attrs, "seed", cfg.Seed.Value)
	}
	return attrs
}

// writeOutputs writes layer images, the rank volume and the optional point
// cloud. Returns the files written, relative to dir where possible.
func writeOutputs(cfg *config.Config, dir string, vol *volume.Volume) []string {
	var files []string
	add := func(path string) {
		if rel, err := filepath.Rel(dir, path); err == nil {
			path = rel
		}
		files = append(files, path)
	}

	paths, err := export.WriteLayers(dir, cfg.Output.LayerPrefix, cfg.Output.LayerExt, cfg.Output.LayerDepth, vol)
	for _, p := range paths {
		add(p)
	}
	if err != nil {
		slog.Error("failed to write layers", "error", err, "written", len(paths))
	} else {
		slog.Info("layers written", "dir", dir, "count", len(paths))
	}

	if name := cfg.Output.VolumeFile; name != "" {
		path := filepath.Join(dir, name)
		if err := volume.Save(path, vol); err != nil {
			slog.Error("failed to write volume", "path", path, "error", err)
		} else {
			add(path)
			slog.Info("volume written", "path", path)
		}
	}

	if name := cfg.Output.GLBFile; name != "" {
		path := filepath.Join(dir, name)
		if err := export.SaveGLB(path, vol, cfg.Output.GLBThreshold); err != nil {
			slog.Error("failed to write glb", "path", path, "error", err)
		} else {
			add(path)
			slog.Info("glb written", "path", path, "threshold", cfg.Output.GLBThreshold)
		}
	}
	return files
}

func writeTelemetry(om *telemetry.OutputManager, cfg *config.Config, vol *volume.Volume, record telemetry.RunRecord, perf telemetry.PerfStats) {
	if err := om.WriteRun(record); err != nil {
		slog.Error("failed to write run record", "error", err)
	}
	if err := om.WritePerf(perf, record.Run); err != nil {
		slog.Error("failed to write perf record", "error", err)
	}
	if err := om.WriteLayerStats(analysis.LayerStats(vol)); err != nil {
		slog.Error("failed to write layer stats", "error", err)
	}
	for _, th := range cfg.Analysis.Thresholds {
		bins := analysis.Spectrum(vol, th)
		slog.Info("spectrum",
			"threshold", th,
			"low_frequency_ratio", analysis.LowFrequencyRatio(bins, cfg.Analysis.LowCutoff),
		)
		if err := om.WriteSpectrum(bins); err != nil {
			slog.Error("failed to write spectrum", "error", err)
		}
	}
}
