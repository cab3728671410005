// Package dither generates 3D blue-noise dither arrays with the
// void-and-cluster method generalised to a toroidal lattice.
//
// A run has three logical stages. Phase 1 seeds a sparse random pattern,
// rebalances it by repeatedly moving the tightest cluster into the tightest
// void, then peels the seed cells off from most to least clustered, giving
// them the lowest ranks. Phase 2/3 fills every remaining void, always taking
// the current tightest void. Finding the largest cluster of zeros is the same
// search as finding the largest void of ones, so the classical phases 2 and 3
// collapse into one loop.
package dither

import (
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/pthm-cable/voidcluster/errs"
	"github.com/pthm-cable/voidcluster/field"
	"github.com/pthm-cable/voidcluster/kernel"
	"github.com/pthm-cable/voidcluster/lattice"
	"github.com/pthm-cable/voidcluster/telemetry"
)

// seedValue is the ink value of seed cells before they receive a final rank.
const seedValue = 1

// SeedMode selects the random source for jitter and seeding.
type SeedMode struct {
	Value  uint64 // used when Random is false
	Random bool   // draw a fresh seed per run
}

// FixedSeed returns a reproducible seed mode.
func FixedSeed(v uint64) SeedMode { return SeedMode{Value: v} }

// RandomSeed returns a nondeterministic seed mode.
func RandomSeed() SeedMode { return SeedMode{Random: true} }

func (s SeedMode) resolve() uint64 {
	if s.Random {
		return rand.Uint64()
	}
	return s.Value
}

// ProgressFunc receives a nondecreasing completion percentage in [0, 100].
type ProgressFunc func(percent int)

// Options configures a Generator.
type Options struct {
	D0, D1, D2 int
	KernelSize int
	Sigma      float64
	Seed       SeedMode

	// Progress is optional. It is invoked every ReportInterval progress
	// events, and always once with 100 when the run finishes.
	Progress       ProgressFunc
	ReportInterval int

	// VerifyEvery > 0 checks the energy field and index membership by
	// brute force every N mutating steps and at phase boundaries.
	VerifyEvery     int
	VerifyTolerance float64

	// Perf collects phase timings. A private collector is used when nil.
	Perf *telemetry.PerfCollector

	Logger *slog.Logger
}

// Generator produces rank lattices for one fixed set of parameters.
type Generator struct {
	opts   Options
	kernel *kernel.Kernel
	size   int
}

// New validates opts and precomputes the kernel.
func New(opts Options) (*Generator, error) {
	size, err := lattice.CellCount(opts.D0, opts.D1, opts.D2)
	if err != nil {
		return nil, err
	}
	k, err := kernel.NewGaussian(opts.KernelSize, opts.Sigma)
	if err != nil {
		return nil, err
	}
	if opts.VerifyTolerance <= 0 {
		opts.VerifyTolerance = 1e-4
	}
	if opts.Perf == nil {
		opts.Perf = telemetry.NewPerfCollector(1)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Generator{
		opts:   opts,
		kernel: k,
		size:   size,
	}, nil
}

// Size returns the number of cells per generated lattice.
func (g *Generator) Size() int { return g.size }

// Kernel returns the precomputed Gaussian kernel.
func (g *Generator) Kernel() *kernel.Kernel { return g.kernel }

// Perf returns the collector receiving phase timings.
func (g *Generator) Perf() *telemetry.PerfCollector { return g.opts.Perf }

// Generate runs the full algorithm and returns the completed rank lattice.
// Each call starts from an empty lattice, so a fixed seed reproduces the
// same result.
func (g *Generator) Generate(initialCount int) (*Result, error) {
	if initialCount <= 0 || initialCount >= g.size {
		return nil, errs.Config("generator.initial_count", initialCount,
			fmt.Sprintf("must be in [1, %d)", g.size))
	}

	seed := g.opts.Seed.resolve()
	rng := rand.New(rand.NewPCG(seed, 0))

	tr, err := field.New(g.opts.D0, g.opts.D1, g.opts.D2, g.kernel, rng)
	if err != nil {
		return nil, err
	}

	r := &run{
		g:        g,
		tr:       tr,
		rng:      rng,
		progress: newReporter(g.opts.Progress, g.opts.ReportInterval),
		stats:    RunStats{InitialCount: initialCount},
	}

	perf := g.opts.Perf
	perf.StartRun()
	if err := r.phase1(initialCount); err != nil {
		perf.EndRun(g.size)
		return nil, err
	}
	if err := r.phase23(initialCount); err != nil {
		perf.EndRun(g.size)
		return nil, err
	}
	sample := perf.EndRun(g.size)
	r.progress.finish()

	r.stats.Duration = sample.RunDuration
	r.stats.Phases = sample.Phases

	grid, _ := lattice.New(g.opts.D0, g.opts.D1, g.opts.D2)
	for i, v := range tr.Values() {
		grid.SetIndex(i, v)
	}

	g.opts.Logger.Info("dither array complete",
		"d0", g.opts.D0, "d1", g.opts.D1, "d2", g.opts.D2,
		"seed", seed,
		"stats", r.stats,
	)
	return &Result{grid: grid, seed: seed, stats: r.stats}, nil
}

// run holds the state of a single Generate call.
type run struct {
	g        *Generator
	tr       *field.Tracker
	rng      *rand.Rand
	progress *reporter
	stats    RunStats
	steps    int
}

func (r *run) phase1(count int) error {
	perf := r.g.opts.Perf

	perf.StartPhase(telemetry.PhaseSeed)
	if err := r.seed(count); err != nil {
		return fmt.Errorf("seeding: %w", err)
	}
	if err := r.checkpoint(); err != nil {
		return err
	}

	perf.StartPhase(telemetry.PhaseRebalance)
	if err := r.rebalance(); err != nil {
		return fmt.Errorf("rebalancing: %w", err)
	}
	if err := r.checkpoint(); err != nil {
		return err
	}

	perf.StartPhase(telemetry.PhaseRankSeeds)
	if err := r.rankSeeds(count); err != nil {
		return fmt.Errorf("ranking seeds: %w", err)
	}
	return r.checkpoint()
}

// seed sets count distinct random cells, rejecting cells already set.
func (r *run) seed(count int) error {
	d0, d1, d2 := r.tr.Dims()
	for count > 0 {
		c := lattice.Coord{X: r.rng.IntN(d0), Y: r.rng.IntN(d1), Z: r.rng.IntN(d2)}
		r.stats.SeedDraws++
		if !r.tr.IsSet(c) {
			count--
			if err := r.tr.Set(c, seedValue); err != nil {
				return err
			}
			if err := r.step(); err != nil {
				return err
			}
		}
		r.progress.report(0)
	}
	return nil
}

// rebalance moves the tightest cluster into the tightest void until the
// cell removed is the cell put back.
func (r *run) rebalance() error {
	for {
		cmax, err := r.tr.TightestCluster()
		if err != nil {
			return err
		}
		if err := r.tr.Reset(cmax); err != nil {
			return err
		}

		cmin, err := r.tr.TightestVoid()
		if err != nil {
			return err
		}
		if err := r.tr.Set(cmin, seedValue); err != nil {
			return err
		}
		if err := r.step(); err != nil {
			return err
		}
		r.progress.report(0)

		if cmin == cmax {
			return nil
		}
		r.stats.RebalanceSwaps++
	}
}

// rankSeeds assigns ranks count-1 down to 0 to the seed cells, most
// clustered first, retiring each from tracking once ranked.
func (r *run) rankSeeds(count int) error {
	size := float64(r.g.size)
	for count > 0 {
		count--

		cmax, err := r.tr.TightestCluster()
		if err != nil {
			return err
		}
		if err := r.tr.Reset(cmax); err != nil {
			return err
		}
		if err := r.tr.Set(cmax, float64(count)/size); err != nil {
			return err
		}
		r.tr.RemoveFromTracking(cmax)
		if err := r.step(); err != nil {
			return err
		}
		r.progress.report(0)
	}
	return nil
}

// phase23 fills every remaining void in tightest-void order.
func (r *run) phase23(count int) error {
	r.g.opts.Perf.StartPhase(telemetry.PhaseFill)
	r.tr.DisableClusterTracking()

	size := r.g.size
	for ; count < size; count++ {
		cmin, err := r.tr.TightestVoid()
		if err != nil {
			return fmt.Errorf("filling rank %d: %w", count, err)
		}
		if err := r.tr.Set(cmin, float64(count)/float64(size)); err != nil {
			return fmt.Errorf("filling rank %d: %w", count, err)
		}
		r.stats.FillSteps++
		if err := r.step(); err != nil {
			return err
		}
		r.progress.report(min(100*count/size, 99))
	}
	return r.checkpoint()
}

func (r *run) step() error {
	r.steps++
	if n := r.g.opts.VerifyEvery; n > 0 && r.steps%n == 0 {
		return r.tr.Verify(r.g.opts.VerifyTolerance)
	}
	return nil
}

func (r *run) checkpoint() error {
	if r.g.opts.VerifyEvery > 0 {
		return r.tr.Verify(r.g.opts.VerifyTolerance)
	}
	return nil
}
