package dither

import (
	"log/slog"
	"math"
	"time"

	"github.com/pthm-cable/voidcluster/lattice"
	"github.com/pthm-cable/voidcluster/volume"
)

// RunStats records what a run did.
type RunStats struct {
	InitialCount   int
	SeedDraws      int // includes draws rejected because the cell was already set
	RebalanceSwaps int
	FillSteps      int
	Duration       time.Duration
	Phases         map[string]time.Duration
}

// LogValue implements slog.LogValuer.
func (s RunStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("initial_count", s.InitialCount),
		slog.Int("seed_draws", s.SeedDraws),
		slog.Int("rebalance_swaps", s.RebalanceSwaps),
		slog.Int("fill_steps", s.FillSteps),
		slog.Int64("duration_ms", s.Duration.Milliseconds()),
	}
	for phase, d := range s.Phases {
		attrs = append(attrs, slog.Int64(phase+"_ms", d.Milliseconds()))
	}
	return slog.GroupValue(attrs...)
}

// Result is a completed rank lattice. Every cell holds rank/size, a value in
// [0, 1) unique to that cell.
type Result struct {
	grid  *lattice.Grid
	seed  uint64
	stats RunStats
}

// Dims returns the lattice dimensions.
func (r *Result) Dims() (d0, d1, d2 int) { return r.grid.Dims() }

// Size returns the number of cells.
func (r *Result) Size() int { return r.grid.Size() }

// Value returns rank/size at c (wrapped).
func (r *Result) Value(c lattice.Coord) float64 { return r.grid.At(c) }

// Rank returns the integer rank at c (wrapped).
func (r *Result) Rank(c lattice.Coord) int {
	return int(math.Round(r.grid.At(c) * float64(r.grid.Size())))
}

// Values returns a copy of rank/size for every cell in linear index order.
func (r *Result) Values() []float64 { return r.grid.Values() }

// Ranks returns the integer ranks in linear index order.
func (r *Result) Ranks() []uint32 {
	n := float64(r.grid.Size())
	out := make([]uint32, r.grid.Size())
	for i := range out {
		out[i] = uint32(math.Round(r.grid.AtIndex(i) * n))
	}
	return out
}

// Layer returns a copy of layer z.
func (r *Result) Layer(z int) []float64 { return r.grid.Layer(z) }

// Threshold returns the binary pattern of cells whose value is below level.
// Thresholding at k/size sets exactly k cells.
func (r *Result) Threshold(level float64) []bool {
	out := make([]bool, r.grid.Size())
	for i := range out {
		out[i] = r.grid.AtIndex(i) < level
	}
	return out
}

// Seed returns the seed the run actually used.
func (r *Result) Seed() uint64 { return r.seed }

// Stats returns the run statistics.
func (r *Result) Stats() RunStats { return r.stats }

// Volume converts the result to an integer rank volume.
func (r *Result) Volume() *volume.Volume {
	d0, d1, d2 := r.grid.Dims()
	return &volume.Volume{D0: d0, D1: d1, D2: d2, Ranks: r.Ranks()}
}
