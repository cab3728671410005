package telemetry

import "log/slog"

// RunRecord summarises one generation run as a CSV row.
type RunRecord struct {
	Run            int     `csv:"run"`
	Seed           uint64  `csv:"seed"`
	D0             int     `csv:"d0"`
	D1             int     `csv:"d1"`
	D2             int     `csv:"d2"`
	KernelSize     int     `csv:"kernel_size"`
	Sigma          float64 `csv:"sigma"`
	InitialCount   int     `csv:"initial_count"`
	SeedDraws      int     `csv:"seed_draws"`
	RebalanceSwaps int     `csv:"rebalance_swaps"`
	FillSteps      int     `csv:"fill_steps"`
	DurationMS     int64   `csv:"duration_ms"`
	Checksum       string  `csv:"checksum"`
}

// LogValue implements slog.LogValuer.
func (r RunRecord) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("seed", r.Seed),
		slog.Int("d0", r.D0),
		slog.Int("d1", r.D1),
		slog.Int("d2", r.D2),
		slog.Int("initial_count", r.InitialCount),
		slog.Int("rebalance_swaps", r.RebalanceSwaps),
		slog.Int64("duration_ms", r.DurationMS),
		slog.String("checksum", r.Checksum),
	)
}

// LayerStats describes the rank distribution within one Z layer.
type LayerStats struct {
	Z      int     `csv:"z"`
	Mean   float64 `csv:"mean"`
	StdDev float64 `csv:"stddev"`
	Min    float64 `csv:"min"`
	Max    float64 `csv:"max"`
	// Fraction of the layer below 0.5, ideally close to one half.
	HalfDensity float64 `csv:"half_density"`
}

// SpectrumBin is one shell of a radially averaged power spectrum.
type SpectrumBin struct {
	Threshold float64 `csv:"threshold"`
	Radius    int     `csv:"radius"`
	Count     int     `csv:"count"`
	Power     float64 `csv:"power"`
}
