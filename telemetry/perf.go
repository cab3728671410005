package telemetry

import (
	"log/slog"
	"time"
)

// Phase names of a generation run.
const (
	PhaseSeed      = "seed"
	PhaseRebalance = "rebalance"
	PhaseRankSeeds = "rank_seeds"
	PhaseFill      = "fill"
	PhaseExport    = "export"
)

// Phases lists every phase in execution order.
var Phases = []string{PhaseSeed, PhaseRebalance, PhaseRankSeeds, PhaseFill, PhaseExport}

// PerfSample holds timing data for a single run.
type PerfSample struct {
	RunDuration time.Duration
	Cells       int
	Phases      map[string]time.Duration
}

// PerfCollector tracks phase timings over a rolling window of runs.
// A single generator uses a window of one; the tuner keeps a longer one.
type PerfCollector struct {
	windowSize    int
	samples       []PerfSample
	writeIndex    int
	sampleCount   int
	currentPhases map[string]time.Duration
	runStart      time.Time
	phaseStart    time.Time
	lastPhase     string
}

// NewPerfCollector creates a collector averaging over windowSize runs.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 1
	}
	return &PerfCollector{
		windowSize:    windowSize,
		samples:       make([]PerfSample, windowSize),
		currentPhases: make(map[string]time.Duration),
	}
}

// StartRun begins timing a new run.
func (p *PerfCollector) StartRun() {
	p.runStart = time.Now()
	p.currentPhases = make(map[string]time.Duration)
	p.lastPhase = ""
}

// StartPhase begins timing a phase, closing the previous one.
func (p *PerfCollector) StartPhase(phase string) {
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
	p.lastPhase = phase
}

// EndRun closes the current phase and records the sample.
func (p *PerfCollector) EndRun(cells int) PerfSample {
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
		p.lastPhase = ""
	}

	sample := PerfSample{
		RunDuration: now.Sub(p.runStart),
		Cells:       cells,
		Phases:      p.currentPhases,
	}

	p.samples[p.writeIndex] = sample
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
	return sample
}

// AddToLast charges d to phase on the most recent sample, for work done
// after the run ended (writing outputs). No-op before the first run.
func (p *PerfCollector) AddToLast(phase string, d time.Duration) {
	if p.sampleCount == 0 {
		return
	}
	i := (p.writeIndex - 1 + p.windowSize) % p.windowSize
	s := &p.samples[i]
	if s.Phases == nil {
		s.Phases = make(map[string]time.Duration)
	}
	s.Phases[phase] += d
	s.RunDuration += d
}

// Last returns the most recently recorded sample.
func (p *PerfCollector) Last() (PerfSample, bool) {
	if p.sampleCount == 0 {
		return PerfSample{}, false
	}
	i := (p.writeIndex - 1 + p.windowSize) % p.windowSize
	return p.samples[i], true
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	Runs           int
	AvgRunDuration time.Duration
	MinRunDuration time.Duration
	MaxRunDuration time.Duration

	// Phase breakdown (average durations)
	PhaseAvg map[string]time.Duration
	// Phase share of total run time
	PhasePct map[string]float64

	CellsPerSecond float64
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	if p.sampleCount == 0 {
		return PerfStats{
			PhaseAvg: make(map[string]time.Duration),
			PhasePct: make(map[string]float64),
		}
	}

	var total time.Duration
	var minRun, maxRun time.Duration
	var cells int
	phaseSum := make(map[string]time.Duration)

	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[i]
		total += s.RunDuration
		cells += s.Cells

		if i == 0 || s.RunDuration < minRun {
			minRun = s.RunDuration
		}
		if s.RunDuration > maxRun {
			maxRun = s.RunDuration
		}
		for phase, dur := range s.Phases {
			phaseSum[phase] += dur
		}
	}

	avg := total / time.Duration(p.sampleCount)

	phaseAvg := make(map[string]time.Duration)
	phasePct := make(map[string]float64)
	for phase, sum := range phaseSum {
		phaseAvg[phase] = sum / time.Duration(p.sampleCount)
		if avg > 0 {
			phasePct[phase] = float64(phaseAvg[phase]) / float64(avg) * 100
		}
	}

	var cps float64
	if total > 0 {
		cps = float64(cells) / total.Seconds()
	}

	return PerfStats{
		Runs:           p.sampleCount,
		AvgRunDuration: avg,
		MinRunDuration: minRun,
		MaxRunDuration: maxRun,
		PhaseAvg:       phaseAvg,
		PhasePct:       phasePct,
		CellsPerSecond: cps,
	}
}

// LogStats logs performance statistics.
func (s PerfStats) LogStats() {
	attrs := []any{
		"runs", s.Runs,
		"avg_run_ms", s.AvgRunDuration.Milliseconds(),
		"min_run_ms", s.MinRunDuration.Milliseconds(),
		"max_run_ms", s.MaxRunDuration.Milliseconds(),
		"cells_per_sec", int(s.CellsPerSecond),
	}
	for _, phase := range Phases {
		if pct, ok := s.PhasePct[phase]; ok && pct > 0.1 {
			attrs = append(attrs, phase+"_pct", int(pct*10)/10.0)
		}
	}
	slog.Info("perf", attrs...)
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("runs", s.Runs),
		slog.Int64("avg_run_ms", s.AvgRunDuration.Milliseconds()),
		slog.Int64("min_run_ms", s.MinRunDuration.Milliseconds()),
		slog.Int64("max_run_ms", s.MaxRunDuration.Milliseconds()),
		slog.Float64("cells_per_sec", s.CellsPerSecond),
	}
	for phase, pct := range s.PhasePct {
		attrs = append(attrs, slog.Float64(phase+"_pct", pct))
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	Run          int     `csv:"run"`
	AvgRunMS     int64   `csv:"avg_run_ms"`
	MinRunMS     int64   `csv:"min_run_ms"`
	MaxRunMS     int64   `csv:"max_run_ms"`
	CellsPerSec  float64 `csv:"cells_per_sec"`
	SeedPct      float64 `csv:"seed_pct"`
	RebalancePct float64 `csv:"rebalance_pct"`
	RankSeedsPct float64 `csv:"rank_seeds_pct"`
	FillPct      float64 `csv:"fill_pct"`
	ExportPct    float64 `csv:"export_pct"`
}

// ToCSV converts PerfStats to a flat CSV-friendly struct.
func (s PerfStats) ToCSV(run int) PerfStatsCSV {
	return PerfStatsCSV{
		Run:          run,
		AvgRunMS:     s.AvgRunDuration.Milliseconds(),
		MinRunMS:     s.MinRunDuration.Milliseconds(),
		MaxRunMS:     s.MaxRunDuration.Milliseconds(),
		CellsPerSec:  s.CellsPerSecond,
		SeedPct:      s.PhasePct[PhaseSeed],
		RebalancePct: s.PhasePct[PhaseRebalance],
		RankSeedsPct: s.PhasePct[PhaseRankSeeds],
		FillPct:      s.PhasePct[PhaseFill],
		ExportPct:    s.PhasePct[PhaseExport],
	}
}
