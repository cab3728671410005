package main

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/pthm-cable/voidcluster/analysis"
	"github.com/pthm-cable/voidcluster/config"
	"github.com/pthm-cable/voidcluster/dither"
)

// FitnessEvaluator generates arrays for a parameter vector and scores their
// spectra. Lower fitness is bluer.
type FitnessEvaluator struct {
	params     *ParamVector
	seeds      []uint64
	baseConfig *config.Config
	logger     *slog.Logger

	mu          sync.Mutex
	bestFitness float64
	lastErr     error
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, seeds []uint64, baseCfg *config.Config, logger *slog.Logger) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		seeds:       seeds,
		baseConfig:  baseCfg,
		logger:      logger,
		bestFitness: math.Inf(1),
	}
}

// LastErr returns the error from the most recent failed evaluation, if any.
func (fe *FitnessEvaluator) LastErr() error {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastErr
}

// Best returns the lowest fitness seen so far.
func (fe *FitnessEvaluator) Best() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestFitness
}

// failedFitness is returned for parameter vectors that cannot be generated,
// well above the white-noise score of about 1.
const failedFitness = 10.0

// Evaluate computes the mean spectral score over all seeds.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	cfg := fe.copyConfig()
	if err := fe.params.ApplyToConfig(cfg, x); err != nil {
		fe.setErr(err)
		return failedFitness
	}

	// Seeds run in parallel; each gets its own generator.
	scores := make([]float64, len(fe.seeds))
	errs := make([]error, len(fe.seeds))
	var wg sync.WaitGroup
	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s uint64) {
			defer wg.Done()
			scores[idx], errs[idx] = fe.score(cfg, s)
		}(i, seed)
	}
	wg.Wait()

	var total float64
	for i := range scores {
		if errs[i] != nil {
			fe.setErr(errs[i])
			return failedFitness
		}
		total += scores[i]
	}
	fitness := total / float64(len(scores))

	fe.mu.Lock()
	fe.bestFitness = min(fe.bestFitness, fitness)
	fe.lastErr = nil
	fe.mu.Unlock()
	return fitness
}

func (fe *FitnessEvaluator) score(cfg *config.Config, seed uint64) (float64, error) {
	opts := cfg.GeneratorOptions()
	opts.Seed = dither.FixedSeed(seed)
	opts.Logger = fe.logger
	gen, err := dither.New(opts)
	if err != nil {
		return 0, err
	}
	res, err := gen.Generate(cfg.Derived.InitialCount)
	if err != nil {
		return 0, fmt.Errorf("seed %d: %w", seed, err)
	}
	return analysis.Score(res.Volume(), cfg.Analysis.Thresholds, cfg.Analysis.LowCutoff), nil
}

func (fe *FitnessEvaluator) setErr(err error) {
	fe.mu.Lock()
	fe.lastErr = err
	fe.mu.Unlock()
}

// copyConfig creates a copy of the base config that evaluations may modify.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	cfg.Analysis.Thresholds = append([]float64(nil), fe.baseConfig.Analysis.Thresholds...)
	return &cfg
}
