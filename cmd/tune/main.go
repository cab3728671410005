// Package main tunes the kernel width and seed density with CMA-ES,
// minimising the low-frequency power of thresholded arrays.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/voidcluster/config"
)

// formatDuration formats a duration as HH:MM:SS or MM:SS for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

// EvalRecord is one row of tune_log.csv.
type EvalRecord struct {
	Eval            int     `csv:"eval"`
	Fitness         float64 `csv:"fitness"`
	Sigma           float64 `csv:"sigma"`
	InitialFraction float64 `csv:"initial_fraction"`
	InitialCount    int     `csv:"initial_count"`
	ElapsedMS       int64   `csv:"elapsed_ms"`
}

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	size := flag.Int("size", 12, "Cubic lattice edge used during tuning")
	seeds := flag.Int("seeds", 3, "Number of seeds per evaluation")
	maxEvals := flag.Int("max-evals", 60, "Maximum number of evaluations")
	population := flag.Int("population", 0, "CMA-ES population size (0 = auto)")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	if *outputDir == "" {
		log.Fatal("--output is required")
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	baseCfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	baseCfg.Lattice.Width, baseCfg.Lattice.Height, baseCfg.Lattice.Depth = *size, *size, *size
	baseCfg.Generator.InitialCount = 0
	if err := baseCfg.Finalize(); err != nil {
		log.Fatalf("invalid tuning lattice: %v", err)
	}

	params := NewParamVector()

	evalSeeds := make([]uint64, *seeds)
	for i := range evalSeeds {
		evalSeeds[i] = uint64(i*1000 + 42)
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	evaluator := NewFitnessEvaluator(params, evalSeeds, baseCfg, quiet)

	dim := params.Dim()
	initX := params.Normalize(params.DefaultVector())

	settings := &optimize.Settings{
		FuncEvaluations: *maxEvals,
		Concurrent:      0, // seeds already run in parallel
	}

	popSize := *population
	if popSize == 0 {
		popSize = 4 + int(3.0*float64(dim)/2.0)
	}
	method := &optimize.CmaEsChol{
		InitStepSize: 0.3,
		Population:   popSize,
	}

	logPath := filepath.Join(*outputDir, "tune_log.csv")
	logFile, err := os.Create(logPath)
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()

	evalCount := 0
	bestFitness := 1e9
	var bestParams []float64
	startTime := time.Now()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			raw := params.Denormalize(x)
			clamped := params.Clamp(raw)
			fitness := evaluator.Evaluate(raw)
			evalCount++

			if fitness < bestFitness {
				bestFitness = fitness
				bestParams = clamped
			}
			if err := evaluator.LastErr(); err != nil {
				log.Printf("eval %d failed: %v", evalCount, err)
			}

			rec := []EvalRecord{{
				Eval:            evalCount,
				Fitness:         fitness,
				Sigma:           clamped[0],
				InitialFraction: clamped[1],
				InitialCount:    InitialCount(clamped[1], baseCfg.Derived.Size),
				ElapsedMS:       time.Since(startTime).Milliseconds(),
			}}
			write := gocsv.MarshalWithoutHeaders
			if evalCount == 1 {
				write = gocsv.Marshal
			}
			if err := write(rec, logFile); err != nil {
				log.Printf("failed to log eval %d: %v", evalCount, err)
			}

			elapsed := time.Since(startTime)
			avgPerEval := elapsed / time.Duration(evalCount)
			remaining := time.Duration(*maxEvals-evalCount) * avgPerEval
			fmt.Printf("Eval %d/%d: score=%.4f sigma=%.3f fraction=%.4f (best=%.4f) | elapsed: %s, ETA: %s\n",
				evalCount, *maxEvals, fitness, clamped[0], clamped[1], bestFitness,
				formatDuration(elapsed), formatDuration(remaining))

			return fitness
		},
	}

	fmt.Printf("Starting CMA-ES tuning with %d parameters, population=%d, max_evals=%d\n",
		dim, popSize, *maxEvals)
	fmt.Printf("Seeds per evaluation: %d, lattice: %s\n", *seeds, baseCfg.DimsString())

	result, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil {
		log.Printf("optimization ended: %v", err)
	}
	if bestParams == nil && result != nil {
		bestParams = params.Clamp(params.Denormalize(result.X))
	}
	if bestParams == nil {
		log.Fatal("no evaluations completed")
	}

	fmt.Printf("\nTuning complete after %d evaluations in %s\n", evalCount, formatDuration(time.Since(startTime)))
	fmt.Printf("Best score: %.4f\n", bestFitness)
	fmt.Println("\nBest parameters:")
	for i, spec := range params.Specs {
		fmt.Printf("  %s: %.6f\n", spec.Name, bestParams[i])
	}

	// The best config keeps the user's lattice; the seed fraction is
	// rescaled to it.
	bestCfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to reload config: %v", err)
	}
	if err := params.ApplyToConfig(bestCfg, bestParams); err != nil {
		log.Fatalf("best parameters invalid for target lattice: %v", err)
	}

	configOutPath := filepath.Join(*outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(configOutPath); err != nil {
		log.Printf("failed to write best config: %v", err)
	} else {
		fmt.Printf("\nBest config saved to: %s\n", configOutPath)
	}
}
