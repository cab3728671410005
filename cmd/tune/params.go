package main

import (
	"math"

	"github.com/pthm-cable/voidcluster/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			{Name: "sigma", Path: "kernel.sigma", Min: 0.8, Max: 3.0, Default: 1.4},
			// Seed density; 279/32768 on the reference lattice.
			{Name: "initial_fraction", Path: "generator.initial_count", Min: 0.002, Max: 0.05, Default: 279.0 / 32768},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// InitialCount converts a seed fraction into a count valid for size cells.
func InitialCount(fraction float64, size int) int {
	n := int(math.Round(fraction * float64(size)))
	return min(max(n, 1), size-1)
}

// ApplyToConfig applies parameter values to a Config struct and refreshes
// its derived values. Order must match Specs.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) error {
	clamped := pv.Clamp(values)
	cfg.Kernel.Sigma = clamped[0]
	size := cfg.Lattice.Width * cfg.Lattice.Height * cfg.Lattice.Depth
	cfg.Generator.InitialCount = InitialCount(clamped[1], size)
	return cfg.Finalize()
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	return []float64{
		cfg.Kernel.Sigma,
		float64(cfg.Derived.InitialCount) / float64(cfg.Derived.Size),
	}
}
