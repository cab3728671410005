// Package kernel builds the 3D Gaussian stencil used to spread a cell's
// influence over its neighbourhood.
package kernel

import (
	"math"

	"github.com/pthm-cable/voidcluster/errs"
	"github.com/pthm-cable/voidcluster/lattice"
)

// Tap is one kernel weight with its offset from the kernel center.
type Tap struct {
	DX, DY, DZ int
	W          float64
}

// Kernel is an odd-sized cube of unnormalized Gaussian weights.
// Only relative energies matter, so the weights do not sum to one.
type Kernel struct {
	size   int
	sigma  float64
	center int
	grid   *lattice.Grid
	taps   []Tap
}

// NewGaussian precomputes a size³ Gaussian with spread sigma.
func NewGaussian(size int, sigma float64) (*Kernel, error) {
	if size <= 0 || size%2 == 0 {
		return nil, errs.Config("kernel.size", size, "must be a positive odd number")
	}
	if !(sigma > 0) {
		return nil, errs.Config("kernel.sigma", sigma, "must be positive")
	}

	grid, err := lattice.New(size, size, size)
	if err != nil {
		return nil, err
	}

	k := &Kernel{
		size:   size,
		sigma:  sigma,
		center: size / 2,
		grid:   grid,
		taps:   make([]Tap, 0, size*size*size),
	}

	inv2s2 := 1 / (2 * sigma * sigma)
	for i2 := 0; i2 < size; i2++ {
		for i1 := 0; i1 < size; i1++ {
			for i0 := 0; i0 < size; i0++ {
				d0, d1, d2 := i0-k.center, i1-k.center, i2-k.center
				w := math.Exp(-float64(d0*d0+d1*d1+d2*d2) * inv2s2)
				grid.Set(lattice.Coord{X: i0, Y: i1, Z: i2}, w)
				k.taps = append(k.taps, Tap{DX: d0, DY: d1, DZ: d2, W: w})
			}
		}
	}
	return k, nil
}

// Size returns the edge length.
func (k *Kernel) Size() int { return k.size }

// Sigma returns the Gaussian spread.
func (k *Kernel) Sigma() float64 { return k.sigma }

// Center returns the center index along each axis.
func (k *Kernel) Center() int { return k.center }

// At returns the weight at kernel index (i, j, k) in [0, Size()).
func (k *Kernel) At(i, j, l int) float64 {
	return k.grid.At(lattice.Coord{X: i, Y: j, Z: l})
}

// Sum returns the total weight.
func (k *Kernel) Sum() float64 {
	var s float64
	for _, t := range k.taps {
		s += t.W
	}
	return s
}

// Taps returns the weights with center-relative offsets, X fastest.
// The slice is shared and must not be modified.
func (k *Kernel) Taps() []Tap { return k.taps }
