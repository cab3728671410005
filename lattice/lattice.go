// Package lattice provides a fixed-size 3D grid of float64 cells with
// toroidal (wraparound) addressing on every axis.
package lattice

import (
	"fmt"
	"math"

	"github.com/pthm-cable/voidcluster/errs"
)

// Coord addresses a cell. X runs along d0, Y along d1 and Z along d2;
// a fixed Z selects one d0×d1 layer.
type Coord struct {
	X, Y, Z int
}

// Add returns the component-wise sum.
func (c Coord) Add(o Coord) Coord {
	return Coord{c.X + o.X, c.Y + o.Y, c.Z + o.Z}
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

// Grid is a dense toroidal 3D array stored with X fastest, then Y, then Z.
type Grid struct {
	d0, d1, d2 int
	d01        int
	cells      []float64
}

// MaxCells bounds d0·d1·d2 so that ranks fit in uint32 and linear
// indices fit in int on every platform.
const MaxCells = math.MaxInt32

// CellCount returns d0·d1·d2. Every dimension must be positive and the
// product must not exceed MaxCells.
func CellCount(d0, d1, d2 int) (int, error) {
	n := 1
	for i, d := range [3]int{d0, d1, d2} {
		if d <= 0 {
			return 0, errs.Config(fmt.Sprintf("lattice.d%d", i), d, "dimension must be positive")
		}
		if n > MaxCells/d {
			return 0, errs.Config("lattice.size", [3]int{d0, d1, d2},
				fmt.Sprintf("more than %d cells", MaxCells))
		}
		n *= d
	}
	return n, nil
}

// New allocates a zeroed grid.
func New(d0, d1, d2 int) (*Grid, error) {
	n, err := CellCount(d0, d1, d2)
	if err != nil {
		return nil, err
	}
	return &Grid{
		d0: d0, d1: d1, d2: d2,
		d01:   d0 * d1,
		cells: make([]float64, n),
	}, nil
}

// Mod returns a mod d in [0, d) for any sign of a.
func Mod(a, d int) int {
	r := a % d
	if r < 0 {
		r += d
	}
	return r
}

// Dims returns the three dimensions.
func (g *Grid) Dims() (d0, d1, d2 int) { return g.d0, g.d1, g.d2 }

// Size returns the total cell count.
func (g *Grid) Size() int { return len(g.cells) }

// Wrap reduces c into the grid's fundamental domain.
func (g *Grid) Wrap(c Coord) Coord {
	return Coord{Mod(c.X, g.d0), Mod(c.Y, g.d1), Mod(c.Z, g.d2)}
}

// Index returns the linear index of c after wrapping.
func (g *Grid) Index(c Coord) int {
	return Mod(c.X, g.d0) + Mod(c.Y, g.d1)*g.d0 + Mod(c.Z, g.d2)*g.d01
}

// Coord is the inverse of Index for idx in [0, Size()).
func (g *Grid) Coord(idx int) Coord {
	return Coord{idx % g.d0, (idx % g.d01) / g.d0, idx / g.d01}
}

// At reads the cell at c (wrapped).
func (g *Grid) At(c Coord) float64 { return g.cells[g.Index(c)] }

// Set writes the cell at c (wrapped).
func (g *Grid) Set(c Coord, v float64) { g.cells[g.Index(c)] = v }

// AtIndex reads a cell by linear index.
func (g *Grid) AtIndex(idx int) float64 { return g.cells[idx] }

// SetIndex writes a cell by linear index.
func (g *Grid) SetIndex(idx int, v float64) { g.cells[idx] = v }

// AddIndex adds delta to a cell and returns the new value.
func (g *Grid) AddIndex(idx int, delta float64) float64 {
	g.cells[idx] += delta
	return g.cells[idx]
}

// Layer returns a copy of the d0×d1 slab at layer z (wrapped), row-major in Y.
func (g *Grid) Layer(z int) []float64 {
	start := Mod(z, g.d2) * g.d01
	out := make([]float64, g.d01)
	copy(out, g.cells[start:start+g.d01])
	return out
}

// Values returns a copy of all cells in linear index order.
func (g *Grid) Values() []float64 {
	out := make([]float64, len(g.cells))
	copy(out, g.cells)
	return out
}

// Fill sets every cell to v.
func (g *Grid) Fill(v float64) {
	for i := range g.cells {
		g.cells[i] = v
	}
}
