// Package field maintains the energy field of a toroidal ink pattern together
// with the ordered void and cluster indices used to find the tightest void and
// the tightest cluster.
//
// The energy of every cell equals the toroidal convolution of the binary ink
// pattern with the kernel, plus a tiny per-cell jitter added once at
// construction to break ties. Ink state and energies can only change through
// Set and Reset, which keep both indices re-keyed as energies move.
package field

import (
	"math"
	"math/rand/v2"

	"github.com/google/btree"

	"github.com/pthm-cable/voidcluster/errs"
	"github.com/pthm-cable/voidcluster/kernel"
	"github.com/pthm-cable/voidcluster/lattice"
)

// JitterScale bounds the tie-breaking noise added to each cell's energy.
const JitterScale = 1e-7

const btreeDegree = 32

// membership records which index currently holds a cell.
type membership uint8

const (
	untracked membership = iota
	inVoids
	inClusters
)

// entry is the ordering key of both indices.
type entry struct {
	energy float64
	id     int
}

func lessEntry(a, b entry) bool {
	if a.energy != b.energy {
		return a.energy < b.energy
	}
	return a.id < b.id
}

// Tracker owns the ink values, energy field and both order-statistics indices.
type Tracker struct {
	values *lattice.Grid // ink value of set cells (sentinel or final rank)
	energy *lattice.Grid
	jitter []float64
	set    []bool
	member []membership

	k *kernel.Kernel

	voids    *btree.BTreeG[entry]
	clusters *btree.BTreeG[entry]

	clusterTracking bool
}

// New creates a tracker with every cell void and present in the void index.
// rng supplies the one-off energy jitter.
func New(d0, d1, d2 int, k *kernel.Kernel, rng *rand.Rand) (*Tracker, error) {
	values, err := lattice.New(d0, d1, d2)
	if err != nil {
		return nil, err
	}
	energy, _ := lattice.New(d0, d1, d2)

	n := values.Size()
	t := &Tracker{
		values:          values,
		energy:          energy,
		jitter:          make([]float64, n),
		set:             make([]bool, n),
		member:          make([]membership, n),
		k:               k,
		voids:           btree.NewG(btreeDegree, lessEntry),
		clusters:        btree.NewG(btreeDegree, lessEntry),
		clusterTracking: true,
	}

	for i := 0; i < n; i++ {
		j := rng.Float64() * JitterScale
		t.jitter[i] = j
		energy.SetIndex(i, j)
	}
	for i := 0; i < n; i++ {
		t.voids.ReplaceOrInsert(entry{energy.AtIndex(i), i})
		t.member[i] = inVoids
	}
	return t, nil
}

// Dims returns the lattice dimensions.
func (t *Tracker) Dims() (d0, d1, d2 int) { return t.values.Dims() }

// Size returns the number of cells.
func (t *Tracker) Size() int { return t.values.Size() }

// Coord converts a linear index to a wrapped coordinate.
func (t *Tracker) Coord(idx int) lattice.Coord { return t.values.Coord(idx) }

// Set marks a void cell as set with the given value and spreads the kernel
// around it.
func (t *Tracker) Set(c lattice.Coord, value float64) error {
	idx := t.values.Index(c)
	if t.set[idx] {
		return errs.InvalidState("set %v: already set", t.values.Coord(idx))
	}

	t.set[idx] = true
	t.values.SetIndex(idx, value)
	if t.member[idx] == inVoids {
		t.voids.Delete(t.key(idx))
		t.member[idx] = untracked
		if t.clusterTracking {
			t.clusters.ReplaceOrInsert(t.key(idx))
			t.member[idx] = inClusters
		}
	}

	t.spread(idx, 1)
	return nil
}

// Reset returns a set cell to void, adds it to the void index and retracts
// the kernel around it.
func (t *Tracker) Reset(c lattice.Coord) error {
	idx := t.values.Index(c)
	if !t.set[idx] {
		return errs.InvalidState("reset %v: not set", t.values.Coord(idx))
	}

	t.set[idx] = false
	t.values.SetIndex(idx, 0)
	t.untrack(idx)
	t.voids.ReplaceOrInsert(t.key(idx))
	t.member[idx] = inVoids

	t.spread(idx, -1)
	return nil
}

// RemoveFromTracking drops c from whichever index holds it. Its ink and
// energy are left untouched.
func (t *Tracker) RemoveFromTracking(c lattice.Coord) {
	t.untrack(t.values.Index(c))
}

// DisableClusterTracking empties the cluster index for good. Later Set calls
// no longer insert into it.
func (t *Tracker) DisableClusterTracking() {
	t.clusterTracking = false
	t.clusters.Ascend(func(e entry) bool {
		t.member[e.id] = untracked
		return true
	})
	t.clusters.Clear(false)
}

// ClusterTracking reports whether the cluster index is still maintained.
func (t *Tracker) ClusterTracking() bool { return t.clusterTracking }

// TightestVoid returns the tracked void cell with the lowest energy.
func (t *Tracker) TightestVoid() (lattice.Coord, error) {
	e, ok := t.voids.Min()
	if !ok {
		return lattice.Coord{}, errs.InvalidState("tightest void: void set is empty")
	}
	return t.values.Coord(e.id), nil
}

// TightestCluster returns the tracked set cell with the highest energy.
func (t *Tracker) TightestCluster() (lattice.Coord, error) {
	if !t.clusterTracking {
		return lattice.Coord{}, errs.InvalidState("tightest cluster: cluster tracking disabled")
	}
	e, ok := t.clusters.Max()
	if !ok {
		return lattice.Coord{}, errs.InvalidState("tightest cluster: cluster set is empty")
	}
	return t.values.Coord(e.id), nil
}

// IsSet reports whether c is in the set state.
func (t *Tracker) IsSet(c lattice.Coord) bool { return t.set[t.values.Index(c)] }

// Value returns the ink value stored at c (0 for void cells).
func (t *Tracker) Value(c lattice.Coord) float64 { return t.values.At(c) }

// Energy returns the energy at c.
func (t *Tracker) Energy(c lattice.Coord) float64 { return t.energy.At(c) }

// InVoidSet reports whether c is in the void index.
func (t *Tracker) InVoidSet(c lattice.Coord) bool { return t.member[t.values.Index(c)] == inVoids }

// InClusterSet reports whether c is in the cluster index.
func (t *Tracker) InClusterSet(c lattice.Coord) bool {
	return t.member[t.values.Index(c)] == inClusters
}

// VoidCount returns the void index size.
func (t *Tracker) VoidCount() int { return t.voids.Len() }

// ClusterCount returns the cluster index size.
func (t *Tracker) ClusterCount() int { return t.clusters.Len() }

// Values returns a copy of the ink values in linear index order.
func (t *Tracker) Values() []float64 { return t.values.Values() }

func (t *Tracker) key(idx int) entry {
	return entry{t.energy.AtIndex(idx), idx}
}

func (t *Tracker) untrack(idx int) {
	switch t.member[idx] {
	case inVoids:
		t.voids.Delete(t.key(idx))
	case inClusters:
		t.clusters.Delete(t.key(idx))
	}
	t.member[idx] = untracked
}

// spread adds sign×kernel centred at idx, re-keying every touched cell in the
// index that currently holds it. Ink state must already be updated, so the
// centre cell is re-keyed under its new state.
func (t *Tracker) spread(idx int, sign float64) {
	center := t.values.Coord(idx)
	for _, tap := range t.k.Taps() {
		n := t.energy.Index(lattice.Coord{X: center.X + tap.DX, Y: center.Y + tap.DY, Z: center.Z + tap.DZ})
		t.update(n, sign*tap.W)
	}
}

func (t *Tracker) update(idx int, delta float64) {
	var tree *btree.BTreeG[entry]
	switch t.member[idx] {
	case inVoids:
		tree = t.voids
	case inClusters:
		tree = t.clusters
	}
	if tree == nil {
		t.energy.AddIndex(idx, delta)
		return
	}
	tree.Delete(t.key(idx))
	t.energy.AddIndex(idx, delta)
	tree.ReplaceOrInsert(t.key(idx))
}

// Verify recomputes the convolution by brute force and checks every cell's
// energy against it within tol, then checks index membership against ink
// state. It is O(size × kernel volume) and meant for tests and diagnostics.
func (t *Tracker) Verify(tol float64) error {
	n := t.Size()
	want := make([]float64, n)
	copy(want, t.jitter)
	for idx := 0; idx < n; idx++ {
		if !t.set[idx] {
			continue
		}
		c := t.values.Coord(idx)
		for _, tap := range t.k.Taps() {
			want[t.energy.Index(lattice.Coord{X: c.X + tap.DX, Y: c.Y + tap.DY, Z: c.Z + tap.DZ})] += tap.W
		}
	}
	for idx := 0; idx < n; idx++ {
		if got := t.energy.AtIndex(idx); math.Abs(got-want[idx]) > tol {
			return errs.InvalidState("energy at %v is %g, convolution gives %g", t.values.Coord(idx), got, want[idx])
		}
	}

	voids, clusters := 0, 0
	for idx := 0; idx < n; idx++ {
		switch t.member[idx] {
		case inVoids:
			voids++
			if t.set[idx] {
				return errs.InvalidState("set cell %v is in the void set", t.values.Coord(idx))
			}
			if !t.voids.Has(t.key(idx)) {
				return errs.InvalidState("void cell %v missing from void index under its current energy", t.values.Coord(idx))
			}
		case inClusters:
			clusters++
			if !t.set[idx] {
				return errs.InvalidState("void cell %v is in the cluster set", t.values.Coord(idx))
			}
			if !t.clusterTracking {
				return errs.InvalidState("cell %v tracked as cluster while tracking is disabled", t.values.Coord(idx))
			}
			if !t.clusters.Has(t.key(idx)) {
				return errs.InvalidState("cluster cell %v missing from cluster index under its current energy", t.values.Coord(idx))
			}
		}
	}
	if voids != t.voids.Len() || clusters != t.clusters.Len() {
		return errs.InvalidState("index sizes %d/%d disagree with membership %d/%d",
			t.voids.Len(), t.clusters.Len(), voids, clusters)
	}
	return nil
}
