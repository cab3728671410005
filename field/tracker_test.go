package field

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/pthm-cable/voidcluster/errs"
	"github.com/pthm-cable/voidcluster/kernel"
	"github.com/pthm-cable/voidcluster/lattice"
)

const tol = 1e-9

func newTestTracker(t *testing.T, d, ksize int, sigma float64) *Tracker {
	t.Helper()
	k, err := kernel.NewGaussian(ksize, sigma)
	if err != nil {
		t.Fatal(err)
	}
	tr, err := New(d, d, d, k, rand.New(rand.NewPCG(0, 0)))
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

func TestNewTrackerStartsAllVoid(t *testing.T) {
	tr := newTestTracker(t, 4, 3, 1.0)

	if tr.VoidCount() != 64 {
		t.Errorf("expected 64 tracked voids, got %d", tr.VoidCount())
	}
	if tr.ClusterCount() != 0 {
		t.Errorf("expected empty cluster set, got %d", tr.ClusterCount())
	}
	for idx := 0; idx < tr.Size(); idx++ {
		c := tr.Coord(idx)
		if e := tr.Energy(c); e < 0 || e >= JitterScale {
			t.Fatalf("initial energy at %v = %g, want jitter in [0,%g)", c, e, JitterScale)
		}
	}
	if err := tr.Verify(tol); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.TightestCluster(); !errors.Is(err, errs.ErrInvalidState) {
		t.Errorf("expected invalid state on empty cluster set, got %v", err)
	}
}

func TestSetSpreadsKernelToroidally(t *testing.T) {
	tr := newTestTracker(t, 4, 3, 1.0)
	origin := lattice.Coord{}

	if err := tr.Set(origin, 1); err != nil {
		t.Fatal(err)
	}
	if !tr.IsSet(origin) || !tr.InClusterSet(origin) || tr.InVoidSet(origin) {
		t.Fatal("set cell should move from the void set to the cluster set")
	}

	// A neighbour across the wrap boundary must feel the kernel.
	wrapped := lattice.Coord{X: -1, Y: 0, Z: 0}
	far := lattice.Coord{X: 2, Y: 2, Z: 2}
	if tr.Energy(wrapped) < 0.5 {
		t.Errorf("expected wrapped neighbour energy ~exp(-0.5), got %g", tr.Energy(wrapped))
	}
	if tr.Energy(far) > JitterScale {
		t.Errorf("cell outside a 3³ kernel should keep only its jitter, got %g", tr.Energy(far))
	}
	if err := tr.Verify(tol); err != nil {
		t.Fatal(err)
	}
}

func TestSetAlreadySetFails(t *testing.T) {
	tr := newTestTracker(t, 4, 3, 1.0)
	c := lattice.Coord{X: 1, Y: 2, Z: 3}
	if err := tr.Set(c, 1); err != nil {
		t.Fatal(err)
	}
	err := tr.Set(lattice.Coord{X: 5, Y: -2, Z: 3}, 1) // same cell, wrapped
	if !errors.Is(err, errs.ErrInvalidState) {
		t.Fatalf("expected invalid state for double set, got %v", err)
	}
}

func TestResetRestoresEnergy(t *testing.T) {
	tr := newTestTracker(t, 5, 5, 1.2)
	c := lattice.Coord{X: 2, Y: 1, Z: 4}
	before := tr.Energy(lattice.Coord{X: 3, Y: 1, Z: 4})

	if err := tr.Set(c, 1); err != nil {
		t.Fatal(err)
	}
	if err := tr.Reset(c); err != nil {
		t.Fatal(err)
	}
	after := tr.Energy(lattice.Coord{X: 3, Y: 1, Z: 4})
	if diff := after - before; diff > tol || diff < -tol {
		t.Errorf("energy not restored after set+reset: before %g after %g", before, after)
	}
	if !tr.InVoidSet(c) || tr.IsSet(c) {
		t.Error("reset cell should be void and tracked")
	}
	if err := tr.Reset(c); !errors.Is(err, errs.ErrInvalidState) {
		t.Errorf("expected invalid state resetting a void cell, got %v", err)
	}
	if err := tr.Verify(tol); err != nil {
		t.Fatal(err)
	}
}

func TestKernelLargerThanLattice(t *testing.T) {
	// A 7³ kernel on a 4³ lattice wraps onto the same cells several times.
	tr := newTestTracker(t, 4, 7, 1.4)
	for _, c := range []lattice.Coord{{0, 0, 0}, {1, 3, 2}, {3, 3, 3}} {
		if err := tr.Set(c, 1); err != nil {
			t.Fatal(err)
		}
	}
	if err := tr.Reset(lattice.Coord{X: 1, Y: 3, Z: 2}); err != nil {
		t.Fatal(err)
	}
	if err := tr.Verify(tol); err != nil {
		t.Fatal(err)
	}
}

func TestTightestVoidAndCluster(t *testing.T) {
	tr := newTestTracker(t, 6, 5, 1.0)
	a := lattice.Coord{X: 0, Y: 0, Z: 0}
	b := lattice.Coord{X: 1, Y: 0, Z: 0}
	lone := lattice.Coord{X: 3, Y: 3, Z: 3}
	for _, c := range []lattice.Coord{a, b, lone} {
		if err := tr.Set(c, 1); err != nil {
			t.Fatal(err)
		}
	}

	cmax, err := tr.TightestCluster()
	if err != nil {
		t.Fatal(err)
	}
	if cmax != a && cmax != b {
		t.Errorf("tightest cluster should be one of the adjacent pair, got %v", cmax)
	}

	cmin, err := tr.TightestVoid()
	if err != nil {
		t.Fatal(err)
	}
	if tr.IsSet(cmin) {
		t.Fatalf("tightest void %v is set", cmin)
	}
	for idx := 0; idx < tr.Size(); idx++ {
		c := tr.Coord(idx)
		if !tr.IsSet(c) && tr.Energy(c) < tr.Energy(cmin) {
			t.Fatalf("void %v has lower energy than reported tightest void %v", c, cmin)
		}
	}
}

func TestRemoveFromTrackingAndDisable(t *testing.T) {
	tr := newTestTracker(t, 4, 3, 1.0)
	c := lattice.Coord{X: 1, Y: 1, Z: 1}
	v := lattice.Coord{X: 2, Y: 2, Z: 2}

	if err := tr.Set(c, 0.5); err != nil {
		t.Fatal(err)
	}
	tr.RemoveFromTracking(c)
	tr.RemoveFromTracking(v)
	if tr.InClusterSet(c) || tr.InVoidSet(v) {
		t.Fatal("removed cells should not be tracked")
	}
	if tr.Value(c) != 0.5 || !tr.IsSet(c) {
		t.Error("removal must not touch ink state")
	}
	if tr.VoidCount() != 62 || tr.ClusterCount() != 0 {
		t.Errorf("unexpected index sizes %d/%d", tr.VoidCount(), tr.ClusterCount())
	}

	// Untracked voids stay untracked after being set.
	if err := tr.Set(v, 1); err != nil {
		t.Fatal(err)
	}
	if tr.InClusterSet(v) {
		t.Error("untracked void should not enter the cluster set on Set")
	}

	other := lattice.Coord{X: 0, Y: 3, Z: 0}
	if err := tr.Set(other, 1); err != nil {
		t.Fatal(err)
	}
	tr.DisableClusterTracking()
	if tr.ClusterTracking() || tr.ClusterCount() != 0 || tr.InClusterSet(other) {
		t.Fatal("disabling should clear the cluster set")
	}
	if _, err := tr.TightestCluster(); !errors.Is(err, errs.ErrInvalidState) {
		t.Errorf("expected invalid state after disable, got %v", err)
	}

	next, err := tr.TightestVoid()
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.Set(next, 1); err != nil {
		t.Fatal(err)
	}
	if tr.InClusterSet(next) || tr.ClusterCount() != 0 {
		t.Error("Set after disable must not populate the cluster set")
	}
	if err := tr.Verify(tol); err != nil {
		t.Fatal(err)
	}
}

func TestTightestVoidEmpty(t *testing.T) {
	tr := newTestTracker(t, 2, 1, 1.0)
	for idx := 0; idx < tr.Size(); idx++ {
		if err := tr.Set(tr.Coord(idx), 1); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := tr.TightestVoid(); !errors.Is(err, errs.ErrInvalidState) {
		t.Errorf("expected invalid state on empty void set, got %v", err)
	}
}

func TestRandomToggleSequenceKeepsInvariants(t *testing.T) {
	tr := newTestTracker(t, 5, 5, 1.4)
	rng := rand.New(rand.NewPCG(7, 7))

	for step := 0; step < 200; step++ {
		c := tr.Coord(rng.IntN(tr.Size()))
		var err error
		if tr.IsSet(c) {
			err = tr.Reset(c)
		} else {
			err = tr.Set(c, 1)
		}
		if err != nil {
			t.Fatal(err)
		}
		if step%25 == 0 {
			if err := tr.Verify(1e-4); err != nil {
				t.Fatalf("step %d: %v", step, err)
			}
		}
	}
	if err := tr.Verify(1e-4); err != nil {
		t.Fatal(err)
	}
}
