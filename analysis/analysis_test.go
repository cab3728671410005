package analysis

import (
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/pthm-cable/voidcluster/dither"
	"github.com/pthm-cable/voidcluster/telemetry"
	"github.com/pthm-cable/voidcluster/volume"
)

func blueVolume(t *testing.T, dim int) *volume.Volume {
	t.Helper()
	g, err := dither.New(dither.Options{
		D0: dim, D1: dim, D2: dim,
		KernelSize: 7,
		Sigma:      1.4,
		Seed:       dither.FixedSeed(0),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatal(err)
	}
	res, err := g.Generate(dither.DefaultInitialCount(g.Size()))
	if err != nil {
		t.Fatal(err)
	}
	return res.Volume()
}

func whiteVolume(dim int, seed uint64) *volume.Volume {
	v, _ := volume.New(dim, dim, dim)
	rng := rand.New(rand.NewPCG(seed, 0))
	for i, r := range rng.Perm(v.Size()) {
		v.Ranks[i] = uint32(r)
	}
	return v
}

func TestSingleFrequency(t *testing.T) {
	const d = 4
	mask := make([]bool, d*d*d)
	for i := range mask {
		mask[i] = (i%d)%2 == 0
	}
	power := PowerSpectrum(mask, d, d, d)
	for i, p := range power {
		want := 0.0
		if i == 2 {
			want = 16
		}
		if math.Abs(p-want) > 1e-9 {
			t.Errorf("power[%d] = %v, want %v", i, p, want)
		}
	}
}

func TestParseval(t *testing.T) {
	v := whiteVolume(6, 3)
	for _, level := range []float64{0.1, 0.5, 0.9} {
		mask := Mask(v, level)
		var ones int
		for _, b := range mask {
			if b {
				ones++
			}
		}
		p := float64(ones) / float64(len(mask))
		want := float64(ones) * (1 - p)

		power := PowerSpectrum(mask, 6, 6, 6)
		var sum float64
		for _, x := range power {
			sum += x
		}
		if math.Abs(sum-want) > 1e-6 {
			t.Errorf("level %v: total power %v, want %v", level, sum, want)
		}
		if power[0] > 1e-9 {
			t.Errorf("level %v: DC power %v should vanish", level, power[0])
		}
	}
}

func TestMaskCounts(t *testing.T) {
	v := whiteVolume(4, 1)
	for _, k := range []int{0, 1, 16, 63, 64} {
		var n int
		for _, b := range Mask(v, float64(k)/64) {
			if b {
				n++
			}
		}
		if n != k {
			t.Errorf("mask at %d/64 has %d cells", k, n)
		}
	}
}

func TestRadialProfileCoversEveryFrequency(t *testing.T) {
	dims := [][3]int{{8, 8, 8}, {8, 4, 2}, {5, 7, 3}}
	for _, d := range dims {
		n := d[0] * d[1] * d[2]
		power := make([]float64, n)
		for i := range power {
			power[i] = 1
		}
		bins := RadialProfile(power, d[0], d[1], d[2])
		var total int
		for i, b := range bins {
			if b.Radius != i {
				t.Errorf("%v: bin %d has radius %d", d, i, b.Radius)
			}
			if b.Count > 0 && b.Power != 1 {
				t.Errorf("%v: bin %d mean power %v, want 1", d, i, b.Power)
			}
			total += b.Count
		}
		if total != n {
			t.Errorf("%v: bins cover %d of %d frequencies", d, total, n)
		}
		if bins[0].Count != 1 {
			t.Errorf("%v: DC bin count %d", d, bins[0].Count)
		}
	}
}

func TestLowFrequencyRatioFlatSpectrum(t *testing.T) {
	profile := []telemetry.SpectrumBin{
		{Radius: 0, Count: 1, Power: 100},
		{Radius: 1, Count: 6, Power: 2},
		{Radius: 2, Count: 20, Power: 2},
		{Radius: 3, Count: 30, Power: 2},
	}
	if got := LowFrequencyRatio(profile, 2); math.Abs(got-1) > 1e-12 {
		t.Errorf("flat spectrum ratio = %v, want 1", got)
	}
	if got := LowFrequencyRatio(profile, 0); got != 0 {
		t.Errorf("empty low band ratio = %v, want 0", got)
	}
}

func TestBlueNoiseBeatsWhiteNoise(t *testing.T) {
	const dim = 8
	blue := blueVolume(t, dim)
	if !blue.IsPermutation() {
		t.Fatal("generated volume is not a permutation")
	}
	thresholds := []float64{0.25, 0.5}

	blueScore := Score(blue, thresholds, 2)
	var whiteScore float64
	for seed := uint64(1); seed <= 4; seed++ {
		whiteScore += Score(whiteVolume(dim, seed), thresholds, 2)
	}
	whiteScore /= 4

	if !(blueScore < 0.5*whiteScore) {
		t.Errorf("blue score %v not well below white score %v", blueScore, whiteScore)
	}
}

func TestSpectrumTagsThreshold(t *testing.T) {
	bins := Spectrum(whiteVolume(4, 2), 0.3)
	for _, b := range bins {
		if b.Threshold != 0.3 {
			t.Fatalf("bin %d threshold %v", b.Radius, b.Threshold)
		}
	}
}

func TestLayerStats(t *testing.T) {
	v, _ := volume.New(2, 2, 2)
	for i := range v.Ranks {
		v.Ranks[i] = uint32(i)
	}
	stats := LayerStats(v)
	if len(stats) != 2 {
		t.Fatalf("expected 2 layers, got %d", len(stats))
	}

	// Layer 0 holds ranks 0..3, layer 1 holds 4..7.
	if stats[0].Min != 0 || stats[0].Max != 3.0/8 {
		t.Errorf("layer 0 range = [%v, %v]", stats[0].Min, stats[0].Max)
	}
	if math.Abs(stats[0].Mean-1.5/8) > 1e-12 {
		t.Errorf("layer 0 mean = %v", stats[0].Mean)
	}
	if stats[0].HalfDensity != 1 || stats[1].HalfDensity != 0 {
		t.Errorf("half density = %v, %v", stats[0].HalfDensity, stats[1].HalfDensity)
	}
	if stats[1].Z != 1 || stats[1].StdDev <= 0 {
		t.Errorf("layer 1 = %+v", stats[1])
	}
}
