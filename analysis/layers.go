package analysis

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/voidcluster/telemetry"
	"github.com/pthm-cable/voidcluster/volume"
)

// LayerStats summarises the normalised ranks of every Z layer. A well mixed
// array has every layer close to the global mean of (size-1)/(2·size).
func LayerStats(v *volume.Volume) []telemetry.LayerStats {
	size := float64(v.Size())
	out := make([]telemetry.LayerStats, v.D2)
	vals := make([]float64, v.D0*v.D1)
	for z := range out {
		var below int
		for i, r := range v.Layer(z) {
			vals[i] = float64(r) / size
			if vals[i] < 0.5 {
				below++
			}
		}
		mean, std := stat.MeanStdDev(vals, nil)
		out[z] = telemetry.LayerStats{
			Z:           z,
			Mean:        mean,
			StdDev:      std,
			Min:         floats.Min(vals),
			Max:         floats.Max(vals),
			HalfDensity: float64(below) / float64(len(vals)),
		}
	}
	return out
}
