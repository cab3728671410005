// Package analysis measures how blue a rank volume is.
//
// Thresholding a good dither array at any level gives a point pattern whose
// power spectrum is nearly empty at low frequencies. LowFrequencyRatio turns
// that into a single number: about 1 for white noise, well below 1 for blue.
package analysis

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/pthm-cable/voidcluster/telemetry"
	"github.com/pthm-cable/voidcluster/volume"
)

// Mask returns the cells whose normalised rank is below level.
func Mask(v *volume.Volume, level float64) []bool {
	cut := level * float64(v.Size())
	out := make([]bool, len(v.Ranks))
	for i, r := range v.Ranks {
		out[i] = float64(r) < cut
	}
	return out
}

// PowerSpectrum returns |F|²/size of the mean-removed mask, in the same
// linear layout as the mask. The 3D transform is three passes of 1D
// complex FFTs, one per axis.
func PowerSpectrum(mask []bool, d0, d1, d2 int) []float64 {
	n := d0 * d1 * d2
	var ones int
	for _, b := range mask {
		if b {
			ones++
		}
	}
	mean := float64(ones) / float64(n)

	data := make([]complex128, n)
	for i, b := range mask {
		x := -mean
		if b {
			x += 1
		}
		data[i] = complex(x, 0)
	}

	d01 := d0 * d1
	transformAxis(data, d0, 1, d1*d2, func(line int) int { return line * d0 })
	transformAxis(data, d1, d0, d0*d2, func(line int) int { return (line/d0)*d01 + line%d0 })
	transformAxis(data, d2, d01, d01, func(line int) int { return line })

	power := make([]float64, n)
	for i, c := range data {
		a := cmplx.Abs(c)
		power[i] = a * a / float64(n)
	}
	return power
}

// transformAxis runs an in-place FFT over every line of length along one
// axis. start maps a line number to its first element; stride steps along it.
func transformAxis(data []complex128, length, stride, lines int, start func(int) int) {
	if length == 1 {
		return
	}
	fft := fourier.NewCmplxFFT(length)
	buf := make([]complex128, length)
	out := make([]complex128, length)
	for line := 0; line < lines; line++ {
		s := start(line)
		for i := range buf {
			buf[i] = data[s+i*stride]
		}
		out = fft.Coefficients(out, buf)
		for i := range out {
			data[s+i*stride] = out[i]
		}
	}
}

// signedFreq maps an FFT bin to its signed frequency.
func signedFreq(f, d int) int {
	if f > d/2 {
		return f - d
	}
	return f
}

// RadialProfile averages power over spherical shells. Radii are measured in
// bins of the smallest dimension, so shells stay round on non-cubic lattices.
// Bin i holds the shell with rounded radius i; bin 0 is the DC term.
func RadialProfile(power []float64, d0, d1, d2 int) []telemetry.SpectrumBin {
	m := float64(min(d0, d1, d2))
	s0, s1, s2 := m/float64(d0), m/float64(d1), m/float64(d2)

	var bins []telemetry.SpectrumBin
	for z := 0; z < d2; z++ {
		fz := float64(signedFreq(z, d2)) * s2
		for y := 0; y < d1; y++ {
			fy := float64(signedFreq(y, d1)) * s1
			for x := 0; x < d0; x++ {
				fx := float64(signedFreq(x, d0)) * s0
				r := int(math.Round(math.Sqrt(fx*fx + fy*fy + fz*fz)))
				for len(bins) <= r {
					bins = append(bins, telemetry.SpectrumBin{Radius: len(bins)})
				}
				bins[r].Count++
				bins[r].Power += power[x+y*d0+z*d0*d1]
			}
		}
	}
	for i := range bins {
		if bins[i].Count > 0 {
			bins[i].Power /= float64(bins[i].Count)
		}
	}
	return bins
}

// LowFrequencyRatio is the mean power of shells with radius in [1, cutoff]
// over the mean power of every shell except DC. Returns 0 when either side
// is empty.
func LowFrequencyRatio(profile []telemetry.SpectrumBin, cutoff float64) float64 {
	var lowSum, allSum float64
	var lowN, allN int
	for _, b := range profile {
		if b.Radius == 0 || b.Count == 0 {
			continue
		}
		total := b.Power * float64(b.Count)
		allSum += total
		allN += b.Count
		if float64(b.Radius) <= cutoff {
			lowSum += total
			lowN += b.Count
		}
	}
	if lowN == 0 || allN == 0 || allSum == 0 {
		return 0
	}
	return (lowSum / float64(lowN)) / (allSum / float64(allN))
}

// Spectrum computes the radial profile of v thresholded at level. Every bin
// carries the threshold.
func Spectrum(v *volume.Volume, level float64) []telemetry.SpectrumBin {
	power := PowerSpectrum(Mask(v, level), v.D0, v.D1, v.D2)
	bins := RadialProfile(power, v.D0, v.D1, v.D2)
	for i := range bins {
		bins[i].Threshold = level
	}
	return bins
}

// Score is the mean LowFrequencyRatio over the given threshold levels.
// Lower is bluer.
func Score(v *volume.Volume, thresholds []float64, cutoff float64) float64 {
	if len(thresholds) == 0 {
		return 0
	}
	var sum float64
	for _, th := range thresholds {
		sum += LowFrequencyRatio(Spectrum(v, th), cutoff)
	}
	return sum / float64(len(thresholds))
}
