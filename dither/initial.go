package dither

import "math"

// referenceInitialCount seeds a 32³ lattice: halfway between 6³ and 7³,
// and itself not a cubic, bcc or fcc count.
const (
	referenceInitialCount = (6*6*6 + 7*7*7) / 2
	referenceSize         = 32 * 32 * 32
)

// DefaultInitialCount scales the reference seed density to size and nudges
// the result upward until it cannot form a regular sub-lattice.
func DefaultInitialCount(size int) int {
	if size < 2 {
		return 0
	}
	k := int(math.Round(float64(size) * referenceInitialCount / referenceSize))
	k = max(k, 1)
	k = min(k, size-1)
	for IsRegularCount(k) && k < size-1 {
		k++
	}
	return k
}

// IsRegularCount reports whether k equals n³, 2n³ or 4n³ for some n ≥ 1, the
// point counts of simple cubic, body-centred and face-centred cubic lattices.
func IsRegularCount(k int) bool {
	for n := 1; n*n*n <= k; n++ {
		c := n * n * n
		if k == c || k == 2*c || k == 4*c {
			return true
		}
	}
	return false
}
