package resolver

import (
	"math"

	"github.com/xrash/smetrics"
)

// Ratio returns the similarity of two strings in [0, 1], rounded to two decimals.
// It is the insertion/deletion ratio (len(a)+len(b)-distance)/(len(a)+len(b)) where a
// substitution costs as much as one insertion plus one deletion.
// Two empty strings are dissimilar.
func Ratio(a, b string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	total := len(a) + len(b)

	distance := smetrics.WagnerFischer(a, b, 1, 1, 2)
	ratio := float64(total-distance) / float64(total)

	// Rounded as a whole percentage, half to even
	return math.RoundToEven(ratio*100) / 100
}
