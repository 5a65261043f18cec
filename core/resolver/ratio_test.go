package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRatio(t *testing.T) {
	tests := []struct {
		name     string
		a        string
		b        string
		expected float64
	}{
		{"identical", "rtuf04", "rtuf04", 1.0},
		{"both empty", "", "", 0},
		{"one empty", "", "rtuf04", 0},
		{"spelled out name", "rooftopunit4", "rtuf04", 0.44},
		{"short alias", "rf4", "rtuf04", 0.67},
		{"disjoint", "abc", "xyz", 0},
		{"one substitution", "ab1", "ab2", 0.67},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Ratio(tt.a, tt.b))
			assert.Equal(t, Ratio(tt.a, tt.b), Ratio(tt.b, tt.a), "Expected ratio to be symmetric")
		})
	}
}

func TestRatioRange(t *testing.T) {
	inputs := []string{"", "a", "rtuf04", "rooftopunit4", "mcc2", "vfd101", "panel5"}
	for _, a := range inputs {
		for _, b := range inputs {
			score := Ratio(a, b)
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
		}
	}
}
