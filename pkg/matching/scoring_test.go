package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScorerExactMatch(t *testing.T) {
	scorer := NewScorer()

	assert.Equal(t, 1.0, scorer.ExactMatch("Messi", "Messi", true))
	assert.Equal(t, 0.0, scorer.ExactMatch("Messi", "messi", true))
	assert.Equal(t, 1.0, scorer.ExactMatch("Messi", "messi", false))
	assert.Equal(t, 0.0, scorer.ExactMatch("Messi", "Suarez", false))
}

func TestScorerJaroWinkler(t *testing.T) {
	scorer := NewScorer()

	tests := []struct {
		name     string
		a        string
		b        string
		expected float64
	}{
		{
			name:     "identical strings",
			a:        "lionel messi",
			b:        "lionel messi",
			expected: 1.0,
		},
		{
			name:     "both empty",
			a:        "",
			b:        "",
			expected: 0.0,
		},
		{
			name:     "one empty",
			a:        "messi",
			b:        "",
			expected: 0.0,
		},
		{
			name:     "classic martha transposition",
			a:        "martha",
			b:        "marhta",
			expected: 0.9611,
		},
		{
			name:     "classic dwayne contraction",
			a:        "dwayne",
			b:        "duane",
			expected: 0.84,
		},
		{
			name:     "prefix boost capped at four characters",
			a:        "michelle",
			b:        "michael",
			expected: 0.9214,
		},
		{
			name:     "no common characters",
			a:        "abc",
			b:        "xyz",
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, scorer.JaroWinkler(tt.a, tt.b), 0.0001)
		})
	}
}

func TestScorerJaroWinklerBoostGate(t *testing.T) {
	scorer := NewScorer()

	// Shared prefix but low base similarity: the Winkler boost must not apply
	// when the Jaro score is at or below 0.7.
	a, b := "abcdef", "abzzzz"
	jaro := scorer.Jaro(a, b)
	assert.Less(t, jaro, 0.7)
	assert.InDelta(t, jaro, scorer.JaroWinkler(a, b), 0.0001)
}

func TestScorerJaroWinklerSymmetry(t *testing.T) {
	scorer := NewScorer()

	pairs := [][2]string{
		{"kylian mbappe", "kylian mbape"},
		{"martha", "marhta"},
		{"erling haaland", "haaland"},
	}
	for _, pair := range pairs {
		assert.Equal(t, scorer.JaroWinkler(pair[0], pair[1]), scorer.JaroWinkler(pair[1], pair[0]))
	}
}
