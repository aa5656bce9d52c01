package freq

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistance_Identical(t *testing.T) {
	maps := []FrequencyMap{
		{"a": 1},
		{"the": 4, "cookie": 2, "banner": 1},
		{},
	}
	for _, m := range maps {
		assert.Equal(t, 0.0, JaccardDistance(m, m))
	}
}

func TestDistance_Disjoint(t *testing.T) {
	a := FrequencyMap{"left": 3, "side": 1}
	b := FrequencyMap{"right": 2}
	assert.Equal(t, 1.0, JaccardDistance(a, b))
	assert.Equal(t, 1.0, JaccardDistance(b, a))
}

func TestDistance_BothEmpty(t *testing.T) {
	assert.Equal(t, 0.0, JaccardDistance(nil, FrequencyMap{}))
}

func TestDistance_WeightedOverlap(t *testing.T) {
	tests := []struct {
		name string
		a, b FrequencyMap
		want float64
	}{
		{"half counts", FrequencyMap{"x": 2}, FrequencyMap{"x": 1}, 0.5},
		{"one of three", FrequencyMap{"x": 1, "y": 1}, FrequencyMap{"x": 1, "z": 1}, 1 - 1.0/3},
		{"one side empty", FrequencyMap{"x": 5}, FrequencyMap{}, 1},
		{"mixed", FrequencyMap{"a": 3, "b": 1}, FrequencyMap{"a": 1, "b": 1, "c": 2}, 1 - 2.0/6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, JaccardDistance(tt.a, tt.b), 1e-12)
			assert.InDelta(t, tt.want, JaccardDistance(tt.b, tt.a), 1e-12, "distance must be symmetric")
		})
	}
}

func TestDistance_GenericKeys(t *testing.T) {
	a := map[[16]byte]int{{1}: 2, {2}: 1}
	b := map[[16]byte]int{{1}: 2, {3}: 1}
	assert.InDelta(t, 1-2.0/4, Distance(a, b), 1e-12)
}

func TestCompare(t *testing.T) {
	baseline := FrequencyMap{"home": 1, "news": 1}
	control := FrequencyMap{"home": 1, "news": 1}
	experimental := FrequencyMap{"home": 1, "login": 1}

	s := Compare(baseline, control, experimental)
	require.NotNil(t, s.ControlDiff)
	require.NotNil(t, s.ExperimentalDiff)
	require.NotNil(t, s.DiD)
	assert.Equal(t, 0.0, *s.ControlDiff)
	assert.InDelta(t, 1-1.0/3, *s.ExperimentalDiff, 1e-12)
	assert.InDelta(t, *s.ExperimentalDiff-*s.ControlDiff, *s.DiD, 1e-12)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate())
	assert.NoError(t, Validate(FrequencyMap{"a": 1}, FrequencyMap{}, nil, FrequencyMap{"b": 0}))

	err := Validate(FrequencyMap{"a": 1}, FrequencyMap{"a": -5})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNegativeCount))
	assert.Contains(t, err.Error(), `"a"`)
}

func TestCompare_ValidMapsStayInRange(t *testing.T) {
	maps := []FrequencyMap{
		{"a": 1},
		{"a": 5, "b": 2},
		{"c": 3},
		{},
	}
	for _, b := range maps {
		for _, c := range maps {
			for _, e := range maps {
				require.NoError(t, Validate(b, c, e))
				s := Compare(b, c, e)
				assert.GreaterOrEqual(t, *s.ControlDiff, 0.0)
				assert.LessOrEqual(t, *s.ControlDiff, 1.0)
				assert.GreaterOrEqual(t, *s.ExperimentalDiff, 0.0)
				assert.LessOrEqual(t, *s.ExperimentalDiff, 1.0)
			}
		}
	}
}

func TestWordCounts(t *testing.T) {
	got := WordCounts("Accept all cookies\n\nAccept  \tnecessary\nonly")
	assert.Equal(t, FrequencyMap{"Accept": 2, "all": 1, "cookies": 1, "necessary": 1, "only": 1}, got)
	assert.Empty(t, WordCounts("   \n\t"))
}

func TestCountItems(t *testing.T) {
	got := CountItems([]string{"https://a.test/", "https://b.test/x.png", "https://a.test/"})
	assert.Equal(t, FrequencyMap{"https://a.test/": 2, "https://b.test/x.png": 1}, got)
	assert.Empty(t, CountItems(nil))
}
