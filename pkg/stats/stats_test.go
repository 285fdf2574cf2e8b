package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMean(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{
			name:   "empty",
			values: nil,
			want:   0,
		},
		{
			name:   "single value",
			values: []float64{5},
			want:   5,
		},
		{
			name:   "mixed signs",
			values: []float64{-2, 0, 2, 4},
			want:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Mean(tt.values), 1e-12)
		})
	}
}

func TestVariance(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{
			name:   "fewer than two values",
			values: []float64{3},
			want:   0,
		},
		{
			name:   "constant series",
			values: []float64{4, 4, 4, 4},
			want:   0,
		},
		{
			name:   "sample variance uses n-1",
			values: []float64{2, 4, 4, 4, 5, 5, 7, 9},
			want:   32.0 / 7.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Variance(tt.values), 1e-12)
		})
	}
}

func TestQuantile(t *testing.T) {
	values := []float64{7, 1, 3, 5, 9}

	tests := []struct {
		name string
		q    float64
		want float64
	}{
		{name: "minimum", q: 0, want: 1},
		{name: "median", q: 0.5, want: 5},
		{name: "maximum", q: 1, want: 9},
		{name: "interpolated quartile", q: 0.25, want: 3},
		{name: "between order statistics", q: 0.375, want: 4},
		{name: "clamped below", q: -1, want: 1},
		{name: "clamped above", q: 2, want: 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Quantile(values, tt.q), 1e-12)
		})
	}

	t.Run("input is not modified", func(t *testing.T) {
		in := []float64{3, 1, 2}
		Quantile(in, 0.5)
		assert.Equal(t, []float64{3, 1, 2}, in)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Zero(t, Quantile(nil, 0.5))
	})
}

func TestFitLine(t *testing.T) {
	t.Run("exact line", func(t *testing.T) {
		xs := []float64{0, 1, 2, 3}
		ys := []float64{1, 3, 5, 7}

		slope, intercept := FitLine(xs, ys)

		assert.InDelta(t, 2.0, slope, 1e-12)
		assert.InDelta(t, 1.0, intercept, 1e-12)
	})

	t.Run("constant xs give horizontal line", func(t *testing.T) {
		slope, intercept := FitLine([]float64{2, 2, 2}, []float64{1, 2, 3})

		assert.Zero(t, slope)
		assert.InDelta(t, 2.0, intercept, 1e-12)
	})

	t.Run("single point", func(t *testing.T) {
		slope, intercept := FitLine([]float64{5}, []float64{42})

		assert.Zero(t, slope)
		assert.InDelta(t, 42.0, intercept, 1e-12)
	})
}

func TestRSquared(t *testing.T) {
	xs := []float64{0, 1, 2, 3, 4}

	t.Run("perfect fit", func(t *testing.T) {
		ys := []float64{2, 4, 6, 8, 10}
		slope, intercept := FitLine(xs, ys)

		assert.InDelta(t, 1.0, RSquared(xs, ys, slope, intercept), 1e-12)
	})

	t.Run("constant ys", func(t *testing.T) {
		ys := []float64{3, 3, 3, 3, 3}

		assert.Zero(t, RSquared(xs, ys, 0, 3))
	})

	t.Run("bad line clamps to zero", func(t *testing.T) {
		ys := []float64{2, 4, 6, 8, 10}

		assert.Zero(t, RSquared(xs, ys, -2, 100))
	})
}

func TestAutocorrelation(t *testing.T) {
	t.Run("periodic series peaks at its period", func(t *testing.T) {
		var values []float64
		for i := 0; i < 40; i++ {
			values = append(values, []float64{1, 5, 2, 8}[i%4])
		}

		atPeriod := Autocorrelation(values, 4)
		offPeriod := Autocorrelation(values, 3)

		assert.Greater(t, atPeriod, 0.8)
		assert.Greater(t, atPeriod, offPeriod)
	})

	t.Run("constant series", func(t *testing.T) {
		assert.Zero(t, Autocorrelation([]float64{2, 2, 2, 2}, 1))
	})

	t.Run("lag out of range", func(t *testing.T) {
		values := []float64{1, 2, 3}

		assert.Zero(t, Autocorrelation(values, 0))
		assert.Zero(t, Autocorrelation(values, 3))
	})
}

func TestDiff(t *testing.T) {
	assert.Nil(t, Diff([]float64{1}))
	assert.Equal(t, []float64{1, 2, -3}, Diff([]float64{0, 1, 3, 0}))
}
