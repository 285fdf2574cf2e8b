package detectors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/goinsight/pkg/timeseries"
)

func TestIQRFenceSpike(t *testing.T) {
	// Six identical values collapse the IQR to zero, so the fence degenerates
	// to the quartiles themselves and the spike lands far outside it.
	s := daySeries(10, 10, 10, 10, 100, 10, 10)

	results, err := NewIQRFence(1.5).Detect(s)
	require.NoError(t, err)
	require.Len(t, results, 7)

	assert.True(t, results[4].IsOutlier)
	assert.Greater(t, results[4].Score, 1.0)
	for i, r := range results {
		if i == 4 {
			continue
		}
		assert.Zero(t, r, "point %d", i)
	}
}

func TestIQRFenceSkewedSeries(t *testing.T) {
	// 1..12 plus one far point: Q1=4, Q3=10, fence [-5, 19].
	s := daySeries(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 100)

	results, err := NewIQRFence(1.5).Detect(s)
	require.NoError(t, err)

	assert.True(t, results[12].IsOutlier)
	assert.InDelta(t, 13.5, results[12].Score, 1e-9)
	for i := 0; i < 12; i++ {
		assert.Zero(t, results[i], "point %d", i)
	}
}

func TestIQRFenceWindowed(t *testing.T) {
	// A level shift stops being anomalous once the trailing window has
	// absorbed the new regime.
	s := daySeries(10, 11, 10, 12, 11, 10, 11, 30, 31, 30, 32, 31, 30, 31)
	d := &IQRFence{Multiplier: 1.5, Window: 6}

	results, err := d.Detect(s)
	require.NoError(t, err)

	// Windows holding fewer than four observations are never scored.
	for i := 0; i < 3; i++ {
		assert.Zero(t, results[i], "point %d", i)
	}

	// The first shifted point is judged against the old level...
	assert.True(t, results[7].IsOutlier)
	// ...but by the end of the window the fence has moved with the data.
	assert.False(t, results[13].IsOutlier)
}

func TestIQRFenceSkipsMissing(t *testing.T) {
	s := markMissing(daySeries(10, 10, 0, 10, 10, 100, 10), 2)

	results, err := NewIQRFence(1.5).Detect(s)
	require.NoError(t, err)

	assert.Zero(t, results[2])
	assert.True(t, results[5].IsOutlier)
}

func TestIQRFenceMinObservations(t *testing.T) {
	assert.Equal(t, 4, NewIQRFence(1.5).MinObservations())
	assert.Equal(t, 10, (&IQRFence{Multiplier: 1.5, Window: 10}).MinObservations())
	assert.Equal(t, 4, (&IQRFence{Multiplier: 1.5, Window: 3}).MinObservations())
}

func TestIQRFenceParameterValidation(t *testing.T) {
	tests := []struct {
		name     string
		detector *IQRFence
	}{
		{"zero multiplier", &IQRFence{Multiplier: 0}},
		{"negative multiplier", &IQRFence{Multiplier: -2}},
		{"negative window", &IQRFence{Multiplier: 1.5, Window: -3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.detector.Detect(daySeries(1, 2, 3, 4, 5))
			var invalid *timeseries.InvalidParameterError
			require.ErrorAs(t, err, &invalid)
		})
	}
}

func TestIQRFenceInsufficientData(t *testing.T) {
	_, err := NewIQRFence(1.5).Detect(daySeries(5, 6, 7))
	var short *timeseries.InsufficientDataError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, 4, short.Required)
	assert.Equal(t, 3, short.Actual)
}
