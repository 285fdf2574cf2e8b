package detectors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/goinsight/pkg/timeseries"
)

// stubDetector returns canned verdicts, a canned error, or panics, so the
// consensus fold can be exercised without live statistics.
type stubDetector struct {
	name     string
	flags    []int
	err      error
	panicMsg string
}

func (d *stubDetector) Name() string         { return d.name }
func (d *stubDetector) MinObservations() int { return 1 }

func (d *stubDetector) Detect(s *timeseries.Series) ([]Result, error) {
	if d.panicMsg != "" {
		panic(d.panicMsg)
	}
	if d.err != nil {
		return nil, d.err
	}
	results := make([]Result, s.Len())
	for _, i := range d.flags {
		results[i] = Result{Score: 10, IsOutlier: true}
	}
	return results, nil
}

func TestEnsembleConsensus(t *testing.T) {
	s := daySeries(1, 2, 3, 4, 5)

	tests := []struct {
		name      string
		members   []Detector
		fraction  float64
		wantVotes []int
		wantFlags []bool
	}{
		{
			name: "majority of three",
			members: []Detector{
				&stubDetector{name: "a", flags: []int{1, 3}},
				&stubDetector{name: "b", flags: []int{1}},
				&stubDetector{name: "c", flags: []int{2}},
			},
			fraction:  0.5,
			wantVotes: []int{0, 2, 1, 1, 0},
			wantFlags: []bool{false, true, false, false, false},
		},
		{
			name: "unanimity required",
			members: []Detector{
				&stubDetector{name: "a", flags: []int{1, 2}},
				&stubDetector{name: "b", flags: []int{1}},
			},
			fraction:  1.0,
			wantVotes: []int{0, 2, 1, 0, 0},
			wantFlags: []bool{false, true, false, false, false},
		},
		{
			name: "single member",
			members: []Detector{
				&stubDetector{name: "a", flags: []int{0}},
			},
			fraction:  0.5,
			wantVotes: []int{1, 0, 0, 0, 0},
			wantFlags: []bool{true, false, false, false, false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewEnsemble(tt.members, tt.fraction)
			require.NoError(t, err)
			out, err := e.Run(s)
			require.NoError(t, err)

			require.Len(t, out.Consensus, s.Len())
			for i, c := range out.Consensus {
				assert.Equal(t, tt.wantVotes[i], c.Votes, "votes at %d", i)
				assert.Equal(t, tt.wantFlags[i], c.IsAnomaly, "flag at %d", i)
				assert.Equal(t, len(tt.members), c.Total, "total at %d", i)
				assert.LessOrEqual(t, c.Votes, c.Total, "votes bounded at %d", i)
			}
		})
	}
}

func TestEnsembleSpikeConsensus(t *testing.T) {
	// The two rank-based members agree on the single extreme point, reaching
	// a two-of-two consensus.
	s := daySeries(10, 10, 10, 10, 100, 10, 10)
	e, err := NewEnsemble([]Detector{NewZScore(3.0), NewIQRFence(1.5)}, 0.5)
	require.NoError(t, err)

	out, err := e.Run(s)
	require.NoError(t, err)
	require.Empty(t, out.Excluded)

	spike := out.Consensus[4]
	assert.Equal(t, 2, spike.Votes)
	assert.Equal(t, 2, spike.Total)
	assert.True(t, spike.IsAnomaly)
	for i, c := range out.Consensus {
		if i == 4 {
			continue
		}
		assert.False(t, c.IsAnomaly, "point %d", i)
	}
}

func TestEnsembleThresholdRounding(t *testing.T) {
	// Three of ten members at fraction 0.3 is exactly the threshold.
	s := daySeries(1, 2, 3)
	members := make([]Detector, 10)
	for i := range members {
		d := &stubDetector{name: fmt.Sprintf("d%d", i)}
		if i < 3 {
			d.flags = []int{0}
		}
		members[i] = d
	}

	e, err := NewEnsemble(members, 0.3)
	require.NoError(t, err)
	out, err := e.Run(s)
	require.NoError(t, err)

	assert.Equal(t, 3, out.Consensus[0].Votes)
	assert.True(t, out.Consensus[0].IsAnomaly)
	assert.False(t, out.Consensus[1].IsAnomaly)
}

func TestEnsembleExcludesFailingMember(t *testing.T) {
	s := daySeries(1, 2, 3, 4)
	failing := &stubDetector{name: "broken", err: &timeseries.DetectorUnavailableError{
		Detector: "broken", Reason: "sample size 500 exceeds 4 observed points",
	}}
	healthy := &stubDetector{name: "healthy", flags: []int{2}}

	e, err := NewEnsemble([]Detector{failing, healthy}, 0.5)
	require.NoError(t, err)
	out, err := e.Run(s)
	require.NoError(t, err)

	// The failure shrinks the vote denominator instead of aborting the run.
	assert.Equal(t, []string{"healthy"}, out.Detectors)
	assert.NotContains(t, out.Results, "broken")
	require.Len(t, out.Excluded, 1)
	assert.Equal(t, "broken", out.Excluded[0].Detector)
	assert.Equal(t, "sample size 500 exceeds 4 observed points", out.Excluded[0].Reason)

	assert.Equal(t, 1, out.Consensus[2].Total)
	assert.Equal(t, 1, out.Consensus[2].Votes)
	assert.True(t, out.Consensus[2].IsAnomaly)
}

func TestEnsembleExclusionReasonFallsBackToErrorText(t *testing.T) {
	s := daySeries(1, 2, 3, 4)
	e, err := NewEnsemble([]Detector{
		&stubDetector{name: "odd", err: errors.New("baseline collapsed")},
		&stubDetector{name: "fine"},
	}, 0.5)
	require.NoError(t, err)

	out, err := e.Run(s)
	require.NoError(t, err)
	require.Len(t, out.Excluded, 1)
	assert.Equal(t, "baseline collapsed", out.Excluded[0].Reason)
}

func TestEnsembleRecoversPanickingMember(t *testing.T) {
	s := daySeries(1, 2, 3, 4)
	e, err := NewEnsemble([]Detector{
		&stubDetector{name: "crash", panicMsg: "index out of range"},
		&stubDetector{name: "fine", flags: []int{1}},
	}, 0.5)
	require.NoError(t, err)

	out, err := e.Run(s)
	require.NoError(t, err)

	require.Len(t, out.Excluded, 1)
	assert.Equal(t, "crash", out.Excluded[0].Detector)
	assert.Equal(t, "panic: index out of range", out.Excluded[0].Reason)
	assert.True(t, out.Consensus[1].IsAnomaly)
}

func TestEnsembleAllMembersExcluded(t *testing.T) {
	s := daySeries(1, 2, 3, 4)
	e, err := NewEnsemble([]Detector{
		&stubDetector{name: "a", err: errors.New("too short")},
		&stubDetector{name: "b", err: errors.New("too short")},
	}, 0.5)
	require.NoError(t, err)

	out, err := e.Run(s)
	require.NoError(t, err)

	assert.Empty(t, out.Detectors)
	assert.Len(t, out.Excluded, 2)
	for i, c := range out.Consensus {
		assert.Equal(t, 0, c.Total, "point %d", i)
		assert.False(t, c.IsAnomaly, "point %d", i)
	}
}

func TestEnsembleKeepsConfiguredOrder(t *testing.T) {
	s := daySeries(1, 2, 3, 4)
	e, err := NewEnsemble([]Detector{
		&stubDetector{name: "zscore"},
		&stubDetector{name: "iqr"},
		&stubDetector{name: "moving_avg"},
	}, 0.5)
	require.NoError(t, err)

	out, err := e.Run(s)
	require.NoError(t, err)
	assert.Equal(t, []string{"zscore", "iqr", "moving_avg"}, out.Detectors)
}

func TestEnsembleDeterministic(t *testing.T) {
	// Members run concurrently but each writes only its own slot, so
	// repeated runs are identical.
	s := daySeries(10, 10, 10, 10, 100, 10, 10)
	e, err := NewEnsemble([]Detector{NewZScore(3.0), NewIQRFence(1.5)}, 0.5)
	require.NoError(t, err)

	first, err := e.Run(s)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := e.Run(s)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestNewEnsembleValidation(t *testing.T) {
	tests := []struct {
		name     string
		members  []Detector
		fraction float64
	}{
		{"no members", nil, 0.5},
		{"zero fraction", []Detector{&stubDetector{name: "a"}}, 0},
		{"fraction above one", []Detector{&stubDetector{name: "a"}}, 1.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEnsemble(tt.members, tt.fraction)
			var invalid *timeseries.InvalidParameterError
			require.ErrorAs(t, err, &invalid)
		})
	}
}

func BenchmarkEnsembleRun(b *testing.B) {
	values := make([]float64, 1000)
	for i := range values {
		values[i] = float64(i%7) + float64(i)*0.01
	}
	values[500] = 1e6
	s := daySeries(values...)

	e, err := NewEnsemble([]Detector{
		NewZScore(3.0),
		NewIQRFence(1.5),
		NewMovingAverage(7, 2.0),
	}, 0.5)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Run(s); err != nil {
			b.Fatal(err)
		}
	}
}

// daySeries builds a prepared daily series over the given values.
func daySeries(values ...float64) *timeseries.Series {
	points := make([]timeseries.Point, len(values))
	for i, v := range values {
		points[i] = timeseries.Point{Timestamp: day(i), Value: v}
	}
	return &timeseries.Series{
		Metric:   "revenue",
		Points:   points,
		Interval: 24 * time.Hour,
	}
}

// markMissing turns the given slots into unfilled grid gaps.
func markMissing(s *timeseries.Series, indices ...int) *timeseries.Series {
	for _, i := range indices {
		s.Points[i] = timeseries.Point{Timestamp: s.Points[i].Timestamp, Missing: true}
	}
	return s
}

func day(n int) time.Time {
	return time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}
