package trend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGrowth(t *testing.T) {
	g := Growth(daySeries(100, 110, 121))
	assert.InDelta(t, 0.21, g.Total, 1e-12)
	assert.InDelta(t, 0.10, g.MeanStep, 1e-12)
	assert.InDelta(t, 0.10, g.Compound, 1e-12)
}

func TestGrowthNegativeBase(t *testing.T) {
	// Rates against a negative base use its magnitude, so a recovery from
	// -50 to 25 is +150%. The compound rate is undefined across a sign
	// change and reports zero.
	g := Growth(daySeries(-50, -25, 25))
	assert.InDelta(t, 1.5, g.Total, 1e-12)
	assert.InDelta(t, 1.25, g.MeanStep, 1e-12)
	assert.Zero(t, g.Compound)
}

func TestGrowthZeroBase(t *testing.T) {
	// Steps from zero have no defined rate and are skipped.
	g := Growth(daySeries(0, 5, 10))
	assert.Zero(t, g.Total)
	assert.InDelta(t, 1.0, g.MeanStep, 1e-12)
	assert.Zero(t, g.Compound)
}

func TestGrowthTooShort(t *testing.T) {
	assert.Zero(t, Growth(daySeries(42)))
	assert.Zero(t, Growth(daySeries()))
}

func TestGrowthSkipsMissing(t *testing.T) {
	// Missing slots drop out before the rates are taken, so consecutive
	// observed values define the steps.
	s := daySeries(100, 0, 110, 121)
	s.Points[1].Missing = true

	g := Growth(s)
	assert.InDelta(t, 0.21, g.Total, 1e-12)
	assert.InDelta(t, 0.10, g.MeanStep, 1e-12)
}

func TestPeaksAndTroughs(t *testing.T) {
	e := PeaksAndTroughs(daySeries(1, 5, 2, 8, 3, 3, 9))
	assert.Equal(t, []int{1, 3}, e.Peaks)
	assert.Equal(t, []int{2}, e.Troughs)
}

func TestPeaksAndTroughsPlateau(t *testing.T) {
	// Extrema must be strict: a plateau shoulder is neither.
	e := PeaksAndTroughs(daySeries(1, 4, 4, 1))
	assert.Empty(t, e.Peaks)
	assert.Empty(t, e.Troughs)
}

func TestPeaksAndTroughsSkipMissingNeighbors(t *testing.T) {
	s := daySeries(1, 5, 2, 8, 1, 9, 4)
	s.Points[1].Missing = true

	e := PeaksAndTroughs(s)
	assert.Equal(t, []int{3, 5}, e.Peaks)
	assert.Equal(t, []int{4}, e.Troughs)
}
