package trend

import (
	"github.com/hed1ad/goinsight/pkg/stats"
	"github.com/hed1ad/goinsight/pkg/timeseries"
)

// Direction is the categorical trend summary.
type Direction string

const (
	Increasing Direction = "increasing"
	Decreasing Direction = "decreasing"
	Flat       Direction = "flat"
)

// Strength buckets the quality of the linear fit behind the direction.
type Strength string

const (
	Strong   Strength = "strong"
	Moderate Strength = "moderate"
	Weak     Strength = "weak"
)

// Summary describes the fitted linear trend of a series.
type Summary struct {
	Direction Direction `json:"direction"`
	Strength  Strength  `json:"strength"`
	Slope     float64   `json:"slope"`
	Intercept float64   `json:"intercept"`
	RSquared  float64   `json:"r_squared"`
}

// Classify fits a least-squares line through the observed points (grid
// index as x, so gaps keep their spacing) and classifies the slope against
// the noise floor. Slopes within the floor, either way, classify as flat.
func Classify(s *timeseries.Series, noiseFloor float64) Summary {
	if noiseFloor < 0 {
		noiseFloor = -noiseFloor
	}

	xs := make([]float64, 0, s.Len())
	ys := make([]float64, 0, s.Len())
	for i, p := range s.Points {
		if p.Missing {
			continue
		}
		xs = append(xs, float64(i))
		ys = append(ys, p.Value)
	}

	slope, intercept := stats.FitLine(xs, ys)
	r2 := stats.RSquared(xs, ys, slope, intercept)

	sum := Summary{
		Slope:     slope,
		Intercept: intercept,
		RSquared:  r2,
		Direction: Flat,
		Strength:  Weak,
	}
	switch {
	case slope > noiseFloor:
		sum.Direction = Increasing
	case slope < -noiseFloor:
		sum.Direction = Decreasing
	}
	switch {
	case r2 > 0.8:
		sum.Strength = Strong
	case r2 > 0.5:
		sum.Strength = Moderate
	}
	return sum
}
