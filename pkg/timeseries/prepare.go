package timeseries

import (
	"fmt"
	"sort"
	"time"
)

// GapFillPolicy controls how grid slots with no observation are filled
// after resampling. The policy is explicit configuration, never inferred.
type GapFillPolicy string

const (
	// GapFillNone leaves gaps as Missing points. Computations that need a
	// contiguous series fail on them instead of guessing.
	GapFillNone GapFillPolicy = "none"
	// GapFillForward repeats the last observed value. Gaps before the first
	// observation stay missing.
	GapFillForward GapFillPolicy = "forward_fill"
	// GapFillInterpolate fills gaps linearly between the surrounding
	// observations. Leading and trailing gaps stay missing.
	GapFillInterpolate GapFillPolicy = "interpolate"
)

// Valid reports whether p names a known policy.
func (p GapFillPolicy) Valid() bool {
	switch p {
	case GapFillNone, GapFillForward, GapFillInterpolate:
		return true
	}
	return false
}

// DuplicatePolicy controls rows sharing one timestamp within a group.
type DuplicatePolicy string

const (
	// DuplicateLastWriteWins keeps the later-arriving row.
	DuplicateLastWriteWins DuplicatePolicy = "last_write_wins"
	// DuplicateError fails preparation with a *DuplicateTimestampError.
	DuplicateError DuplicatePolicy = "error"
)

// Valid reports whether p names a known policy.
func (p DuplicatePolicy) Valid() bool {
	switch p {
	case DuplicateLastWriteWins, DuplicateError:
		return true
	}
	return false
}

// PrepareConfig configures series preparation. MinPoints is the strictest
// observation floor of the downstream methods the caller enabled; 0 skips
// the check.
type PrepareConfig struct {
	GapFill    GapFillPolicy
	Duplicates DuplicatePolicy
	MinPoints  int
}

// Prepare turns a raw observation group into a uniform series: it sorts by
// timestamp (stable, so arrival order decides among equal stamps),
// deduplicates per the duplicate policy, infers the dominant observation
// interval, resamples onto the uniform grid, fills gaps per the gap-fill
// policy, and enforces the minimum-length floor.
func Prepare(group *RawGroup, cfg PrepareConfig) (*Series, error) {
	if !cfg.GapFill.Valid() {
		return nil, &InvalidParameterError{
			Parameter: "gap_fill_policy",
			Value:     string(cfg.GapFill),
			Reason:    "must be one of none, forward_fill, interpolate",
		}
	}
	if !cfg.Duplicates.Valid() {
		return nil, &InvalidParameterError{
			Parameter: "duplicate_policy",
			Value:     string(cfg.Duplicates),
			Reason:    "must be one of last_write_wins, error",
		}
	}

	points := make([]Point, len(group.Points))
	copy(points, group.Points)
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})

	deduped, err := dedupe(points, cfg.Duplicates)
	if err != nil {
		return nil, err
	}

	interval := dominantInterval(deduped)
	gridded := resample(deduped, interval)
	fillGaps(gridded, cfg.GapFill)

	s := &Series{
		Metric:     group.Metric,
		Dimensions: copyDims(group.Dimensions),
		Points:     gridded,
		Interval:   interval,
	}

	if cfg.MinPoints > 0 && s.Observed() < cfg.MinPoints {
		return nil, &InsufficientDataError{
			Operation: fmt.Sprintf("analysis of %s", seriesName(s)),
			Required:  cfg.MinPoints,
			Actual:    s.Observed(),
		}
	}
	return s, nil
}

func seriesName(s *Series) string {
	if key := dimensionKey(s.Dimensions); key != "" {
		return s.Metric + "[" + key + "]"
	}
	return s.Metric
}

// dedupe collapses runs of equal timestamps. Input must be sorted.
func dedupe(points []Point, policy DuplicatePolicy) ([]Point, error) {
	out := points[:0]
	for i := 0; i < len(points); {
		j := i + 1
		for j < len(points) && points[j].Timestamp.Equal(points[i].Timestamp) {
			j++
		}
		if j-i > 1 && policy == DuplicateError {
			return nil, &DuplicateTimestampError{Timestamp: points[i].Timestamp, Count: j - i}
		}
		out = append(out, points[j-1]) // last write wins
		i = j
	}
	return out, nil
}

// dominantInterval returns the most frequent gap between successive
// observations. Ties go to the smaller interval so a denser grid never
// drops observations. Fewer than two points yield 0.
func dominantInterval(points []Point) time.Duration {
	if len(points) < 2 {
		return 0
	}
	counts := make(map[time.Duration]int)
	for i := 1; i < len(points); i++ {
		counts[points[i].Timestamp.Sub(points[i-1].Timestamp)]++
	}
	var best time.Duration
	bestCount := 0
	for d, c := range counts {
		if c > bestCount || (c == bestCount && d < best) {
			best, bestCount = d, c
		}
	}
	return best
}

// resample projects the observations onto the uniform grid anchored at the
// first timestamp. Each observation lands in the nearest grid slot; the
// later arrival wins a slot collision. Slots with no observation appear as
// Missing points.
func resample(points []Point, interval time.Duration) []Point {
	if interval <= 0 || len(points) < 2 {
		return points
	}

	start := points[0].Timestamp
	span := points[len(points)-1].Timestamp.Sub(start)
	slots := int(span/interval) + 1
	if remainder := span % interval; remainder >= interval/2+interval%2 {
		slots++
	}

	grid := make([]Point, slots)
	for i := range grid {
		grid[i] = Point{Timestamp: start.Add(time.Duration(i) * interval), Missing: true}
	}
	for _, p := range points {
		offset := p.Timestamp.Sub(start)
		slot := int((offset + interval/2) / interval)
		if slot < 0 {
			slot = 0
		}
		if slot >= slots {
			slot = slots - 1
		}
		grid[slot] = Point{Timestamp: grid[slot].Timestamp, Value: p.Value}
	}
	return grid
}

// fillGaps fills Missing slots in place per the policy.
func fillGaps(points []Point, policy GapFillPolicy) {
	switch policy {
	case GapFillForward:
		lastObserved := -1
		for i := range points {
			if !points[i].Missing {
				lastObserved = i
				continue
			}
			if lastObserved >= 0 {
				points[i].Value = points[lastObserved].Value
				points[i].Missing = false
			}
		}
	case GapFillInterpolate:
		prev := -1
		for i := range points {
			if points[i].Missing {
				continue
			}
			if prev >= 0 && i-prev > 1 {
				step := (points[i].Value - points[prev].Value) / float64(i-prev)
				for j := prev + 1; j < i; j++ {
					points[j].Value = points[prev].Value + step*float64(j-prev)
					points[j].Missing = false
				}
			}
			prev = i
		}
	}
}
