// Package iforest implements the isolation-based member of the detection
// ensemble: points that random partitioning separates from the bulk of the
// series in fewer splits score closer to 1.
package iforest

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/hed1ad/goinsight/pkg/detectors"
	"github.com/hed1ad/goinsight/pkg/timeseries"
)

// Forest scores series points by their average isolation depth across an
// ensemble of random partition trees built over [value, first-difference]
// features. Scores are normalized to [0, 1]; points at or above the score
// threshold are flagged.
//
// Results are deterministic for a fixed seed. The seed is explicit
// configuration, never ambient randomness: Detect builds a fresh source
// from it on every call, so repeated calls are identical.
type Forest struct {
	seed           int64
	trees          int
	sampleSize     int
	scoreThreshold float64
}

// Option configures a Forest.
type Option func(*Forest)

// WithTrees sets the number of partition trees. Default 100.
func WithTrees(n int) Option {
	return func(f *Forest) {
		f.trees = n
	}
}

// WithSampleSize fixes the per-tree subsample size. Zero, the default,
// means min(256, observed points). An explicit size larger than the series
// makes the detector unavailable instead of silently shrinking the sample.
func WithSampleSize(n int) Option {
	return func(f *Forest) {
		f.sampleSize = n
	}
}

// WithScoreThreshold sets the [0, 1] score at which a point is flagged.
// Default 0.6.
func WithScoreThreshold(t float64) Option {
	return func(f *Forest) {
		f.scoreThreshold = t
	}
}

// New creates a Forest seeded with the given value.
func New(seed int64, opts ...Option) *Forest {
	f := &Forest{
		seed:           seed,
		trees:          100,
		scoreThreshold: 0.6,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Forest) Name() string { return detectors.NameIsolation }

// MinObservations is 4: below that the partition space is too small to
// rank points meaningfully.
func (f *Forest) MinObservations() int { return 4 }

// Detect builds the forest over the observed points and scores each of
// them. Missing slots receive a zero Result.
func (f *Forest) Detect(s *timeseries.Series) ([]detectors.Result, error) {
	if f.trees <= 0 {
		return nil, &timeseries.InvalidParameterError{
			Parameter: "isolation_trees", Value: f.trees, Reason: "must be positive",
		}
	}
	if f.scoreThreshold <= 0 || f.scoreThreshold > 1 {
		return nil, &timeseries.InvalidParameterError{
			Parameter: "isolation_score_threshold", Value: f.scoreThreshold, Reason: "must be in (0, 1]",
		}
	}

	features, index := seriesFeatures(s)
	n := len(features)
	if n < f.MinObservations() {
		return nil, &timeseries.InsufficientDataError{
			Operation: "isolation forest", Required: f.MinObservations(), Actual: n,
		}
	}

	sampleSize := f.sampleSize
	switch {
	case sampleSize == 0:
		sampleSize = 256
		if sampleSize > n {
			sampleSize = n
		}
	case sampleSize < 2:
		return nil, &timeseries.InvalidParameterError{
			Parameter: "isolation_sample_size", Value: sampleSize, Reason: "must be at least 2",
		}
	case sampleSize > n:
		return nil, &timeseries.DetectorUnavailableError{
			Detector: f.Name(),
			Reason:   fmt.Sprintf("sample size %d exceeds %d observed points", sampleSize, n),
		}
	}

	b := &builder{
		rng:      rand.New(rand.NewSource(f.seed)),
		maxDepth: int(math.Ceil(math.Log2(float64(sampleSize)))),
	}
	trees := make([]*node, f.trees)
	for i := range trees {
		indices := b.rng.Perm(n)[:sampleSize]
		sample := make([][]float64, sampleSize)
		for j, idx := range indices {
			sample[j] = features[idx]
		}
		trees[i] = b.build(sample, 0)
	}

	// c(ψ) normalizes path lengths to the expected depth for the sample size.
	norm := averagePathLength(float64(sampleSize))

	results := make([]detectors.Result, s.Len())
	for j, row := range features {
		var total float64
		for _, t := range trees {
			total += pathLength(row, t, 0)
		}
		score := math.Pow(2, -(total/float64(len(trees)))/norm)
		results[index[j]] = detectors.Result{
			Score:     score,
			IsOutlier: score >= f.scoreThreshold,
		}
	}
	return results, nil
}

// seriesFeatures extracts the per-point feature rows [value, delta from the
// previous observed value] and the mapping back to point indices. The first
// observed point carries a zero delta.
func seriesFeatures(s *timeseries.Series) ([][]float64, []int) {
	features := make([][]float64, 0, s.Len())
	index := make([]int, 0, s.Len())

	prev := math.NaN()
	for i, p := range s.Points {
		if p.Missing {
			continue
		}
		delta := 0.0
		if !math.IsNaN(prev) {
			delta = p.Value - prev
		}
		features = append(features, []float64{p.Value, delta})
		index = append(index, i)
		prev = p.Value
	}
	return features, index
}

// node is a node in a partition tree. Leaves keep the count of samples
// that reached them.
type node struct {
	splitFeature int
	splitValue   float64
	left         *node
	right        *node
	size         int
}

type builder struct {
	rng      *rand.Rand
	maxDepth int
}

// build recursively partitions the sample on random features at random
// split values.
func (b *builder) build(data [][]float64, depth int) *node {
	n := len(data)
	if depth >= b.maxDepth || n <= 1 {
		return &node{size: n}
	}

	feature := b.rng.Intn(len(data[0]))
	minVal, maxVal := data[0][feature], data[0][feature]
	for _, row := range data[1:] {
		if row[feature] < minVal {
			minVal = row[feature]
		}
		if row[feature] > maxVal {
			maxVal = row[feature]
		}
	}
	if minVal == maxVal {
		return &node{size: n}
	}

	splitValue := minVal + b.rng.Float64()*(maxVal-minVal)

	var left, right [][]float64
	for _, row := range data {
		if row[feature] < splitValue {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}

	return &node{
		splitFeature: feature,
		splitValue:   splitValue,
		left:         b.build(left, depth+1),
		right:        b.build(right, depth+1),
	}
}

// pathLength walks a sample down a tree; leaves add the expected depth for
// the samples they still hold.
func pathLength(sample []float64, n *node, depth int) float64 {
	if n.left == nil && n.right == nil {
		return float64(depth) + averagePathLength(float64(n.size))
	}
	if sample[n.splitFeature] < n.splitValue {
		return pathLength(sample, n.left, depth+1)
	}
	return pathLength(sample, n.right, depth+1)
}

// averagePathLength returns the average path length of an unsuccessful
// search in a binary search tree: c(n) = 2*H(n-1) - 2*(n-1)/n, with the
// harmonic number approximated via the Euler-Mascheroni constant.
func averagePathLength(n float64) float64 {
	if n <= 1 {
		return 0
	}
	return 2*(math.Log(n-1)+0.5772156649) - 2*(n-1)/n
}
