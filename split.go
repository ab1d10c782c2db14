package yolomerge

import (
	"fmt"
	"math"
	"math/rand"
)

// SplitRatios are the fractions of a dataset assigned to the train, valid and test splits.
type SplitRatios struct {
	Train float64 `yaml:"train"`
	Valid float64 `yaml:"valid"`
	Test  float64 `yaml:"test"`
}

// DefaultSplitRatios assigns 80% of the images to train and 10% each to valid and test.
var DefaultSplitRatios = SplitRatios{Train: 0.8, Valid: 0.1, Test: 0.1}

// Validate checks that the ratios are non-negative and add up to 1.
func (r SplitRatios) Validate() error {
	if r.Train < 0 || r.Valid < 0 || r.Test < 0 {
		return fmt.Errorf("split ratios must not be negative: %+v", r)
	}
	if sum := r.Train + r.Valid + r.Test; math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("split ratios must add up to 1, got %v", sum)
	}
	return nil
}

// span is a half-open index range [start, end).
type span struct {
	start, end int
}

// Partition divides n items into three contiguous ranges for train, valid and test, in that
// order. The train and valid sizes are truncated; test receives the remainder.
func Partition(n int, r SplitRatios) [3]span {
	trainEnd := int(float64(n) * r.Train)
	validEnd := trainEnd + int(float64(n)*r.Valid)
	if trainEnd > n {
		trainEnd = n
	}
	if validEnd > n {
		validEnd = n
	}
	return [3]span{{0, trainEnd}, {trainEnd, validEnd}, {validEnd, n}}
}

// ShuffleFunc permutes n elements using swap, with the signature of rand.Shuffle.
type ShuffleFunc func(n int, swap func(i, j int))

// SeededShuffle returns a ShuffleFunc producing a uniform random permutation from seed.
func SeededShuffle(seed int64) ShuffleFunc {
	return rand.New(rand.NewSource(seed)).Shuffle
}

// NoShuffle keeps the original order.
func NoShuffle(int, func(i, j int)) {}
