package smoothing

import (
	"errors"
	"math"

	"github.com/markusressel/cool2go/internal/util"
)

var ErrEmptySampleSet = errors.New("empty sample set")

// MovingAverage averages the most recent samples, ordered oldest to newest.
// A window < 1 uses all samples.
// When exponential is set, newer samples are weighted exponentially higher than older ones.
func MovingAverage(samples []float64, window int, exponential bool) (float64, error) {
	if len(samples) == 0 {
		return 0, ErrEmptySampleSet
	}
	if window > 0 && window < len(samples) {
		samples = samples[len(samples)-window:]
	}
	if len(samples) == 1 {
		return samples[0], nil
	}

	if !exponential {
		return util.Avg(samples), nil
	}

	n := float64(len(samples) - 1)
	weightSum := 0.0
	sum := 0.0
	for i, sample := range samples {
		weight := math.Exp(-1 + float64(i)/n)
		weightSum += weight
		sum += sample * weight
	}
	return sum / weightSum, nil
}
