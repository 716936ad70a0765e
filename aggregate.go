package streampager

import (
	"fmt"
	"iter"
)

// ComputeStreamingAverage consumes seq exactly once keeping only a running sum
// and count. NULL values are skipped, as SQL AVG does. Returns
// ErrEmptyAggregationInput when no value was averaged.
func ComputeStreamingAverage[T any](seq iter.Seq2[T, error]) (float64, error) {
	var (
		sum   float64
		count int64
	)

	for v, err := range seq {
		if err != nil {
			return 0, err
		}

		if any(v) == nil {
			continue
		}

		f, err := ToFloat64(v)
		if err != nil {
			return 0, fmt.Errorf("cannot average value: %w", err)
		}

		sum += f
		count++
	}

	if count == 0 {
		return 0, ErrEmptyAggregationInput
	}

	return sum / float64(count), nil
}
