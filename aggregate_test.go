package streampager

import (
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/require"
)

func seqOf[T any](values ...T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, v := range values {
			if !yield(v, nil) {
				return
			}
		}
	}
}

func Test_ComputeStreamingAverage(t *testing.T) {
	tests := []struct {
		name    string
		seq     iter.Seq2[any, error]
		want    float64
		wantErr error
	}{
		{"ints", seqOf[any](10, 20, 30), 20.0, nil},
		{"mixed numeric types", seqOf[any](int64(1), float32(2), uint8(3)), 2.0, nil},
		{"decimal as bytes", seqOf[any]([]byte("12.5"), "7.5"), 10.0, nil},
		{"nulls are skipped", seqOf[any](nil, 4, nil, 6), 5.0, nil},
		{"empty", seqOf[any](), 0, ErrEmptyAggregationInput},
		{"only nulls", seqOf[any](nil, nil), 0, ErrEmptyAggregationInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeStreamingAverage(tt.seq)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			require.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func Test_ComputeStreamingAverage_Failures(t *testing.T) {
	t.Run("non numeric value", func(t *testing.T) {
		_, err := ComputeStreamingAverage(seqOf[any](1, "abc"))
		require.Error(t, err)
	})

	t.Run("sequence error is propagated", func(t *testing.T) {
		errSeq := errors.New("source failed")
		seq := func(yield func(int, error) bool) {
			if !yield(1, nil) {
				return
			}
			yield(0, errSeq)
		}

		_, err := ComputeStreamingAverage[int](seq)
		require.ErrorIs(t, err, errSeq)
	})

	t.Run("typed sequence", func(t *testing.T) {
		got, err := ComputeStreamingAverage(seqOf(1.5, 2.5))
		require.NoError(t, err)
		require.InDelta(t, 2.0, got, 1e-9)
	})
}
