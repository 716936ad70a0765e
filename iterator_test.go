package streampager

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type releaseCounter struct {
	calls int
	err   error
}

func (r *releaseCounter) release() error {
	r.calls++
	return r.err
}

func sliceIterator[T any](ctx context.Context, items []T, rc *releaseCounter) *Iterator[T] {
	pos := 0

	return newIterator(
		ctx,
		func(context.Context) (T, bool, error) {
			if pos >= len(items) {
				var zero T
				return zero, false, nil
			}
			pos++
			return items[pos-1], true, nil
		},
		rc.release,
		nil,
	)
}

func Test_Iterator_ReleasesOnceOnExhaustion(t *testing.T) {
	rc := new(releaseCounter)
	it := sliceIterator(context.Background(), []int{1, 2, 3}, rc)

	var got []int
	for it.Next() {
		got = append(got, it.Value())
	}

	require.NoError(t, it.Err())
	require.Equal(t, []int{1, 2, 3}, got)
	require.Equal(t, 1, rc.calls)

	require.NoError(t, it.Close())
	require.False(t, it.Next())
	require.Equal(t, 1, rc.calls)
}

func Test_Iterator_CloseReturnsReleaseError(t *testing.T) {
	errRelease := errors.New("release failed")
	rc := &releaseCounter{err: errRelease}
	it := sliceIterator(context.Background(), []int{1, 2, 3}, rc)

	require.True(t, it.Next())
	require.ErrorIs(t, it.Close(), errRelease)
	require.NoError(t, it.Close())
	require.Equal(t, 1, rc.calls)
	require.Zero(t, it.Value())
}

func Test_Iterator_FetchErrorStopsAndReleases(t *testing.T) {
	errFetch := errors.New("fetch failed")
	rc := new(releaseCounter)
	calls := 0

	it := newIterator(
		context.Background(),
		func(context.Context) (int, bool, error) {
			calls++
			if calls == 2 {
				return 0, false, errFetch
			}
			return calls, true, nil
		},
		rc.release,
		nil,
	)

	var got []int
	var gotErr error
	for v, err := range it.All() {
		if err != nil {
			gotErr = err
			continue
		}
		got = append(got, v)
	}

	require.Equal(t, []int{1}, got)
	require.ErrorIs(t, gotErr, errFetch)
	require.Equal(t, 1, rc.calls)
	require.False(t, it.Next())
}

func Test_Iterator_NilIsExhausted(t *testing.T) {
	var it *Iterator[int]

	require.False(t, it.Next())
	require.Zero(t, it.Value())
	require.NoError(t, it.Err())
	require.NoError(t, it.Close())
}

func Test_Map_Keep_Flatten(t *testing.T) {
	t.Run("map", func(t *testing.T) {
		rc := new(releaseCounter)
		it := Map(sliceIterator(context.Background(), []int{1, 2, 3}, rc), func(v int) (int, error) {
			return v * 10, nil
		})

		got, err := Collect(it)
		require.NoError(t, err)
		require.Equal(t, []int{10, 20, 30}, got)
		require.Equal(t, 1, rc.calls)
	})

	t.Run("map error closes the source", func(t *testing.T) {
		errMap := errors.New("bad value")
		rc := new(releaseCounter)
		it := Map(sliceIterator(context.Background(), []int{1, 2, 3}, rc), func(v int) (int, error) {
			if v == 2 {
				return 0, errMap
			}
			return v, nil
		})

		_, err := Collect(it)
		require.ErrorIs(t, err, errMap)
		require.Equal(t, 1, rc.calls)
	})

	t.Run("keep", func(t *testing.T) {
		rc := new(releaseCounter)
		it := Keep(sliceIterator(context.Background(), []int{1, 2, 3, 4, 5}, rc), func(v int) bool {
			return v%2 == 1
		})

		got, err := Collect(it)
		require.NoError(t, err)
		require.Equal(t, []int{1, 3, 5}, got)
		require.Equal(t, 1, rc.calls)
	})

	t.Run("flatten skips empty slices", func(t *testing.T) {
		rc := new(releaseCounter)
		it := Flatten(sliceIterator(context.Background(), [][]int{{1, 2}, {}, {3}, nil, {4, 5, 6}}, rc))

		got, err := Collect(it)
		require.NoError(t, err)
		require.Equal(t, []int{1, 2, 3, 4, 5, 6}, got)
		require.Equal(t, 1, rc.calls)
	})

	t.Run("break out of a combinator closes the source", func(t *testing.T) {
		rc := new(releaseCounter)
		it := Flatten(sliceIterator(context.Background(), [][]int{{1, 2}, {3, 4}}, rc))

		for v, err := range it.All() {
			require.NoError(t, err)
			if v == 3 {
				break
			}
		}

		require.Equal(t, 1, rc.calls)
	})
}

func Test_PageIterator_Cursor(t *testing.T) {
	pages := [][]Record{makeRecords(2), makeRecords(2), makeRecords(1), nil}
	var offsets []int

	it := newPageIterator(
		context.Background(),
		NewOffsetCursor(4),
		2,
		func(_ context.Context, offset int) (Page, error) {
			offsets = append(offsets, offset)
			return pages[len(offsets)-1], nil
		},
		nil,
		nil,
	)

	require.Equal(t, 4, it.Cursor().GetOffset())

	count := 0
	for it.Next() {
		count++
	}

	require.NoError(t, it.Err())
	require.Equal(t, 3, count)
	require.Equal(t, []int{4, 6, 8, 10}, offsets)
	require.Equal(t, 10, it.Cursor().GetOffset())
}
