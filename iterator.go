package streampager

import (
	"context"
	"iter"

	"github.com/samber/lo"
	"gorm.io/gorm/logger"
)

// Iterator is a pull-based lazy sequence.
//
//	it, err := pager.StreamRows(ctx)
//	if err != nil {
//		return err
//	}
//	defer it.Close()
//
//	for it.Next() {
//		rec := it.Value()
//		...
//	}
//	return it.Err()
//
// The resource held by the iterator is released as soon as Next returns false,
// on Close, or when a range loop over All is left early. Next also stops once
// the context passed at creation is done. An Iterator must not be consumed
// from several goroutines.
type Iterator[T any] struct {
	ctx     context.Context
	fetch   func(ctx context.Context) (T, bool, error)
	release func() error
	log     logger.Interface

	cur    T
	err    error
	done   bool
	closed bool
}

func newIterator[T any](
	ctx context.Context,
	fetch func(ctx context.Context) (T, bool, error),
	release func() error,
	log logger.Interface,
) *Iterator[T] {
	return &Iterator[T]{
		ctx:     ctx,
		fetch:   fetch,
		release: release,
		log:     lo.Ternary(log != nil, log, logger.Default),
	}
}

// Next prepares the next element. It returns false once the sequence is
// exhausted or failed; check Err afterwards.
func (it *Iterator[T]) Next() bool {
	if it == nil || it.done {
		return false
	}

	if err := it.ctx.Err(); err != nil {
		it.finish(err)
		return false
	}

	v, ok, err := it.fetch(it.ctx)
	if err != nil {
		it.finish(err)
		return false
	}
	if !ok {
		it.finish(nil)
		return false
	}

	it.cur = v

	return true
}

// Value returns the element prepared by the last successful Next.
func (it *Iterator[T]) Value() T {
	if it == nil {
		return lo.Empty[T]()
	}

	return it.cur
}

// Err returns the error that stopped the iteration, if any.
func (it *Iterator[T]) Err() error {
	if it == nil {
		return nil
	}

	return it.err
}

// Close stops the iteration and releases the underlying resource. It is safe
// to call Close more than once; only the first call releases.
func (it *Iterator[T]) Close() error {
	if it == nil {
		return nil
	}

	it.done = true
	it.cur = lo.Empty[T]()

	return it.releaseOnce()
}

// All adapts the iterator to a range-over-func sequence. The iterator is
// closed when the loop ends, including an early break. A failure is yielded
// once as the final pair.
func (it *Iterator[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer it.closeQuietly()

		for it.Next() {
			if !yield(it.Value(), nil) {
				return
			}
		}

		if err := it.Err(); err != nil {
			yield(lo.Empty[T](), err)
		}
	}
}

func (it *Iterator[T]) finish(err error) {
	it.done = true
	it.err = err
	it.cur = lo.Empty[T]()
	it.closeQuietly()
}

// closeQuietly releases the resource, logging a release failure instead of
// returning it so it never replaces the outcome of the iteration.
func (it *Iterator[T]) closeQuietly() {
	if it == nil {
		return
	}

	if err := it.releaseOnce(); err != nil {
		it.log.Warn(it.ctx, "streampager: failed to release iterator resources: %v", err)
	}
}

func (it *Iterator[T]) releaseOnce() error {
	if it.closed {
		return nil
	}
	it.closed = true

	if it.release == nil {
		return nil
	}

	return it.release()
}

// Collect drains the iterator into a slice. Use it only for bounded results.
func Collect[T any](it *Iterator[T]) ([]T, error) {
	var ret []T
	for v, err := range it.All() {
		if err != nil {
			return nil, err
		}
		ret = append(ret, v)
	}

	return ret, nil
}

// Map returns an iterator applying fn to every element of it. Closing the
// result closes it.
func Map[T, R any](it *Iterator[T], fn func(T) (R, error)) *Iterator[R] {
	return newIterator(
		it.ctx,
		func(context.Context) (R, bool, error) {
			if !it.Next() {
				return lo.Empty[R](), false, it.Err()
			}

			v, err := fn(it.Value())
			if err != nil {
				return lo.Empty[R](), false, err
			}

			return v, true, nil
		},
		it.Close,
		it.log,
	)
}

// Keep returns an iterator yielding the elements of it for which pred
// returns true.
func Keep[T any](it *Iterator[T], pred func(T) bool) *Iterator[T] {
	return newIterator(
		it.ctx,
		func(context.Context) (T, bool, error) {
			for it.Next() {
				if v := it.Value(); pred(v) {
					return v, true, nil
				}
			}

			return lo.Empty[T](), false, it.Err()
		},
		it.Close,
		it.log,
	)
}

// Flatten returns an iterator over the elements of every slice yielded by it,
// in order. Only the current slice is held in memory.
func Flatten[T any](it *Iterator[[]T]) *Iterator[T] {
	var (
		buf []T
		pos int
	)

	return newIterator(
		it.ctx,
		func(context.Context) (T, bool, error) {
			for pos >= len(buf) {
				if !it.Next() {
					buf = nil
					return lo.Empty[T](), false, it.Err()
				}
				buf, pos = it.Value(), 0
			}

			v := buf[pos]
			pos++

			return v, true, nil
		},
		it.Close,
		it.log,
	)
}

// PageIterator is a lazy sequence of pages that tracks the offset of the next
// fetch, so the session can be resumed later via StreamingPager.WithCursor.
type PageIterator struct {
	*Iterator[Page]

	cursor *OffsetCursor
}

func newPageIterator(
	ctx context.Context,
	start *OffsetCursor,
	size int,
	fetchAt func(ctx context.Context, offset int) (Page, error),
	release func() error,
	log logger.Interface,
) *PageIterator {
	p := &PageIterator{cursor: NewOffsetCursor(start.GetOffset())}
	p.Iterator = newIterator(
		ctx,
		func(ctx context.Context) (Page, bool, error) {
			page, err := fetchAt(ctx, p.cursor.GetOffset())
			if err != nil {
				return nil, false, err
			}

			// Termination is strictly an empty fetch: a short page is still
			// yielded and followed by one more fetch.
			if len(page) == 0 {
				return nil, false, nil
			}

			p.cursor = p.cursor.advance(size)

			return page, true, nil
		},
		release,
		log,
	)

	return p
}

// Cursor returns the position of the next fetch.
func (p *PageIterator) Cursor() *OffsetCursor {
	if p == nil {
		return nil
	}

	return p.cursor
}
