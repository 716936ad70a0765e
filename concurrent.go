package streampager

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// FetchConcurrently runs independent read-only queries at the same time, each
// on its own connection, and returns their results in argument order. The
// first failure cancels the remaining queries.
func FetchConcurrently(ctx context.Context, source Source, queries ...Query) ([][]Record, error) {
	results := make([][]Record, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			rows, err := NewStreamingPager(source, q).StreamRows(gctx)
			if err != nil {
				return err
			}

			res, err := Collect(rows)
			if err != nil {
				return err
			}

			results[i] = res

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}
