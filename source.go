package streampager

import "context"

type (
	// Source is the external collaborator the pager reads from. It only needs
	// to hand out connections; pooling, if any, is its own business.
	Source interface {
		Connect(ctx context.Context) (Conn, error)
	}

	// Conn is one acquired connection. It is used by a single goroutine.
	Conn interface {
		// Rows issues a single unbounded query and returns a forward-only cursor.
		Rows(ctx context.Context, q Query) (Rows, error)
		// Fetch issues one bounded query: LIMIT limit OFFSET offset, both bound.
		Fetch(ctx context.Context, q Query, limit, offset int) ([]Record, error)
		// Close releases the connection.
		Close() error
	}

	// Rows is a forward-only row cursor opened by Conn.Rows.
	Rows interface {
		Next() bool
		Record() (Record, error)
		Err() error
		Close() error
	}
)
