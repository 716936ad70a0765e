package streampager

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm/logger"
)

// RawStreamConfig is intended for API payloads and config files. For proper
// code generation, inline it:
//
//	type ExportJob struct {
//	    Paging RawStreamConfig `json:",inline"`
//	}
type RawStreamConfig struct {
	// BatchSize - number of records per fetch. Zero selects DefaultBatchSize.
	BatchSize int `json:"batchSize"`
	// StartToken - base64-encoded cursor obtained via OffsetCursor.String().
	// If empty, streaming starts at the beginning of the dataset.
	StartToken string `json:"startToken"`
	// Sort - orderings in the "alias asc|desc" format, resolved via ColumnMapping.
	Sort []string `json:"sort"`
}

// Decode converts RawStreamConfig into a *StreamingPager over source and query
// and the normalized batch size. Sort, when set, replaces query.Sort.
func (c RawStreamConfig) Decode(source Source, query Query, mapping ColumnMapping) (*StreamingPager, int, error) {
	size, err := NormalizeSize(c.BatchSize)
	if err != nil {
		return nil, 0, err
	}

	cursor, err := DecodeOffsetCursor(c.StartToken)
	if err != nil {
		return nil, 0, err
	}

	pager := NewStreamingPager(source, query).WithCursor(cursor)
	if len(c.Sort) > 0 {
		sort, err := ParseSort(c.Sort, mapping)
		if err != nil {
			return nil, 0, err
		}
		pager = pager.WithSubstitutedSort(sort...)
	}

	return pager, size, nil
}

// StreamingPager turns a Query over a Source into memory-bounded lazy
// sequences: single rows, fixed-size batches or whole pages.
//
// OFFSET pagination partitions the result set exactly only if the ordering is
// deterministic and the source is not written to while a session runs. No
// snapshot isolation is attempted.
type StreamingPager struct {
	source Source
	query  Query
	cursor *OffsetCursor
	log    logger.Interface
}

func NewStreamingPager(source Source, query Query) *StreamingPager {
	return &StreamingPager{
		source: source,
		query:  query,
	}
}

// WithSource sets the source explicitly.
func (p *StreamingPager) WithSource(source Source) *StreamingPager {
	if p == nil {
		p = new(StreamingPager)
	}

	p.source = source

	return p
}

// WithQuery replaces the query.
func (p *StreamingPager) WithQuery(query Query) *StreamingPager {
	if p == nil {
		p = new(StreamingPager)
	}

	p.query = query

	return p
}

// WithWhere adds conditions to the query predicate with AND.
func (p *StreamingPager) WithWhere(column string, operator Operator, value any) *StreamingPager {
	if p == nil {
		p = new(StreamingPager)
	}

	p.query.Where = p.query.Where.And(column, operator, value)

	return p
}

// WithSubstitutedSort resets previous orderings and applies the provided ones.
func (p *StreamingPager) WithSubstitutedSort(orderBy ...OrderBy) *StreamingPager {
	if p == nil {
		p = new(StreamingPager)
	}

	p.query.Sort = nil

	return p.WithSort(orderBy...)
}

// WithSort appends sort orderings without overwriting existing ones.
// A column met again moves to the new position with the new direction.
func (p *StreamingPager) WithSort(orderBy ...OrderBy) *StreamingPager {
	if p == nil {
		p = new(StreamingPager)
	}

	p.query.Sort = p.query.Sort.withOrderBy(orderBy...)

	return p
}

// WithCursor sets the offset batched and paged sessions start from.
func (p *StreamingPager) WithCursor(cursor *OffsetCursor) *StreamingPager {
	if p == nil {
		p = new(StreamingPager)
	}

	p.cursor = cursor

	return p
}

// WithLogger sets the logger used for warnings and release failures. By
// default the source's logger is used when it exposes one.
func (p *StreamingPager) WithLogger(log logger.Interface) *StreamingPager {
	if p == nil {
		p = new(StreamingPager)
	}

	p.log = log

	return p
}

// GetQuery returns the query as it will be issued.
func (p *StreamingPager) GetQuery() Query {
	if p == nil {
		return Query{}
	}

	return p.query
}

// GetCursor returns the start cursor stored in the pager as-is.
func (p *StreamingPager) GetCursor() *OffsetCursor {
	if p == nil {
		return nil
	}

	return p.cursor
}

// StreamRows issues one unbounded query on a dedicated connection and yields
// records one at a time. The connection is held until the iterator is
// exhausted or closed.
func (p *StreamingPager) StreamRows(ctx context.Context) (*Iterator[Record], error) {
	err := p.validate()
	if err != nil {
		return nil, fmt.Errorf("cannot stream rows: %w", err)
	}

	return p.streamRows(ctx, p.query)
}

// StreamBatches fetches LIMIT batchSize OFFSET offset on one connection held
// for the whole session, starting at the pager cursor and advancing by
// batchSize. The stream ends on the first empty fetch, so a short final batch
// is still yielded and costs one extra round-trip.
func (p *StreamingPager) StreamBatches(ctx context.Context, batchSize int) (*PageIterator, error) {
	err := p.validateSized(batchSize)
	if err != nil {
		return nil, fmt.Errorf("cannot stream batches: %w", err)
	}

	q := p.query
	p.warnUnordered(ctx, q)

	conn, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}

	return newPageIterator(
		ctx,
		p.cursor,
		batchSize,
		func(ctx context.Context, offset int) (Page, error) {
			return conn.Fetch(ctx, q, batchSize, offset)
		},
		conn.Close,
		p.logger(),
	), nil
}

// StreamRowsFlattened yields the rows of StreamBatches one at a time, holding
// at most one batch in memory.
func (p *StreamingPager) StreamRowsFlattened(ctx context.Context, batchSize int) (*Iterator[Record], error) {
	batches, err := p.StreamBatches(ctx, batchSize)
	if err != nil {
		return nil, err
	}

	return Flatten(batches.Iterator), nil
}

// LazyPaginate follows the same OFFSET contract as StreamBatches but acquires
// and releases a connection for every page, so nothing is held between pulls.
func (p *StreamingPager) LazyPaginate(ctx context.Context, pageSize int) (*PageIterator, error) {
	err := p.validateSized(pageSize)
	if err != nil {
		return nil, fmt.Errorf("cannot paginate: %w", err)
	}

	q := p.query
	p.warnUnordered(ctx, q)

	return newPageIterator(
		ctx,
		p.cursor,
		pageSize,
		func(ctx context.Context, offset int) (Page, error) {
			conn, err := p.connect(ctx)
			if err != nil {
				return nil, err
			}
			defer p.closeQuietly(ctx, conn)

			return conn.Fetch(ctx, q, pageSize, offset)
		},
		nil,
		p.logger(),
	), nil
}

// StreamScalarField streams the values of a single column.
func (p *StreamingPager) StreamScalarField(ctx context.Context, field string) (*Iterator[any], error) {
	err := p.validate()
	if err != nil {
		return nil, fmt.Errorf("cannot stream field: %w", err)
	}

	q := p.query.WithColumns(field)
	if err = q.validate(); err != nil {
		return nil, fmt.Errorf("cannot stream field: %w", err)
	}

	rows, err := p.streamRows(ctx, q)
	if err != nil {
		return nil, err
	}

	return Map(rows, func(rec Record) (any, error) {
		v, ok := rec[field]
		if !ok {
			return nil, fmt.Errorf("field '%s' is missing from the record", field)
		}

		return v, nil
	}), nil
}

// AverageField computes the mean of a numeric column in a single streaming
// pass. Returns ErrEmptyAggregationInput when there is nothing to average.
func (p *StreamingPager) AverageField(ctx context.Context, field string) (float64, error) {
	values, err := p.StreamScalarField(ctx, field)
	if err != nil {
		return 0, err
	}

	return ComputeStreamingAverage(values.All())
}

func (p *StreamingPager) streamRows(ctx context.Context, q Query) (*Iterator[Record], error) {
	conn, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := conn.Rows(ctx, q)
	if err != nil {
		p.closeQuietly(ctx, conn)
		return nil, err
	}

	return newIterator(
		ctx,
		func(context.Context) (Record, bool, error) {
			if !rows.Next() {
				return nil, false, rows.Err()
			}

			rec, err := rows.Record()
			if err != nil {
				return nil, false, err
			}

			return rec, true, nil
		},
		func() error {
			return errors.Join(rows.Close(), conn.Close())
		},
		p.logger(),
	), nil
}

func (p *StreamingPager) connect(ctx context.Context) (Conn, error) {
	conn, err := p.source.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailure, err)
	}

	return conn, nil
}

func (p *StreamingPager) closeQuietly(ctx context.Context, conn Conn) {
	if err := conn.Close(); err != nil {
		p.logger().Warn(ctx, "streampager: failed to close connection: %v", err)
	}
}

func (p *StreamingPager) warnUnordered(ctx context.Context, q Query) {
	if len(q.Sort) == 0 {
		p.logger().Warn(ctx, "streampager: paginating '%s' without ordering, OFFSET pages may overlap or skip rows", q.Table)
	}
}

func (p *StreamingPager) logger() logger.Interface {
	if p.log != nil {
		return p.log
	}

	return sourceLogger(p.source)
}

func (p *StreamingPager) validate() error {
	if p == nil {
		return fmt.Errorf("%w: streaming pager is nil", ErrInvalidArgument)
	}

	if p.source == nil {
		return fmt.Errorf("%w: source is not set", ErrInvalidArgument)
	}

	return p.query.validate()
}

func (p *StreamingPager) validateSized(size int) error {
	if err := validateSize(size); err != nil {
		return err
	}

	return p.validate()
}

// sourceLogger returns the logger exposed by a source, if any.
func sourceLogger(source Source) logger.Interface {
	if l, ok := source.(interface{ Logger() logger.Interface }); ok {
		if log := l.Logger(); log != nil {
			return log
		}
	}

	return logger.Default
}
