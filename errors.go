package streampager

import "errors"

var (
	// ErrInvalidArgument is returned for non-positive batch/page sizes and
	// malformed queries. It is always returned before any fetch is issued.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConnectionFailure wraps errors returned by Source.Connect.
	ErrConnectionFailure = errors.New("connection failure")

	// ErrEmptyAggregationInput is the "no data" result of an aggregation over
	// an empty sequence.
	ErrEmptyAggregationInput = errors.New("empty aggregation input")
)
