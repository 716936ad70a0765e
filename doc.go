// Package streampager provides memory-bounded row streaming and LIMIT/OFFSET
// pagination over a queryable data source.
//
// Overview
//
// A StreamingPager wraps a Source and a Query and exposes them as lazy
// sequences:
//   - StreamRows: one unbounded query, one record at a time.
//   - StreamBatches: LIMIT/OFFSET batches on a single connection.
//   - StreamRowsFlattened: the rows of StreamBatches, one batch in memory.
//   - LazyPaginate: LIMIT/OFFSET pages, one connection per page.
//   - StreamScalarField and ComputeStreamingAverage: single-column projection
//     and a constant-memory mean.
//
// Key concepts
//   - Iterator: pull-based Next/Value/Err/Close sequence. Resources are
//     released on exhaustion, on error, on Close and when a range loop over
//     All is left early.
//   - Query: table, projection, Filters and Orderings. Identifiers are
//     validated, values are always bound parameters, LIMIT and OFFSET included.
//   - OffsetCursor: position of a paged session, exportable as a token to
//     resume later.
//   - GORMSource: Source implementation over gorm.
//
// OFFSET pagination is exact only for a deterministic ordering over a source
// that is not written to during the session.
package streampager
