package streampager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/samber/lo"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newGORMMySQLMock() (string, *gorm.DB, sqlmock.Sqlmock, error) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		return "", nil, nil, err
	}

	dialector := mysql.New(mysql.Config{
		Conn:                      mockDB,
		SkipInitializeWithVersion: true,
	})

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return "", nil, nil, err
	}

	return "mysql", db.Debug(), mock, nil
}

func newGORMPostgresMock() (string, *gorm.DB, sqlmock.Sqlmock, error) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		return "", nil, nil, err
	}

	dialector := postgres.New(postgres.Config{
		Conn: mockDB,
	})

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return "", nil, nil, err
	}

	return "postgres", db.Debug(), mock, nil
}

var sqlMockFnList = []func() (string, *gorm.DB, sqlmock.Sqlmock, error){
	newGORMMySQLMock,
	newGORMPostgresMock,
}

// placeholder matches a bound parameter in both dialects.
const placeholder = `(?:\$\d+|\?)`

// tableRe matches a quoted table name in both dialects.
func tableRe(name string) string {
	return fmt.Sprintf("[`'\"]%s[`'\"]", name)
}

// makeRecords builds n records with ids 1..n and ages 20+id.
func makeRecords(n int) []Record {
	return lo.Times(n, func(i int) Record {
		return Record{"id": int64(i + 1), "age": int64(21 + i)}
	})
}

func recordIDs(records []Record) []int64 {
	return lo.Map(records, func(rec Record, _ int) int64 {
		f, err := ToFloat64(rec["id"])
		if err != nil {
			panic(err)
		}
		return int64(f)
	})
}

type fetchCall struct {
	limit  int
	offset int
}

// fakeSource is an in-memory Source that tracks every acquired resource.
type fakeSource struct {
	mu sync.Mutex

	rows []Record

	connectErr       error
	// failConnectTimes limits connectErr to the first N connects; 0 fails
	// every connect.
	failConnectTimes int
	failedConnects   int
	rowsErr          error
	fetchErr         error
	closeErr         error

	connectCalls int
	opened       int
	closed       int
	rowsOpened   int
	rowsClosed   int
	fetches      []fetchCall
}

func newFakeSource(rows []Record) *fakeSource {
	return &fakeSource{rows: rows}
}

func (s *fakeSource) Connect(ctx context.Context) (Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connectCalls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.connectErr != nil {
		if s.failConnectTimes == 0 || s.failedConnects < s.failConnectTimes {
			s.failedConnects++
			return nil, s.connectErr
		}
	}
	s.opened++

	return &fakeConn{src: s}, nil
}

func (s *fakeSource) openConns() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.opened - s.closed
}

func (s *fakeSource) fetchLog() []fetchCall {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]fetchCall(nil), s.fetches...)
}

func (s *fakeSource) selectRows(q Query) []Record {
	matched := lo.Filter(s.rows, func(rec Record, _ int) bool {
		return q.Where.Match(rec)
	})
	if len(q.Columns) == 0 {
		return matched
	}

	return lo.Map(matched, func(rec Record, _ int) Record {
		return lo.PickByKeys(rec, q.Columns)
	})
}

type fakeConn struct {
	src    *fakeSource
	closed bool
}

func (c *fakeConn) Rows(_ context.Context, q Query) (Rows, error) {
	c.src.mu.Lock()
	defer c.src.mu.Unlock()

	if c.src.rowsErr != nil {
		return nil, c.src.rowsErr
	}
	c.src.rowsOpened++

	return &fakeRows{src: c.src, rows: c.src.selectRows(q), pos: -1}, nil
}

func (c *fakeConn) Fetch(_ context.Context, q Query, limit, offset int) ([]Record, error) {
	c.src.mu.Lock()
	defer c.src.mu.Unlock()

	c.src.fetches = append(c.src.fetches, fetchCall{limit: limit, offset: offset})
	if c.src.fetchErr != nil {
		return nil, c.src.fetchErr
	}

	return lo.Subset(c.src.selectRows(q), offset, uint(limit)), nil
}

func (c *fakeConn) Close() error {
	c.src.mu.Lock()
	defer c.src.mu.Unlock()

	if c.closed {
		panic("connection closed twice")
	}
	c.closed = true
	c.src.closed++

	return c.src.closeErr
}

type fakeRows struct {
	src  *fakeSource
	rows []Record
	pos  int
}

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos < len(r.rows)
}

func (r *fakeRows) Record() (Record, error) {
	return r.rows[r.pos], nil
}

func (r *fakeRows) Err() error {
	return nil
}

func (r *fakeRows) Close() error {
	r.src.mu.Lock()
	defer r.src.mu.Unlock()

	r.src.rowsClosed++

	return nil
}

// recordingLogger is a gorm logger keeping warnings for assertions.
type recordingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) LogMode(logger.LogLevel) logger.Interface { return l }

func (l *recordingLogger) Info(context.Context, string, ...interface{}) {}

func (l *recordingLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.warns = append(l.warns, fmt.Sprintf(msg, args...))
}

func (l *recordingLogger) Error(context.Context, string, ...interface{}) {}

func (l *recordingLogger) Trace(context.Context, time.Time, func() (string, int64), error) {}

func (l *recordingLogger) warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]string(nil), l.warns...)
}
