package streampager

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GORMSource is a Source backed by a *gorm.DB. Every Connect checks out one
// connection from the underlying database/sql pool, so the one connection per
// page pattern of LazyPaginate costs a pool round-trip rather than a reconnect.
type GORMSource struct {
	db *gorm.DB
}

func NewGORMSource(db *gorm.DB) *GORMSource {
	return &GORMSource{db: db}
}

// Logger returns the logger configured on the wrapped *gorm.DB.
func (s *GORMSource) Logger() logger.Interface {
	if s == nil || s.db == nil || s.db.Logger == nil {
		return logger.Default
	}

	return s.db.Logger
}

// Connect implements Source.
func (s *GORMSource) Connect(ctx context.Context) (Conn, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm source is not initialized")
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return nil, err
	}

	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, err
	}

	// Pin a session to the checked out connection. Every query chained from
	// it reuses Statement.ConnPool.
	tx := s.db.Session(&gorm.Session{Context: ctx, NewDB: true})
	tx.Statement.ConnPool = conn

	return &gormConn{db: tx, conn: conn}, nil
}

type gormConn struct {
	db   *gorm.DB
	conn *sql.Conn
}

// Rows implements Conn.
func (c *gormConn) Rows(ctx context.Context, q Query) (Rows, error) {
	rows, err := q.Apply(c.db.WithContext(ctx)).Rows()
	if err != nil {
		return nil, err
	}

	return &gormRows{db: c.db, rows: rows}, nil
}

// Fetch implements Conn.
func (c *gormConn) Fetch(ctx context.Context, q Query, limit, offset int) ([]Record, error) {
	var page []Record

	err := q.Apply(c.db.WithContext(ctx)).
		Clauses(boundLimit{Limit: limit, Offset: offset}).
		Find(&page).Error
	if err != nil {
		return nil, err
	}

	return page, nil
}

// Close implements Conn. It returns the connection to the pool.
func (c *gormConn) Close() error {
	return c.conn.Close()
}

type gormRows struct {
	db   *gorm.DB
	rows *sql.Rows
}

func (r *gormRows) Next() bool {
	return r.rows.Next()
}

func (r *gormRows) Record() (Record, error) {
	rec := make(Record)
	if err := r.db.ScanRows(r.rows, &rec); err != nil {
		return nil, err
	}

	return rec, nil
}

func (r *gormRows) Err() error {
	return r.rows.Err()
}

func (r *gormRows) Close() error {
	return r.rows.Close()
}

var (
	_ Source = (*GORMSource)(nil)
	_ Conn   = (*gormConn)(nil)
	_ Rows   = (*gormRows)(nil)
)
