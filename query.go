package streampager

import (
	"database/sql/driver"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NoLimit passed as a limit to Query.ToSQL renders an unbounded statement.
const NoLimit = -1

// Query describes what a Source should select. It never carries raw SQL:
// identifiers are validated against a safe charset and every value is bound.
type Query struct {
	// Table to select from.
	Table string
	// Columns to project. Empty means all columns.
	Columns []string
	// Where is an optional predicate, pushed down to the source.
	Where Filters
	// Sort defines the row order. OFFSET pagination relies on it being stable.
	Sort Orderings
}

// WithColumns returns a copy of the query projecting the given columns.
func (q Query) WithColumns(columns ...string) Query {
	q.Columns = append([]string(nil), columns...)
	return q
}

func (q Query) validate() error {
	if !isSafeIdentifier(q.Table) {
		return fmt.Errorf("%w: table name is empty or contains forbidden symbols '%s'", ErrInvalidArgument, q.Table)
	}

	for _, column := range q.Columns {
		if !isSafeIdentifier(column) {
			return fmt.Errorf("%w: column name contains forbidden symbols '%s'", ErrInvalidArgument, column)
		}
	}

	if err := q.Sort.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	if err := q.Where.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	return nil
}

// ToSQL renders the parameterized statement and its bound values. A limit of
// NoLimit renders the unbounded form.
//
// Example:
//
//	("SELECT id, age FROM users WHERE ((age > ?)) ORDER BY id ASC LIMIT ? OFFSET ?", [25, 10, 20])
func (q Query) ToSQL(limit, offset int) (string, []driver.Value) {
	var (
		sb   strings.Builder
		args []driver.Value
	)

	sb.WriteString("SELECT ")
	sb.WriteString(lo.Ternary(len(q.Columns) == 0, "*", strings.Join(q.Columns, ", ")))
	sb.WriteString(" FROM ")
	sb.WriteString(q.Table)

	if !q.Where.IsEmpty() {
		where, whereArgs := q.Where.toSQLClause()
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
		args = append(args, whereArgs...)
	}

	if len(q.Sort) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(q.Sort.ToSQL())
	}

	if limit != NoLimit {
		sb.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, int64(limit), int64(offset))
	}

	return sb.String(), args
}

// Apply applies table, projection, predicate and ordering to a gorm query.
func (q Query) Apply(db *gorm.DB) *gorm.DB {
	db = db.Table(q.Table)
	if len(q.Columns) > 0 {
		db = db.Select(q.Columns)
	}

	if exp := q.Where.toGORMExpression(); exp != nil {
		db = db.Clauses(clause.Where{Exprs: []clause.Expression{exp}})
	}

	return q.Sort.Apply(db)
}

// boundLimitClause is the clause name boundLimit is stored under. It differs
// from "LIMIT" so that no dialect ClauseBuilder registered for LIMIT (sqlite
// has one that only understands clause.Limit) gets to render it.
const boundLimitClause = "BOUND LIMIT"

// boundLimit renders "LIMIT ? OFFSET ?" with both values as bound parameters.
// gorm's own clause.Limit inlines the numbers into the statement text.
type boundLimit struct {
	Limit  int
	Offset int
}

// Name implements clause.Interface.
func (l boundLimit) Name() string {
	return boundLimitClause
}

// Build implements clause.Interface.
func (l boundLimit) Build(builder clause.Builder) {
	builder.WriteString("LIMIT ")
	builder.AddVar(builder, l.Limit)
	builder.WriteString(" OFFSET ")
	builder.AddVar(builder, l.Offset)
}

// MergeClause implements clause.Interface.
func (l boundLimit) MergeClause(c *clause.Clause) {
	c.Name = ""
	c.Expression = l
}

// ModifyStatement implements gorm.StatementModifier. It stores the clause and
// places it right after ORDER BY in the SELECT build order.
func (l boundLimit) ModifyStatement(stmt *gorm.Statement) {
	c := stmt.Clauses[boundLimitClause]
	l.MergeClause(&c)
	stmt.Clauses[boundLimitClause] = c

	stmt.BuildClauses = withBoundLimit(stmt.BuildClauses)
}

// withBoundLimit returns the SELECT build order with the bound limit slotted
// in where LIMIT would go. An empty order means gorm's default query order.
func withBoundLimit(order []string) []string {
	if slices.Contains(order, boundLimitClause) {
		return order
	}
	if len(order) == 0 {
		order = []string{"SELECT", "FROM", "WHERE", "GROUP BY", "ORDER BY", "LIMIT", "FOR"}
	}

	at := slices.Index(order, "ORDER BY") + 1
	if at == 0 {
		at = len(order)
	}

	return slices.Insert(slices.Clone(order), at, boundLimitClause)
}

var (
	_ clause.Interface        = boundLimit{}
	_ gorm.StatementModifier = boundLimit{}
)
