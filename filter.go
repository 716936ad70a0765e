package streampager

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm/clause"
)

type (
	// Condition is a single predicate of the form "Column Operator ?" where the
	// value is always passed as a bound parameter.
	Condition struct {
		Column   string   `json:"c"`
		Operator Operator `json:"o"`
		Value    any      `json:"v"`
	}

	// Filter is a conjunction of conditions joined by AND.
	Filter []Condition

	// Filters is a disjunction of filters joined by OR, i.e. a predicate in
	// disjunctive normal form:
	//
	//	Filters = F1 OR F2 ... OR Fn, where Fi = Ci1 AND Ci2 ... AND Cim.
	Filters []Filter
)

// Where builds Filters holding a single condition.
//
// Usage:
//
//	streampager.Where("age", streampager.OperatorGT, 25)
func Where(column string, operator Operator, value any) Filters {
	return Filters{{{Column: column, Operator: operator, Value: value}}}
}

// And appends a condition to every filter of the disjunction.
func (f Filters) And(column string, operator Operator, value any) Filters {
	cond := Condition{Column: column, Operator: operator, Value: value}
	if len(f) == 0 {
		return Filters{{cond}}
	}

	return lo.Map(f, func(filter Filter, _ int) Filter {
		return append(filter[:len(filter):len(filter)], cond)
	})
}

// Or appends another conjunction to the disjunction.
func (f Filters) Or(conditions ...Condition) Filters {
	if len(conditions) == 0 {
		return f
	}

	return append(f[:len(f):len(f)], Filter(conditions))
}

// IsEmpty returns true if the filters match every record.
func (f Filters) IsEmpty() bool {
	return !lo.SomeBy(f, func(filter Filter) bool { return len(filter) > 0 })
}

func (c Condition) validate() error {
	if !c.Operator.Valid() {
		return fmt.Errorf("invalid filter operator '%s'", c.Operator)
	}

	if !isSafeIdentifier(c.Column) {
		return fmt.Errorf("filter column name contains forbidden symbols '%s'", c.Column)
	}

	return nil
}

func (f Filters) validate() error {
	for _, filter := range f {
		for _, cond := range filter {
			if err := cond.validate(); err != nil {
				return err
			}
		}
	}

	return nil
}

// toGORMExpression converts a condition into an SQL condition
// "Column Operator ?" represented as a clause.Expression.
//
// Example:
//
//	Condition = { Column: "age", Operator: ">", Value: 25}
//
// Result:
//
//	"age > ?" with vars [25]
func (c Condition) toGORMExpression() clause.Expression {
	sqlClause, arg := c.toSQLClause()

	return clause.Expr{
		SQL:  sqlClause,
		Vars: []any{arg},
	}
}

// toSQLClause converts a condition to "Column Operator ?" and the value
// for the placeholder.
func (c Condition) toSQLClause() (string, driver.Value) {
	return fmt.Sprintf("%s %s ?", c.Column, c.Operator), parseAnyValue(c.Value)
}

// match evaluates the condition against an in-memory record.
func (c Condition) match(rec Record) bool {
	v, ok := rec[c.Column]
	if !ok || v == nil {
		return false
	}

	res, err := compareValues(v, parseAnyValue(c.Value))
	if err != nil {
		return false
	}

	return c.Operator.compare(res)
}

func parseAnyValue(v any) any {
	// Try parsing a value as time.Time. If it succeeds, return time.Time.
	// Otherwise return the original value.
	fnParseBytesToTimeOrValue := func(vBytes []byte) any {
		dst := time.Time{}
		err := dst.UnmarshalText(vBytes)
		if err == nil {
			return dst
		}

		return v
	}

	switch vt := v.(type) {
	case string:
		return fnParseBytesToTimeOrValue([]byte(vt))
	case []byte:
		return fnParseBytesToTimeOrValue(vt)
	default:
		return v
	}
}

// toGORMExpression converts a filter (C1, C2, C3) into a gorm expression
// "C1 AND C2 AND C3".
func (f Filter) toGORMExpression() clause.Expression {
	andExpressions := make([]clause.Expression, 0, len(f))
	for _, cond := range f {
		andExpressions = append(andExpressions, cond.toGORMExpression())
	}

	if len(andExpressions) == 1 {
		return andExpressions[0]
	} else if len(andExpressions) > 1 {
		return clause.And(andExpressions...)
	}

	return nil
}

// toSQLClause converts a filter (C1, C2, C3) into "(C1 AND C2 AND C3)" with the
// corresponding placeholder values.
//
// Example:
//
//	Filter = {
//		{Column: "id", Operator: ">", Value: 5},
//		{Column: "name", Operator: "<", Value: "abc"}
//	}
//
// Result:
//
//	("(id > ? AND name < ?)", [5, "abc"])
func (f Filter) toSQLClause() (string, []driver.Value) {
	andClauses := make([]string, 0, len(f))
	andValues := make([]driver.Value, 0, len(f))

	for _, cond := range f {
		andClause, andValue := cond.toSQLClause()
		andClauses = append(andClauses, andClause)
		andValues = append(andValues, andValue)
	}

	if len(andClauses) >= 1 {
		return fmt.Sprintf("(%s)", strings.Join(andClauses, " AND ")), andValues
	}

	return "", nil
}

func (f Filter) match(rec Record) bool {
	return lo.EveryBy(f, func(c Condition) bool { return c.match(rec) })
}

// toGORMExpression joins the expressions of every filter with OR.
func (f Filters) toGORMExpression() clause.Expression {
	orExpressions := make([]clause.Expression, 0, len(f))

	for _, filter := range f {
		andExpressions := filter.toGORMExpression()
		if andExpressions == nil {
			continue
		}

		orExpressions = append(orExpressions, andExpressions)
	}

	if len(orExpressions) == 1 {
		return orExpressions[0]
	} else if len(orExpressions) > 1 {
		return clause.Or(orExpressions...)
	}

	return nil
}

// toSQLClause joins the clauses of every filter with OR.
//
// Example:
//
//	Filters = {
//		{{Column: "id", Operator: "<", Value: 10}},
//		{{Column: "id", Operator: "=", Value: 10}, {Column: "name", Operator: "<", Value: "abc"}},
//	}
//
// Result:
//
//	("((id < ?) OR (id = ? AND name < ?))", [10, 10, "abc"])
func (f Filters) toSQLClause() (string, []driver.Value) {
	orClauses := make([]string, 0, len(f))
	values := make([]driver.Value, 0, len(f))

	for _, filter := range f {
		orClause, orValues := filter.toSQLClause()
		if orClause == "" {
			continue
		}

		orClauses = append(orClauses, orClause)
		values = append(values, orValues...)
	}

	if len(orClauses) >= 1 {
		return fmt.Sprintf("(%s)", strings.Join(orClauses, " OR ")), values
	}

	return "TRUE", nil
}

// Match evaluates the filters against an in-memory record. Empty filters
// match everything. Use it with Filter on an iterator when the predicate
// cannot be pushed down to the source.
func (f Filters) Match(rec Record) bool {
	if f.IsEmpty() {
		return true
	}

	return lo.SomeBy(f, func(filter Filter) bool {
		return len(filter) > 0 && filter.match(rec)
	})
}
