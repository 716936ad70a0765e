package streampager

// Operator defines a comparison operator for filtering by column.
// Used in Condition, always against a bound placeholder.
type Operator string

const (
	OperatorEq  Operator = "="
	OperatorNeq Operator = "<>"
	OperatorGT  Operator = ">"
	OperatorGTE Operator = ">="
	OperatorLT  Operator = "<"
	OperatorLTE Operator = "<="
)

func (o Operator) Valid() bool {
	switch o {
	case OperatorEq, OperatorNeq, OperatorGT, OperatorGTE, OperatorLT, OperatorLTE:
		return true
	default:
		return false
	}
}

// compare applies the operator to the result of a three-way comparison.
func (o Operator) compare(cmp int) bool {
	switch o {
	case OperatorEq:
		return cmp == 0
	case OperatorNeq:
		return cmp != 0
	case OperatorGT:
		return cmp > 0
	case OperatorGTE:
		return cmp >= 0
	case OperatorLT:
		return cmp < 0
	case OperatorLTE:
		return cmp <= 0
	default:
		return false
	}
}
