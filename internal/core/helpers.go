package core

import (
	"fmt"
	"strings"
	"time"
)

// WhereBuilder assembles a parameterized WHERE clause. Placeholders are
// numbered in the order conditions are added; empty values are skipped so
// optional filters can be added unconditionally.
type WhereBuilder struct {
	conditions []string
	args       []any
	argIndex   int
}

// NewWhereBuilder returns an empty builder whose first placeholder is $1.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{argIndex: 1}
}

// Add appends "col = $n" unless val is empty.
func (w *WhereBuilder) Add(col, val string) {
	if val == "" {
		return
	}
	w.AddExpr(col+" = %s", val)
}

// AddExpr appends expr with its %s replaced by the next placeholder.
// Empty values (see isEmptyArg) are skipped.
func (w *WhereBuilder) AddExpr(expr string, val any) {
	if isEmptyArg(val) {
		return
	}
	w.conditions = append(w.conditions, fmt.Sprintf(expr, fmt.Sprintf("$%d", w.argIndex)))
	w.args = append(w.args, val)
	w.argIndex++
}

// AddTimestampRange appends inclusive lower and upper bounds on col.
func (w *WhereBuilder) AddTimestampRange(col string, start, end any) {
	w.AddExpr(col+" >= %s", start)
	w.AddExpr(col+" <= %s", end)
}

// NextArgIndex returns the number the next placeholder will use, for
// LIMIT/OFFSET parameters appended after the WHERE clause.
func (w *WhereBuilder) NextArgIndex() int {
	return w.argIndex
}

// Build returns " WHERE ..." and its arguments, or "" and nil when no
// condition was added.
func (w *WhereBuilder) Build() (string, []any) {
	if len(w.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(w.conditions, " AND "), w.args
}

func isEmptyArg(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []string:
		return len(x) == 0
	case time.Time:
		return x.IsZero()
	case *time.Time:
		return x == nil || x.IsZero()
	}
	return false
}
