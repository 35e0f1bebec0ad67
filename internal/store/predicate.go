package store

import (
	"fmt"
	"strings"
	"time"
)

// Op is a comparison operator supported by both backends.
type Op string

const (
	OpEq Op = "="
	OpLt Op = "<"
	OpGt Op = ">"
)

// Cond is a single column comparison.
type Cond struct {
	Column string
	Op     Op
	Value  any
}

// Predicate is a conjunction of column conditions, composed per query. The
// engine conjoins convention filters (soft-deletion, ownership) onto the
// caller's predicate before it reaches a backend.
type Predicate struct {
	conds []Cond
}

// Eq matches rows where col equals v.
func Eq(col string, v any) Predicate {
	return Predicate{conds: []Cond{{Column: col, Op: OpEq, Value: v}}}
}

// Lt matches rows where col is strictly less than v.
func Lt(col string, v any) Predicate {
	return Predicate{conds: []Cond{{Column: col, Op: OpLt, Value: v}}}
}

// Gt matches rows where col is strictly greater than v.
func Gt(col string, v any) Predicate {
	return Predicate{conds: []Cond{{Column: col, Op: OpGt, Value: v}}}
}

// All matches every row. Convention filters still apply.
func All() Predicate { return Predicate{} }

// And returns the conjunction of p and qs.
func And(p Predicate, qs ...Predicate) Predicate {
	out := Predicate{conds: append([]Cond(nil), p.conds...)}
	for _, q := range qs {
		out.conds = append(out.conds, q.conds...)
	}
	return out
}

// Conds returns the conditions of p in composition order.
func (p Predicate) Conds() []Cond { return p.conds }

// SQL renders p as a WHERE clause body with $n placeholders starting at
// argOffset+1, returning the clause and its arguments. An empty predicate
// renders to "TRUE".
func (p Predicate) SQL(argOffset int) (string, []any) {
	if len(p.conds) == 0 {
		return "TRUE", nil
	}
	parts := make([]string, 0, len(p.conds))
	args := make([]any, 0, len(p.conds))
	for _, c := range p.conds {
		args = append(args, c.Value)
		parts = append(parts, fmt.Sprintf("%s %s $%d", c.Column, c.Op, argOffset+len(args)))
	}
	return strings.Join(parts, " AND "), args
}

// Matches evaluates p against the entity described by d. Used by the memory
// backend; the Postgres backend renders SQL instead.
func (p Predicate) Matches(d *Descriptor, e Entity) bool {
	vals := d.Values(e)
	for _, c := range p.conds {
		i := d.columnIndex(c.Column)
		if i < 0 {
			return false
		}
		if !condHolds(c, vals[i]) {
			return false
		}
	}
	return true
}

func condHolds(c Cond, got any) bool {
	// Nullable timestamps come through as *time.Time.
	if tp, ok := got.(*time.Time); ok {
		if tp == nil {
			return false
		}
		got = *tp
	}
	want := c.Value
	if tp, ok := want.(*time.Time); ok {
		if tp == nil {
			return false
		}
		want = *tp
	}
	switch c.Op {
	case OpEq:
		if gt, ok := got.(time.Time); ok {
			wt, ok := want.(time.Time)
			return ok && gt.Equal(wt)
		}
		return got == want
	case OpLt, OpGt:
		gt, gok := got.(time.Time)
		wt, wok := want.(time.Time)
		if !gok || !wok {
			return false
		}
		if c.Op == OpLt {
			return gt.Before(wt)
		}
		return gt.After(wt)
	}
	return false
}
