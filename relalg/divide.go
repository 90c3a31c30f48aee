package relalg

import (
	"github.com/duro-db/duro/rel"
	"github.com/duro-db/duro/table"
)

// Divide builds the virtual table for `divide(dividend, divisor, mediator)`,
// the classic small-divide formula: project(dividend, X) minus
// project((project(dividend, X) join divisor) minus mediator, X), where X is
// the dividend's attributes not shared with the divisor. Per §4.7 the
// result's key set is the dividend's, unchanged — overridden below since
// the composed pipeline's own inferred keys (from Minus, which propagates
// its first operand's) already happen to equal it, but the override keeps
// the contract explicit regardless of the composition's shape.
func Divide(dividend, divisor, mediator table.Table) (table.Table, error) {
	x := complement(dividend.RelType().Tuple, divisor.RelType().Tuple.AttrNames())
	projDividend, err := Project(dividend, x)
	if err != nil {
		return nil, err
	}
	joined, err := Join(projDividend, divisor)
	if err != nil {
		return nil, err
	}
	excluded, err := Minus(joined, mediator)
	if err != nil {
		return nil, err
	}
	projExcluded, err := Project(excluded, x)
	if err != nil {
		return nil, err
	}
	result, err := Minus(projDividend, projExcluded)
	if err != nil {
		return nil, err
	}
	dt := result.(*derivedTable)
	dt.keys = dividend.Keys()
	dt.relType = rel.NewRelationType(dt.relType.Tuple, dt.keys)
	return dt, nil
}
