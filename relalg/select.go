package relalg

import (
	"github.com/duro-db/duro/qresult"
	"github.com/duro-db/duro/rel"
	"github.com/duro-db/duro/rel/expr"
	"github.com/duro-db/duro/store"
	"github.com/duro-db/duro/table"
)

// Where builds the virtual table for `where(input, cond)`. Keys are the
// input's, unchanged per §4.7.
func Where(input table.Table, cond expr.Expr) table.Table {
	return &derivedTable{
		relType: input.RelType(),
		keys:    input.Keys(),
		open: func(tx store.Tx, env rel.Env) (qresult.Qresult, error) {
			inner, err := qresult.Open(input, tx, env)
			if err != nil {
				return nil, err
			}
			return qresult.Select(inner, func(tup *rel.Tuple) (bool, error) {
				return evalBoolCond(cond, env, tup)
			}), nil
		},
	}
}
