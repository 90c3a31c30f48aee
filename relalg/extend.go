package relalg

import (
	"github.com/duro-db/duro/qresult"
	"github.com/duro-db/duro/rel"
	"github.com/duro-db/duro/rel/expr"
	"github.com/duro-db/duro/store"
	"github.com/duro-db/duro/table"
)

// ExtendSpec is one added attribute of an `extend` invocation.
type ExtendSpec struct {
	Attr string
	Expr expr.Expr
}

// Extend builds the virtual table for `extend(input, specs...)`. Keys are
// the input's, unchanged per §4.7.
func Extend(input table.Table, specs []ExtendSpec, env rel.Env) (table.Table, error) {
	tenv := expr.TypeEnv{Vars: attrTypeMap(input.RelType().Tuple), Ops: env.Ops}
	attrs := append([]rel.Attribute(nil), input.RelType().Tuple.Attrs...)
	for _, s := range specs {
		t, err := s.Expr.InferType(tenv)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, rel.Attribute{Name: s.Attr, Type: t})
		tenv.Vars[s.Attr] = t
	}
	newTT := rel.NewTupleType(attrs...)
	return &derivedTable{
		relType: rel.NewRelationType(newTT, input.Keys()),
		keys:    input.Keys(),
		open: func(tx store.Tx, e rel.Env) (qresult.Qresult, error) {
			inner, err := qresult.Open(input, tx, e)
			if err != nil {
				return nil, err
			}
			return qresult.Extend(inner, func(tup *rel.Tuple) (*rel.Tuple, error) {
				out := tup.Copy()
				cur := bindTuple(e, tup)
				for _, s := range specs {
					v, err := s.Expr.Eval(cur)
					if err != nil {
						return nil, err
					}
					out.Set(s.Attr, v)
					cur = cur.WithVar(s.Attr, v)
				}
				return out, nil
			}), nil
		},
	}, nil
}

func attrTypeMap(tt *rel.TupleType) map[string]rel.Type {
	m := make(map[string]rel.Type, len(tt.Attrs))
	for _, a := range tt.Attrs {
		m[a.Name] = a.Type
	}
	return m
}
