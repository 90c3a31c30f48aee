package relalg

import (
	"github.com/duro-db/duro/qresult"
	"github.com/duro-db/duro/rel"
	"github.com/duro-db/duro/rel/expr"
	"github.com/duro-db/duro/store"
	"github.com/duro-db/duro/table"
)

// SummarizeSpec is one added attribute of a `summarize` invocation: `ADD
// count() AS N` becomes {Attr: "N", Kind: "count"}; `ADD avg(SALARY) AS M`
// becomes {Attr: "M", Kind: "avg", Value: <SALARY var expr>}.
type SummarizeSpec struct {
	Attr  string
	Kind  string
	Value expr.Expr
}

// Summarize builds the virtual table for `summarize(source) per(per) add
// specs...`. Per §4.7 the key set is the key set of per.
func Summarize(source, per table.Table, specs []SummarizeSpec, env rel.Env) (table.Table, error) {
	perAttrs := per.RelType().Tuple.AttrNames()
	tenv := expr.TypeEnv{Vars: attrTypeMap(source.RelType().Tuple), Ops: env.Ops}
	attrs := append([]rel.Attribute(nil), per.RelType().Tuple.Attrs...)
	for _, s := range specs {
		t, err := summarizeAttrType(s, tenv)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, rel.Attribute{Name: s.Attr, Type: t})
	}
	newTT := rel.NewTupleType(attrs...)
	keys := per.Keys()
	return &derivedTable{
		relType: rel.NewRelationType(newTT, keys),
		keys:    keys,
		open: func(tx store.Tx, e rel.Env) (qresult.Qresult, error) {
			perTuples, err := tuplesOf(per, tx, e)
			if err != nil {
				return nil, err
			}
			srcQr, err := qresult.Open(source, tx, e)
			if err != nil {
				return nil, err
			}
			aggSpecs := make([]qresult.AggSpec, len(specs))
			for i, s := range specs {
				s := s
				aggSpecs[i] = qresult.AggSpec{
					Attr: s.Attr,
					Kind: s.Kind,
					Value: func(tup *rel.Tuple) (rel.Value, error) {
						if s.Value == nil {
							return rel.Value{}, nil
						}
						return s.Value.Eval(bindTuple(e, tup))
					},
				}
			}
			return qresult.Summarize(perTuples, perAttrs, srcQr, aggSpecs)
		},
	}, nil
}

func summarizeAttrType(s SummarizeSpec, tenv expr.TypeEnv) (rel.Type, error) {
	switch s.Kind {
	case "count":
		return rel.IntegerType, nil
	case "all", "any":
		return rel.BooleanType, nil
	case "avg":
		return rel.FloatType, nil
	case "sum", "max", "min":
		if s.Value == nil {
			return nil, rel.ErrInvalidArgument.New("summarize(): " + s.Kind + " requires a value expression")
		}
		return s.Value.InferType(tenv)
	}
	return nil, rel.ErrInvalidArgument.New("summarize(): unknown aggregate kind " + s.Kind)
}
