package relalg

import (
	"github.com/duro-db/duro/qresult"
	"github.com/duro-db/duro/rel"
	"github.com/duro-db/duro/rel/expr"
	"github.com/duro-db/duro/store"
	"github.com/duro-db/duro/table"
)

// UpdateSpec is one attribute recomputed by an `update` invocation. Unlike
// extend's ExtendSpec, Attr must already be present in the input heading:
// update replaces an existing attribute's value rather than adding one.
type UpdateSpec struct {
	Attr string
	Expr expr.Expr
}

// Update builds the virtual table for the relational `update` operator
// (§4.3): every tuple of input is passed through unchanged except for the
// attributes named in specs, each recomputed against the tuple's own
// (pre-update) values. Heading and keys are unchanged from input; a key
// attribute may be recomputed, but the operator itself does not check
// whether that breaks uniqueness (the mutation engine's update path does,
// per §4.9's key-changing "complex" strategy).
func Update(input table.Table, specs []UpdateSpec) (table.Table, error) {
	tt := input.RelType().Tuple
	attrSet := nameSet(tt.AttrNames())
	for _, s := range specs {
		if !attrSet[s.Attr] {
			return nil, rel.ErrInvalidArgument.New("update(): no such attribute " + s.Attr)
		}
	}
	return &derivedTable{
		relType: input.RelType(),
		keys:    input.Keys(),
		open: func(tx store.Tx, env rel.Env) (qresult.Qresult, error) {
			inner, err := qresult.Open(input, tx, env)
			if err != nil {
				return nil, err
			}
			return qresult.Extend(inner, func(tup *rel.Tuple) (*rel.Tuple, error) {
				cur := bindTuple(env, tup)
				out := tup.Copy()
				for _, s := range specs {
					v, err := s.Expr.Eval(cur)
					if err != nil {
						return nil, err
					}
					out.Set(s.Attr, v)
				}
				return out, nil
			}), nil
		},
	}, nil
}

func updateSpecs(args []expr.Expr) ([]UpdateSpec, error) {
	if len(args)%2 != 0 {
		return nil, rel.ErrInvalidArgument.New("update() requires (name, expr) pairs")
	}
	out := make([]UpdateSpec, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		name, err := staticString(args[i])
		if err != nil {
			return nil, err
		}
		out[i/2] = UpdateSpec{Attr: name, Expr: args[i+1]}
	}
	return out, nil
}

// registerUpdate wires the relational `update` operator into the
// expression tree, following the same (table, (name, expr)...) argument
// shape as extend/register.go's registerNames-style helpers.
func registerUpdate() {
	expr.RegisterRelOp("update",
		func(env rel.Env, args []expr.Expr) (rel.Value, error) {
			t, err := tableArg(args[0], env)
			if err != nil {
				return rel.Value{}, err
			}
			specs, err := updateSpecs(args[1:])
			if err != nil {
				return rel.Value{}, err
			}
			out, err := Update(t, specs)
			if err != nil {
				return rel.Value{}, err
			}
			return rel.NewTable(out), nil
		},
		func(tenv expr.TypeEnv, args []expr.Expr) (rel.Type, error) {
			return args[0].InferType(tenv)
		})
}
