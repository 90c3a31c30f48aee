package relalg

import (
	"github.com/duro-db/duro/operator"
	"github.com/duro-db/duro/rel"
	"github.com/duro-db/duro/rel/expr"
	"github.com/duro-db/duro/table"
)

// tableLike aliases table.Table for brevity in the static-inference helpers
// below, which build real relalg operators over a relation type alone.
type tableLike = table.Table

// typeOnlyRelation satisfies table.Table using only a relation type, with no
// backing storage: InferType call paths build real derivedTable values
// through the same relalg constructors evaluation uses, but never invoke
// their open closures, so a type-only stand-in is enough to drive key
// inference and heading computation without a running transaction.
type typeOnlyRelation struct {
	relType *rel.RelationType
}

func newTypeOnlyRelation(rt *rel.RelationType) *typeOnlyRelation {
	return &typeOnlyRelation{relType: rt}
}

func (t *typeOnlyRelation) RelType() *rel.RelationType { return t.relType }
func (t *typeOnlyRelation) Name() string                { return "" }
func (t *typeOnlyRelation) IsPersistent() bool          { return false }
func (t *typeOnlyRelation) IsVirtual() bool             { return true }
func (t *typeOnlyRelation) Keys() []rel.Key             { return t.relType.Keys }

// Register wires every relational operator into env.Ops (for aggregates and
// predicates, which evaluate their arguments eagerly like any scalar
// built-in) and into rel/expr's RelOp hook (for the table-algebra operators,
// whose argument list carries attribute names and, for where/extend/group/
// summarize, tuple-level expressions that must stay unevaluated until
// qresult binds a tuple).
//
// Table-algebra operators take their attribute-name and new-attribute-name
// arguments as literal string expressions (see staticString), matching the
// way Tutorial D treats an attribute list as syntax rather than data; only
// the operand tables and per-tuple value expressions are ordinary
// sub-expressions.
func Register(r *operator.Registry) {
	RegisterAggregates(r)
	RegisterPredicates(r)

	expr.RegisterRelOp("to_tuple", toTupleEval, toTupleType)
	registerUpdate()

	registerNames := func(name string, build func(input rel.Relation, names []string) (rel.Relation, error)) {
		eval := func(env rel.Env, args []expr.Expr) (rel.Value, error) {
			t, err := tableArg(args[0], env)
			if err != nil {
				return rel.Value{}, err
			}
			names, err := staticStrings(args[1:])
			if err != nil {
				return rel.Value{}, err
			}
			out, err := build(t, names)
			if err != nil {
				return rel.Value{}, err
			}
			return rel.NewTable(out), nil
		}
		typ := func(tenv expr.TypeEnv, args []expr.Expr) (rel.Type, error) {
			t, err := args[0].InferType(tenv)
			if err != nil {
				return nil, err
			}
			rt, ok := t.(*rel.RelationType)
			if !ok {
				return nil, rel.ErrTypeMismatch.New(name + "() requires a relation-valued argument")
			}
			names, err := staticStrings(args[1:])
			if err != nil {
				return nil, err
			}
			out, err := build(newTypeOnlyRelation(rt), names)
			if err != nil {
				return nil, err
			}
			return out.RelType(), nil
		}
		expr.RegisterRelOp(name, eval, typ)
	}

	registerNames("project", func(in rel.Relation, names []string) (rel.Relation, error) {
		return Project(asTableArg(in), names)
	})
	registerNames("remove", func(in rel.Relation, names []string) (rel.Relation, error) {
		return Remove(asTableArg(in), names)
	})

	expr.RegisterRelOp("rename",
		func(env rel.Env, args []expr.Expr) (rel.Value, error) {
			t, err := tableArg(args[0], env)
			if err != nil {
				return rel.Value{}, err
			}
			renames, err := staticRenameMap(args[1:])
			if err != nil {
				return rel.Value{}, err
			}
			out, err := Rename(t, renames)
			if err != nil {
				return rel.Value{}, err
			}
			return rel.NewTable(out), nil
		},
		func(tenv expr.TypeEnv, args []expr.Expr) (rel.Type, error) {
			t, err := args[0].InferType(tenv)
			if err != nil {
				return nil, err
			}
			rt, ok := t.(*rel.RelationType)
			if !ok {
				return nil, rel.ErrTypeMismatch.New("rename() requires a relation-valued argument")
			}
			renames, err := staticRenameMap(args[1:])
			if err != nil {
				return nil, err
			}
			out, err := Rename(newTypeOnlyRelation(rt), renames)
			if err != nil {
				return nil, err
			}
			return out.RelType(), nil
		})

	expr.RegisterRelOp("where",
		func(env rel.Env, args []expr.Expr) (rel.Value, error) {
			t, err := tableArg(args[0], env)
			if err != nil {
				return rel.Value{}, err
			}
			return rel.NewTable(Where(t, args[1])), nil
		},
		func(tenv expr.TypeEnv, args []expr.Expr) (rel.Type, error) {
			return args[0].InferType(tenv)
		})

	expr.RegisterRelOp("extend",
		func(env rel.Env, args []expr.Expr) (rel.Value, error) {
			t, err := tableArg(args[0], env)
			if err != nil {
				return rel.Value{}, err
			}
			specs, err := extendSpecs(args[1:])
			if err != nil {
				return rel.Value{}, err
			}
			out, err := Extend(t, specs, env)
			if err != nil {
				return rel.Value{}, err
			}
			return rel.NewTable(out), nil
		},
		func(tenv expr.TypeEnv, args []expr.Expr) (rel.Type, error) {
			t, err := args[0].InferType(tenv)
			if err != nil {
				return nil, err
			}
			rt, ok := t.(*rel.RelationType)
			if !ok {
				return nil, rel.ErrTypeMismatch.New("extend() requires a relation-valued argument")
			}
			specs, err := extendSpecs(args[1:])
			if err != nil {
				return nil, err
			}
			out, err := Extend(newTypeOnlyRelation(rt), specs, rel.Env{Ops: tenv.Ops})
			if err != nil {
				return nil, err
			}
			return out.RelType(), nil
		})

	registerPair := func(name string, build func(a, b rel.Relation) (rel.Relation, error)) {
		expr.RegisterRelOp(name,
			func(env rel.Env, args []expr.Expr) (rel.Value, error) {
				a, err := tableArg(args[0], env)
				if err != nil {
					return rel.Value{}, err
				}
				b, err := tableArg(args[1], env)
				if err != nil {
					return rel.Value{}, err
				}
				out, err := build(a, b)
				if err != nil {
					return rel.Value{}, err
				}
				return rel.NewTable(out), nil
			},
			func(tenv expr.TypeEnv, args []expr.Expr) (rel.Type, error) {
				at, err := args[0].InferType(tenv)
				if err != nil {
					return nil, err
				}
				bt, err := args[1].InferType(tenv)
				if err != nil {
					return nil, err
				}
				art, ok := at.(*rel.RelationType)
				if !ok {
					return nil, rel.ErrTypeMismatch.New(name + "() requires relation-valued arguments")
				}
				brt, ok := bt.(*rel.RelationType)
				if !ok {
					return nil, rel.ErrTypeMismatch.New(name + "() requires relation-valued arguments")
				}
				out, err := build(newTypeOnlyRelation(art), newTypeOnlyRelation(brt))
				if err != nil {
					return nil, err
				}
				return out.RelType(), nil
			})
	}

	registerPair("union", func(a, b rel.Relation) (rel.Relation, error) { return Union(asTableArg(a), asTableArg(b)) })
	registerPair("d_union", func(a, b rel.Relation) (rel.Relation, error) { return DUnion(asTableArg(a), asTableArg(b)) })
	registerPair("minus", func(a, b rel.Relation) (rel.Relation, error) { return Minus(asTableArg(a), asTableArg(b)) })
	registerPair("intersect", func(a, b rel.Relation) (rel.Relation, error) { return Intersect(asTableArg(a), asTableArg(b)) })
	registerPair("semiminus", func(a, b rel.Relation) (rel.Relation, error) { return Semiminus(asTableArg(a), asTableArg(b)), nil })
	registerPair("semijoin", func(a, b rel.Relation) (rel.Relation, error) { return Semijoin(asTableArg(a), asTableArg(b)), nil })
	registerPair("join", func(a, b rel.Relation) (rel.Relation, error) { return Join(asTableArg(a), asTableArg(b)) })

	expr.RegisterRelOp("wrap",
		func(env rel.Env, args []expr.Expr) (rel.Value, error) {
			t, err := tableArg(args[0], env)
			if err != nil {
				return rel.Value{}, err
			}
			newAttr, err := staticString(args[1])
			if err != nil {
				return rel.Value{}, err
			}
			names, err := staticStrings(args[2:])
			if err != nil {
				return rel.Value{}, err
			}
			out, err := Wrap(t, names, newAttr)
			if err != nil {
				return rel.Value{}, err
			}
			return rel.NewTable(out), nil
		},
		func(tenv expr.TypeEnv, args []expr.Expr) (rel.Type, error) {
			t, err := args[0].InferType(tenv)
			if err != nil {
				return nil, err
			}
			rt, ok := t.(*rel.RelationType)
			if !ok {
				return nil, rel.ErrTypeMismatch.New("wrap() requires a relation-valued argument")
			}
			newAttr, err := staticString(args[1])
			if err != nil {
				return nil, err
			}
			names, err := staticStrings(args[2:])
			if err != nil {
				return nil, err
			}
			out, err := Wrap(newTypeOnlyRelation(rt), names, newAttr)
			if err != nil {
				return nil, err
			}
			return out.RelType(), nil
		})

	expr.RegisterRelOp("unwrap",
		func(env rel.Env, args []expr.Expr) (rel.Value, error) {
			t, err := tableArg(args[0], env)
			if err != nil {
				return rel.Value{}, err
			}
			attr, err := staticString(args[1])
			if err != nil {
				return rel.Value{}, err
			}
			out, err := Unwrap(t, attr)
			if err != nil {
				return rel.Value{}, err
			}
			return rel.NewTable(out), nil
		},
		func(tenv expr.TypeEnv, args []expr.Expr) (rel.Type, error) {
			t, err := args[0].InferType(tenv)
			if err != nil {
				return nil, err
			}
			rt, ok := t.(*rel.RelationType)
			if !ok {
				return nil, rel.ErrTypeMismatch.New("unwrap() requires a relation-valued argument")
			}
			attr, err := staticString(args[1])
			if err != nil {
				return nil, err
			}
			out, err := Unwrap(newTypeOnlyRelation(rt), attr)
			if err != nil {
				return nil, err
			}
			return out.RelType(), nil
		})

	expr.RegisterRelOp("group",
		func(env rel.Env, args []expr.Expr) (rel.Value, error) {
			t, err := tableArg(args[0], env)
			if err != nil {
				return rel.Value{}, err
			}
			rvAttr, err := staticString(args[1])
			if err != nil {
				return rel.Value{}, err
			}
			names, err := staticStrings(args[2:])
			if err != nil {
				return rel.Value{}, err
			}
			out, err := Group(t, names, rvAttr)
			if err != nil {
				return rel.Value{}, err
			}
			return rel.NewTable(out), nil
		},
		func(tenv expr.TypeEnv, args []expr.Expr) (rel.Type, error) {
			t, err := args[0].InferType(tenv)
			if err != nil {
				return nil, err
			}
			rt, ok := t.(*rel.RelationType)
			if !ok {
				return nil, rel.ErrTypeMismatch.New("group() requires a relation-valued argument")
			}
			rvAttr, err := staticString(args[1])
			if err != nil {
				return nil, err
			}
			names, err := staticStrings(args[2:])
			if err != nil {
				return nil, err
			}
			out, err := Group(newTypeOnlyRelation(rt), names, rvAttr)
			if err != nil {
				return nil, err
			}
			return out.RelType(), nil
		})

	expr.RegisterRelOp("ungroup",
		func(env rel.Env, args []expr.Expr) (rel.Value, error) {
			t, err := tableArg(args[0], env)
			if err != nil {
				return rel.Value{}, err
			}
			rvAttr, err := staticString(args[1])
			if err != nil {
				return rel.Value{}, err
			}
			out, err := Ungroup(t, rvAttr)
			if err != nil {
				return rel.Value{}, err
			}
			return rel.NewTable(out), nil
		},
		func(tenv expr.TypeEnv, args []expr.Expr) (rel.Type, error) {
			t, err := args[0].InferType(tenv)
			if err != nil {
				return nil, err
			}
			rt, ok := t.(*rel.RelationType)
			if !ok {
				return nil, rel.ErrTypeMismatch.New("ungroup() requires a relation-valued argument")
			}
			rvAttr, err := staticString(args[1])
			if err != nil {
				return nil, err
			}
			out, err := Ungroup(newTypeOnlyRelation(rt), rvAttr)
			if err != nil {
				return nil, err
			}
			return out.RelType(), nil
		})

	expr.RegisterRelOp("divide",
		func(env rel.Env, args []expr.Expr) (rel.Value, error) {
			dividend, err := tableArg(args[0], env)
			if err != nil {
				return rel.Value{}, err
			}
			divisor, err := tableArg(args[1], env)
			if err != nil {
				return rel.Value{}, err
			}
			mediator, err := tableArg(args[2], env)
			if err != nil {
				return rel.Value{}, err
			}
			out, err := Divide(dividend, divisor, mediator)
			if err != nil {
				return rel.Value{}, err
			}
			return rel.NewTable(out), nil
		},
		func(tenv expr.TypeEnv, args []expr.Expr) (rel.Type, error) {
			dt, err := args[0].InferType(tenv)
			if err != nil {
				return nil, err
			}
			st, err := args[1].InferType(tenv)
			if err != nil {
				return nil, err
			}
			mt, err := args[2].InferType(tenv)
			if err != nil {
				return nil, err
			}
			drt, ok1 := dt.(*rel.RelationType)
			srt, ok2 := st.(*rel.RelationType)
			mrt, ok3 := mt.(*rel.RelationType)
			if !ok1 || !ok2 || !ok3 {
				return nil, rel.ErrTypeMismatch.New("divide() requires relation-valued arguments")
			}
			out, err := Divide(newTypeOnlyRelation(drt), newTypeOnlyRelation(srt), newTypeOnlyRelation(mrt))
			if err != nil {
				return nil, err
			}
			return out.RelType(), nil
		})

	expr.RegisterRelOp("tclose",
		func(env rel.Env, args []expr.Expr) (rel.Value, error) {
			t, err := tableArg(args[0], env)
			if err != nil {
				return rel.Value{}, err
			}
			src, err := staticString(args[1])
			if err != nil {
				return rel.Value{}, err
			}
			dst, err := staticString(args[2])
			if err != nil {
				return rel.Value{}, err
			}
			out, err := Tclose(t, src, dst)
			if err != nil {
				return rel.Value{}, err
			}
			return rel.NewTable(out), nil
		},
		func(tenv expr.TypeEnv, args []expr.Expr) (rel.Type, error) {
			return args[0].InferType(tenv)
		})

	expr.RegisterRelOp("summarize",
		func(env rel.Env, args []expr.Expr) (rel.Value, error) {
			source, err := tableArg(args[0], env)
			if err != nil {
				return rel.Value{}, err
			}
			per, err := tableArg(args[1], env)
			if err != nil {
				return rel.Value{}, err
			}
			specs, err := summarizeSpecs(args[2:])
			if err != nil {
				return rel.Value{}, err
			}
			out, err := Summarize(source, per, specs, env)
			if err != nil {
				return rel.Value{}, err
			}
			return rel.NewTable(out), nil
		},
		func(tenv expr.TypeEnv, args []expr.Expr) (rel.Type, error) {
			at, err := args[0].InferType(tenv)
			if err != nil {
				return nil, err
			}
			bt, err := args[1].InferType(tenv)
			if err != nil {
				return nil, err
			}
			art, ok := at.(*rel.RelationType)
			if !ok {
				return nil, rel.ErrTypeMismatch.New("summarize() requires relation-valued arguments")
			}
			brt, ok := bt.(*rel.RelationType)
			if !ok {
				return nil, rel.ErrTypeMismatch.New("summarize() requires relation-valued arguments")
			}
			specs, err := summarizeSpecs(args[2:])
			if err != nil {
				return nil, err
			}
			out, err := Summarize(newTypeOnlyRelation(art), newTypeOnlyRelation(brt), specs, rel.Env{Ops: tenv.Ops})
			if err != nil {
				return nil, err
			}
			return out.RelType(), nil
		})
}

// staticString requires e to be a literal string expression, the
// convention table-algebra operators use for attribute names: lists of
// attributes are syntax, not per-call data.
func staticString(e expr.Expr) (string, error) {
	lit, ok := e.(*expr.Literal)
	if !ok || lit.Value.Kind() != rel.KindBinary {
		return "", rel.ErrInvalidArgument.New("attribute name must be a literal string")
	}
	return lit.Value.String(), nil
}

func staticStrings(args []expr.Expr) ([]string, error) {
	out := make([]string, len(args))
	for i, a := range args {
		s, err := staticString(a)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// staticRenameMap parses rename()'s trailing (old, new) literal-string
// pairs.
func staticRenameMap(args []expr.Expr) (map[string]string, error) {
	if len(args)%2 != 0 {
		return nil, rel.ErrInvalidArgument.New("rename() requires (old, new) pairs")
	}
	out := make(map[string]string, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		from, err := staticString(args[i])
		if err != nil {
			return nil, err
		}
		to, err := staticString(args[i+1])
		if err != nil {
			return nil, err
		}
		out[from] = to
	}
	return out, nil
}

// ExtendSpecsFromArgs exposes extendSpecs's (name, expr) pair parsing to
// the mutation engine, which must recover an extend() node's attribute
// specs to validate an insert's supplied derived-attribute values.
func ExtendSpecsFromArgs(args []expr.Expr) ([]ExtendSpec, error) {
	return extendSpecs(args)
}

// extendSpecs parses extend()'s trailing (name, expr) pairs.
func extendSpecs(args []expr.Expr) ([]ExtendSpec, error) {
	if len(args)%2 != 0 {
		return nil, rel.ErrInvalidArgument.New("extend() requires (name, expr) pairs")
	}
	out := make([]ExtendSpec, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		name, err := staticString(args[i])
		if err != nil {
			return nil, err
		}
		out[i/2] = ExtendSpec{Attr: name, Expr: args[i+1]}
	}
	return out, nil
}

// summarizeSpecs parses summarize()'s trailing (attr, kind, value) triples;
// value is a Literal(rel.Initial()) placeholder for count, which needs no
// per-tuple value expression.
func summarizeSpecs(args []expr.Expr) ([]SummarizeSpec, error) {
	if len(args)%3 != 0 {
		return nil, rel.ErrInvalidArgument.New("summarize() requires (attr, kind, value) triples")
	}
	out := make([]SummarizeSpec, len(args)/3)
	for i := 0; i < len(args); i += 3 {
		attr, err := staticString(args[i])
		if err != nil {
			return nil, err
		}
		kind, err := staticString(args[i+1])
		if err != nil {
			return nil, err
		}
		valueExpr := args[i+2]
		if lit, ok := valueExpr.(*expr.Literal); ok && lit.Value.IsInitial() {
			valueExpr = nil
		}
		out[i/3] = SummarizeSpec{Attr: attr, Kind: kind, Value: valueExpr}
	}
	return out, nil
}

// asTableArg narrows a rel.Relation (which may be a typeOnlyRelation used
// only for static InferType calls) to table.Table. typeOnlyRelation
// implements the full interface so every relalg builder works unmodified
// at type-inference time without ever touching storage.
func asTableArg(r rel.Relation) tableLike { return r.(tableLike) }
