package relalg

import (
	"github.com/duro-db/duro/operator"
	"github.com/duro-db/duro/qresult"
	"github.com/duro-db/duro/rel"
)

// RegisterAggregates adds the whole-relation aggregates (count, sum, avg,
// max, min, all, any). Unlike summarize's per-group ADD clauses, these
// operate over an entire relation argument and a literal attribute name, so
// they need no unevaluated per-tuple expression and dispatch through the
// ordinary operator registry like any scalar built-in.
func RegisterAggregates(r *operator.Registry) {
	r.AddReadOnly(&operator.Descriptor{
		Name: "count", ParamCount: 1, ReturnType: rel.IntegerType,
		Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) {
			tuples, err := relationTuples(env, args[0])
			if err != nil {
				return rel.Value{}, err
			}
			return rel.NewInt(int64(len(tuples))), nil
		},
	})

	foldNumeric := func(name string, fold func(acc rel.Value, v rel.Value, n int) (rel.Value, error), emptyErr bool) {
		r.AddReadOnly(&operator.Descriptor{
			Name: name, ParamCount: 2,
			Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) {
				tuples, err := relationTuples(env, args[0])
				if err != nil {
					return rel.Value{}, err
				}
				attr := args[1].String()
				if len(tuples) == 0 {
					if emptyErr {
						return rel.Value{}, rel.ErrAggregateUndefined.New(name + "(" + attr + ")")
					}
				}
				var acc rel.Value
				for i, t := range tuples {
					v, ok := t.Get(attr)
					if !ok {
						return rel.Value{}, rel.ErrInvalidArgument.New("no such attribute " + attr)
					}
					acc, err = fold(acc, v, i)
					if err != nil {
						return rel.Value{}, err
					}
				}
				return acc, nil
			},
		})
	}

	foldNumeric("sum", func(acc, v rel.Value, i int) (rel.Value, error) {
		if i == 0 {
			return v, nil
		}
		if v.Kind() == rel.KindFloat {
			return rel.NewFloat(acc.Float() + v.Float()), nil
		}
		return rel.NewInt(acc.Int() + v.Int()), nil
	}, false)

	r.AddReadOnly(&operator.Descriptor{
		Name: "avg", ParamCount: 2, ReturnType: rel.FloatType,
		Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) {
			tuples, err := relationTuples(env, args[0])
			if err != nil {
				return rel.Value{}, err
			}
			if len(tuples) == 0 {
				return rel.Value{}, rel.ErrAggregateUndefined.New("avg(" + args[1].String() + ")")
			}
			attr := args[1].String()
			var total float64
			for _, t := range tuples {
				v, ok := t.Get(attr)
				if !ok {
					return rel.Value{}, rel.ErrInvalidArgument.New("no such attribute " + attr)
				}
				if v.Kind() == rel.KindFloat {
					total += v.Float()
				} else {
					total += float64(v.Int())
				}
			}
			return rel.NewFloat(total / float64(len(tuples))), nil
		},
	})

	foldNumeric("max", func(acc, v rel.Value, i int) (rel.Value, error) {
		if i == 0 {
			return v, nil
		}
		c, err := v.Compare(acc)
		if err != nil {
			return rel.Value{}, err
		}
		if c > 0 {
			return v, nil
		}
		return acc, nil
	}, true)

	foldNumeric("min", func(acc, v rel.Value, i int) (rel.Value, error) {
		if i == 0 {
			return v, nil
		}
		c, err := v.Compare(acc)
		if err != nil {
			return rel.Value{}, err
		}
		if c < 0 {
			return v, nil
		}
		return acc, nil
	}, true)

	r.AddReadOnly(&operator.Descriptor{
		Name: "all", ParamCount: 2, ReturnType: rel.BooleanType,
		Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) {
			tuples, err := relationTuples(env, args[0])
			if err != nil {
				return rel.Value{}, err
			}
			attr := args[1].String()
			for _, t := range tuples {
				v, ok := t.Get(attr)
				if !ok || !v.Bool() {
					return rel.NewBool(false), nil
				}
			}
			return rel.NewBool(true), nil
		},
	})

	r.AddReadOnly(&operator.Descriptor{
		Name: "any", ParamCount: 2, ReturnType: rel.BooleanType,
		Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) {
			tuples, err := relationTuples(env, args[0])
			if err != nil {
				return rel.Value{}, err
			}
			attr := args[1].String()
			for _, t := range tuples {
				v, ok := t.Get(attr)
				if ok && v.Bool() {
					return rel.NewBool(true), nil
				}
			}
			return rel.NewBool(false), nil
		},
	})
}

// relationTuples materializes a table-valued argument against env's
// running transaction.
func relationTuples(env rel.Env, v rel.Value) ([]*rel.Tuple, error) {
	if v.Kind() != rel.KindTable {
		return nil, rel.ErrTypeMismatch.New("expected a relation-valued argument")
	}
	tx, err := storeTx(env)
	if err != nil {
		return nil, err
	}
	qr, err := qresult.Open(v.Table(), tx, env)
	if err != nil {
		return nil, err
	}
	return qresult.ToSlice(qr)
}
