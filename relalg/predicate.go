package relalg

import (
	"github.com/duro-db/duro/operator"
	"github.com/duro-db/duro/rel"
)

// RegisterPredicates adds the relation-valued boolean predicates: is_empty,
// in, subset_of, and the supplemented contains alias (SPEC_FULL §4). None of
// these need per-tuple free variables, so unlike where/extend they dispatch
// through the ordinary operator registry with fully evaluated arguments.
func RegisterPredicates(r *operator.Registry) {
	r.AddReadOnly(&operator.Descriptor{
		Name: "is_empty", ParamCount: 1, ReturnType: rel.BooleanType,
		Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) {
			tuples, err := relationTuples(env, args[0])
			if err != nil {
				return rel.Value{}, err
			}
			return rel.NewBool(len(tuples) == 0), nil
		},
	})

	r.AddReadOnly(&operator.Descriptor{
		Name: "in", ParamCount: 2, ReturnType: rel.BooleanType,
		Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) {
			return memberOf(env, args[0], args[1])
		},
	})

	r.AddReadOnly(&operator.Descriptor{
		Name: "contains", ParamCount: 2, ReturnType: rel.BooleanType,
		Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) {
			return memberOf(env, args[1], args[0])
		},
	})

	r.AddReadOnly(&operator.Descriptor{
		Name: "subset_of", ParamCount: 2, ReturnType: rel.BooleanType,
		Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) {
			left, err := relationTuples(env, args[0])
			if err != nil {
				return rel.Value{}, err
			}
			right, err := relationTuples(env, args[1])
			if err != nil {
				return rel.Value{}, err
			}
			for _, t := range left {
				found := false
				for _, u := range right {
					eq, err := t.Equal(u)
					if err != nil {
						return rel.Value{}, err
					}
					if eq {
						found = true
						break
					}
				}
				if !found {
					return rel.NewBool(false), nil
				}
			}
			return rel.NewBool(true), nil
		},
	})
}

// memberOf reports whether tup is a member of the relation-valued rv.
func memberOf(env rel.Env, tup, rv rel.Value) (rel.Value, error) {
	if tup.Kind() != rel.KindTuple {
		return rel.Value{}, rel.ErrTypeMismatch.New("expected a tuple-valued argument")
	}
	tuples, err := relationTuples(env, rv)
	if err != nil {
		return rel.Value{}, err
	}
	for _, t := range tuples {
		eq, err := t.Equal(tup.Tuple())
		if err != nil {
			return rel.Value{}, err
		}
		if eq {
			return rel.NewBool(true), nil
		}
	}
	return rel.NewBool(false), nil
}
