package relalg

import (
	"github.com/duro-db/duro/rel"
	"github.com/duro-db/duro/rel/expr"
)

// toTupleEval extracts the single tuple of a one-tuple relation; it is
// registered as a RelOp rather than an ordinary operator.Descriptor because
// its return type depends on the argument's relation type rather than being
// fixed ahead of time.
func toTupleEval(env rel.Env, args []expr.Expr) (rel.Value, error) {
	if len(args) != 1 {
		return rel.Value{}, rel.ErrInvalidArgument.New("to_tuple() takes one argument")
	}
	tbl, err := tableArg(args[0], env)
	if err != nil {
		return rel.Value{}, err
	}
	tx, err := storeTx(env)
	if err != nil {
		return rel.Value{}, err
	}
	tuples, err := tuplesOf(tbl, tx, env)
	if err != nil {
		return rel.Value{}, err
	}
	if len(tuples) != 1 {
		return rel.Value{}, rel.ErrInvalidArgument.New("to_tuple() requires a relation with exactly one tuple")
	}
	return rel.NewTupleTyped(tuples[0], tbl.RelType().Tuple), nil
}

func toTupleType(tenv expr.TypeEnv, args []expr.Expr) (rel.Type, error) {
	if len(args) != 1 {
		return nil, rel.ErrInvalidArgument.New("to_tuple() takes one argument")
	}
	t, err := args[0].InferType(tenv)
	if err != nil {
		return nil, err
	}
	rt, ok := t.(*rel.RelationType)
	if !ok {
		return nil, rel.ErrTypeMismatch.New("to_tuple() requires a relation-valued argument")
	}
	return rt.Tuple, nil
}
