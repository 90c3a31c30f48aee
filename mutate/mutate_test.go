package mutate_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/duro-db/duro/catalog"
	"github.com/duro-db/duro/constraint"
	"github.com/duro-db/duro/mutate"
	"github.com/duro-db/duro/rel"
	"github.com/duro-db/duro/rel/expr"
	"github.com/duro-db/duro/store"
	"github.com/duro-db/duro/txn"
)

func empsRelType() *rel.RelationType {
	tt := rel.NewTupleType(
		rel.Attribute{Name: "EMPNO", Type: rel.IntegerType},
		rel.Attribute{Name: "NAME", Type: rel.StringType},
		rel.Attribute{Name: "SALARY", Type: rel.FloatType},
	)
	return rel.NewRelationType(tt, []rel.Key{{"EMPNO"}})
}

func empsTuple(empno int64, name string, salary float64) *rel.Tuple {
	tup := rel.NewEmptyTuple()
	tup.Set("EMPNO", rel.NewInt(empno))
	tup.Set("NAME", rel.NewString(name))
	tup.Set("SALARY", rel.NewFloat(salary))
	return tup
}

func newEnv(t *testing.T) (*catalog.Dbroot, *txn.Transaction, rel.Env) {
	t.Helper()
	st := store.NewMemStore()
	ctx := rel.NewExecContext()
	tx, err := txn.Begin(st, ctx)
	require.NoError(t, err)
	d, err := catalog.Bootstrap(st, tx)
	require.NoError(t, err)
	env := d.Env(ctx, tx)
	return d, tx, env
}

// TestScenarioS1 mirrors spec.md's S1: define EMPS1, insert two tuples, then
// apply a sequence of updates, checking the final state.
func TestScenarioS1(t *testing.T) {
	d, tx, env := newEnv(t)

	_, err := d.CreateRealTable(tx, "EMPS1", empsRelType(), true)
	require.NoError(t, err)

	require.NoError(t, mutate.Insert(d, tx, env, "EMPS1", empsTuple(1, "A", 4000.0)))
	require.NoError(t, mutate.Insert(d, tx, env, "EMPS1", empsTuple(2, "B", 4400.0)))

	n, err := mutate.Update(d, tx, env, "EMPS1", nil, map[string]expr.Expr{
		"SALARY": expr.NewLiteral(rel.NewFloat(4500)),
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = mutate.Update(d, tx, env, "EMPS1",
		expr.NewOp("=", expr.NewVar("EMPNO"), expr.NewLiteral(rel.NewInt(2))),
		map[string]expr.Expr{"EMPNO": expr.NewLiteral(rel.NewInt(3))})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = mutate.Update(d, tx, env, "EMPS1",
		expr.NewOp("=", expr.NewVar("EMPNO"), expr.NewLiteral(rel.NewInt(1))),
		map[string]expr.Expr{"NAME": expr.NewLiteral(rel.NewString("Smythe"))})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = mutate.Update(d, tx, env, "EMPS1",
		expr.NewOp("=", expr.NewVar("EMPNO"), expr.NewLiteral(rel.NewInt(3))),
		map[string]expr.Expr{"SALARY": expr.NewOp("+", expr.NewVar("SALARY"), expr.NewLiteral(rel.NewFloat(100)))})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	rt, err := d.GetTable("EMPS1")
	require.NoError(t, err)
	real := rt.(interface {
		Get(tx store.Tx, key *rel.Tuple) (*rel.Tuple, error)
	})

	key1 := rel.NewEmptyTuple()
	key1.Set("EMPNO", rel.NewInt(1))
	tup1, err := real.Get(tx.StoreTx(), key1)
	require.NoError(t, err)
	name, _ := tup1.Get("NAME")
	require.Equal(t, "Smythe", name.String())
	salary, _ := tup1.Get("SALARY")
	require.Equal(t, 4500.0, salary.Float())

	key3 := rel.NewEmptyTuple()
	key3.Set("EMPNO", rel.NewInt(3))
	tup3, err := real.Get(tx.StoreTx(), key3)
	require.NoError(t, err)
	name3, _ := tup3.Get("NAME")
	require.Equal(t, "B", name3.String())
	salary3, _ := tup3.Get("SALARY")
	require.Equal(t, 4600.0, salary3.Float())
}

// TestScenarioS2 mirrors spec.md's S2: a constraint rejects an insert whose
// post-image would violate it, leaving the table unchanged.
func TestScenarioS2(t *testing.T) {
	d, tx, env := newEnv(t)
	_, err := d.CreateRealTable(tx, "EMPS", empsRelType(), true)
	require.NoError(t, err)

	countExpr := expr.NewOp(">=", expr.NewOp("count", expr.NewTableRef("EMPS")), expr.NewLiteral(rel.NewInt(0)))
	tenv := d.TypeEnv(nil)
	require.NoError(t, constraint.Create(d, tx, env.Ctx, "c1", countExpr, tenv))

	require.NoError(t, mutate.Insert(d, tx, env, "EMPS", empsTuple(1, "A", 4000)))

	negSalary := expr.NewOp("is_empty",
		expr.NewOp("where", expr.NewTableRef("EMPS"),
			expr.NewOp("<", expr.NewVar("SALARY"), expr.NewLiteral(rel.NewFloat(0)))))
	require.NoError(t, constraint.Create(d, tx, env.Ctx, "c2", negSalary, tenv))

	err = mutate.Insert(d, tx, env, "EMPS", empsTuple(4, "C", -1.0))
	require.Error(t, err)
	require.True(t, rel.ErrPredicateViolation.Is(err))

	rt, err := d.GetTable("EMPS")
	require.NoError(t, err)
	real := rt.(interface {
		Get(tx store.Tx, key *rel.Tuple) (*rel.Tuple, error)
	})
	key4 := rel.NewEmptyTuple()
	key4.Set("EMPNO", rel.NewInt(4))
	_, err = real.Get(tx.StoreTx(), key4)
	require.Error(t, err)
	require.True(t, rel.ErrNotFound.Is(err))
}

// TestScenarioS4 mirrors spec.md's S4: inserting into a `where`-defined
// virtual table reaches through to the base table when the tuple satisfies
// the condition, and is rejected when it doesn't.
func TestScenarioS4(t *testing.T) {
	d, tx, env := newEnv(t)
	_, err := d.CreateRealTable(tx, "EMPS1", empsRelType(), true)
	require.NoError(t, err)

	vExpr := expr.NewOp("where", expr.NewTableRef("EMPS1"),
		expr.NewOp(">", expr.NewVar("SALARY"), expr.NewLiteral(rel.NewFloat(4500))))
	_, err = d.CreateVirtualTable("V", empsRelType(), []rel.Key{{"EMPNO"}}, vExpr)
	require.NoError(t, err)

	require.NoError(t, mutate.Insert(d, tx, env, "V", empsTuple(5, "D", 5000.0)))

	rt, err := d.GetTable("EMPS1")
	require.NoError(t, err)
	real := rt.(interface {
		Get(tx store.Tx, key *rel.Tuple) (*rel.Tuple, error)
	})
	key5 := rel.NewEmptyTuple()
	key5.Set("EMPNO", rel.NewInt(5))
	_, err = real.Get(tx.StoreTx(), key5)
	require.NoError(t, err)

	err = mutate.Insert(d, tx, env, "V", empsTuple(6, "E", 4000.0))
	require.Error(t, err)
	require.True(t, rel.ErrPredicateViolation.Is(err))
}
