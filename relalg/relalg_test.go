package relalg_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/duro-db/duro/qresult"
	"github.com/duro-db/duro/rel"
	"github.com/duro-db/duro/rel/expr"
	"github.com/duro-db/duro/relalg"
	"github.com/duro-db/duro/store"
	"github.com/duro-db/duro/table"
	"github.com/duro-db/duro/txn"
)

func empsRelTypeRA() *rel.RelationType {
	return rel.NewRelationType(rel.NewTupleType(
		rel.Attribute{Name: "EMPNO", Type: rel.IntegerType},
		rel.Attribute{Name: "NAME", Type: rel.StringType},
		rel.Attribute{Name: "SALARY", Type: rel.FloatType},
	), []rel.Key{{"EMPNO"}})
}

func empsTupleRA(empno int64, name string, salary float64) *rel.Tuple {
	tup := rel.NewEmptyTuple()
	tup.Set("EMPNO", rel.NewInt(empno))
	tup.Set("NAME", rel.NewString(name))
	tup.Set("SALARY", rel.NewFloat(salary))
	return tup
}

func deptsTuple(deptno, empno int64) *rel.Tuple {
	tup := rel.NewEmptyTuple()
	tup.Set("DEPTNO", rel.NewInt(deptno))
	tup.Set("EMPNO", rel.NewInt(empno))
	return tup
}

func newTx(t *testing.T) (*txn.Transaction, rel.Env) {
	t.Helper()
	st := store.NewMemStore()
	ctx := rel.NewExecContext()
	tx, err := txn.Begin(st, ctx)
	require.NoError(t, err)
	return tx, rel.Env{Ctx: ctx}
}

func openAll(t *testing.T, tbl table.Table, tx *txn.Transaction, env rel.Env) ([]*rel.Tuple, error) {
	t.Helper()
	q, err := qresult.Open(tbl, tx.StoreTx(), env)
	if err != nil {
		return nil, err
	}
	return qresult.ToSlice(q)
}

// TestScenarioS5 mirrors spec.md's S5: joining EMPS1 with DEPTS on EMPNO
// infers keys {EMPNO} (DEPTS's key is contained in the join's key set), and
// the join's cardinality equals a semijoin over the same inputs.
func TestScenarioS5(t *testing.T) {
	tx, env := newTx(t)

	emps, err := table.NewLiteralRelation(empsRelTypeRA(), empsRelTypeRA().Keys, []*rel.Tuple{
		empsTupleRA(1, "A", 4000),
		empsTupleRA(2, "B", 4400),
		empsTupleRA(3, "C", 4600),
	})
	require.NoError(t, err)

	deptsType := rel.NewRelationType(rel.NewTupleType(
		rel.Attribute{Name: "DEPTNO", Type: rel.IntegerType},
		rel.Attribute{Name: "EMPNO", Type: rel.IntegerType},
	), []rel.Key{{"EMPNO"}})
	depts, err := table.NewLiteralRelation(deptsType, deptsType.Keys, []*rel.Tuple{
		deptsTuple(10, 1),
		deptsTuple(20, 2),
	})
	require.NoError(t, err)

	joined, err := relalg.Join(emps, depts)
	require.NoError(t, err)
	require.Len(t, joined.Keys(), 1)
	require.Equal(t, []string{"EMPNO"}, []string(joined.Keys()[0]))

	joinedTuples, err := openAll(t, joined, tx, env)
	require.NoError(t, err)

	semi := relalg.Semijoin(emps, depts)
	semiTuples, err := openAll(t, semi, tx, env)
	require.NoError(t, err)

	require.Len(t, joinedTuples, len(semiTuples))
	require.Len(t, joinedTuples, 2)
}

// TestScenarioS6 mirrors spec.md's S6: summarize EMPS1 by {} add count() as
// N, avg(SALARY) as M. A non-empty EMPS1 yields {N:2, M:4550.0}; over an
// empty EMPS1, N is 0 and reading M raises AGGREGATE_UNDEFINED.
func TestScenarioS6(t *testing.T) {
	tx, env := newTx(t)

	perType := rel.NewRelationType(rel.NewTupleType(), []rel.Key{{}})
	per, err := table.NewLiteralRelation(perType, []rel.Key{{}}, []*rel.Tuple{rel.NewEmptyTuple()})
	require.NoError(t, err)

	specs := []relalg.SummarizeSpec{
		{Attr: "N", Kind: "count"},
		{Attr: "M", Kind: "avg", Value: expr.NewVar("SALARY")},
	}

	emps, err := table.NewLiteralRelation(empsRelTypeRA(), empsRelTypeRA().Keys, []*rel.Tuple{
		empsTupleRA(1, "Smythe", 4500),
		empsTupleRA(3, "Jones", 4600),
	})
	require.NoError(t, err)

	summarized, err := relalg.Summarize(emps, per, specs, env)
	require.NoError(t, err)
	tuples, err := openAll(t, summarized, tx, env)
	require.NoError(t, err)
	require.Len(t, tuples, 1)
	n, _ := tuples[0].Get("N")
	require.Equal(t, int64(2), n.Int())
	m, _ := tuples[0].Get("M")
	require.Equal(t, 4550.0, m.Float())

	emptyEmps, err := table.NewLiteralRelation(empsRelTypeRA(), empsRelTypeRA().Keys, nil)
	require.NoError(t, err)
	summarizedEmpty, err := relalg.Summarize(emptyEmps, per, specs, env)
	require.NoError(t, err)
	_, err = openAll(t, summarizedEmpty, tx, env)
	require.Error(t, err)
	require.True(t, rel.ErrAggregateUndefined.Is(err))
}
