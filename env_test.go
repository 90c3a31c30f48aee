package duro_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	duro "github.com/duro-db/duro"
	"github.com/duro-db/duro/mutate"
	"github.com/duro-db/duro/qresult"
	"github.com/duro-db/duro/rel"
)

func empsRelType() *rel.RelationType {
	tt := rel.NewTupleType(
		rel.Attribute{Name: "EMPNO", Type: rel.IntegerType},
		rel.Attribute{Name: "NAME", Type: rel.StringType},
	)
	return rel.NewRelationType(tt, []rel.Key{{"EMPNO"}})
}

// TestEnvironmentMemoryBackend exercises Open/Begin/Close against the
// in-memory backend, the zero-configuration path.
func TestEnvironmentMemoryBackend(t *testing.T) {
	env, err := duro.Open("testdb", duro.OpenOptions{})
	require.NoError(t, err)
	defer env.Close()

	ctx := rel.NewExecContext()
	tx, err := env.Begin(ctx)
	require.NoError(t, err)

	_, err = env.Dbroot.CreateRealTable(tx, "EMPS1", empsRelType(), true)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
}

// TestEnvironmentBoltBackendRediscoversTables reopens a bolt-backed
// Environment against the same file and checks that the table created in
// the first session, and the tuple inserted into it, are both visible
// without being redeclared: Bootstrap's Discover call rehydrates them from
// sys_rtables/sys_tableattrs/sys_keys, per §6.
func TestEnvironmentBoltBackendRediscoversTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "duro.db")

	func() {
		env, err := duro.Open("testdb", duro.OpenOptions{Backend: duro.BackendBolt, Path: path})
		require.NoError(t, err)
		defer env.Close()

		ctx := rel.NewExecContext()
		tx, err := env.Begin(ctx)
		require.NoError(t, err)

		_, err = env.Dbroot.CreateRealTable(tx, "EMPS1", empsRelType(), true)
		require.NoError(t, err)

		rEnv := env.Dbroot.Env(ctx, tx)
		tup := rel.NewEmptyTuple()
		tup.Set("EMPNO", rel.NewInt(1))
		tup.Set("NAME", rel.NewString("Alice"))
		require.NoError(t, mutate.Insert(env.Dbroot, tx, rEnv, "EMPS1", tup))

		require.NoError(t, tx.Commit())
	}()

	env, err := duro.Open("testdb", duro.OpenOptions{Backend: duro.BackendBolt, Path: path})
	require.NoError(t, err)
	defer env.Close()

	rt, err := env.Dbroot.GetTable("EMPS1")
	require.NoError(t, err)
	require.False(t, rt.IsVirtual())

	ctx := rel.NewExecContext()
	tx, err := env.Begin(ctx)
	require.NoError(t, err)
	rEnv := env.Dbroot.Env(ctx, tx)

	q, err := qresult.Open(rt, tx.StoreTx(), rEnv)
	require.NoError(t, err)
	tuples, err := qresult.ToSlice(q)
	require.NoError(t, err)
	require.Len(t, tuples, 1)
	require.Equal(t, int64(1), tuples[0].MustGet("EMPNO").Int())
	require.Equal(t, "Alice", tuples[0].MustGet("NAME").String())
	require.NoError(t, tx.Commit())
}
