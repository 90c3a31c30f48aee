package txn

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/duro-db/duro/rel"
	"github.com/duro-db/duro/store"
)

func TestNestedCommitMigratesDeferredDeletions(t *testing.T) {
	require := require.New(t)
	st := store.NewMemStore()
	ctx := rel.NewExecContext()

	top, err := Begin(st, ctx)
	require.NoError(err)

	child, err := BeginNested(top, ctx)
	require.NoError(err)
	child.DelRecmap("GONE")
	require.NoError(child.Commit())

	require.Len(top.deferred, 1)
	require.False(child.IsRunning())
	require.True(top.IsRunning())

	_, err = st.CreateRecmap(top.StoreTx(), store.RecmapSpec{Name: "GONE", KeyFields: 1})
	require.NoError(err)
	require.NoError(top.Commit())

	_, err = st.OpenRecmap(top.StoreTx(), "GONE")
	require.Error(err)
}

func TestNestedRollbackDiscardsDeferredDeletions(t *testing.T) {
	require := require.New(t)
	st := store.NewMemStore()
	ctx := rel.NewExecContext()

	top, err := Begin(st, ctx)
	require.NoError(err)
	child, err := BeginNested(top, ctx)
	require.NoError(err)
	child.DelRecmap("KEPT")
	require.NoError(child.Rollback())
	require.Empty(top.deferred)
	require.NoError(top.Commit())
}

func TestCommitTwiceFails(t *testing.T) {
	require := require.New(t)
	st := store.NewMemStore()
	tx, err := Begin(st, rel.NewExecContext())
	require.NoError(err)
	require.NoError(tx.Commit())
	err = tx.Commit()
	require.Error(err)
	require.True(rel.ErrNoRunningTx.Is(err))
}
