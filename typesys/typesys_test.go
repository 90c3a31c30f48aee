package typesys_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/duro-db/duro/catalog"
	"github.com/duro-db/duro/rel"
	"github.com/duro-db/duro/rel/expr"
	"github.com/duro-db/duro/store"
	"github.com/duro-db/duro/txn"
	"github.com/duro-db/duro/typesys"
)

func newDbroot(t *testing.T) (*catalog.Dbroot, *txn.Transaction) {
	t.Helper()
	st := store.NewMemStore()
	ctx := rel.NewExecContext()
	tx, err := txn.Begin(st, ctx)
	require.NoError(t, err)
	d, err := catalog.Bootstrap(st, tx)
	require.NoError(t, err)
	return d, tx
}

// TestScenarioS3 mirrors spec.md's S3: define_type/implement_type generate a
// selector that composes the arep and applies the type's constraint.
// CART(1.0, 0.0) = CART(1.0, 0.0) holds; POLAR(-1.0, 0.0) violates R >= 0 and
// raises TYPE_CONSTRAINT_VIOLATION.
func TestScenarioS3(t *testing.T) {
	d, tx := newDbroot(t)

	cartType := rel.NewTupleType(
		rel.Attribute{Name: "X", Type: rel.FloatType},
		rel.Attribute{Name: "Y", Type: rel.FloatType},
	)
	cart := rel.Possrep{Name: "CART", Components: []rel.Attribute{
		{Name: "X", Type: rel.FloatType},
		{Name: "Y", Type: rel.FloatType},
	}}
	point, err := typesys.Define(d, tx, "POINT", []rel.Possrep{cart}, false, nil, nil)
	require.NoError(t, err)
	require.NoError(t, typesys.Implement(d.Ops, point, cartType))

	cartSel, err := d.Ops.Get("CART", []rel.Type{rel.FloatType, rel.FloatType})
	require.NoError(t, err)
	env := rel.Env{Ctx: rel.NewExecContext()}
	p1, err := cartSel.Fn(env, []rel.Value{rel.NewFloat(1.0), rel.NewFloat(0.0)})
	require.NoError(t, err)
	p2, err := cartSel.Fn(env, []rel.Value{rel.NewFloat(1.0), rel.NewFloat(0.0)})
	require.NoError(t, err)
	eq, err := p1.Equal(p2)
	require.NoError(t, err)
	require.True(t, eq)

	polarType := rel.NewTupleType(
		rel.Attribute{Name: "R", Type: rel.FloatType},
		rel.Attribute{Name: "THETA", Type: rel.FloatType},
	)
	polar := rel.Possrep{Name: "POLAR", Components: []rel.Attribute{
		{Name: "R", Type: rel.FloatType},
		{Name: "THETA", Type: rel.FloatType},
	}}
	rNonNegative := expr.AsEvaluable(expr.NewOp(">=", expr.NewVar("R"), expr.NewLiteral(rel.NewFloat(0))))
	rpoint, err := typesys.Define(d, tx, "RPOINT", []rel.Possrep{polar}, false, rNonNegative, nil)
	require.NoError(t, err)
	require.NoError(t, typesys.Implement(d.Ops, rpoint, polarType))

	polarSel, err := d.Ops.Get("POLAR", []rel.Type{rel.FloatType, rel.FloatType})
	require.NoError(t, err)
	_, err = polarSel.Fn(env, []rel.Value{rel.NewFloat(-1.0), rel.NewFloat(0.0)})
	require.Error(t, err)
	require.True(t, rel.ErrTypeConstraintViolation.Is(err))
}

// TestDropTypeInUse checks §4.4's drop_type guard: a type still referenced
// by a table attribute cannot be dropped.
func TestDropTypeInUse(t *testing.T) {
	d, tx := newDbroot(t)

	cartType := rel.NewTupleType(
		rel.Attribute{Name: "X", Type: rel.FloatType},
		rel.Attribute{Name: "Y", Type: rel.FloatType},
	)
	cart := rel.Possrep{Name: "CART", Components: []rel.Attribute{
		{Name: "X", Type: rel.FloatType},
		{Name: "Y", Type: rel.FloatType},
	}}
	point, err := typesys.Define(d, tx, "POINT", []rel.Possrep{cart}, false, nil, nil)
	require.NoError(t, err)
	require.NoError(t, typesys.Implement(d.Ops, point, cartType))

	relType := rel.NewRelationType(rel.NewTupleType(
		rel.Attribute{Name: "ID", Type: rel.IntegerType},
		rel.Attribute{Name: "LOC", Type: point},
	), []rel.Key{{"ID"}})
	_, err = d.CreateRealTable(tx, "LOCATIONS", relType, true)
	require.NoError(t, err)

	err = typesys.Drop(d, d.Ops, tx, "POINT")
	require.Error(t, err)
	require.True(t, rel.ErrInUse.Is(err))
}
