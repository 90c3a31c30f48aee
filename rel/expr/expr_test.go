package expr

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/duro-db/duro/operator"
	"github.com/duro-db/duro/rel"
)

func env(reg *operator.Registry, vars map[string]rel.Value) rel.Env {
	return rel.Env{Ctx: rel.NewExecContext(), Vars: vars, Ops: reg}
}

func TestLiteralAndVar(t *testing.T) {
	require := require.New(t)
	e := env(nil, map[string]rel.Value{"x": rel.NewInt(7)})

	lit := NewLiteral(rel.NewInt(42))
	v, err := lit.Eval(e)
	require.NoError(err)
	require.Equal(int64(42), v.Int())

	vr := NewVar("x")
	v, err = vr.Eval(e)
	require.NoError(err)
	require.Equal(int64(7), v.Int())

	_, err = NewVar("missing").Eval(e)
	require.Error(err)
	require.True(rel.ErrName.Is(err))
}

func TestOpArithmetic(t *testing.T) {
	require := require.New(t)
	reg := operator.NewRegistry()
	operator.RegisterScalarBuiltins(reg)
	e := env(reg, nil)

	add := NewOp("+", NewLiteral(rel.NewInt(2)), NewLiteral(rel.NewInt(3)))
	v, err := add.Eval(e)
	require.NoError(err)
	require.Equal(int64(5), v.Int())

	typ, err := add.InferType(TypeEnv{Ops: reg})
	require.NoError(err)
	require.Equal(rel.IntegerType, typ)
}

func TestOpIfEvaluatesOnlyChosenBranch(t *testing.T) {
	require := require.New(t)
	reg := operator.NewRegistry()
	operator.RegisterScalarBuiltins(reg)
	e := env(reg, nil)

	poison := NewOp("/", NewLiteral(rel.NewInt(1)), NewLiteral(rel.NewInt(0)))
	ifExpr := NewOp("if", NewLiteral(rel.NewBool(true)), NewLiteral(rel.NewInt(1)), poison)
	v, err := ifExpr.Eval(e)
	require.NoError(err)
	require.Equal(int64(1), v.Int())

	ifExpr2 := NewOp("if", NewLiteral(rel.NewBool(false)), poison, NewLiteral(rel.NewInt(9)))
	v, err = ifExpr2.Eval(e)
	require.NoError(err)
	require.Equal(int64(9), v.Int())
}

func TestDependsOn(t *testing.T) {
	require := require.New(t)
	e := NewOp("+", NewVar("x"), NewTableRef("R"))
	require.True(e.DependsOn("R"))
	require.False(e.DependsOn("S"))
}

func TestCompGet(t *testing.T) {
	require := require.New(t)
	pointType := &rel.ScalarType{
		TypeName: "POINT",
		Ordered:  true,
		Possreps: []rel.Possrep{{
			Name: "CART",
			Components: []rel.Attribute{
				{Name: "X", Type: rel.FloatType},
				{Name: "Y", Type: rel.FloatType},
			},
		}},
	}
	pointType.Arep = rel.NewTupleType(
		rel.Attribute{Name: "X", Type: rel.FloatType},
		rel.Attribute{Name: "Y", Type: rel.FloatType},
	)
	reg := operator.NewRegistry()
	operator.RegisterTypeOperators(reg, pointType, pointType.Possreps[0])

	sel, err := reg.Get("CART", []rel.Type{rel.FloatType, rel.FloatType})
	require.NoError(err)
	p, err := sel.Fn(rel.Env{}, []rel.Value{rel.NewFloat(1), rel.NewFloat(2)})
	require.NoError(err)

	cg := NewCompGet(NewLiteral(p), "Y")
	v, err := cg.Eval(env(reg, nil))
	require.NoError(err)
	require.Equal(2.0, v.Float())
}
