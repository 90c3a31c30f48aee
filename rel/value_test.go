package rel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTupleEquality(t *testing.T) {
	require := require.New(t)

	t1 := NewEmptyTuple()
	t1.Set("EMPNO", NewInt(1))
	t1.Set("NAME", NewString("A"))

	t2 := NewEmptyTuple()
	t2.Set("NAME", NewString("A"))
	t2.Set("EMPNO", NewInt(1))

	eq, err := t1.Equal(t2)
	require.NoError(err)
	require.True(eq, "tuples equal regardless of attribute insertion order")

	t2.Set("NAME", NewString("B"))
	eq, err = t1.Equal(t2)
	require.NoError(err)
	require.False(eq)
}

func TestScalarTypeConstraint(t *testing.T) {
	require := require.New(t)

	pointType := &ScalarType{
		TypeName: "POINT",
		Possreps: []Possrep{{
			Name: "CART",
			Components: []Attribute{
				{Name: "X", Type: FloatType},
				{Name: "Y", Type: FloatType},
			},
		}},
	}
	arepType := NewTupleType(
		Attribute{Name: "X", Type: FloatType},
		Attribute{Name: "Y", Type: FloatType},
	)
	pointType.Arep = arepType
	pointType.Constraint = constFn(func(env Env) (Value, error) {
		x := env.Vars["X"].Float()
		return NewBool(x >= 0), nil
	})

	aTup := NewEmptyTuple()
	aTup.Set("X", NewFloat(1))
	aTup.Set("Y", NewFloat(2))
	v, err := NewScalar(pointType, NewTupleTyped(aTup, arepType))
	require.NoError(err)

	x, err := v.GetComponent("X")
	require.NoError(err)
	require.Equal(1.0, x.Float())

	bTup := NewEmptyTuple()
	bTup.Set("X", NewFloat(-1))
	bTup.Set("Y", NewFloat(2))
	_, err = NewScalar(pointType, NewTupleTyped(bTup, arepType))
	require.Error(err)
	require.True(ErrTypeConstraintViolation.Is(err))
}

type constFn func(env Env) (Value, error)

func (f constFn) EvalScalar(env Env) (Value, error) { return f(env) }

func TestArrayInsertDelete(t *testing.T) {
	require := require.New(t)
	a := NewArrayOf(IntegerType, NewInt(1), NewInt(2), NewInt(3))
	require.NoError(a.Insert(1, NewInt(9)))
	require.Equal(4, a.Len())
	v, _ := a.Get(1)
	require.Equal(int64(9), v.Int())

	require.NoError(a.Delete(0))
	require.Equal(3, a.Len())
	v, _ = a.Get(0)
	require.Equal(int64(9), v.Int())
}
