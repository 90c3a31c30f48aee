package operator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/duro-db/duro/rel"
)

func TestDispatchExactOverload(t *testing.T) {
	require := require.New(t)
	r := NewRegistry()
	RegisterScalarBuiltins(r)

	d, err := r.Get("+", []rel.Type{rel.IntegerType, rel.IntegerType})
	require.NoError(err)
	v, err := d.Fn(rel.Env{}, []rel.Value{rel.NewInt(2), rel.NewInt(3)})
	require.NoError(err)
	require.Equal(int64(5), v.Int())

	d, err = r.Get("+", []rel.Type{rel.FloatType, rel.FloatType})
	require.NoError(err)
	v, err = d.Fn(rel.Env{}, []rel.Value{rel.NewFloat(2), rel.NewFloat(3)})
	require.NoError(err)
	require.Equal(5.0, v.Float())
}

func TestDispatchTypeMismatch(t *testing.T) {
	require := require.New(t)
	r := NewRegistry()
	RegisterScalarBuiltins(r)

	_, err := r.Get("+", []rel.Type{rel.IntegerType, rel.StringType})
	require.Error(err)
	require.True(rel.ErrTypeMismatch.Is(err))
}

func TestDispatchOperatorNotFound(t *testing.T) {
	require := require.New(t)
	r := NewRegistry()

	_, err := r.Get("nope", []rel.Type{rel.IntegerType})
	require.Error(err)
	require.True(rel.ErrOperatorNotFound.Is(err))
}

func TestDivisionByZero(t *testing.T) {
	require := require.New(t)
	r := NewRegistry()
	RegisterScalarBuiltins(r)

	d, err := r.Get("/", []rel.Type{rel.IntegerType, rel.IntegerType})
	require.NoError(err)
	_, err = d.Fn(rel.Env{}, []rel.Value{rel.NewInt(1), rel.NewInt(0)})
	require.Error(err)
	require.True(rel.ErrInvalidArgument.Is(err))
}

func TestSelectorGetterSetter(t *testing.T) {
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

	r := NewRegistry()
	RegisterTypeOperators(r, pointType, pointType.Possreps[0])

	sel, err := r.Get("CART", []rel.Type{rel.FloatType, rel.FloatType})
	require.NoError(err)
	p, err := sel.Fn(rel.Env{}, []rel.Value{rel.NewFloat(1), rel.NewFloat(2)})
	require.NoError(err)

	getX, err := r.Get("POINT_get_X", []rel.Type{pointType})
	require.NoError(err)
	x, err := getX.Fn(rel.Env{}, []rel.Value{p})
	require.NoError(err)
	require.Equal(1.0, x.Float())

	setX, err := r.GetUpdate("POINT_set_X", []rel.Type{pointType, rel.FloatType})
	require.NoError(err)
	pp := p
	require.NoError(setX.UpdateFn(rel.Env{}, []*rel.Value{&pp, valPtr(rel.NewFloat(9))}))
	x2, _ := getX.Fn(rel.Env{}, []rel.Value{pp})
	require.Equal(9.0, x2.Float())

	cmp, err := r.Get("POINT_cmp", []rel.Type{pointType, pointType})
	require.NoError(err)
	c, err := cmp.Fn(rel.Env{}, []rel.Value{p, pp})
	require.NoError(err)
	require.True(c.Int() < 0)
}

func valPtr(v rel.Value) *rel.Value { return &v }
