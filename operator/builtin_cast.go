package operator

import (
	"github.com/spf13/cast"

	"github.com/duro-db/duro/rel"
)

// RegisterCasts adds cast_as_integer/cast_as_float/cast_as_string/
// cast_as_binary, implemented with spf13/cast rather than hand-rolled
// per-pair conversions.
func RegisterCasts(r *Registry) {
	for _, from := range []rel.Type{rel.IntegerType, rel.FloatType, rel.StringType, rel.BooleanType} {
		from := from
		r.AddReadOnly(&Descriptor{
			Name: "cast_as_integer", ParamTypes: []rel.Type{from}, ParamCount: 1, ReturnType: rel.IntegerType,
			Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) {
				i, err := cast.ToInt64E(nativeOf(args[0]))
				if err != nil {
					return rel.Value{}, rel.ErrInvalidArgument.New(err.Error())
				}
				return rel.NewInt(i), nil
			},
		})
		r.AddReadOnly(&Descriptor{
			Name: "cast_as_float", ParamTypes: []rel.Type{from}, ParamCount: 1, ReturnType: rel.FloatType,
			Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) {
				f, err := cast.ToFloat64E(nativeOf(args[0]))
				if err != nil {
					return rel.Value{}, rel.ErrInvalidArgument.New(err.Error())
				}
				return rel.NewFloat(f), nil
			},
		})
		r.AddReadOnly(&Descriptor{
			Name: "cast_as_string", ParamTypes: []rel.Type{from}, ParamCount: 1, ReturnType: rel.StringType,
			Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) {
				s, err := cast.ToStringE(nativeOf(args[0]))
				if err != nil {
					return rel.Value{}, rel.ErrInvalidArgument.New(err.Error())
				}
				return rel.NewString(s), nil
			},
		})
	}

	r.AddReadOnly(&Descriptor{
		Name: "cast_as_binary", ParamTypes: []rel.Type{rel.StringType}, ParamCount: 1, ReturnType: rel.BinaryType,
		Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) {
			return rel.NewBinary([]byte(args[0].String())), nil
		},
	})
	r.AddReadOnly(&Descriptor{
		Name: "cast_as_binary", ParamTypes: []rel.Type{rel.BinaryType}, ParamCount: 1, ReturnType: rel.BinaryType,
		Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) { return args[0], nil },
	})
}

func nativeOf(v rel.Value) interface{} {
	switch v.Kind() {
	case rel.KindInt:
		return v.Int()
	case rel.KindFloat:
		return v.Float()
	case rel.KindBool:
		return v.Bool()
	case rel.KindBinary:
		return v.String()
	default:
		return nil
	}
}
