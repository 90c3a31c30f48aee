package operator

import "github.com/duro-db/duro/rel"

// RegisterArithmetic adds `+`, `-` (unary and binary), `*`, `/` over
// INTEGER and FLOAT. Division by zero raises INVALID_ARGUMENT.
func RegisterArithmetic(r *Registry) {
	binIntFloat := func(name string, intFn func(a, b int64) (int64, error), floatFn func(a, b float64) (float64, error)) {
		r.AddReadOnly(&Descriptor{
			Name: name, ParamTypes: []rel.Type{rel.IntegerType, rel.IntegerType}, ParamCount: 2,
			ReturnType: rel.IntegerType,
			Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) {
				v, err := intFn(args[0].Int(), args[1].Int())
				if err != nil {
					return rel.Value{}, err
				}
				return rel.NewInt(v), nil
			},
		})
		r.AddReadOnly(&Descriptor{
			Name: name, ParamTypes: []rel.Type{rel.FloatType, rel.FloatType}, ParamCount: 2,
			ReturnType: rel.FloatType,
			Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) {
				v, err := floatFn(args[0].Float(), args[1].Float())
				if err != nil {
					return rel.Value{}, err
				}
				return rel.NewFloat(v), nil
			},
		})
	}

	binIntFloat("+",
		func(a, b int64) (int64, error) { return a + b, nil },
		func(a, b float64) (float64, error) { return a + b, nil })
	binIntFloat("-",
		func(a, b int64) (int64, error) { return a - b, nil },
		func(a, b float64) (float64, error) { return a - b, nil })
	binIntFloat("*",
		func(a, b int64) (int64, error) { return a * b, nil },
		func(a, b float64) (float64, error) { return a * b, nil })
	binIntFloat("/",
		func(a, b int64) (int64, error) {
			if b == 0 {
				return 0, rel.ErrInvalidArgument.New("division by zero")
			}
			return a / b, nil
		},
		func(a, b float64) (float64, error) {
			if b == 0 {
				return 0, rel.ErrInvalidArgument.New("division by zero")
			}
			return a / b, nil
		})

	// Unary minus.
	r.AddReadOnly(&Descriptor{
		Name: "-", ParamTypes: []rel.Type{rel.IntegerType}, ParamCount: 1, ReturnType: rel.IntegerType,
		Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) { return rel.NewInt(-args[0].Int()), nil },
	})
	r.AddReadOnly(&Descriptor{
		Name: "-", ParamTypes: []rel.Type{rel.FloatType}, ParamCount: 1, ReturnType: rel.FloatType,
		Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) { return rel.NewFloat(-args[0].Float()), nil },
	})
	r.AddReadOnly(&Descriptor{
		Name: "+", ParamTypes: []rel.Type{rel.IntegerType}, ParamCount: 1, ReturnType: rel.IntegerType,
		Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) { return args[0], nil },
	})
	r.AddReadOnly(&Descriptor{
		Name: "+", ParamTypes: []rel.Type{rel.FloatType}, ParamCount: 1, ReturnType: rel.FloatType,
		Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) { return args[0], nil },
	})
}
