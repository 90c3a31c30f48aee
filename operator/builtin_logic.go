package operator

import "github.com/duro-db/duro/rel"

// RegisterLogic adds `and`, `or`, `xor`, `not` over BOOLEAN.
func RegisterLogic(r *Registry) {
	bin := func(name string, fn func(a, b bool) bool) {
		r.AddReadOnly(&Descriptor{
			Name: name, ParamTypes: []rel.Type{rel.BooleanType, rel.BooleanType}, ParamCount: 2,
			ReturnType: rel.BooleanType,
			Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) {
				return rel.NewBool(fn(args[0].Bool(), args[1].Bool())), nil
			},
		})
	}
	bin("and", func(a, b bool) bool { return a && b })
	bin("or", func(a, b bool) bool { return a || b })
	bin("xor", func(a, b bool) bool { return a != b })

	r.AddReadOnly(&Descriptor{
		Name: "not", ParamTypes: []rel.Type{rel.BooleanType}, ParamCount: 1, ReturnType: rel.BooleanType,
		Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) { return rel.NewBool(!args[0].Bool()), nil },
	})

	// if(bool, a, b): both branches must have the same type; only the
	// chosen branch is semantically realized. Since
	// Go evaluates args eagerly before Fn is called, the "only the chosen
	// branch realized" contract is honored by rel/expr's OP evaluation,
	// which special-cases `if` to avoid evaluating the other branch; see
	// expr.evalIf.
	r.AddReadOnly(&Descriptor{
		Name: "if", ParamCount: 3, ReturnType: nil,
		Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) {
			if len(args) != 3 {
				return rel.Value{}, rel.ErrInvalidArgument.New("if() takes three arguments")
			}
			if args[0].Bool() {
				return args[1], nil
			}
			return args[2], nil
		},
	})
}
