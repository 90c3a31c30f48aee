package operator

import "github.com/duro-db/duro/rel"

// RegisterComparison adds `=`, `<>`, `<`, `>`, `<=`, `>=` for any pair of
// values of the same type. Ordering operators accept
// INTEGER, FLOAT, STRING by Go's natural (locale-independent) collation, or
// any ordered user type via rel.Value.Compare.
func RegisterComparison(r *Registry) {
	generic := func(name string, fn func(a, b rel.Value) (bool, error)) {
		r.AddReadOnly(&Descriptor{
			Name: name, ParamCount: -1, ReturnType: rel.BooleanType,
			Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) {
				if len(args) != 2 {
					return rel.Value{}, rel.ErrInvalidArgument.New(name + " takes two arguments")
				}
				ok, err := fn(args[0], args[1])
				if err != nil {
					return rel.Value{}, err
				}
				return rel.NewBool(ok), nil
			},
		})
	}

	generic("=", func(a, b rel.Value) (bool, error) { return a.Equal(b) })
	generic("<>", func(a, b rel.Value) (bool, error) {
		ok, err := a.Equal(b)
		return !ok, err
	})
	generic("<", func(a, b rel.Value) (bool, error) {
		c, err := a.Compare(b)
		return c < 0, err
	})
	generic(">", func(a, b rel.Value) (bool, error) {
		c, err := a.Compare(b)
		return c > 0, err
	})
	generic("<=", func(a, b rel.Value) (bool, error) {
		c, err := a.Compare(b)
		return c <= 0, err
	})
	generic(">=", func(a, b rel.Value) (bool, error) {
		c, err := a.Compare(b)
		return c >= 0, err
	})
}
