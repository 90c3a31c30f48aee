package operator

import (
	"fmt"

	"github.com/duro-db/duro/rel"
)

// GenerateSelector builds the system-implemented selector operator for a
// possrep: it composes the arep value from its ordered arguments and
// applies the type's constraint, raising TYPE_CONSTRAINT_VIOLATION if it is
// not satisfied.
func GenerateSelector(st *rel.ScalarType, pr rel.Possrep) *Descriptor {
	paramTypes := make([]rel.Type, len(pr.Components))
	for i, c := range pr.Components {
		paramTypes[i] = c.Type
	}
	return &Descriptor{
		Name:       pr.Name,
		ParamTypes: paramTypes,
		ParamCount: len(paramTypes),
		ReturnType: st,
		Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) {
			var arep rel.Value
			if len(pr.Components) == 1 {
				arep = args[0]
			} else {
				t := rel.NewEmptyTuple()
				for i, c := range pr.Components {
					t.Set(c.Name, args[i])
				}
				arep = rel.NewTupleTyped(t, st.Arep.(*rel.TupleType))
			}
			return rel.NewScalar(st, arep)
		},
	}
}

// GenerateGetter builds `<TypeName>_get_<component>`.
func GenerateGetter(st *rel.ScalarType, component rel.Attribute) *Descriptor {
	name := fmt.Sprintf("%s_get_%s", st.TypeName, component.Name)
	return &Descriptor{
		Name: name, ParamTypes: []rel.Type{st}, ParamCount: 1, ReturnType: component.Type,
		Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) {
			return args[0].GetComponent(component.Name)
		},
	}
}

// GenerateSetter builds `<TypeName>_set_<component>`: two arguments, the
// first an update-mode argument of the user type, the second the new
// component value.
func GenerateSetter(st *rel.ScalarType, component rel.Attribute) *Descriptor {
	name := fmt.Sprintf("%s_set_%s", st.TypeName, component.Name)
	return &Descriptor{
		Name:        name,
		ParamTypes:  []rel.Type{st, component.Type},
		ParamCount:  2,
		ParamUpdate: []bool{true, false},
		UpdateFn: func(env rel.Env, args []*rel.Value) error {
			nv, err := args[0].SetComponent(component.Name, *args[1])
			if err != nil {
				return err
			}
			*args[0] = nv
			return nil
		},
	}
}

// GenerateComparator derives a cmp operator for an ordered type with a
// single possrep of ordered components, used by implement_type when no
// user `cmp` operator is registered.
func GenerateComparator(st *rel.ScalarType) *Descriptor {
	return &Descriptor{
		Name:       st.TypeName + "_cmp",
		ParamTypes: []rel.Type{st, st},
		ParamCount: 2,
		ReturnType: rel.IntegerType,
		Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) {
			c, err := args[0].Compare(args[1])
			if err != nil {
				return rel.Value{}, err
			}
			return rel.NewInt(int64(c)), nil
		},
	}
}

// RegisterTypeOperators registers the selector, getters, setters and
// (when applicable) comparator generated for a system-implemented type by
// implement_type.
func RegisterTypeOperators(r *Registry, st *rel.ScalarType, pr rel.Possrep) {
	RegisterTypeOperatorsNoComparator(r, st, pr)
	if st.Ordered {
		if _, ok := st.SingleOrderedPossrep(); ok {
			r.AddReadOnly(GenerateComparator(st))
		}
	}
}

// RegisterTypeOperatorsNoComparator registers the selector, getters and
// setters only, leaving st.Comparator and any visible cmp operator
// unregistered. Used when the caller supplies its own ordering function
// (typesys.WithComparator) instead of the derived component-wise one.
func RegisterTypeOperatorsNoComparator(r *Registry, st *rel.ScalarType, pr rel.Possrep) {
	r.AddReadOnly(GenerateSelector(st, pr))
	for _, c := range pr.Components {
		r.AddReadOnly(GenerateGetter(st, c))
		r.AddUpdate(GenerateSetter(st, c))
	}
}
