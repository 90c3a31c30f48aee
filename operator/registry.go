// Package operator implements the name+signature operator dispatch table:
// two maps (read-only, update) from operator name to an overload list,
// keyed directly by name rather than hashed, since the overload count per
// name is always small.
package operator

import (
	"github.com/duro-db/duro/rel"
)

// ROFunc implements a read-only operator body.
type ROFunc func(env rel.Env, args []rel.Value) (rel.Value, error)

// UpdateFunc implements an update operator body. Arguments flagged as
// "update" in the descriptor are passed by pointer so the body can mutate
// them in place.
type UpdateFunc func(env rel.Env, args []*rel.Value) error

// Descriptor describes one overload of an operator.
type Descriptor struct {
	Name string
	// ParamTypes is nil/empty and ParamCount is -1 for the generic
	// catch-all overload, preferred only when no exact match exists.
	ParamTypes []rel.Type
	ParamCount int
	// ParamUpdate flags which parameters of an update operator are
	// update-mode (mutated in place) rather than read-only.
	ParamUpdate []bool
	// ReturnType is nil for update operators.
	ReturnType rel.Type
	Fn         ROFunc
	UpdateFn   UpdateFunc

	// Lib/Symbol address a dynamically loaded implementation; Source holds an interpreter-source string instead, for
	// operators defined in the D language (out of scope for the core, but
	// the field is carried since the catalog schema requires it).
	Lib     string
	Symbol  string
	Source  string
	Version string
}

// matchesArgTypes reports whether argv satisfies d beyond the argument
// count already checked by dispatch. A descriptor that leaves ParamTypes
// nil (every relational/aggregate operator, whose operand is a relation of
// whatever heading the caller passes) accepts any argv of the right count;
// one that sets ParamTypes (every scalar built-in) requires each argument's
// type to match exactly.
func (d *Descriptor) matchesArgTypes(argv []rel.Type) bool {
	if d.ParamCount == -1 {
		return true
	}
	if d.ParamTypes == nil {
		return true
	}
	if len(d.ParamTypes) != len(argv) {
		return false
	}
	for i, pt := range d.ParamTypes {
		if !pt.Equal(argv[i]) {
			return false
		}
	}
	return true
}

// Registry holds the read-only and update operator maps.
type Registry struct {
	ro  map[string][]*Descriptor
	upd map[string][]*Descriptor
}

func NewRegistry() *Registry {
	return &Registry{ro: make(map[string][]*Descriptor), upd: make(map[string][]*Descriptor)}
}

// AddReadOnly registers a read-only operator overload.
func (r *Registry) AddReadOnly(d *Descriptor) {
	r.ro[d.Name] = append(r.ro[d.Name], d)
}

// AddUpdate registers an update operator overload.
func (r *Registry) AddUpdate(d *Descriptor) {
	r.upd[d.Name] = append(r.upd[d.Name], d)
}

// Get dispatches a read-only operator call: the first entry whose parameter
// count equals argc and whose parameter types equal argv's types, with a
// generic (-1 parameter count) catch-all used only if no exact match
// exists.
func (r *Registry) Get(name string, argv []rel.Type) (*Descriptor, error) {
	return dispatch(r.ro[name], name, argv)
}

// GetUpdate dispatches an update operator call with the same rule.
func (r *Registry) GetUpdate(name string, argv []rel.Type) (*Descriptor, error) {
	return dispatch(r.upd[name], name, argv)
}

func dispatch(list []*Descriptor, name string, argv []rel.Type) (*Descriptor, error) {
	if len(list) == 0 {
		return nil, rel.ErrOperatorNotFound.New(name, len(argv))
	}
	var generic *Descriptor
	argcMatch := false
	for _, d := range list {
		if d.ParamCount == -1 {
			generic = d
			continue
		}
		if d.ParamCount != len(argv) {
			continue
		}
		argcMatch = true
		if d.matchesArgTypes(argv) {
			return d, nil
		}
	}
	if generic != nil {
		return generic, nil
	}
	if argcMatch {
		return nil, rel.ErrTypeMismatch.New(name)
	}
	return nil, rel.ErrOperatorNotFound.New(name, len(argv))
}

// Dispatch implements rel.OpDispatcher so rel/expr can resolve an OP node
// without the rel package importing operator (see rel/dispatch.go).
func (r *Registry) Dispatch(name string, argv []rel.Type) (rel.OpFunc, rel.Type, error) {
	d, err := r.Get(name, argv)
	if err != nil {
		return nil, nil, err
	}
	return rel.OpFunc(d.Fn), d.ReturnType, nil
}

// Overloads returns every registered read-only overload of name, used by
// drop_type's IN_USE scan.
func (r *Registry) Overloads(name string) []*Descriptor {
	return r.ro[name]
}

// AllReadOnly returns every registered read-only descriptor across all
// names, used by drop_type's reference scan.
func (r *Registry) AllReadOnly() []*Descriptor {
	var out []*Descriptor
	for _, list := range r.ro {
		out = append(out, list...)
	}
	return out
}

// AllUpdate returns every registered update descriptor across all names.
func (r *Registry) AllUpdate() []*Descriptor {
	var out []*Descriptor
	for _, list := range r.upd {
		out = append(out, list...)
	}
	return out
}

// Load looks up name/argv the same way Get does, then additionally checks a
// catalog-supplied version string against the descriptor's own Version
// field when the descriptor carries one (an operator backed by a
// dynamically loaded Lib/Symbol rather than a Go Fn). A Descriptor with no
// Version set (every built-in) is never considered stale. Operators with a
// Source (D-language interpreter body) are out of scope for the core and
// never reach Load with a non-empty catalogVersion.
func (r *Registry) Load(name string, argv []rel.Type, catalogVersion string) (*Descriptor, error) {
	d, err := r.Get(name, argv)
	if err != nil {
		return nil, err
	}
	if d.Version != "" && catalogVersion != "" && d.Version != catalogVersion {
		return nil, rel.ErrVersionMismatch.New(name + ": catalog version " + catalogVersion + " != loaded version " + d.Version)
	}
	return d, nil
}

// IsSelector reports whether a read-only operator name equals a possrep
// name of its return type, the naming convention every type selector follows.
func IsSelector(d *Descriptor) bool {
	st, ok := d.ReturnType.(*rel.ScalarType)
	if !ok {
		return false
	}
	_, found := st.PossrepByName(d.Name)
	return found
}
