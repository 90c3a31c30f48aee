package rel

import (
	"fmt"
	"strings"
)

// InternalLenVariable marks a scalar type whose internal representation has
// no fixed byte length.
const InternalLenVariable = -1

// Type is implemented by every type descriptor: scalar, tuple, relation and
// array. Type descriptors are expected to
// be interned by name within an environment's dbroot so
// that Equal can usually short-circuit on pointer identity.
type Type interface {
	Name() string
	String() string
	Equal(other Type) bool
	// IsScalar distinguishes a ScalarType from the three nonscalar kinds.
	IsScalar() bool
}

// Attribute is a (name, type) pair, used both for tuple-type components and
// for possrep components.
type Attribute struct {
	Name string
	Type Type
}

// Possrep is a named possible representation of a user-defined scalar type
// (GLOSSARY). Components are ordered; a selector operator is named after the
// possrep and takes one argument per component, in order.
type Possrep struct {
	Name       string
	Components []Attribute
}

func (p Possrep) ComponentNames() []string {
	names := make([]string, len(p.Components))
	for i, c := range p.Components {
		names[i] = c.Name
	}
	return names
}

// Evaluable is satisfied by expr.Expr (defined in the sibling rel/expr
// package). It is declared here, rather than importing rel/expr, so that
// ScalarType can hold a constraint/initializer expression without rel
// depending on its own consumer.
type Evaluable interface {
	EvalScalar(env Env) (Value, error)
}

// Env is the name -> value binding an expression is evaluated against, plus
// the execution context and an opaque handle to a running transaction.
// rel/expr.Expr.Eval takes an Env; defined here for the same reason as
// Evaluable above.
type Env struct {
	Ctx  *ExecContext
	Vars map[string]Value
	// Tx is an *txn.Transaction in practice; kept as interface{} so the
	// core value/type package does not depend on the transaction package.
	Tx interface{}
	// Resolve looks up a table by name. Nil when no catalog is in scope.
	Resolve func(name string) (Relation, error)
	// Ops dispatches OP expression nodes to a registered operator body.
	Ops OpDispatcher
}

func (e Env) Lookup(name string) (Value, bool) {
	v, ok := e.Vars[name]
	return v, ok
}

func (e Env) WithVar(name string, v Value) Env {
	nv := make(map[string]Value, len(e.Vars)+1)
	for k, val := range e.Vars {
		nv[k] = val
	}
	nv[name] = v
	return Env{Ctx: e.Ctx, Vars: nv, Tx: e.Tx, Resolve: e.Resolve, Ops: e.Ops}
}

// ScalarType is a possibly user-defined scalar type: POINT, an enum, or a
// built-in primitive (BOOLEAN, INTEGER, FLOAT, STRING, BINARY).
type ScalarType struct {
	TypeName    string
	InternalLen int // InternalLenVariable if variable-length
	Possreps    []Possrep
	// Arep is the actual (physical) representation type, set by
	// implement_type; nil for a type declared but not yet implemented.
	Arep        Type
	Ordered     bool
	Constraint  Evaluable
	Initializer Evaluable
	// Comparator, if non-nil, implements ordering/equality directly,
	// overriding derived component-wise comparison. Returns -1/0/1.
	Comparator func(a, b Value) (int, error)
	// builtin marks one of the system primitive scalars, which have no
	// possreps and need no arep.
	builtin bool
}

func (t *ScalarType) Name() string   { return t.TypeName }
func (t *ScalarType) IsScalar() bool { return true }
func (t *ScalarType) String() string { return t.TypeName }

func (t *ScalarType) Equal(other Type) bool {
	o, ok := other.(*ScalarType)
	if !ok {
		return false
	}
	if t == o {
		return true
	}
	return t.TypeName == o.TypeName
}

// PossrepByName finds a possrep of the type by name, or the type's only
// possrep if it has exactly one and name is empty.
func (t *ScalarType) PossrepByName(name string) (Possrep, bool) {
	if name == "" && len(t.Possreps) == 1 {
		return t.Possreps[0], true
	}
	for _, p := range t.Possreps {
		if p.Name == name {
			return p, true
		}
	}
	return Possrep{}, false
}

// SingleOrderedPossrep returns the type's sole possrep when it is the only
// one and every component is itself ordered, enabling component-wise
// derived comparison.
func (t *ScalarType) SingleOrderedPossrep() (Possrep, bool) {
	if len(t.Possreps) != 1 {
		return Possrep{}, false
	}
	for _, c := range t.Possreps[0].Components {
		st, ok := c.Type.(*ScalarType)
		if !ok || !st.Ordered {
			return Possrep{}, false
		}
	}
	return t.Possreps[0], true
}

// TupleType is an ordered list of named attribute types.
type TupleType struct {
	Attrs []Attribute
}

func NewTupleType(attrs ...Attribute) *TupleType {
	return &TupleType{Attrs: attrs}
}

func (t *TupleType) Name() string   { return t.String() }
func (t *TupleType) IsScalar() bool { return false }

func (t *TupleType) String() string {
	parts := make([]string, len(t.Attrs))
	for i, a := range t.Attrs {
		parts[i] = a.Name + " " + a.Type.String()
	}
	return "TUPLE {" + strings.Join(parts, ", ") + "}"
}

func (t *TupleType) Equal(other Type) bool {
	o, ok := other.(*TupleType)
	if !ok || len(o.Attrs) != len(t.Attrs) {
		return false
	}
	byName := make(map[string]Type, len(o.Attrs))
	for _, a := range o.Attrs {
		byName[a.Name] = a.Type
	}
	for _, a := range t.Attrs {
		ot, ok := byName[a.Name]
		if !ok || !a.Type.Equal(ot) {
			return false
		}
	}
	return true
}

func (t *TupleType) AttrType(name string) (Type, bool) {
	for _, a := range t.Attrs {
		if a.Name == name {
			return a.Type, true
		}
	}
	return nil, false
}

func (t *TupleType) AttrNames() []string {
	names := make([]string, len(t.Attrs))
	for i, a := range t.Attrs {
		names[i] = a.Name
	}
	return names
}

// Project returns the tuple type restricted to the given attribute names, in
// the original declaration order.
func (t *TupleType) Project(names []string) *TupleType {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var attrs []Attribute
	for _, a := range t.Attrs {
		if want[a.Name] {
			attrs = append(attrs, a)
		}
	}
	return &TupleType{Attrs: attrs}
}

// Key is a candidate key: a set of attribute names.
type Key []string

func (k Key) Equal(other Key) bool {
	if len(k) != len(other) {
		return false
	}
	set := make(map[string]bool, len(k))
	for _, n := range k {
		set[n] = true
	}
	for _, n := range other {
		if !set[n] {
			return false
		}
	}
	return true
}

// Subset reports whether every attribute of k is in s.
func (k Key) Subset(s map[string]bool) bool {
	for _, n := range k {
		if !s[n] {
			return false
		}
	}
	return true
}

// RelationType is a base tuple type plus a list of candidate keys.
type RelationType struct {
	Tuple *TupleType
	Keys  []Key
}

func NewRelationType(tuple *TupleType, keys []Key) *RelationType {
	return &RelationType{Tuple: tuple, Keys: keys}
}

func (t *RelationType) Name() string   { return t.String() }
func (t *RelationType) IsScalar() bool { return false }

func (t *RelationType) String() string {
	return fmt.Sprintf("RELATION %s", t.Tuple.String())
}

func (t *RelationType) Equal(other Type) bool {
	o, ok := other.(*RelationType)
	return ok && t.Tuple.Equal(o.Tuple)
}

// ArrayType is an ordered sequence of values of a common base type.
type ArrayType struct {
	Base Type
}

func NewArrayType(base Type) *ArrayType { return &ArrayType{Base: base} }

func (t *ArrayType) Name() string   { return t.String() }
func (t *ArrayType) IsScalar() bool { return false }
func (t *ArrayType) String() string { return "ARRAY OF " + t.Base.String() }
func (t *ArrayType) Equal(other Type) bool {
	o, ok := other.(*ArrayType)
	return ok && t.Base.Equal(o.Base)
}

// Built-in primitive scalar types. These have no possreps: their external
// and internal representations coincide.
var (
	BooleanType = &ScalarType{TypeName: "BOOLEAN", InternalLen: 1, builtin: true, Ordered: true}
	IntegerType = &ScalarType{TypeName: "INTEGER", InternalLen: 8, builtin: true, Ordered: true}
	FloatType   = &ScalarType{TypeName: "FLOAT", InternalLen: 8, builtin: true, Ordered: true}
	StringType  = &ScalarType{TypeName: "STRING", InternalLen: InternalLenVariable, builtin: true, Ordered: true}
	BinaryType  = &ScalarType{TypeName: "BINARY", InternalLen: InternalLenVariable, builtin: true, Ordered: false}
)

// Builtin reports whether t is one of the system primitive scalar types.
func Builtin(t Type) bool {
	st, ok := t.(*ScalarType)
	return ok && st.builtin
}
