package rel

import (
	"fmt"
)

// Kind tags the variant a Value currently holds.
type Kind int

const (
	KindInitial Kind = iota
	KindBool
	KindInt
	KindFloat
	KindBinary
	KindTuple
	KindArray
	KindTable
)

func (k Kind) String() string {
	switch k {
	case KindInitial:
		return "INITIAL"
	case KindBool:
		return "BOOL"
	case KindInt:
		return "INT"
	case KindFloat:
		return "FLOAT"
	case KindBinary:
		return "BINARY"
	case KindTuple:
		return "TUPLE"
	case KindArray:
		return "ARRAY"
	case KindTable:
		return "TABLE"
	default:
		return "UNKNOWN"
	}
}

// Relation is the minimal surface Value needs from a table (real or
// virtual). table.Table implements it; rel itself never constructs one,
// breaking the cycle described in DESIGN.md.
type Relation interface {
	RelType() *RelationType
}

// Value is a polymorphic value: one of INITIAL, BOOL, INT, FLOAT, BINARY,
// TUPLE, TABLE or ARRAY. The zero Value is INITIAL.
type Value struct {
	kind Kind
	typ  Type

	b   bool
	i   int64
	f   float64
	bin []byte
	tup *Tuple
	arr *Array
	rel Relation

	// arep holds the actual-representation value for a user-defined scalar
	// produced by a selector.
	// Nil for system primitive scalars, whose arep is themselves.
	arep *Value
}

// Initial returns an untyped, uninitialized value.
func Initial() Value { return Value{kind: KindInitial} }

func NewBool(b bool) Value       { return Value{kind: KindBool, typ: BooleanType, b: b} }
func NewInt(i int64) Value       { return Value{kind: KindInt, typ: IntegerType, i: i} }
func NewFloat(f float64) Value   { return Value{kind: KindFloat, typ: FloatType, f: f} }
func NewString(s string) Value   { return Value{kind: KindBinary, typ: StringType, bin: []byte(s)} }
func NewBinary(b []byte) Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{kind: KindBinary, typ: BinaryType, bin: cp}
}
func NewTuple(t *Tuple) Value { return Value{kind: KindTuple, typ: t.InferType(), tup: t} }
func NewTupleTyped(t *Tuple, typ *TupleType) Value {
	return Value{kind: KindTuple, typ: typ, tup: t}
}
func NewArray(a *Array, typ *ArrayType) Value { return Value{kind: KindArray, typ: typ, arr: a} }
func NewTable(r Relation) Value {
	return Value{kind: KindTable, typ: r.RelType(), rel: r}
}

// NewScalar constructs a user-defined scalar value from its arep value,
// applying the type's constraint.
func NewScalar(typ *ScalarType, arep Value) (Value, error) {
	v := Value{kind: arep.kind, typ: typ, b: arep.b, i: arep.i, f: arep.f, bin: arep.bin, tup: arep.tup, arr: arep.arr, rel: arep.rel, arep: &arep}
	if typ.Constraint != nil {
		ok, err := checkConstraint(typ, v)
		if err != nil {
			return Value{}, err
		}
		if !ok {
			return Value{}, ErrTypeConstraintViolation.New(typ.TypeName)
		}
	}
	return v, nil
}

func checkConstraint(typ *ScalarType, v Value) (bool, error) {
	env := Env{Ctx: NewExecContext(), Vars: componentEnv(typ, v)}
	res, err := typ.Constraint.EvalScalar(env)
	if err != nil {
		return false, err
	}
	if res.Kind() != KindBool {
		return false, ErrTypeMismatch.New("constraint must be boolean")
	}
	return res.Bool(), nil
}

// componentEnv binds each possrep component name of typ's single possrep to
// the corresponding component value of v, so a constraint expression can
// reference component names directly.
func componentEnv(typ *ScalarType, v Value) map[string]Value {
	vars := map[string]Value{}
	pr, ok := typ.PossrepByName("")
	if !ok {
		return vars
	}
	for _, c := range pr.Components {
		cv, err := v.GetComponent(c.Name)
		if err == nil {
			vars[c.Name] = cv
		}
	}
	return vars
}

func (v Value) Kind() Kind  { return v.kind }
func (v Value) Type() Type  { return v.typ }
func (v Value) IsInitial() bool { return v.kind == KindInitial }

func (v Value) Bool() bool    { return v.b }
func (v Value) Int() int64    { return v.i }
func (v Value) Float() float64 { return v.f }
func (v Value) String() string { return string(v.bin) }
func (v Value) Binary() []byte { return v.bin }
func (v Value) Tuple() *Tuple   { return v.tup }
func (v Value) Array() *Array   { return v.arr }
func (v Value) Table() Relation { return v.rel }

// Arep returns the actual-representation value underlying a user-defined
// scalar, or v itself for system primitives and nonscalars.
func (v Value) Arep() Value {
	if v.arep != nil {
		return *v.arep
	}
	return v
}

// GetComponent extracts a possrep component by name from a user-defined
// scalar value. If the type's arep is the single
// component's type directly, the arep value itself is the component; if
// arep is a tuple over all components, the component is a tuple attribute.
func (v Value) GetComponent(name string) (Value, error) {
	st, ok := v.typ.(*ScalarType)
	if !ok {
		return Value{}, ErrInvalidArgument.New("not a scalar value")
	}
	pr, ok := st.PossrepByName("")
	if !ok {
		return Value{}, ErrInvalidArgument.New("ambiguous possrep for " + st.TypeName)
	}
	arep := v.Arep()
	if len(pr.Components) == 1 && pr.Components[0].Name == name {
		return arep, nil
	}
	if arep.kind != KindTuple {
		return Value{}, ErrInvalidArgument.New("component " + name + " not found")
	}
	cv, ok := arep.tup.Get(name)
	if !ok {
		return Value{}, ErrInvalidArgument.New("component " + name + " not found")
	}
	return cv, nil
}

// SetComponent returns a copy of v with possrep component name replaced by
// value, re-checking the type constraint.
func (v Value) SetComponent(name string, value Value) (Value, error) {
	st, ok := v.typ.(*ScalarType)
	if !ok {
		return Value{}, ErrInvalidArgument.New("not a scalar value")
	}
	pr, ok := st.PossrepByName("")
	if !ok {
		return Value{}, ErrInvalidArgument.New("ambiguous possrep for " + st.TypeName)
	}
	arep := v.Arep()
	var newArep Value
	if len(pr.Components) == 1 && pr.Components[0].Name == name {
		newArep = value
	} else {
		if arep.kind != KindTuple {
			return Value{}, ErrInvalidArgument.New("component " + name + " not found")
		}
		nt := arep.tup.Copy()
		nt.Set(name, value)
		newArep = NewTupleTyped(nt, arep.typ.(*TupleType))
	}
	return NewScalar(st, newArep)
}

// Copy performs a deep copy, duplicating owned buffers and nested
// tuples/arrays.
func (v Value) Copy() Value {
	nv := v
	if v.bin != nil {
		nv.bin = append([]byte(nil), v.bin...)
	}
	if v.tup != nil {
		nv.tup = v.tup.Copy()
	}
	if v.arr != nil {
		nv.arr = v.arr.Copy()
	}
	if v.arep != nil {
		a := v.arep.Copy()
		nv.arep = &a
	}
	return nv
}

// Equal reports whether two values are equal: they must have compatible
// types and equal external (possrep) values; derived component-wise
// comparison is used for ordered single-possrep user types absent an
// explicit comparator/cmp operator.
func (v Value) Equal(o Value) (bool, error) {
	if v.kind != o.kind {
		return false, nil
	}
	if vt, ok := v.typ.(*ScalarType); ok {
		if ot, ok := o.typ.(*ScalarType); ok && !vt.Equal(ot) {
			return false, nil
		}
		if vt.Comparator != nil {
			c, err := vt.Comparator(v, o)
			if err != nil {
				return false, err
			}
			return c == 0, nil
		}
	}
	switch v.kind {
	case KindInitial:
		return true, nil
	case KindBool:
		return v.b == o.b, nil
	case KindInt:
		return v.i == o.i, nil
	case KindFloat:
		return v.f == o.f, nil
	case KindBinary:
		return string(v.bin) == string(o.bin), nil
	case KindTuple:
		return v.tup.Equal(o.tup)
	case KindArray:
		return v.arr.Equal(o.arr)
	case KindTable:
		return false, ErrNotSupported.New("table equality")
	}
	return false, nil
}

// Compare orders two ordered scalar values, using an explicit Comparator,
// falling back to component-wise comparison of a single ordered possrep
// when every component itself orders.
func (v Value) Compare(o Value) (int, error) {
	if st, ok := v.typ.(*ScalarType); ok {
		if st.Comparator != nil {
			return st.Comparator(v, o)
		}
		if pr, ok := st.SingleOrderedPossrep(); ok {
			for _, c := range pr.Components {
				cv, err := v.GetComponent(c.Name)
				if err != nil {
					return 0, err
				}
				co, err := o.GetComponent(c.Name)
				if err != nil {
					return 0, err
				}
				cmp, err := cv.Compare(co)
				if err != nil {
					return 0, err
				}
				if cmp != 0 {
					return cmp, nil
				}
			}
			return 0, nil
		}
	}
	switch v.kind {
	case KindInt:
		return cmpInt64(v.i, o.i), nil
	case KindFloat:
		return cmpFloat64(v.f, o.f), nil
	case KindBinary:
		return cmpString(string(v.bin), string(o.bin)), nil
	case KindBool:
		return cmpBool(v.b, o.b), nil
	}
	return 0, ErrNotSupported.New(fmt.Sprintf("ordering of %s", v.kind))
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpBool(a, b bool) int {
	if a == b {
		return 0
	}
	if !a {
		return -1
	}
	return 1
}
