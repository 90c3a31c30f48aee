package rel

// Tuple is a mapping from attribute name to value; insertion order is
// irrelevant to identity but preserved for stable printing.
type Tuple struct {
	order []string
	vals  map[string]Value
}

// NewEmptyTuple returns a tuple with no attributes.
func NewEmptyTuple() *Tuple {
	return &Tuple{vals: make(map[string]Value)}
}

// TupleFrom builds a tuple from alternating name/value pairs, as accepted by
// the `tuple` constructor operator.
func TupleFrom(pairs ...interface{}) (*Tuple, error) {
	if len(pairs)%2 != 0 {
		return nil, ErrInvalidArgument.New("tuple() requires an even number of arguments")
	}
	t := NewEmptyTuple()
	for i := 0; i < len(pairs); i += 2 {
		name, ok := pairs[i].(string)
		if !ok {
			return nil, ErrInvalidArgument.New("tuple() attribute name must be a string")
		}
		val, ok := pairs[i+1].(Value)
		if !ok {
			return nil, ErrInvalidArgument.New("tuple() attribute value must be a Value")
		}
		if _, exists := t.vals[name]; exists {
			return nil, ErrInvalidArgument.New("duplicate attribute " + name)
		}
		t.Set(name, val)
	}
	return t, nil
}

// Set assigns or replaces the value of attribute name.
func (t *Tuple) Set(name string, v Value) {
	if t.vals == nil {
		t.vals = make(map[string]Value)
	}
	if _, exists := t.vals[name]; !exists {
		t.order = append(t.order, name)
	}
	t.vals[name] = v
}

// Get returns the value of attribute name and whether it is present.
func (t *Tuple) Get(name string) (Value, bool) {
	v, ok := t.vals[name]
	return v, ok
}

// MustGet panics if name is absent; used in internal code that has already
// validated the tuple's heading.
func (t *Tuple) MustGet(name string) Value {
	v, ok := t.vals[name]
	if !ok {
		panic("rel: tuple missing attribute " + name)
	}
	return v
}

// Names returns the attribute names in insertion order.
func (t *Tuple) Names() []string {
	return append([]string(nil), t.order...)
}

// Len returns the number of attributes.
func (t *Tuple) Len() int { return len(t.order) }

// Remove drops an attribute, if present.
func (t *Tuple) Remove(name string) {
	if _, ok := t.vals[name]; !ok {
		return
	}
	delete(t.vals, name)
	for i, n := range t.order {
		if n == name {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// Rename renames attribute from to to, preserving its value and position.
func (t *Tuple) Rename(from, to string) {
	v, ok := t.vals[from]
	if !ok {
		return
	}
	delete(t.vals, from)
	t.vals[to] = v
	for i, n := range t.order {
		if n == from {
			t.order[i] = to
			break
		}
	}
}

// Project returns a new tuple restricted to names.
func (t *Tuple) Project(names []string) *Tuple {
	nt := NewEmptyTuple()
	for _, n := range names {
		if v, ok := t.vals[n]; ok {
			nt.Set(n, v)
		}
	}
	return nt
}

// Copy performs a deep copy of the tuple and its values.
func (t *Tuple) Copy() *Tuple {
	nt := NewEmptyTuple()
	for _, n := range t.order {
		nt.Set(n, t.vals[n].Copy())
	}
	return nt
}

// Equal reports whether two tuples have the same attribute set and all
// values compare equal.
func (t *Tuple) Equal(o *Tuple) (bool, error) {
	if t.Len() != o.Len() {
		return false, nil
	}
	for _, n := range t.order {
		tv, ok := t.vals[n]
		if !ok {
			return false, nil
		}
		ov, ok := o.vals[n]
		if !ok {
			return false, nil
		}
		eq, err := tv.Equal(ov)
		if err != nil {
			return false, err
		}
		if !eq {
			return false, nil
		}
	}
	return true, nil
}

// InferType builds a TupleType from the tuple's current attribute values,
// used when a tuple is constructed without an explicit schema (for example
// by the `tuple` operator). Order follows insertion order.
func (t *Tuple) InferType() *TupleType {
	attrs := make([]Attribute, 0, len(t.order))
	for _, n := range t.order {
		attrs = append(attrs, Attribute{Name: n, Type: t.vals[n].Type()})
	}
	return NewTupleType(attrs...)
}
