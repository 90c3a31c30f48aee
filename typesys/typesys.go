// Package typesys implements the type-definition lifecycle (§4.4):
// define_type declares a scalar type's possreps without committing to a
// representation, implement_type chooses the physical arep and generates
// the selector/getter/setter/comparator operators, and drop_type removes a
// type once nothing in the catalog still references it.
package typesys

import (
	"github.com/duro-db/duro/catalog"
	"github.com/duro-db/duro/operator"
	"github.com/duro-db/duro/rel"
	"github.com/duro-db/duro/txn"
)

// Define declares a new scalar type with the given possreps and ordering,
// but no representation yet: implement_type must follow before the type
// can be used as an attribute type. typename/internallen/ordered and the
// possrep/component shape are recorded in sys_types/sys_possreps/
// sys_possrepcomps so a reopened environment can rebuild the declaration;
// the constraint/initializer callbacks themselves live only in the
// in-memory type cache for the life of the process (see DESIGN.md).
func Define(d *catalog.Dbroot, tx *txn.Transaction, name string, possreps []rel.Possrep, ordered bool, constraint, initializer rel.Evaluable) (*rel.ScalarType, error) {
	if _, err := d.ScalarType(name); err == nil {
		return nil, rel.ErrElementExists.New("type " + name)
	}
	st := &rel.ScalarType{
		TypeName:    name,
		InternalLen: rel.InternalLenVariable,
		Possreps:    possreps,
		Ordered:     ordered,
		Constraint:  constraint,
		Initializer: initializer,
	}
	if err := recordType(d, tx, st); err != nil {
		return nil, err
	}
	d.PutScalarType(st)
	return st, nil
}

func recordType(d *catalog.Dbroot, tx *txn.Transaction, st *rel.ScalarType) error {
	types, ok := d.SystemTable(catalog.SysTypes)
	if !ok {
		return rel.ErrInternal.New("sys_types not bootstrapped")
	}
	tup := rel.NewEmptyTuple()
	tup.Set("typename", rel.NewString(st.TypeName))
	tup.Set("internallen", rel.NewInt(int64(st.InternalLen)))
	tup.Set("ordered", rel.NewBool(st.Ordered))
	if err := types.Insert(tx.StoreTx(), tup); err != nil {
		return err
	}
	possreps, ok := d.SystemTable(catalog.SysPossreps)
	if !ok {
		return rel.ErrInternal.New("sys_possreps not bootstrapped")
	}
	comps, ok := d.SystemTable(catalog.SysPossrepcomps)
	if !ok {
		return rel.ErrInternal.New("sys_possrepcomps not bootstrapped")
	}
	for _, pr := range st.Possreps {
		prTup := rel.NewEmptyTuple()
		prTup.Set("typename", rel.NewString(st.TypeName))
		prTup.Set("possrepname", rel.NewString(pr.Name))
		if err := possreps.Insert(tx.StoreTx(), prTup); err != nil {
			return err
		}
		for i, c := range pr.Components {
			enc, err := rel.EncodeType(c.Type)
			if err != nil {
				return err
			}
			cTup := rel.NewEmptyTuple()
			cTup.Set("typename", rel.NewString(st.TypeName))
			cTup.Set("possrepname", rel.NewString(pr.Name))
			cTup.Set("compname", rel.NewString(c.Name))
			cTup.Set("compno", rel.NewInt(int64(i)))
			cTup.Set("comptype", rel.NewBinary(enc))
			if err := comps.Insert(tx.StoreTx(), cTup); err != nil {
				return err
			}
		}
	}
	return nil
}

// ImplementOption configures Implement beyond the mechanically-generated
// selector/getter/setter/comparator trio.
type ImplementOption func(*implementOpts)

type implementOpts struct {
	comparator func(a, b rel.Value) (int, error)
}

// WithComparator supplies an ordering function for st directly, bypassing
// the derived single-possrep comparator GenerateComparator would otherwise
// build. Used when a host binding wants to order values by something other
// than component-wise comparison of the arep, without registering a visible
// `cmp` operator for it (cmp operator lookup remains the primary path
// per §4.4; this is the fallback a binding reaches for when it has no
// operator to register one under).
func WithComparator(fn func(a, b rel.Value) (int, error)) ImplementOption {
	return func(o *implementOpts) { o.comparator = fn }
}

// Implement chooses st's physical representation (its arep) and generates
// the system-implemented selector, getters, setters and, for an ordered
// type with a single all-ordered possrep, a derived comparator. A nil arep
// means the type's sole possrep already describes a representation
// identical to its external form (a "same type" possrep), using the
// possrep's single component type directly.
func Implement(ops *operator.Registry, st *rel.ScalarType, arep rel.Type, opts ...ImplementOption) error {
	if st.Arep != nil {
		return rel.ErrInvalidArgument.New("type " + st.TypeName + " is already implemented")
	}
	if arep == nil {
		pr, ok := st.SingleOrderedPossrep()
		if !ok || len(pr.Components) != 1 {
			return rel.ErrInvalidArgument.New("implement_type requires an explicit arep unless there is exactly one, single-component possrep")
		}
		arep = pr.Components[0].Type
	}
	st.Arep = arep
	var o implementOpts
	for _, opt := range opts {
		opt(&o)
	}
	for _, pr := range st.Possreps {
		if o.comparator != nil && st.Ordered {
			operator.RegisterTypeOperatorsNoComparator(ops, st, pr)
			continue
		}
		operator.RegisterTypeOperators(ops, st, pr)
	}
	if o.comparator != nil && st.Ordered {
		st.Comparator = o.comparator
	}
	return nil
}

// Drop removes a scalar type from the catalog. Per §4.4 the type must not
// be in use: referenced by any table attribute, by a possrep component of
// another type, or by the parameter or return type of any operator.
func Drop(d *catalog.Dbroot, ops *operator.Registry, tx *txn.Transaction, name string) error {
	st, err := d.ScalarType(name)
	if err != nil {
		return err
	}
	if rel.Builtin(st) {
		return rel.ErrInvalidArgument.New("cannot drop builtin type " + name)
	}
	inUse, err := tableAttrsReference(d, tx, name)
	if err != nil {
		return err
	}
	if inUse {
		return rel.ErrInUse.New("type " + name + " is used by a table attribute")
	}
	for _, other := range d.ScalarTypes() {
		if other.TypeName == name {
			continue
		}
		for _, pr := range other.Possreps {
			for _, c := range pr.Components {
				if referencesType(c.Type, name) {
					return rel.ErrInUse.New("type " + name + " is used by a possrep of type " + other.TypeName)
				}
			}
		}
	}
	for _, desc := range ops.AllReadOnly() {
		if opReferences(desc.ParamTypes, desc.ReturnType, name) {
			return rel.ErrInUse.New("type " + name + " is used by operator " + desc.Name)
		}
	}
	for _, desc := range ops.AllUpdate() {
		if opReferences(desc.ParamTypes, desc.ReturnType, name) {
			return rel.ErrInUse.New("type " + name + " is used by operator " + desc.Name)
		}
	}
	if err := deleteTypeRows(d, tx, name); err != nil {
		return err
	}
	d.DropScalarType(name)
	return nil
}

func opReferences(paramTypes []rel.Type, returnType rel.Type, name string) bool {
	for _, pt := range paramTypes {
		if referencesType(pt, name) {
			return true
		}
	}
	return returnType != nil && referencesType(returnType, name)
}

// referencesType reports whether t names typeName anywhere in its
// structure: directly as a scalar, or nested in a tuple/relation/array
// constructor.
func referencesType(t rel.Type, typeName string) bool {
	switch v := t.(type) {
	case *rel.ScalarType:
		return v.TypeName == typeName
	case *rel.TupleType:
		for _, a := range v.Attrs {
			if referencesType(a.Type, typeName) {
				return true
			}
		}
		return false
	case *rel.RelationType:
		return referencesType(v.Tuple, typeName)
	case *rel.ArrayType:
		return referencesType(v.Base, typeName)
	}
	return false
}

// tableAttrsReference scans sys_tableattrs for any attribute whose encoded
// type references typeName.
func tableAttrsReference(d *catalog.Dbroot, tx *txn.Transaction, typeName string) (bool, error) {
	attrs, ok := d.SystemTable(catalog.SysTableattrs)
	if !ok {
		return false, rel.ErrInternal.New("sys_tableattrs not bootstrapped")
	}
	cur, err := attrs.Scan(tx.StoreTx(), "")
	if err != nil {
		return false, err
	}
	defer cur.Close()
	found := false
	ok2, err := cur.First()
	for ; ok2 && err == nil; ok2, err = cur.Next() {
		rec, rerr := cur.Current()
		if rerr != nil {
			return false, rerr
		}
		tup, derr := attrs.DecodeRecord(rec)
		if derr != nil {
			return false, derr
		}
		enc, present := tup.Get("type")
		if !present {
			continue
		}
		t, terr := rel.DecodeType(enc.Binary(), d)
		if terr != nil {
			return false, terr
		}
		if referencesType(t, typeName) {
			found = true
			break
		}
	}
	if err != nil {
		return false, err
	}
	return found, nil
}

func deleteTypeRows(d *catalog.Dbroot, tx *txn.Transaction, typeName string) error {
	for _, sysName := range []string{catalog.SysPossrepcomps, catalog.SysPossreps, catalog.SysTypes} {
		if err := d.DeleteRowsByAttr(tx, sysName, "typename", typeName); err != nil {
			return err
		}
	}
	return nil
}
