package table

import (
	"github.com/duro-db/duro/rel"
	"github.com/duro-db/duro/rel/expr"
	"github.com/duro-db/duro/store"
)

// Table is the common surface of every stored or derived relation: it
// extends rel.Relation with the bookkeeping the catalog and relational
// algebra layers need (name, persistence, candidate keys).
type Table interface {
	rel.Relation
	Name() string
	IsPersistent() bool
	IsVirtual() bool
	Keys() []rel.Key
}

// RealTable is a stored table backed by a store.Recmap. Its physical field
// order places the first candidate key's attributes first, matching the
// record store's primary-key-fields-first contract; the remaining
// attributes follow in heading order.
type RealTable struct {
	name       string
	relType    *rel.RelationType
	persistent bool
	keyAttrs   []string
	order      []string
	recmap     store.Recmap
}

// CreateRealTable creates a new recmap for name and wraps it as a RealTable.
// The table's first declared key becomes the physical primary key.
func CreateRealTable(tx store.Tx, st store.Store, name string, relType *rel.RelationType, persistent bool) (*RealTable, error) {
	if len(relType.Keys) == 0 {
		return nil, rel.ErrInvalidArgument.New("real table " + name + " has no candidate key")
	}
	keyAttrs := []string(relType.Keys[0])
	order := fieldOrder(relType.Tuple, keyAttrs)
	fieldLens := make([]int, len(order))
	for i := range fieldLens {
		fieldLens[i] = store.FieldLen
	}
	rm, err := st.CreateRecmap(tx, store.RecmapSpec{
		Name:      name,
		FieldLens: fieldLens,
		KeyFields: len(keyAttrs),
		Unique:    true,
	})
	if err != nil {
		return nil, store.TranslateError(err)
	}
	return &RealTable{name: name, relType: relType, persistent: persistent, keyAttrs: keyAttrs, order: order, recmap: rm}, nil
}

// OpenRealTable opens an existing recmap for name as a RealTable, using
// relType/keys as recorded in the catalog.
func OpenRealTable(tx store.Tx, st store.Store, name string, relType *rel.RelationType, persistent bool) (*RealTable, error) {
	if len(relType.Keys) == 0 {
		return nil, rel.ErrInvalidArgument.New("real table " + name + " has no candidate key")
	}
	rm, err := st.OpenRecmap(tx, name)
	if err != nil {
		return nil, store.TranslateError(err)
	}
	keyAttrs := []string(relType.Keys[0])
	order := fieldOrder(relType.Tuple, keyAttrs)
	return &RealTable{name: name, relType: relType, persistent: persistent, keyAttrs: keyAttrs, order: order, recmap: rm}, nil
}

func (t *RealTable) RelType() *rel.RelationType { return t.relType }
func (t *RealTable) Name() string               { return t.name }
func (t *RealTable) IsPersistent() bool         { return t.persistent }
func (t *RealTable) IsVirtual() bool            { return false }
func (t *RealTable) Keys() []rel.Key            { return t.relType.Keys }

// KeyAttrs returns the primary (physical) key attribute names, in field
// order.
func (t *RealTable) KeyAttrs() []string { return append([]string(nil), t.keyAttrs...) }

// FieldOrder returns every attribute name in physical field order.
func (t *RealTable) FieldOrder() []string { return append([]string(nil), t.order...) }

// Recmap exposes the underlying store handle, for the query iterator and
// mutation engine to drive directly.
func (t *RealTable) Recmap() store.Recmap { return t.recmap }

// EncodeTuple converts tup to its physical field vector.
func (t *RealTable) EncodeTuple(tup *rel.Tuple) store.Record {
	return rowFields(tup, t.relType.Tuple, t.keyAttrs)
}

// DecodeRecord converts a physical field vector back to a tuple.
func (t *RealTable) DecodeRecord(rec store.Record) (*rel.Tuple, error) {
	return rowToTuple(rec, t.relType.Tuple, t.order)
}

// keyFields encodes just the primary-key attributes of tup, in field order.
func (t *RealTable) keyFields(tup *rel.Tuple) store.Record {
	rec := make(store.Record, len(t.keyAttrs))
	for i, name := range t.keyAttrs {
		v, _ := tup.Get(name)
		rec[i] = encodeValue(v)
	}
	return rec
}

// Insert stores tup, translating a physical key clash into ELEMENT_EXISTS
// when the colliding record is identical to tup, or KEY_VIOLATION
// otherwise.
func (t *RealTable) Insert(tx store.Tx, tup *rel.Tuple) error {
	rec := t.EncodeTuple(tup)
	err := t.recmap.Insert(tx, rec)
	if err == nil {
		return nil
	}
	cause := store.TranslateError(err)
	if rel.ErrKeyViolation.Is(cause) {
		existing, gerr := t.recmap.Get(tx, t.keyFields(tup))
		if gerr == nil {
			existingTup, derr := t.DecodeRecord(existing)
			if derr == nil {
				if eq, eerr := existingTup.Equal(tup); eerr == nil && eq {
					return rel.ErrElementExists.New(t.name)
				}
			}
		}
		return cause
	}
	return cause
}

// Delete removes the record whose primary key matches tup's.
func (t *RealTable) Delete(tx store.Tx, tup *rel.Tuple) error {
	return store.TranslateError(t.recmap.Delete(tx, t.keyFields(tup)))
}

// Update replaces the record at oldTup's primary key with newTup's fields.
// Used when an update changes a non-key attribute; a key-attribute update
// is a delete/insert pair at the mutation-engine level.
func (t *RealTable) Update(tx store.Tx, oldTup, newTup *rel.Tuple) error {
	return store.TranslateError(t.recmap.Update(tx, t.keyFields(oldTup), t.EncodeTuple(newTup)))
}

// Get looks up the record whose primary key matches key's attribute values
// (key must carry at least the key attributes).
func (t *RealTable) Get(tx store.Tx, key *rel.Tuple) (*rel.Tuple, error) {
	rec, err := t.recmap.Get(tx, t.keyFields(key))
	if err != nil {
		return nil, store.TranslateError(err)
	}
	return t.DecodeRecord(rec)
}

// Scan opens a cursor over every stored record, optionally through a
// secondary index named by index (empty string for physical order).
func (t *RealTable) Scan(tx store.Tx, index string) (store.Cursor, error) {
	c, err := t.recmap.OpenCursor(tx, index)
	if err != nil {
		return nil, store.TranslateError(err)
	}
	return c, nil
}

// VirtualTable is a derived table defined by an expression: its value is
// recomputed by evaluating Expr against an environment each time it is
// read, rather than being stored.
type VirtualTable struct {
	name    string
	relType *rel.RelationType
	keys    []rel.Key
	Expr    expr.Expr
}

// NewVirtualTable builds a virtual table named name, with the given heading
// and candidate keys, defined by e.
func NewVirtualTable(name string, relType *rel.RelationType, keys []rel.Key, e expr.Expr) *VirtualTable {
	return &VirtualTable{name: name, relType: relType, keys: keys, Expr: e}
}

func (v *VirtualTable) RelType() *rel.RelationType { return v.relType }
func (v *VirtualTable) Name() string               { return v.name }
func (v *VirtualTable) IsPersistent() bool         { return false }
func (v *VirtualTable) IsVirtual() bool            { return true }
func (v *VirtualTable) Keys() []rel.Key            { return v.keys }

// Eval recomputes the virtual table's value against env, which must resolve
// every table name the defining expression references.
func (v *VirtualTable) Eval(env rel.Env) (rel.Value, error) {
	return v.Expr.Eval(env)
}

// PublicTable is a persistent virtual table whose defining expression is
// supplied after creation, by map_public_table, rather than at definition
// time: it is declared with a heading and key set, then later mapped onto an
// expression over other tables.
type PublicTable struct {
	*VirtualTable
	mapped bool
}

// NewPublicTable declares a public table with the given heading and keys.
// It is not queryable until MapPublicTable supplies its defining
// expression.
func NewPublicTable(name string, relType *rel.RelationType, keys []rel.Key) *PublicTable {
	return &PublicTable{VirtualTable: &VirtualTable{name: name, relType: relType, keys: keys}}
}

func (p *PublicTable) IsPersistent() bool { return true }

// IsMapped reports whether MapPublicTable has supplied a defining
// expression yet.
func (p *PublicTable) IsMapped() bool { return p.mapped }

// MapPublicTable attaches e as the table's defining expression, checking
// that its inferred heading and keys match the table's declared ones.
func (p *PublicTable) MapPublicTable(e expr.Expr, inferredType *rel.RelationType, inferredKeys []rel.Key) error {
	if !p.relType.Tuple.Equal(inferredType.Tuple) {
		return rel.ErrTypeMismatch.New("map_public_table: heading does not match " + p.name)
	}
	if !keysEqual(p.keys, inferredKeys) {
		return rel.ErrInvalidArgument.New("map_public_table: key set does not match " + p.name)
	}
	p.Expr = e
	p.mapped = true
	return nil
}

func keysEqual(a, b []rel.Key) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
	for _, ka := range a {
		found := false
		for i, kb := range b {
			if !used[i] && ka.Equal(kb) {
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
