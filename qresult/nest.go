package qresult

import (
	"github.com/duro-db/duro/rel"
)

// wrapQr implements Wrap: combine a fixed attribute set W into a single
// nested-tuple attribute N, for every tuple of inner.
type wrapQr struct {
	inner    Qresult
	wrapped  []string
	newAttr  string
	wrapType *rel.TupleType
}

// Wrap replaces the wrapped attributes of each of inner's tuples with a
// single tuple-valued attribute named newAttr, typed wrapType.
func Wrap(inner Qresult, wrapped []string, newAttr string, wrapType *rel.TupleType) Qresult {
	return &wrapQr{inner: inner, wrapped: wrapped, newAttr: newAttr, wrapType: wrapType}
}

func (w *wrapQr) Next() (*rel.Tuple, error) {
	tup, err := w.inner.Next()
	if err != nil {
		return nil, err
	}
	inner := tup.Project(w.wrapped)
	out := rel.NewEmptyTuple()
	for _, n := range tup.Names() {
		if containsName(w.wrapped, n) {
			continue
		}
		v, _ := tup.Get(n)
		out.Set(n, v)
	}
	out.Set(w.newAttr, rel.NewTupleTyped(inner, w.wrapType))
	return out, nil
}

func (w *wrapQr) Close() error { return w.inner.Close() }

func containsName(names []string, n string) bool {
	for _, x := range names {
		if x == n {
			return true
		}
	}
	return false
}

// unwrapQr implements Unwrap: replace a single tuple-valued attribute N
// with its own attributes, merged into the outer tuple.
type unwrapQr struct {
	inner Qresult
	attr  string
}

// Unwrap expands attr (a tuple-valued attribute) of each of inner's tuples
// back into the outer tuple's attribute set.
func Unwrap(inner Qresult, attr string) Qresult {
	return &unwrapQr{inner: inner, attr: attr}
}

func (u *unwrapQr) Next() (*rel.Tuple, error) {
	tup, err := u.inner.Next()
	if err != nil {
		return nil, err
	}
	nested, ok := tup.Get(u.attr)
	if !ok || nested.Kind() != rel.KindTuple {
		return nil, rel.ErrTypeMismatch.New("unwrap() requires a tuple-valued attribute " + u.attr)
	}
	out := rel.NewEmptyTuple()
	for _, n := range tup.Names() {
		if n == u.attr {
			continue
		}
		v, _ := tup.Get(n)
		out.Set(n, v)
	}
	for _, n := range nested.Tuple().Names() {
		v, _ := nested.Tuple().Get(n)
		out.Set(n, v)
	}
	return out, nil
}

func (u *unwrapQr) Close() error { return u.inner.Close() }

// ungroupQr implements Ungroup: for each outer tuple, emit one combined
// tuple per tuple of its nested relation attribute.
type ungroupQr struct {
	inner     Qresult
	rvAttr    string
	cur       *rel.Tuple
	nested    []*rel.Tuple
	nestedPos int
}

// Ungroup expands the relation-valued attribute rvAttr of each of inner's
// tuples, combined with the rest of the outer tuple's attributes, per row
// of the nested relation.
func Ungroup(inner Qresult, rvAttr string) Qresult {
	return &ungroupQr{inner: inner, rvAttr: rvAttr}
}

func (u *ungroupQr) Next() (*rel.Tuple, error) {
	for {
		if u.cur == nil || u.nestedPos >= len(u.nested) {
			tup, err := u.inner.Next()
			if err != nil {
				return nil, err
			}
			nv, ok := tup.Get(u.rvAttr)
			if !ok || nv.Kind() != rel.KindTable {
				return nil, rel.ErrTypeMismatch.New("ungroup() requires a relation-valued attribute " + u.rvAttr)
			}
			lit, ok := nv.Table().(interface{ Tuples() []*rel.Tuple })
			if !ok {
				return nil, rel.ErrNotSupported.New("ungroup() over a non-materialized nested relation")
			}
			u.cur = tup
			u.nested = lit.Tuples()
			u.nestedPos = 0
			if len(u.nested) == 0 {
				continue
			}
		}
		nestedTup := u.nested[u.nestedPos]
		u.nestedPos++
		out := rel.NewEmptyTuple()
		for _, n := range u.cur.Names() {
			if n == u.rvAttr {
				continue
			}
			v, _ := u.cur.Get(n)
			out.Set(n, v)
		}
		for _, n := range nestedTup.Names() {
			v, _ := nestedTup.Get(n)
			out.Set(n, v)
		}
		return out, nil
	}
}

func (u *ungroupQr) Close() error { return u.inner.Close() }

// groupEntry accumulates the nested tuples sharing one key projection
// during Group's materialization pass.
type groupEntry struct {
	key    *rel.Tuple
	nested []*rel.Tuple
}

// Group implements the Group strategy: tuples are partitioned by their
// projection onto the complement of groupedAttrs (the surviving key per
// §4.7); each partition's groupedAttrs projection becomes the extension of
// a nested relation stored under rvAttr.
func Group(source Qresult, groupedAttrs []string, keyAttrs []string, rvAttr string, nestedType *rel.RelationType, newRelation func(*rel.RelationType, []*rel.Tuple) (rel.Relation, error)) (Qresult, error) {
	defer source.Close()
	index := make(map[uint64]*groupEntry)
	var order []uint64
	for {
		tup, err := source.Next()
		if err != nil {
			if rel.ErrNotFound.Is(err) {
				break
			}
			return nil, err
		}
		keyProj := tup.Project(keyAttrs)
		h, err := rel.TupleHash(keyProj, keyAttrs)
		if err != nil {
			return nil, err
		}
		e, ok := index[h]
		if !ok {
			e = &groupEntry{key: keyProj}
			index[h] = e
			order = append(order, h)
		}
		e.nested = append(e.nested, tup.Project(groupedAttrs))
	}
	out := make([]*rel.Tuple, 0, len(order))
	for _, h := range order {
		e := index[h]
		rv, err := newRelation(nestedType, e.nested)
		if err != nil {
			return nil, err
		}
		t := e.key.Copy()
		t.Set(rvAttr, rel.NewTable(rv))
		out = append(out, t)
	}
	return newSliceScan(out), nil
}
