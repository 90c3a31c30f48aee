package relalg

import (
	"github.com/duro-db/duro/qresult"
	"github.com/duro-db/duro/rel"
	"github.com/duro-db/duro/store"
	"github.com/duro-db/duro/table"
)

// joinKeys implements §4.7's join rule: every pair (k1, k2) of keys of the
// two inputs yields a candidate key k1 ∪ k2, with redundant supersets of
// another candidate removed.
func joinKeys(aKeys, bKeys []rel.Key) []rel.Key {
	var candidates []rel.Key
	for _, ka := range aKeys {
		for _, kb := range bKeys {
			set := nameSet(ka)
			for _, n := range kb {
				set[n] = true
			}
			merged := make(rel.Key, 0, len(set))
			for n := range set {
				merged = append(merged, n)
			}
			candidates = append(candidates, merged)
		}
	}
	var out []rel.Key
	for i, ci := range candidates {
		superset := false
		for j, cj := range candidates {
			if i == j {
				continue
			}
			if len(cj) < len(ci) && cj.Subset(nameSet(ci)) {
				superset = true
				break
			}
		}
		if !superset {
			out = append(out, ci)
		}
	}
	return out
}

// Join builds the virtual table for `join(a, b)`: a natural join matching
// on every attribute common to both headings.
func Join(a, b table.Table) (table.Table, error) {
	at, bt := a.RelType().Tuple, b.RelType().Tuple
	common := commonAttrs(at, bt)
	for _, n := range common {
		ta, _ := at.AttrType(n)
		tb, _ := bt.AttrType(n)
		if !ta.Equal(tb) {
			return nil, rel.ErrTypeMismatch.New("join(): common attribute " + n + " has different types")
		}
	}
	attrs := append([]rel.Attribute(nil), at.Attrs...)
	for _, a2 := range bt.Attrs {
		found := false
		for _, n := range common {
			if n == a2.Name {
				found = true
				break
			}
		}
		if !found {
			attrs = append(attrs, a2)
		}
	}
	newTT := rel.NewTupleType(attrs...)
	keys := joinKeys(a.Keys(), b.Keys())
	return &derivedTable{
		relType: rel.NewRelationType(newTT, keys),
		keys:    keys,
		open: func(tx store.Tx, env rel.Env) (qresult.Qresult, error) {
			outer, err := qresult.Open(a, tx, env)
			if err != nil {
				return nil, err
			}
			return qresult.Join(outer, func() (qresult.Qresult, error) {
				return qresult.Open(b, tx, env)
			}, common), nil
		},
	}, nil
}
