package relalg

import (
	"github.com/duro-db/duro/qresult"
	"github.com/duro-db/duro/rel"
	"github.com/duro-db/duro/store"
	"github.com/duro-db/duro/table"
)

// wrapKeys implements §4.7's wrap rule: for each input key, replace any
// attribute in W with N if W ⊆ key, else drop the key.
func wrapKeys(keys []rel.Key, wrapped []string, newAttr string) []rel.Key {
	w := nameSet(wrapped)
	var out []rel.Key
	for _, k := range keys {
		if k.Subset(w) {
			// Every attribute of W present in k: the whole key collapses
			// to N (plus whatever of k wasn't in W, which is none since
			// k ⊆ W here — k's remaining members, if any outside W, are
			// kept, but k ⊆ w per Subset so nothing remains).
			out = append(out, rel.Key{newAttr})
			continue
		}
		hasAny := false
		for _, n := range k {
			if w[n] {
				hasAny = true
				break
			}
		}
		if hasAny {
			continue // drop: only a partial overlap with W
		}
		out = append(out, k)
	}
	if len(out) == 0 {
		return keys
	}
	return out
}

// Wrap builds the virtual table for `wrap(input, wrapped, newAttr)`:
// combines the wrapped attribute set into a single tuple-valued attribute.
func Wrap(input table.Table, wrapped []string, newAttr string) (table.Table, error) {
	tt := input.RelType().Tuple
	wrapType := tt.Project(wrapped)
	if len(wrapType.Attrs) != len(wrapped) {
		return nil, rel.ErrInvalidArgument.New("wrap(): unknown attribute in wrap list")
	}
	attrs := append([]rel.Attribute(nil), tt.Project(complement(tt, wrapped)).Attrs...)
	attrs = append(attrs, rel.Attribute{Name: newAttr, Type: wrapType})
	newTT := rel.NewTupleType(attrs...)
	keys := wrapKeys(input.Keys(), wrapped, newAttr)
	return &derivedTable{
		relType: rel.NewRelationType(newTT, keys),
		keys:    keys,
		open: func(tx store.Tx, env rel.Env) (qresult.Qresult, error) {
			inner, err := qresult.Open(input, tx, env)
			if err != nil {
				return nil, err
			}
			return qresult.Wrap(inner, wrapped, newAttr, wrapType), nil
		},
	}, nil
}

// unwrapKeys implements §4.7's unwrap rule: for each input key containing
// N, replace N with the attributes of T.
func unwrapKeys(keys []rel.Key, attr string, innerAttrs []string) []rel.Key {
	out := make([]rel.Key, len(keys))
	for i, k := range keys {
		var nk rel.Key
		for _, n := range k {
			if n == attr {
				nk = append(nk, innerAttrs...)
			} else {
				nk = append(nk, n)
			}
		}
		out[i] = nk
	}
	return out
}

// Unwrap builds the virtual table for `unwrap(input, attr)`: expands a
// tuple-valued attribute back into the outer tuple's attribute set.
func Unwrap(input table.Table, attr string) (table.Table, error) {
	tt := input.RelType().Tuple
	at, ok := tt.AttrType(attr)
	if !ok {
		return nil, rel.ErrInvalidArgument.New("unwrap(): no such attribute " + attr)
	}
	innerTT, ok := at.(*rel.TupleType)
	if !ok {
		return nil, rel.ErrTypeMismatch.New("unwrap(): " + attr + " is not tuple-valued")
	}
	attrs := append([]rel.Attribute(nil), tt.Project(complement(tt, []string{attr})).Attrs...)
	attrs = append(attrs, innerTT.Attrs...)
	newTT := rel.NewTupleType(attrs...)
	keys := unwrapKeys(input.Keys(), attr, innerTT.AttrNames())
	return &derivedTable{
		relType: rel.NewRelationType(newTT, keys),
		keys:    keys,
		open: func(tx store.Tx, env rel.Env) (qresult.Qresult, error) {
			inner, err := qresult.Open(input, tx, env)
			if err != nil {
				return nil, err
			}
			return qresult.Unwrap(inner, attr), nil
		},
	}, nil
}
