package relalg

import (
	"github.com/duro-db/duro/qresult"
	"github.com/duro-db/duro/rel"
	"github.com/duro-db/duro/store"
	"github.com/duro-db/duro/table"
)

// Group builds the virtual table for `group(input, grouped, rvAttr)`: the
// grouped attribute set becomes a nested relation-valued attribute named
// rvAttr; per §4.7 the complement of grouped becomes the unique key.
func Group(input table.Table, grouped []string, rvAttr string) (table.Table, error) {
	tt := input.RelType().Tuple
	nestedTT := tt.Project(grouped)
	if len(nestedTT.Attrs) != len(grouped) {
		return nil, rel.ErrInvalidArgument.New("group(): unknown attribute in grouped list")
	}
	keyAttrs := complement(tt, grouped)
	nestedType := rel.NewRelationType(nestedTT, []rel.Key{rel.Key(nestedTT.AttrNames())})
	attrs := append([]rel.Attribute(nil), tt.Project(keyAttrs).Attrs...)
	attrs = append(attrs, rel.Attribute{Name: rvAttr, Type: nestedType})
	newTT := rel.NewTupleType(attrs...)
	keys := []rel.Key{rel.Key(keyAttrs)}
	return &derivedTable{
		relType: rel.NewRelationType(newTT, keys),
		keys:    keys,
		open: func(tx store.Tx, env rel.Env) (qresult.Qresult, error) {
			inner, err := qresult.Open(input, tx, env)
			if err != nil {
				return nil, err
			}
			return qresult.Group(inner, grouped, keyAttrs, rvAttr, nestedType, newLiteralRelation)
		},
	}, nil
}

// ungroupKeys implements §4.7's ungroup rule: keys derived from base-table
// keys plus the keys of the nested relation type, every base key (with
// rvAttr stripped, since ungroup removes it) crossed with every nested key,
// redundant supersets removed exactly as for join.
func ungroupKeys(baseKeys []rel.Key, rvAttr string, nestedKeys []rel.Key) []rel.Key {
	stripped := make([]rel.Key, len(baseKeys))
	for i, k := range baseKeys {
		var nk rel.Key
		for _, n := range k {
			if n != rvAttr {
				nk = append(nk, n)
			}
		}
		stripped[i] = nk
	}
	return joinKeys(stripped, nestedKeys)
}

// Ungroup builds the virtual table for `ungroup(input, rvAttr)`: expands
// the relation-valued attribute rvAttr, combined with the rest of the outer
// tuple, into one row per nested tuple.
func Ungroup(input table.Table, rvAttr string) (table.Table, error) {
	tt := input.RelType().Tuple
	at, ok := tt.AttrType(rvAttr)
	if !ok {
		return nil, rel.ErrInvalidArgument.New("ungroup(): no such attribute " + rvAttr)
	}
	nestedType, ok := at.(*rel.RelationType)
	if !ok {
		return nil, rel.ErrTypeMismatch.New("ungroup(): " + rvAttr + " is not relation-valued")
	}
	attrs := append([]rel.Attribute(nil), tt.Project(complement(tt, []string{rvAttr})).Attrs...)
	attrs = append(attrs, nestedType.Tuple.Attrs...)
	newTT := rel.NewTupleType(attrs...)
	keys := ungroupKeys(input.Keys(), rvAttr, nestedType.Keys)
	return &derivedTable{
		relType: rel.NewRelationType(newTT, keys),
		keys:    keys,
		open: func(tx store.Tx, env rel.Env) (qresult.Qresult, error) {
			inner, err := qresult.Open(input, tx, env)
			if err != nil {
				return nil, err
			}
			return qresult.Ungroup(inner, rvAttr), nil
		},
	}, nil
}
