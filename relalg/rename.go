package relalg

import (
	"github.com/duro-db/duro/qresult"
	"github.com/duro-db/duro/rel"
	"github.com/duro-db/duro/store"
	"github.com/duro-db/duro/table"
)

// renameKeys implements §4.7's rename rule: each key is renamed
// attribute-by-attribute.
func renameKeys(keys []rel.Key, renames map[string]string) []rel.Key {
	out := make([]rel.Key, len(keys))
	for i, k := range keys {
		nk := make(rel.Key, len(k))
		for j, n := range k {
			if to, ok := renames[n]; ok {
				nk[j] = to
			} else {
				nk[j] = n
			}
		}
		out[i] = nk
	}
	return out
}

// Rename builds the virtual table for `rename(input, renames)`, where
// renames maps each old attribute name to its new name.
func Rename(input table.Table, renames map[string]string) (table.Table, error) {
	tt := input.RelType().Tuple
	attrs := make([]rel.Attribute, len(tt.Attrs))
	seen := make(map[string]bool, len(tt.Attrs))
	for i, a := range tt.Attrs {
		name := a.Name
		if to, ok := renames[name]; ok {
			name = to
		}
		if seen[name] {
			return nil, rel.ErrInvalidArgument.New("rename(): duplicate attribute name " + name)
		}
		seen[name] = true
		attrs[i] = rel.Attribute{Name: name, Type: a.Type}
	}
	newTT := rel.NewTupleType(attrs...)
	keys := renameKeys(input.Keys(), renames)
	return &derivedTable{
		relType: rel.NewRelationType(newTT, keys),
		keys:    keys,
		open: func(tx store.Tx, env rel.Env) (qresult.Qresult, error) {
			inner, err := qresult.Open(input, tx, env)
			if err != nil {
				return nil, err
			}
			return qresult.Rename(inner, renames), nil
		},
	}, nil
}
