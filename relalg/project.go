package relalg

import (
	"github.com/duro-db/duro/qresult"
	"github.com/duro-db/duro/rel"
	"github.com/duro-db/duro/store"
	"github.com/duro-db/duro/table"
)

// projectKeys implements §4.7's project/remove key inference: if some
// declared key is a subset of S, the surviving declared keys carry over;
// otherwise the result is all-key over S.
func projectKeys(keys []rel.Key, attrs []string) []rel.Key {
	s := nameSet(attrs)
	var survivors []rel.Key
	for _, k := range keys {
		if k.Subset(s) {
			survivors = append(survivors, k)
		}
	}
	if len(survivors) > 0 {
		return survivors
	}
	return []rel.Key{rel.Key(append([]string(nil), attrs...))}
}

// Project builds the virtual table for `project(input, attrs)`.
func Project(input table.Table, attrs []string) (table.Table, error) {
	tt := input.RelType().Tuple.Project(attrs)
	if len(tt.Attrs) != len(attrs) {
		return nil, rel.ErrInvalidArgument.New("project(): unknown attribute in projection list")
	}
	keys := projectKeys(input.Keys(), attrs)
	keyloss := true
	for _, k := range keys {
		if len(k) == len(attrs) {
			eq := true
			s := nameSet(attrs)
			for _, n := range k {
				if !s[n] {
					eq = false
					break
				}
			}
			if eq {
				keyloss = false
				break
			}
		}
	}
	return &derivedTable{
		relType: rel.NewRelationType(tt, keys),
		keys:    keys,
		open: func(tx store.Tx, env rel.Env) (qresult.Qresult, error) {
			inner, err := qresult.Open(input, tx, env)
			if err != nil {
				return nil, err
			}
			return qresult.Project(inner, attrs, keyloss), nil
		},
	}, nil
}

// Remove builds the virtual table for `remove(input, attrs)`: project onto
// the complement of attrs.
func Remove(input table.Table, attrs []string) (table.Table, error) {
	return Project(input, complement(input.RelType().Tuple, attrs))
}
