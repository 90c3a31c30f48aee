package relalg

import (
	"github.com/duro-db/duro/qresult"
	"github.com/duro-db/duro/rel"
	"github.com/duro-db/duro/store"
	"github.com/duro-db/duro/table"
)

// Tclose builds the virtual table for `tclose(input)`: the transitive
// closure of a binary relation whose two attributes (src, dst) share a
// type. Per §4.7 the result is all-key; per the Open Question in §9, the
// fixed-point iteration has no documented work bound beyond convergence on
// finite inputs, implemented here as repeated self-joins until a pass adds
// no new pair.
func Tclose(input table.Table, src, dst string) (table.Table, error) {
	tt := input.RelType().Tuple
	srcT, ok1 := tt.AttrType(src)
	dstT, ok2 := tt.AttrType(dst)
	if !ok1 || !ok2 {
		return nil, rel.ErrInvalidArgument.New("tclose(): unknown attribute")
	}
	if !srcT.Equal(dstT) || len(tt.Attrs) != 2 {
		return nil, rel.ErrTypeMismatch.New("tclose() requires a binary relation with two equally-typed attributes")
	}
	keys := []rel.Key{rel.Key(tt.AttrNames())}
	return &derivedTable{
		relType: rel.NewRelationType(tt, keys),
		keys:    keys,
		open: func(tx store.Tx, env rel.Env) (qresult.Qresult, error) {
			pairs, err := tuplesOf(input, tx, env)
			if err != nil {
				return nil, err
			}
			closure, err := fixedPoint(pairs, src, dst)
			if err != nil {
				return nil, err
			}
			return qresult.Open(mustLiteral(tt, keys, closure), tx, env)
		},
	}, nil
}

func fixedPoint(pairs []*rel.Tuple, src, dst string) ([]*rel.Tuple, error) {
	set := newPairSet(src, dst)
	for _, p := range pairs {
		if err := set.add(p); err != nil {
			return nil, err
		}
	}
	for {
		added := false
		for _, p1 := range set.all() {
			d1, _ := p1.Get(dst)
			for _, p2 := range set.all() {
				s2, _ := p2.Get(src)
				eq, err := d1.Equal(s2)
				if err != nil {
					return nil, err
				}
				if !eq {
					continue
				}
				d2, _ := p2.Get(dst)
				s1, _ := p1.Get(src)
				nt := rel.NewEmptyTuple()
				nt.Set(src, s1)
				nt.Set(dst, d2)
				if set.contains(nt) {
					continue
				}
				if err := set.add(nt); err != nil {
					return nil, err
				}
				added = true
			}
		}
		if !added {
			break
		}
	}
	return set.all(), nil
}

// pairSet is a minimal ad-hoc dedup set over (src, dst) tuples, used only
// by Tclose's fixed-point loop.
type pairSet struct {
	src, dst string
	items    []*rel.Tuple
}

func newPairSet(src, dst string) *pairSet { return &pairSet{src: src, dst: dst} }

func (p *pairSet) contains(t *rel.Tuple) bool {
	for _, x := range p.items {
		eq, err := x.Equal(t)
		if err == nil && eq {
			return true
		}
	}
	return false
}

func (p *pairSet) add(t *rel.Tuple) error {
	if p.contains(t) {
		return nil
	}
	p.items = append(p.items, t)
	return nil
}

func (p *pairSet) all() []*rel.Tuple { return p.items }

func mustLiteral(tt *rel.TupleType, keys []rel.Key, tuples []*rel.Tuple) rel.Relation {
	lr, _ := table.NewLiteralRelation(rel.NewRelationType(tt, keys), keys, tuples)
	return lr
}
