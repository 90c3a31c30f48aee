package qresult

import "github.com/duro-db/duro/rel"

// tupleSet is a hash-bucketed membership set keyed by the projection of a
// tuple onto a fixed attribute list, used by union/minus/intersect/project
// (key-loss dedup) to avoid an O(n^2) pairwise comparison of every
// candidate tuple. Hash collisions are resolved by a final Equal check.
type tupleSet struct {
	names   []string
	buckets map[uint64][]*rel.Tuple
}

func newTupleSet(names []string) *tupleSet {
	return &tupleSet{names: names, buckets: make(map[uint64][]*rel.Tuple)}
}

func (s *tupleSet) Contains(t *rel.Tuple) (bool, error) {
	h, err := rel.TupleHash(t, s.names)
	if err != nil {
		return false, err
	}
	for _, other := range s.buckets[h] {
		eq, err := projectionsEqual(t, other, s.names)
		if err != nil {
			return false, err
		}
		if eq {
			return true, nil
		}
	}
	return false, nil
}

func (s *tupleSet) Add(t *rel.Tuple) error {
	h, err := rel.TupleHash(t, s.names)
	if err != nil {
		return err
	}
	s.buckets[h] = append(s.buckets[h], t)
	return nil
}

func projectionsEqual(a, b *rel.Tuple, names []string) (bool, error) {
	for _, n := range names {
		av, aok := a.Get(n)
		bv, bok := b.Get(n)
		if aok != bok {
			return false, nil
		}
		if !aok {
			continue
		}
		eq, err := av.Equal(bv)
		if err != nil {
			return false, err
		}
		if !eq {
			return false, nil
		}
	}
	return true, nil
}
