package rel

import "github.com/mitchellh/hashstructure"

// TupleHash computes a stable hash of a tuple's projection onto names, used
// by the qresult set operators (union/minus/intersect), project's key-loss
// dedup, summarize and group to avoid an O(n^2) comparison of every pair of tuples.
func TupleHash(t *Tuple, names []string) (uint64, error) {
	plain := make(map[string]interface{}, len(names))
	for _, n := range names {
		v, ok := t.Get(n)
		if !ok {
			continue
		}
		plain[n] = plainOf(v)
	}
	return hashstructure.Hash(plain, nil)
}

// plainOf reduces a Value to a plain Go value suitable for hashstructure,
// recursing into tuples/arrays and using a scalar's arep for user-defined
// types so that two values equal by Value.Equal also hash equal.
func plainOf(v Value) interface{} {
	switch v.Kind() {
	case KindInitial:
		return nil
	case KindBool:
		return v.Bool()
	case KindInt:
		return v.Int()
	case KindFloat:
		return v.Float()
	case KindBinary:
		return string(v.Binary())
	case KindTuple:
		m := make(map[string]interface{}, v.Tuple().Len())
		for _, n := range v.Tuple().Names() {
			val, _ := v.Tuple().Get(n)
			m[n] = plainOf(val)
		}
		return m
	case KindArray:
		vals := v.Array().Values()
		out := make([]interface{}, len(vals))
		for i, e := range vals {
			out[i] = plainOf(e)
		}
		return out
	default:
		if v.arep != nil {
			return plainOf(*v.arep)
		}
		return nil
	}
}
