package relalg

import (
	"github.com/duro-db/duro/qresult"
	"github.com/duro-db/duro/rel"
	"github.com/duro-db/duro/store"
	"github.com/duro-db/duro/table"
)

func requireUnionCompatible(a, b table.Table) error {
	if !a.RelType().Tuple.Equal(b.RelType().Tuple) {
		return rel.ErrTypeMismatch.New("operands must share a heading")
	}
	return nil
}

// Union builds the virtual table for `union(a, b)`: the result is all-key
// per §4.7.
func Union(a, b table.Table) (table.Table, error) {
	if err := requireUnionCompatible(a, b); err != nil {
		return nil, err
	}
	tt := a.RelType().Tuple
	keys := []rel.Key{rel.Key(tt.AttrNames())}
	return &derivedTable{
		relType: rel.NewRelationType(tt, keys),
		keys:    keys,
		open: func(tx store.Tx, env rel.Env) (qresult.Qresult, error) {
			qa, err := qresult.Open(a, tx, env)
			if err != nil {
				return nil, err
			}
			qb, err := qresult.Open(b, tx, env)
			if err != nil {
				qa.Close()
				return nil, err
			}
			return qresult.Union(qa, qb, tt.AttrNames()), nil
		},
	}, nil
}

// DUnion builds the virtual table for `d_union(a, b)`: a disjoint union,
// trusted by the caller to have no overlapping tuples, so it skips the
// second operand's duplicate scan that plain Union performs.
func DUnion(a, b table.Table) (table.Table, error) {
	if err := requireUnionCompatible(a, b); err != nil {
		return nil, err
	}
	tt := a.RelType().Tuple
	keys := []rel.Key{rel.Key(tt.AttrNames())}
	return &derivedTable{
		relType: rel.NewRelationType(tt, keys),
		keys:    keys,
		open: func(tx store.Tx, env rel.Env) (qresult.Qresult, error) {
			qa, err := qresult.Open(a, tx, env)
			if err != nil {
				return nil, err
			}
			qb, err := qresult.Open(b, tx, env)
			if err != nil {
				qa.Close()
				return nil, err
			}
			return &concatQr{first: qa, second: qb}, nil
		},
	}, nil
}

// concatQr chains first then second with no dedup, backing d_union.
type concatQr struct {
	first, second qresult.Qresult
	onSecond      bool
}

func (c *concatQr) Next() (*rel.Tuple, error) {
	if !c.onSecond {
		tup, err := c.first.Next()
		if err == nil {
			return tup, nil
		}
		if !rel.ErrNotFound.Is(err) {
			return nil, err
		}
		c.onSecond = true
	}
	return c.second.Next()
}

func (c *concatQr) Close() error {
	err1 := c.first.Close()
	err2 := c.second.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// Minus builds the virtual table for `minus(a, b)`: keys of a, unchanged.
func Minus(a, b table.Table) (table.Table, error) {
	if err := requireUnionCompatible(a, b); err != nil {
		return nil, err
	}
	tt := a.RelType().Tuple
	return &derivedTable{
		relType: rel.NewRelationType(tt, a.Keys()),
		keys:    a.Keys(),
		open: func(tx store.Tx, env rel.Env) (qresult.Qresult, error) {
			qa, err := qresult.Open(a, tx, env)
			if err != nil {
				return nil, err
			}
			qb, err := qresult.Open(b, tx, env)
			if err != nil {
				qa.Close()
				return nil, err
			}
			return qresult.Minus(qa, qb, tt.AttrNames()), nil
		},
	}, nil
}

// Intersect builds the virtual table for `intersect(a, b)`: keys of a,
// unchanged.
func Intersect(a, b table.Table) (table.Table, error) {
	if err := requireUnionCompatible(a, b); err != nil {
		return nil, err
	}
	tt := a.RelType().Tuple
	return &derivedTable{
		relType: rel.NewRelationType(tt, a.Keys()),
		keys:    a.Keys(),
		open: func(tx store.Tx, env rel.Env) (qresult.Qresult, error) {
			qa, err := qresult.Open(a, tx, env)
			if err != nil {
				return nil, err
			}
			qb, err := qresult.Open(b, tx, env)
			if err != nil {
				qa.Close()
				return nil, err
			}
			return qresult.Intersect(qa, qb, tt.AttrNames()), nil
		},
	}, nil
}

// Semiminus builds the virtual table for `semiminus(a, b)`: tuples of a
// with no matching tuple in b on their common attributes. Keys of a,
// unchanged.
func Semiminus(a, b table.Table) table.Table {
	common := commonAttrs(a.RelType().Tuple, b.RelType().Tuple)
	return &derivedTable{
		relType: a.RelType(),
		keys:    a.Keys(),
		open: func(tx store.Tx, env rel.Env) (qresult.Qresult, error) {
			qa, err := qresult.Open(a, tx, env)
			if err != nil {
				return nil, err
			}
			qb, err := qresult.Open(b, tx, env)
			if err != nil {
				qa.Close()
				return nil, err
			}
			return qresult.Semiminus(qa, qb, common), nil
		},
	}
}

// Semijoin builds the virtual table for `semijoin(a, b)`: tuples of a with
// a matching tuple in b on their common attributes. Keys of a, unchanged.
func Semijoin(a, b table.Table) table.Table {
	common := commonAttrs(a.RelType().Tuple, b.RelType().Tuple)
	return &derivedTable{
		relType: a.RelType(),
		keys:    a.Keys(),
		open: func(tx store.Tx, env rel.Env) (qresult.Qresult, error) {
			qa, err := qresult.Open(a, tx, env)
			if err != nil {
				return nil, err
			}
			qb, err := qresult.Open(b, tx, env)
			if err != nil {
				qa.Close()
				return nil, err
			}
			return qresult.Semijoin(qa, qb, common), nil
		},
	}
}
