// Package qresult implements the tuple-stream iterator (GLOSSARY: Qresult):
// a lazy sequence of tuples produced by pulling Next repeatedly, per
// spec.md §4.8. Strategies are provided per table kind (stored scan,
// literal scan) plus constructors for every relational combinator's
// iteration strategy (select, union, minus, intersect, join, extend,
// project, rename, summarize, group, ungroup, wrap, unwrap, divide,
// tclose); the relalg package wires a virtual table's defining shape to one
// of these constructors through the Source interface, keeping qresult
// itself free of any dependency on relalg (avoiding an import cycle: relalg
// imports qresult, not the reverse).
package qresult

import (
	"github.com/duro-db/duro/rel"
	"github.com/duro-db/duro/store"
	"github.com/duro-db/duro/table"
)

// Qresult is a pull iterator over a table's tuples. Next returns
// rel.ErrNotFound when the stream is exhausted, matching the C original's
// NOT_FOUND end-of-stream signal.
type Qresult interface {
	Next() (*rel.Tuple, error)
	Close() error
}

// Source is implemented by any table value that knows how to build its own
// Qresult: every relalg-constructed virtual table implements it, dispatched
// through the Open entry point below without qresult needing to know about
// relalg's concrete types.
type Source interface {
	OpenQresult(tx store.Tx, env rel.Env) (Qresult, error)
}

// Open builds a Qresult over any table: a relalg.Source virtual table
// dispatches to its own strategy, a *table.RealTable opens a store cursor,
// a *table.LiteralRelation iterates its in-memory extension.
func Open(tbl rel.Relation, tx store.Tx, env rel.Env) (Qresult, error) {
	switch t := tbl.(type) {
	case Source:
		return t.OpenQresult(tx, env)
	case *table.RealTable:
		return newStoredScan(t, tx)
	case *table.LiteralRelation:
		return newSliceScan(t.Tuples()), nil
	case *table.VirtualTable:
		v, err := t.Eval(env)
		if err != nil {
			return nil, err
		}
		return Open(v.Table(), tx, env)
	case *table.PublicTable:
		if !t.IsMapped() {
			return nil, rel.ErrInvalidArgument.New("public table " + t.Name() + " is not yet mapped")
		}
		v, err := t.Eval(env)
		if err != nil {
			return nil, err
		}
		return Open(v.Table(), tx, env)
	default:
		return nil, rel.ErrNotSupported.New("iteration over this table kind")
	}
}

// ToSlice drains q into a slice, closing it when done or on error.
func ToSlice(q Qresult) ([]*rel.Tuple, error) {
	defer q.Close()
	var out []*rel.Tuple
	for {
		tup, err := q.Next()
		if err != nil {
			if rel.ErrNotFound.Is(err) {
				return out, nil
			}
			return nil, err
		}
		out = append(out, tup)
	}
}

// sliceScan iterates an in-memory slice of tuples directly, used for
// LiteralRelation and for any temp table materialized during evaluation.
type sliceScan struct {
	tuples []*rel.Tuple
	pos    int
}

func newSliceScan(tuples []*rel.Tuple) *sliceScan { return &sliceScan{tuples: tuples} }

func (s *sliceScan) Next() (*rel.Tuple, error) {
	if s.pos >= len(s.tuples) {
		return nil, rel.ErrNotFound.New("end of qresult")
	}
	t := s.tuples[s.pos]
	s.pos++
	return t, nil
}

func (s *sliceScan) Close() error { return nil }

// storedScan implements the Stored strategy (§4.8): a cursor over every
// stored record, in whatever order the record store's cursor yields, with
// each record reconstructed into a tuple via the table's attribute->field
// map.
type storedScan struct {
	tbl    *table.RealTable
	cursor store.Cursor
	first  bool
	done   bool
}

func newStoredScan(tbl *table.RealTable, tx store.Tx) (*storedScan, error) {
	c, err := tbl.Scan(tx, "")
	if err != nil {
		return nil, err
	}
	return &storedScan{tbl: tbl, cursor: c}, nil
}

func (s *storedScan) Next() (*rel.Tuple, error) {
	if s.done {
		return nil, rel.ErrNotFound.New("end of qresult")
	}
	var ok bool
	var err error
	if !s.first {
		ok, err = s.cursor.First()
		s.first = true
	} else {
		ok, err = s.cursor.Next()
	}
	if err != nil {
		return nil, store.TranslateError(err)
	}
	if !ok {
		s.done = true
		return nil, rel.ErrNotFound.New("end of qresult")
	}
	rec, err := s.cursor.Current()
	if err != nil {
		return nil, store.TranslateError(err)
	}
	return s.tbl.DecodeRecord(rec)
}

func (s *storedScan) Close() error { return s.cursor.Close() }

// PointLookup implements the SELECT_PINDEX fast path (§4.8): a selection
// whose condition is `<pk-attr> = <const>` against a single-attribute
// primary index is served by a direct Get instead of a full scan.
func PointLookup(tbl *table.RealTable, tx store.Tx, keyAttr string, key rel.Value) (Qresult, error) {
	keyAttrs := tbl.KeyAttrs()
	if len(keyAttrs) != 1 || keyAttrs[0] != keyAttr {
		return nil, rel.ErrNotSupported.New("point lookup requires a single-attribute primary key match")
	}
	kt := rel.NewEmptyTuple()
	kt.Set(keyAttr, key)
	tup, err := tbl.Get(tx, kt)
	if err != nil {
		if rel.ErrNotFound.Is(err) {
			return newSliceScan(nil), nil
		}
		return nil, err
	}
	return newSliceScan([]*rel.Tuple{tup}), nil
}
