// Package relalg implements the construction and algebraic definition of
// each relational operator (§4.7): every function here builds a virtual
// table — a derivedTable carrying the operator's inferred heading and keys
// plus a closure that opens the operator's qresult.Qresult iteration
// strategy over its operand(s). Key inference follows §4.7 exactly so tests
// can assert on Keys() after construction without evaluating the table.
//
// Relational operators are also exposed as ordinary operator names
// (project, join, union, ...) through register.go, wired into the
// expression tree via rel/expr.RegisterRelOp so `where`/`extend`/`summarize`
// style operators can keep their tuple-level argument expressions
// unevaluated until the qresult machine binds them per tuple.
package relalg

import (
	"github.com/duro-db/duro/rel"
	"github.com/duro-db/duro/rel/expr"
	"github.com/duro-db/duro/qresult"
	"github.com/duro-db/duro/store"
	"github.com/duro-db/duro/table"
	"github.com/duro-db/duro/txn"
)

// derivedTable is the common shape of every operator's virtual table
// result: it implements table.Table (via rel.Relation plus the bookkeeping
// methods) and qresult.Source, so qresult.Open dispatches to it uniformly.
type derivedTable struct {
	relType *rel.RelationType
	keys    []rel.Key
	open    func(tx store.Tx, env rel.Env) (qresult.Qresult, error)
}

func (d *derivedTable) RelType() *rel.RelationType { return d.relType }
func (d *derivedTable) Name() string                { return "" }
func (d *derivedTable) IsPersistent() bool          { return false }
func (d *derivedTable) IsVirtual() bool             { return true }
func (d *derivedTable) Keys() []rel.Key             { return d.keys }

func (d *derivedTable) OpenQresult(tx store.Tx, env rel.Env) (qresult.Qresult, error) {
	return d.open(tx, env)
}

// storeTx extracts the store.Tx driving env's running transaction.
func storeTx(env rel.Env) (store.Tx, error) {
	tx, ok := env.Tx.(*txn.Transaction)
	if !ok || tx == nil {
		return nil, rel.ErrNoRunningTx.New("relational operator requires a running transaction")
	}
	return tx.StoreTx(), nil
}

// tableArg evaluates e and requires the result to be a table value.
func tableArg(e expr.Expr, env rel.Env) (table.Table, error) {
	v, err := e.Eval(env)
	if err != nil {
		return nil, err
	}
	if v.Kind() != rel.KindTable {
		return nil, rel.ErrTypeMismatch.New("expected a relation-valued argument")
	}
	t, ok := v.Table().(table.Table)
	if !ok {
		return nil, rel.ErrTypeMismatch.New("expected a relation-valued argument")
	}
	return t, nil
}

// bindTuple extends env with one free variable per attribute of tup, the
// binding every `where`/`extend`/`summarize` per-tuple expression resolves
// attribute names against.
func bindTuple(env rel.Env, tup *rel.Tuple) rel.Env {
	for _, n := range tup.Names() {
		v, _ := tup.Get(n)
		env = env.WithVar(n, v)
	}
	return env
}

func evalBoolCond(cond expr.Expr, env rel.Env, tup *rel.Tuple) (bool, error) {
	v, err := cond.Eval(bindTuple(env, tup))
	if err != nil {
		return false, err
	}
	if v.Kind() != rel.KindBool {
		return false, rel.ErrTypeMismatch.New("condition must be boolean")
	}
	return v.Bool(), nil
}

func nameSet(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// commonAttrs returns the attribute names shared by both headings, in a's
// order.
func commonAttrs(a, b *rel.TupleType) []string {
	bset := nameSet(b.AttrNames())
	var out []string
	for _, n := range a.AttrNames() {
		if bset[n] {
			out = append(out, n)
		}
	}
	return out
}

// complement returns the attribute names of tt not present in names.
func complement(tt *rel.TupleType, names []string) []string {
	excl := nameSet(names)
	var out []string
	for _, n := range tt.AttrNames() {
		if !excl[n] {
			out = append(out, n)
		}
	}
	return out
}

// tuplesOf drains a table's qresult into a slice, used by operators that
// must materialize (summarize, group, divide, tclose).
func tuplesOf(t table.Table, txh store.Tx, env rel.Env) ([]*rel.Tuple, error) {
	qr, err := qresult.Open(t, txh, env)
	if err != nil {
		return nil, err
	}
	return qresult.ToSlice(qr)
}
