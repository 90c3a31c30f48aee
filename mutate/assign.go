package mutate

import (
	"github.com/duro-db/duro/catalog"
	"github.com/duro-db/duro/constraint"
	"github.com/duro-db/duro/rel"
	"github.com/duro-db/duro/rel/expr"
	"github.com/duro-db/duro/table"
	"github.com/duro-db/duro/txn"
)

// Assignment is one pending base-table mutation considered by a
// multi-assignment constraint check (§4.9's RDB_apply_constraints_i): an
// insert, a conditional update, a conditional delete, or a single-tuple
// delete. checkConstraints never performs the mutation itself — callers
// apply it only after every dependent constraint has been rechecked.
type Assignment struct {
	kind    assignKind
	table   string
	tup     *rel.Tuple
	cond    expr.Expr
	assigns map[string]expr.Expr
}

type assignKind int

const (
	kindInsert assignKind = iota
	kindUpdate
	kindDelete
	kindDeleteTuple
)

// InsertOf describes an insert of tup into table name.
func InsertOf(name string, tup *rel.Tuple) Assignment {
	return Assignment{kind: kindInsert, table: name, tup: tup}
}

// UpdateOf describes updating every tuple of table name matching cond (nil
// meaning every tuple) by assigns.
func UpdateOf(name string, cond expr.Expr, assigns map[string]expr.Expr) Assignment {
	return Assignment{kind: kindUpdate, table: name, cond: cond, assigns: assigns}
}

// DeleteOf describes deleting every tuple of table name matching cond (nil
// meaning every tuple).
func DeleteOf(name string, cond expr.Expr) Assignment {
	return Assignment{kind: kindDelete, table: name, cond: cond}
}

// DeleteTupleOf describes deleting exactly tup from table name.
func DeleteTupleOf(name string, tup *rel.Tuple) Assignment {
	return Assignment{kind: kindDeleteTuple, table: name, tup: tup}
}

// postImage builds the expression standing for a's target table's value
// after a is (hypothetically) applied, per §4.9:
//
//	insert          -> T union {newtup}
//	update(cond)     -> (T where not cond) union update(T where cond, assigns)
//	delete(cond)     -> T where not cond
//	delete(tuple)    -> T minus {oldtup}
func (a Assignment) postImage(d *catalog.Dbroot) (expr.Expr, error) {
	t, err := d.GetTable(a.table)
	if err != nil {
		return nil, err
	}
	ref := expr.NewTableRef(a.table)
	switch a.kind {
	case kindInsert:
		lit, err := literalOf(t, a.tup)
		if err != nil {
			return nil, err
		}
		return expr.NewOp("union", ref, lit), nil
	case kindDeleteTuple:
		lit, err := literalOf(t, a.tup)
		if err != nil {
			return nil, err
		}
		return expr.NewOp("minus", ref, lit), nil
	case kindDelete:
		if a.cond == nil {
			return expr.NewOp("where", ref, expr.NewLiteral(rel.NewBool(false))), nil
		}
		return expr.NewOp("where", ref, expr.NewOp("not", a.cond)), nil
	case kindUpdate:
		var notCond expr.Expr
		if a.cond == nil {
			notCond = expr.NewLiteral(rel.NewBool(false))
		} else {
			notCond = expr.NewOp("not", a.cond)
		}
		unchanged := expr.NewOp("where", ref, notCond)
		var changedBase expr.Expr = ref
		if a.cond != nil {
			changedBase = expr.NewOp("where", ref, a.cond)
		}
		updateArgs := make([]expr.Expr, 0, 1+2*len(a.assigns))
		updateArgs = append(updateArgs, changedBase)
		for attr, e := range a.assigns {
			updateArgs = append(updateArgs, expr.NewLiteral(rel.NewString(attr)), e)
		}
		changed := expr.NewOp("update", updateArgs...)
		return expr.NewOp("union", unchanged, changed), nil
	}
	return nil, rel.ErrInternal.New("unknown assignment kind")
}

func literalOf(t table.Table, tup *rel.Tuple) (expr.Expr, error) {
	lr, err := table.NewLiteralRelation(t.RelType(), t.Keys(), []*rel.Tuple{tup})
	if err != nil {
		return nil, err
	}
	return expr.NewLiteral(rel.NewTable(lr)), nil
}

// checkConstraints re-evaluates every declared constraint that depends on
// any of pending's target tables, with each target substituted by its
// post-image expression, per §4.9/§4.10. The first constraint whose
// rewritten expression evaluates to FALSE raises PREDICATE_VIOLATION naming
// it; nothing else in pending is applied by this function — it only
// checks.
func checkConstraints(d *catalog.Dbroot, tx *txn.Transaction, env rel.Env, pending []Assignment) error {
	constraints := d.Constraints()
	if len(constraints) == 0 {
		return nil
	}
	for name, ce := range constraints {
		depends := false
		for _, a := range pending {
			if ce.DependsOn(a.table) {
				depends = true
				break
			}
		}
		if !depends {
			continue
		}
		rewritten := ce
		for _, a := range pending {
			img, err := a.postImage(d)
			if err != nil {
				return err
			}
			rewritten = constraint.SubstituteTable(rewritten, a.table, img)
		}
		v, err := rewritten.Eval(env)
		if err != nil {
			return err
		}
		if v.Kind() != rel.KindBool {
			return rel.ErrTypeMismatch.New("constraint " + name + " is not boolean")
		}
		if !v.Bool() {
			return rel.ErrPredicateViolation.New(name)
		}
	}
	return nil
}

// ApplyAll performs every pending assignment after checking every
// dependent constraint, atomically with respect to the caller's
// transaction: on a constraint violation, no assignment in pending is
// applied. Base-table mutations run through the same insert/update/delete
// primitives single-statement calls use.
func ApplyAll(d *catalog.Dbroot, tx *txn.Transaction, env rel.Env, pending []Assignment) error {
	if err := checkConstraints(d, tx, env, pending); err != nil {
		return err
	}
	for _, a := range pending {
		var err error
		switch a.kind {
		case kindInsert:
			t, gerr := d.GetTable(a.table)
			if gerr != nil {
				return gerr
			}
			err = insertInto(tx, env, t, a.tup)
		case kindDeleteTuple:
			var rt *table.RealTable
			rt, err = realTable(d, a.table)
			if err == nil {
				err = rt.Delete(tx.StoreTx(), a.tup)
			}
		case kindDelete:
			var rt *table.RealTable
			rt, err = realTable(d, a.table)
			if err == nil {
				_, err = deleteWhereTable(tx, env, rt, a.cond)
			}
		case kindUpdate:
			var rt *table.RealTable
			rt, err = realTable(d, a.table)
			if err == nil {
				_, err = updateTable(tx, env, rt, a.cond, a.assigns, a.table)
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}
