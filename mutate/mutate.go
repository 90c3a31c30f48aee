// Package mutate implements the mutation engine (§4.9): insert/update/
// delete against stored tables, the recursive rewrite rules that let an
// insert reach through a virtual table to its underlying base table(s),
// and the three update/delete execution strategies (fast key path, simple
// scan, complex rewrite).
package mutate

import (
	"github.com/duro-db/duro/catalog"
	"github.com/duro-db/duro/qresult"
	"github.com/duro-db/duro/rel"
	"github.com/duro-db/duro/rel/expr"
	"github.com/duro-db/duro/table"
	"github.com/duro-db/duro/txn"
)

// Insert inserts tup into the table named name, recursing through virtual
// tables per §4.9, after checking every declarative constraint that depends
// on name against the table's post-image (§4.9, §4.10). A constraint
// violation is raised before anything is inserted, so it leaves the table
// unchanged.
func Insert(d *catalog.Dbroot, tx *txn.Transaction, env rel.Env, name string, tup *rel.Tuple) error {
	t, err := d.GetTable(name)
	if err != nil {
		return err
	}
	if err := checkConstraints(d, tx, env, []Assignment{InsertOf(name, tup)}); err != nil {
		return err
	}
	return insertInto(tx, env, t, tup)
}

// insertInto is the recursive §4.9 rewrite: a real table inserts directly;
// a virtual table's insert is defined by the shape of its root operator.
func insertInto(tx *txn.Transaction, env rel.Env, t table.Table, tup *rel.Tuple) error {
	switch tbl := t.(type) {
	case *table.RealTable:
		return tbl.Insert(tx.StoreTx(), tup)
	case *table.PublicTable:
		if !tbl.IsMapped() {
			return rel.ErrInvalidArgument.New("public table " + tbl.Name() + " is not yet mapped")
		}
		return insertIntoExpr(tx, env, tbl.Expr, tup)
	case *table.VirtualTable:
		return insertIntoExpr(tx, env, tbl.Expr, tup)
	default:
		return rel.ErrNotSupported.New("insert into this table kind")
	}
}

// insertIntoExpr dispatches on the root operator of a virtual table's
// defining expression, following the contracts of §4.9 exactly.
func insertIntoExpr(tx *txn.Transaction, env rel.Env, e expr.Expr, tup *rel.Tuple) error {
	switch v := e.(type) {
	case *expr.TableRef:
		t, err := resolveTable(env, v.Name)
		if err != nil {
			return err
		}
		return insertInto(tx, env, t, tup)
	case *expr.Op:
		return insertIntoOp(tx, env, v, tup)
	default:
		return rel.ErrNotSupported.New("insert into this virtual table")
	}
}

func resolveTable(env rel.Env, name string) (table.Table, error) {
	if env.Resolve == nil {
		return nil, rel.ErrNotFound.New(name)
	}
	r, err := env.Resolve(name)
	if err != nil {
		return nil, err
	}
	t, ok := r.(table.Table)
	if !ok {
		return nil, rel.ErrInternal.New(name + " is not a table.Table")
	}
	return t, nil
}

func operandTable(tx *txn.Transaction, env rel.Env, e expr.Expr) (table.Table, error) {
	v, err := e.Eval(env)
	if err != nil {
		return nil, err
	}
	if v.Kind() != rel.KindTable {
		return nil, rel.ErrTypeMismatch.New("expected a relation-valued operand")
	}
	t, ok := v.Table().(table.Table)
	if !ok {
		return nil, rel.ErrTypeMismatch.New("expected a relation-valued operand")
	}
	return t, nil
}

func insertIntoOp(tx *txn.Transaction, env rel.Env, op *expr.Op, tup *rel.Tuple) error {
	switch op.Name {
	case "where":
		v, err := op.Args[1].Eval(bindTupleVars(env, tup))
		if err != nil {
			return err
		}
		if v.Kind() != rel.KindBool || !v.Bool() {
			return rel.ErrPredicateViolation.New("insert: tuple does not satisfy where condition")
		}
		return insertIntoExpr(tx, env, op.Args[0], tup)

	case "union", "d_union":
		// §4.9 / DESIGN NOTES open question: try the first operand; on a
		// KEY_VIOLATION or PREDICATE_VIOLATION try the second; the overall
		// insert fails only if both operands reject it. If the tuple is
		// already intrinsically present in both, the second attempt surfaces
		// ELEMENT_EXISTS rather than success — documented, not invented.
		err1 := insertIntoExpr(tx, env, op.Args[0], tup)
		if err1 == nil {
			return nil
		}
		if !isKeyOrPredicateViolation(err1) {
			return err1
		}
		err2 := insertIntoExpr(tx, env, op.Args[1], tup)
		if err2 == nil {
			return nil
		}
		if !isKeyOrPredicateViolation(err2) {
			return err2
		}
		return err2

	case "intersect":
		return insertBoth(tx, env, op.Args[0], op.Args[1], tup)

	case "join":
		return insertBoth(tx, env, op.Args[0], op.Args[1], tup)

	case "extend":
		return insertIntoExtend(tx, env, op, tup)

	case "project", "remove", "summarize", "minus", "semiminus", "semijoin", "group", "ungroup", "wrap", "unwrap", "divide", "tclose":
		return rel.ErrNotSupported.New("insert into " + op.Name + "()")

	case "rename":
		return insertIntoRename(tx, env, op, tup)

	default:
		return rel.ErrNotSupported.New("insert into " + op.Name + "()")
	}
}

// insertBoth runs a nested sub-transaction inserting tup (projected to each
// operand's heading) into both operands: overall ELEMENT_EXISTS only when
// both report it, any other failure on either side aborts the whole insert.
func insertBoth(tx *txn.Transaction, env rel.Env, aExpr, bExpr expr.Expr, tup *rel.Tuple) error {
	sub, err := txn.BeginNested(tx, env.Ctx)
	if err != nil {
		return err
	}
	subEnv := env
	subEnv.Tx = sub

	a, err := operandTable(tx, env, aExpr)
	if err != nil {
		sub.Rollback()
		return err
	}
	b, err := operandTable(tx, env, bExpr)
	if err != nil {
		sub.Rollback()
		return err
	}
	aTup := tup.Project(a.RelType().Tuple.AttrNames())
	bTup := tup.Project(b.RelType().Tuple.AttrNames())

	errA := insertInto(sub, subEnv, a, aTup)
	if errA != nil && !rel.ErrElementExists.Is(errA) {
		sub.Rollback()
		return errA
	}
	errB := insertInto(sub, subEnv, b, bTup)
	if errB != nil && !rel.ErrElementExists.Is(errB) {
		sub.Rollback()
		return errB
	}
	if rel.ErrElementExists.Is(errA) && rel.ErrElementExists.Is(errB) {
		sub.Rollback()
		return rel.ErrElementExists.New("tuple already present in both operands")
	}
	return sub.Commit()
}

func insertIntoExtend(tx *txn.Transaction, env rel.Env, op *expr.Op, tup *rel.Tuple) error {
	if len(op.Args)%2 != 1 {
		return rel.ErrInvalidArgument.New("extend() requires (name, expr) pairs")
	}
	base := tup.Copy()
	cur := bindTupleVars(env, tup)
	for i := 1; i+1 < len(op.Args); i += 2 {
		attr, ok := staticAttrName(op.Args[i])
		if !ok {
			return rel.ErrInvalidArgument.New("extend() attribute name must be a literal string")
		}
		supplied, has := tup.Get(attr)
		if !has {
			return rel.ErrInvalidArgument.New("insert: missing extended attribute " + attr)
		}
		computed, err := op.Args[i+1].Eval(cur)
		if err != nil {
			return err
		}
		eq, err := supplied.Equal(computed)
		if err != nil {
			return err
		}
		if !eq {
			return rel.ErrPredicateViolation.New("insert: extended attribute " + attr + " does not match its expression")
		}
		base.Remove(attr)
	}
	return insertIntoExpr(tx, env, op.Args[0], base)
}

func insertIntoRename(tx *txn.Transaction, env rel.Env, op *expr.Op, tup *rel.Tuple) error {
	reverted := tup.Copy()
	for i := 1; i+1 < len(op.Args); i += 2 {
		oldName, ok1 := staticAttrName(op.Args[i])
		newName, ok2 := staticAttrName(op.Args[i+1])
		if !ok1 || !ok2 {
			return rel.ErrInvalidArgument.New("rename() attribute names must be literal strings")
		}
		reverted.Rename(newName, oldName)
	}
	return insertIntoExpr(tx, env, op.Args[0], reverted)
}

func staticAttrName(e expr.Expr) (string, bool) {
	lit, ok := e.(*expr.Literal)
	if !ok || lit.Value.Kind() != rel.KindBinary {
		return "", false
	}
	return lit.Value.String(), true
}

func isKeyOrPredicateViolation(err error) bool {
	return rel.ErrKeyViolation.Is(err) || rel.ErrPredicateViolation.Is(err) || rel.ErrElementExists.Is(err)
}

func bindTupleVars(env rel.Env, tup *rel.Tuple) rel.Env {
	for _, n := range tup.Names() {
		v, _ := tup.Get(n)
		env = env.WithVar(n, v)
	}
	return env
}

// Delete removes tup (matched by primary key) from the stored table named
// name, after checking dependent constraints against the post-image.
func Delete(d *catalog.Dbroot, tx *txn.Transaction, env rel.Env, name string, tup *rel.Tuple) error {
	rt, err := realTable(d, name)
	if err != nil {
		return err
	}
	if err := checkConstraints(d, tx, env, []Assignment{DeleteTupleOf(name, tup)}); err != nil {
		return err
	}
	return rt.Delete(tx.StoreTx(), tup)
}

// DeleteWhere deletes every tuple of the stored table named name matching
// cond (nil cond deletes every tuple), choosing the fast key-lookup path
// when cond is `<pk-attr> = <const>` against the table's single-attribute
// primary key, otherwise a cursor scan (§4.9).
func DeleteWhere(d *catalog.Dbroot, tx *txn.Transaction, env rel.Env, name string, cond expr.Expr) (int, error) {
	rt, err := realTable(d, name)
	if err != nil {
		return 0, err
	}
	if err := checkConstraints(d, tx, env, []Assignment{DeleteOf(name, cond)}); err != nil {
		return 0, err
	}
	return deleteWhereTable(tx, env, rt, cond)
}

func deleteWhereTable(tx *txn.Transaction, env rel.Env, rt *table.RealTable, cond expr.Expr) (int, error) {
	if attr, val, ok := pkEqualityCond(rt, cond); ok {
		key := rel.NewEmptyTuple()
		key.Set(attr, val)
		tup, err := rt.Get(tx.StoreTx(), key)
		if err != nil {
			if rel.ErrNotFound.Is(err) {
				return 0, nil
			}
			return 0, err
		}
		if err := rt.Delete(tx.StoreTx(), tup); err != nil {
			return 0, err
		}
		return 1, nil
	}
	qr, err := qresult.Open(rt, tx.StoreTx(), env)
	if err != nil {
		return 0, err
	}
	defer qr.Close()
	var matched []*rel.Tuple
	for {
		tup, err := qr.Next()
		if err != nil {
			if rel.ErrNotFound.Is(err) {
				break
			}
			return 0, err
		}
		ok, err := evalCond(cond, env, tup)
		if err != nil {
			return 0, err
		}
		if ok {
			matched = append(matched, tup)
		}
	}
	for _, tup := range matched {
		if err := rt.Delete(tx.StoreTx(), tup); err != nil {
			return 0, err
		}
	}
	return len(matched), nil
}

// Update recomputes the attributes named in assigns, for every tuple of the
// stored table named name satisfying cond (nil cond updates every tuple),
// selecting one of the three strategies documented in §4.9.
func Update(d *catalog.Dbroot, tx *txn.Transaction, env rel.Env, name string, cond expr.Expr, assigns map[string]expr.Expr) (int, error) {
	rt, err := realTable(d, name)
	if err != nil {
		return 0, err
	}
	if err := checkConstraints(d, tx, env, []Assignment{UpdateOf(name, cond, assigns)}); err != nil {
		return 0, err
	}
	return updateTable(tx, env, rt, cond, assigns, name)
}

func touchesKey(rt *table.RealTable, assigns map[string]expr.Expr) bool {
	for _, k := range rt.KeyAttrs() {
		if _, ok := assigns[k]; ok {
			return true
		}
	}
	return false
}

func referencesSelf(name string, cond expr.Expr, assigns map[string]expr.Expr) bool {
	if cond != nil && cond.DependsOn(name) {
		return true
	}
	for _, e := range assigns {
		if e.DependsOn(name) {
			return true
		}
	}
	return false
}

func applyAssigns(env rel.Env, tup *rel.Tuple, assigns map[string]expr.Expr) (*rel.Tuple, error) {
	out := tup.Copy()
	cur := bindTupleVars(env, tup)
	for attr, e := range assigns {
		v, err := e.Eval(cur)
		if err != nil {
			return nil, err
		}
		out.Set(attr, v)
	}
	return out, nil
}

// updateStrategy is one of the three ways §4.9 lets an UPDATE statement
// touch a stored table.
type updateStrategy int

const (
	strategyFastKey updateStrategy = iota
	strategySimpleScan
	strategyComplexRewrite
)

// PlanUpdate picks the execution strategy for one UPDATE call from the
// shape of its condition and assignments, not from any fixed per-table
// setting: the same table can take the fast path for one statement and the
// complex rewrite for another, depending on whether that particular
// statement's assignment touches a key attribute or refers back to the
// table it is updating.
func PlanUpdate(rt *table.RealTable, cond expr.Expr, assigns map[string]expr.Expr, name string) updateStrategy {
	keyChanges := touchesKey(rt, assigns)
	selfReferencing := referencesSelf(name, cond, assigns)
	if selfReferencing || keyChanges {
		return strategyComplexRewrite
	}
	if _, _, ok := pkEqualityCond(rt, cond); ok {
		return strategyFastKey
	}
	return strategySimpleScan
}

func updateTable(tx *txn.Transaction, env rel.Env, rt *table.RealTable, cond expr.Expr, assigns map[string]expr.Expr, name string) (int, error) {
	strategy := PlanUpdate(rt, cond, assigns, name)

	// Fast key path: a point condition, no key-attribute change, no
	// self-reference -> a single Get + Update through the record store.
	if attr, val, ok := pkEqualityCond(rt, cond); ok && strategy == strategyFastKey {
		key := rel.NewEmptyTuple()
		key.Set(attr, val)
		oldTup, err := rt.Get(tx.StoreTx(), key)
		if err != nil {
			if rel.ErrNotFound.Is(err) {
				return 0, nil
			}
			return 0, err
		}
		newTup, err := applyAssigns(env, oldTup, assigns)
		if err != nil {
			return 0, err
		}
		if err := rt.Update(tx.StoreTx(), oldTup, newTup); err != nil {
			return 0, err
		}
		return 1, nil
	}

	// Simple scan: no key-attribute change, no self-reference -> update
	// each matching record in place during a forward scan.
	if strategy == strategySimpleScan {
		qr, err := qresult.Open(rt, tx.StoreTx(), env)
		if err != nil {
			return 0, err
		}
		defer qr.Close()
		n := 0
		for {
			tup, err := qr.Next()
			if err != nil {
				if rel.ErrNotFound.Is(err) {
					break
				}
				return 0, err
			}
			ok, err := evalCond(cond, env, tup)
			if err != nil {
				return 0, err
			}
			if !ok {
				continue
			}
			newTup, err := applyAssigns(env, tup, assigns)
			if err != nil {
				return 0, err
			}
			if err := rt.Update(tx.StoreTx(), tup, newTup); err != nil {
				return 0, err
			}
			n++
		}
		return n, nil
	}

	// Complex: a key attribute changes, or an assignment/condition refers
	// back to the table being updated -> buffer the new tuples during a
	// forward scan, delete the matched originals in a second pass, then
	// insert the buffered tuples.
	qr, err := qresult.Open(rt, tx.StoreTx(), env)
	if err != nil {
		return 0, err
	}
	var olds, news []*rel.Tuple
	for {
		tup, err := qr.Next()
		if err != nil {
			if rel.ErrNotFound.Is(err) {
				break
			}
			qr.Close()
			return 0, err
		}
		ok, err := evalCond(cond, env, tup)
		if err != nil {
			qr.Close()
			return 0, err
		}
		if !ok {
			continue
		}
		newTup, err := applyAssigns(env, tup, assigns)
		if err != nil {
			qr.Close()
			return 0, err
		}
		olds = append(olds, tup)
		news = append(news, newTup)
	}
	qr.Close()
	for _, tup := range olds {
		if err := rt.Delete(tx.StoreTx(), tup); err != nil {
			return 0, err
		}
	}
	for _, tup := range news {
		if err := rt.Insert(tx.StoreTx(), tup); err != nil {
			return 0, err
		}
	}
	return len(news), nil
}

func evalCond(cond expr.Expr, env rel.Env, tup *rel.Tuple) (bool, error) {
	if cond == nil {
		return true, nil
	}
	v, err := cond.Eval(bindTupleVars(env, tup))
	if err != nil {
		return false, err
	}
	if v.Kind() != rel.KindBool {
		return false, rel.ErrTypeMismatch.New("condition must be boolean")
	}
	return v.Bool(), nil
}

// pkEqualityCond recognizes `<pk-attr> = <const>` against rt's single-
// attribute primary key, the SELECT_PINDEX/fast-update-path shape of §4.8
// and §4.9.
func pkEqualityCond(rt *table.RealTable, cond expr.Expr) (attr string, val rel.Value, ok bool) {
	if cond == nil {
		return "", rel.Value{}, false
	}
	op, isOp := cond.(*expr.Op)
	if !isOp || op.Name != "=" || len(op.Args) != 2 {
		return "", rel.Value{}, false
	}
	keyAttrs := rt.KeyAttrs()
	if len(keyAttrs) != 1 {
		return "", rel.Value{}, false
	}
	varE, litE := op.Args[0], op.Args[1]
	v, isVar := varE.(*expr.Var)
	lit, isLit := litE.(*expr.Literal)
	if !isVar || !isLit {
		v, isVar = litE.(*expr.Var)
		lit, isLit = varE.(*expr.Literal)
	}
	if !isVar || !isLit || v.Name != keyAttrs[0] {
		return "", rel.Value{}, false
	}
	return v.Name, lit.Value, true
}

func realTable(d *catalog.Dbroot, name string) (*table.RealTable, error) {
	t, err := d.GetTable(name)
	if err != nil {
		return nil, err
	}
	rt, ok := t.(*table.RealTable)
	if !ok {
		return nil, rel.ErrNotSupported.New("mutation of non-real table " + name)
	}
	return rt, nil
}
