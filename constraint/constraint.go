// Package constraint implements create_constraint/drop_constraint (§4.10):
// declarative, whole-database boolean assertions checked at definition time
// and re-checked incrementally by the mutation engine whenever a target
// table changes.
package constraint

import (
	"strings"

	"github.com/duro-db/duro/catalog"
	"github.com/duro-db/duro/rel"
	"github.com/duro-db/duro/rel/expr"
	"github.com/duro-db/duro/txn"
)

// transitionSuffix marks a free variable as referring to the pre-image of
// the same-named table within a transition constraint.
const transitionSuffix = "'"

// Create validates e as a boolean, database-wide constraint: it must type
// check to BOOLEAN and hold against the current database. On success,
// subset_of(A, B) subexpressions are rewritten to is_empty(minus(A, B))
// (an equivalent, cheaper form to recheck incrementally), the constraint is
// recorded in sys_constraints, and linked into the in-memory list the
// mutation engine consults.
func Create(d *catalog.Dbroot, tx *txn.Transaction, ctx *rel.ExecContext, name string, e expr.Expr, tenv expr.TypeEnv) error {
	if _, ok := d.Constraint(name); ok {
		return rel.ErrElementExists.New("constraint " + name)
	}
	t, err := e.InferType(tenv)
	if err != nil {
		return err
	}
	if _, ok := t.(*rel.ScalarType); !ok || !t.Equal(rel.BooleanType) {
		return rel.ErrTypeMismatch.New("create_constraint: expression must be boolean")
	}
	env := d.Env(ctx, tx)
	v, err := e.Eval(env)
	if err != nil {
		return err
	}
	if !v.Bool() {
		return rel.ErrPredicateViolation.New(name)
	}
	rewritten := RewriteSubsetOf(e)
	if err := record(d, tx, name, rewritten); err != nil {
		return err
	}
	d.PutConstraint(name, rewritten)
	return nil
}

// Drop removes a constraint from the catalog and the in-memory list. No
// cascading effects: dropping a constraint never touches table data.
func Drop(d *catalog.Dbroot, tx *txn.Transaction, name string) error {
	if _, ok := d.Constraint(name); !ok {
		return rel.ErrNotFound.New("constraint " + name)
	}
	if err := d.DeleteRowsByAttr(tx, catalog.SysConstraints, "constraintname", name); err != nil {
		return err
	}
	d.DropConstraint(name)
	return nil
}

func record(d *catalog.Dbroot, tx *txn.Transaction, name string, e expr.Expr) error {
	sys, ok := d.SystemTable(catalog.SysConstraints)
	if !ok {
		return rel.ErrInternal.New("sys_constraints not bootstrapped")
	}
	tup := rel.NewEmptyTuple()
	tup.Set("constraintname", rel.NewString(name))
	// i_expr is left empty: there is no textual/bytecode expression
	// serializer in this core (out of scope per the D-language front end),
	// so the authoritative expr.Expr lives only in the Dbroot's in-memory
	// constraint list for the life of the process.
	tup.Set("i_expr", rel.NewBinary(nil))
	return sys.Insert(tx.StoreTx(), tup)
}

// RewriteSubsetOf replaces every subset_of(A, B) subexpression with the
// equivalent is_empty(minus(A, B)), recursively.
func RewriteSubsetOf(e expr.Expr) expr.Expr {
	op, ok := e.(*expr.Op)
	if !ok {
		return e
	}
	args := make([]expr.Expr, len(op.Args))
	for i, a := range op.Args {
		args[i] = RewriteSubsetOf(a)
	}
	if op.Name == "subset_of" && len(args) == 2 {
		return expr.NewOp("is_empty", expr.NewOp("minus", args[0], args[1]))
	}
	return &expr.Op{Name: op.Name, Args: args}
}

// IsTransitionVar reports whether name is a transition reference (a single
// trailing tick), and returns the base table name it refers to.
func IsTransitionVar(name string) (base string, ok bool) {
	if strings.HasSuffix(name, transitionSuffix) && !strings.HasSuffix(name, transitionSuffix+transitionSuffix) {
		return strings.TrimSuffix(name, transitionSuffix), true
	}
	return "", false
}

// SubstituteTable returns a copy of e with every TableRef named from
// replaced by to, leaving transition (ticked) references untouched: those
// must keep resolving to the pre-image base table, per §4.10.
func SubstituteTable(e expr.Expr, from string, to expr.Expr) expr.Expr {
	switch v := e.(type) {
	case *expr.TableRef:
		if v.Name == from {
			return to
		}
		return v
	case *expr.Op:
		args := make([]expr.Expr, len(v.Args))
		for i, a := range v.Args {
			args[i] = SubstituteTable(a, from, to)
		}
		return &expr.Op{Name: v.Name, Args: args}
	default:
		return e
	}
}
