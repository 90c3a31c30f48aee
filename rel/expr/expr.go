// Package expr implements the expression tree: an immutable tree of
// operator invocations, variable references, literals, table references and
// component accessors. Expressions form a DAG only via shared sub-table
// refs; evaluation resolves those refs by name at evaluation time rather
// than by pointer, keeping Expr free of any dependency on the table
// package.
package expr

import (
	"fmt"
	"strings"

	"github.com/duro-db/duro/rel"
)

// Expr is the common interface of every expression variant.
type Expr interface {
	// Eval evaluates the expression against env, returning a scalar,
	// tuple, array value, or (when the root denotes a relational
	// operator) a table value.
	Eval(env rel.Env) (rel.Value, error)
	// InferType performs bottom-up static type inference, consulting tenv
	// for free variable and table types and the operator registry for
	// overloaded operator return types.
	InferType(tenv TypeEnv) (rel.Type, error)
	// DependsOn reports whether the expression transitively references
	// table name.
	DependsOn(name string) bool
	// Copy deep-copies the expression, including owned sub-expressions.
	Copy() Expr
	String() string
}

// EvalScalar adapts Eval to rel.Evaluable, so an Expr can be stored directly
// as a ScalarType's Constraint/Initializer (see rel.Evaluable).
type scalarAdapter struct{ Expr }

func (s scalarAdapter) EvalScalar(env rel.Env) (rel.Value, error) { return s.Eval(env) }

// AsEvaluable wraps e so it satisfies rel.Evaluable.
func AsEvaluable(e Expr) rel.Evaluable { return scalarAdapter{e} }

// TypeEnv is the static counterpart of rel.Env, used by InferType.
type TypeEnv struct {
	Vars    map[string]rel.Type
	Resolve func(name string) (*rel.RelationType, error)
	Ops     rel.OpDispatcher
}

// Literal is an embedded value.
type Literal struct {
	Value rel.Value
}

func NewLiteral(v rel.Value) *Literal { return &Literal{Value: v} }

func (l *Literal) Eval(env rel.Env) (rel.Value, error) { return l.Value, nil }
func (l *Literal) InferType(tenv TypeEnv) (rel.Type, error) { return l.Value.Type(), nil }
func (l *Literal) DependsOn(name string) bool               { return false }
func (l *Literal) Copy() Expr                               { return &Literal{Value: l.Value.Copy()} }
func (l *Literal) String() string                            { return fmt.Sprintf("%v", l.Value) }

// Var is a reference to a free variable by name.
type Var struct {
	Name string
}

func NewVar(name string) *Var { return &Var{Name: name} }

func (v *Var) Eval(env rel.Env) (rel.Value, error) {
	val, ok := env.Lookup(v.Name)
	if !ok {
		return rel.Value{}, rel.ErrName.New(v.Name)
	}
	return val, nil
}

func (v *Var) InferType(tenv TypeEnv) (rel.Type, error) {
	t, ok := tenv.Vars[v.Name]
	if !ok {
		return nil, rel.ErrName.New(v.Name)
	}
	return t, nil
}

func (v *Var) DependsOn(name string) bool { return v.Name == name }
func (v *Var) Copy() Expr                 { return &Var{Name: v.Name} }
func (v *Var) String() string             { return v.Name }

// TableRef is a direct reference to a table by name, resolved through the
// environment's Resolve callback rather than via a pointer, so a virtual table's defining expression never holds a cycle back to
// the table that owns it.
type TableRef struct {
	Name string
}

func NewTableRef(name string) *TableRef { return &TableRef{Name: name} }

func (t *TableRef) Eval(env rel.Env) (rel.Value, error) {
	if env.Resolve == nil {
		return rel.Value{}, rel.ErrNotFound.New(t.Name)
	}
	r, err := env.Resolve(t.Name)
	if err != nil {
		return rel.Value{}, err
	}
	return rel.NewTable(r), nil
}

func (t *TableRef) InferType(tenv TypeEnv) (rel.Type, error) {
	if tenv.Resolve == nil {
		return nil, rel.ErrNotFound.New(t.Name)
	}
	rt, err := tenv.Resolve(t.Name)
	if err != nil {
		return nil, err
	}
	return rt, nil
}

func (t *TableRef) DependsOn(name string) bool { return t.Name == name }
func (t *TableRef) Copy() Expr                 { return &TableRef{Name: t.Name} }
func (t *TableRef) String() string             { return t.Name }

// RelOpFunc implements a relational-algebra operator (project, where,
// extend, summarize, ...) whose argument list must NOT be evaluated eagerly:
// some arguments are tuple-level predicates or per-attribute expressions
// evaluated once per tuple by the qresult machine, not once against the
// outer environment. relalg.Register populates RelOps/RelOpTypes so this
// package never imports relalg (which sits above table/qresult, both of
// which sit above expr).
type RelOpFunc func(env rel.Env, args []Expr) (rel.Value, error)

// RelOpTypeFunc is RelOpFunc's static-inference counterpart.
type RelOpTypeFunc func(tenv TypeEnv, args []Expr) (rel.Type, error)

var relOps = map[string]RelOpFunc{}
var relOpTypes = map[string]RelOpTypeFunc{}

// RegisterRelOp wires a relational-algebra operator into Op.Eval/InferType,
// bypassing the eager-argument-evaluation path used for ordinary operators.
func RegisterRelOp(name string, fn RelOpFunc, typeFn RelOpTypeFunc) {
	relOps[name] = fn
	relOpTypes[name] = typeFn
}

// Op is a named operator invocation with an ordered argument list. It covers both built-in operators (arithmetic, relational
// combinators, aggregates, ...) and user-defined ones: dispatch is uniform
// through env.Ops.
type Op struct {
	Name string
	Args []Expr
}

func NewOp(name string, args ...Expr) *Op { return &Op{Name: name, Args: args} }

func (o *Op) Eval(env rel.Env) (rel.Value, error) {
	// `if` only realizes the chosen branch.
	if o.Name == "if" {
		return o.evalIf(env)
	}
	if fn, ok := relOps[o.Name]; ok {
		return fn(env, o.Args)
	}

	argv := make([]rel.Value, len(o.Args))
	argt := make([]rel.Type, len(o.Args))
	for i, a := range o.Args {
		v, err := a.Eval(env)
		if err != nil {
			return rel.Value{}, err
		}
		argv[i] = v
		argt[i] = v.Type()
	}
	if env.Ops == nil {
		return rel.Value{}, rel.ErrOperatorNotFound.New(o.Name, len(argv))
	}
	fn, _, err := env.Ops.Dispatch(o.Name, argt)
	if err != nil {
		return rel.Value{}, err
	}
	return fn(env, argv)
}

func (o *Op) evalIf(env rel.Env) (rel.Value, error) {
	if len(o.Args) != 3 {
		return rel.Value{}, rel.ErrInvalidArgument.New("if() takes three arguments")
	}
	cond, err := o.Args[0].Eval(env)
	if err != nil {
		return rel.Value{}, err
	}
	if cond.Kind() != rel.KindBool {
		return rel.Value{}, rel.ErrTypeMismatch.New("if() condition must be boolean")
	}
	if cond.Bool() {
		return o.Args[1].Eval(env)
	}
	return o.Args[2].Eval(env)
}

func (o *Op) InferType(tenv TypeEnv) (rel.Type, error) {
	if o.Name == "if" {
		if len(o.Args) != 3 {
			return nil, rel.ErrInvalidArgument.New("if() takes three arguments")
		}
		return o.Args[1].InferType(tenv)
	}
	if fn, ok := relOpTypes[o.Name]; ok {
		return fn(tenv, o.Args)
	}
	argt := make([]rel.Type, len(o.Args))
	for i, a := range o.Args {
		t, err := a.InferType(tenv)
		if err != nil {
			return nil, err
		}
		argt[i] = t
	}
	if tenv.Ops == nil {
		return nil, rel.ErrOperatorNotFound.New(o.Name, len(argt))
	}
	_, rt, err := tenv.Ops.Dispatch(o.Name, argt)
	if err != nil {
		return nil, err
	}
	return rt, nil
}

func (o *Op) DependsOn(name string) bool {
	for _, a := range o.Args {
		if a.DependsOn(name) {
			return true
		}
	}
	return false
}

func (o *Op) Copy() Expr {
	args := make([]Expr, len(o.Args))
	for i, a := range o.Args {
		args[i] = a.Copy()
	}
	return &Op{Name: o.Name, Args: args}
}

func (o *Op) String() string {
	parts := make([]string, len(o.Args))
	for i, a := range o.Args {
		parts[i] = a.String()
	}
	return o.Name + "(" + strings.Join(parts, ", ") + ")"
}

// CompGet is a component accessor on a scalar value: `point.X`-style access
// realized as an expression node rather than a full operator call.
type CompGet struct {
	Sub       Expr
	Component string
}

func NewCompGet(sub Expr, component string) *CompGet {
	return &CompGet{Sub: sub, Component: component}
}

func (c *CompGet) Eval(env rel.Env) (rel.Value, error) {
	v, err := c.Sub.Eval(env)
	if err != nil {
		return rel.Value{}, err
	}
	return v.GetComponent(c.Component)
}

func (c *CompGet) InferType(tenv TypeEnv) (rel.Type, error) {
	st, err := c.Sub.InferType(tenv)
	if err != nil {
		return nil, err
	}
	scalar, ok := st.(*rel.ScalarType)
	if !ok {
		return nil, rel.ErrTypeMismatch.New("component access on nonscalar type")
	}
	pr, ok := scalar.PossrepByName("")
	if !ok {
		return nil, rel.ErrInvalidArgument.New("ambiguous possrep for " + scalar.TypeName)
	}
	for _, comp := range pr.Components {
		if comp.Name == c.Component {
			return comp.Type, nil
		}
	}
	return nil, rel.ErrInvalidArgument.New("no such component " + c.Component)
}

func (c *CompGet) DependsOn(name string) bool { return c.Sub.DependsOn(name) }
func (c *CompGet) Copy() Expr                 { return &CompGet{Sub: c.Sub.Copy(), Component: c.Component} }
func (c *CompGet) String() string             { return c.Sub.String() + "." + c.Component }
