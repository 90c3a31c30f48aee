package catalog

import (
	"sync"

	"github.com/duro-db/duro/operator"
	"github.com/duro-db/duro/rel"
	"github.com/duro-db/duro/rel/expr"
	"github.com/duro-db/duro/relalg"
	"github.com/duro-db/duro/store"
	"github.com/duro-db/duro/table"
	"github.com/duro-db/duro/txn"
)

// Dbroot is the per-environment root: the system table handles, the
// built-in and user-defined type cache, and the operator registry every
// expression evaluation resolves operators and table names against. One
// Dbroot is shared by every transaction opened against the same store.
type Dbroot struct {
	st  store.Store
	Ops *operator.Registry

	// DBName is the current database's name, set by RegisterDatabase. Empty
	// means no database registration has happened yet (e.g. a bare
	// Bootstrap call in a test): sys_dbtables linking is then skipped
	// rather than written with an empty name.
	DBName string

	mu          sync.RWMutex
	sysTable    map[string]*table.RealTable
	scalars     map[string]*rel.ScalarType
	tables      map[string]table.Table
	constraints map[string]expr.Expr
}

// Bootstrap opens st's system tables, creating them on first use, seeds the
// built-in scalar type and operator maps, and then calls Discover to
// rehydrate any user types and tables a prior process already recorded in
// those system tables (§6: "opening an environment for an existing
// database discovers the catalog"). tx must be a running, writable
// transaction; Bootstrap does not commit it.
func Bootstrap(st store.Store, tx *txn.Transaction) (*Dbroot, error) {
	d := &Dbroot{
		st:       st,
		Ops:      operator.NewRegistry(),
		sysTable: make(map[string]*table.RealTable, len(systemTableNames)),
		scalars:     make(map[string]*rel.ScalarType),
		tables:      make(map[string]table.Table),
		constraints: make(map[string]expr.Expr),
	}

	operator.RegisterScalarBuiltins(d.Ops)
	relalg.Register(d.Ops)
	table.RegisterConstructor(d.Ops)

	for _, builtin := range []*rel.ScalarType{rel.BooleanType, rel.IntegerType, rel.FloatType, rel.StringType, rel.BinaryType} {
		d.scalars[builtin.TypeName] = builtin
	}

	storeTx := tx.StoreTx()
	for _, name := range systemTableNames {
		relType, _ := systemRelType(name)
		rt, err := openOrCreate(storeTx, st, name, relType)
		if err != nil {
			return nil, err
		}
		d.sysTable[name] = rt
		d.tables[name] = rt
	}
	if err := Discover(d, tx); err != nil {
		return nil, err
	}
	return d, nil
}

// openOrCreate opens name if its recmap already exists, otherwise creates
// it. There is no "does a recmap exist" probe on store.Store, so a NOT_FOUND
// open failure is treated as first use and falls through to create.
func openOrCreate(storeTx store.Tx, st store.Store, name string, relType *rel.RelationType) (*table.RealTable, error) {
	rt, err := table.OpenRealTable(storeTx, st, name, relType, true)
	if err == nil {
		return rt, nil
	}
	if rel.ErrNotFound.Is(err) {
		return table.CreateRealTable(storeTx, st, name, relType, true)
	}
	return nil, err
}

// SystemTable returns a system table's RealTable handle by name (one of the
// Sys* constants).
func (d *Dbroot) SystemTable(name string) (*table.RealTable, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rt, ok := d.sysTable[name]
	return rt, ok
}

// ScalarType implements rel.TypeResolver, resolving a scalar type by name
// against the in-process cache populated at bootstrap and by every
// subsequent define_type.
func (d *Dbroot) ScalarType(name string) (*rel.ScalarType, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	st, ok := d.scalars[name]
	if !ok {
		return nil, rel.ErrNotFound.New("type " + name)
	}
	return st, nil
}

// PutScalarType registers st in the type cache, used by define_type and by
// environment startup when reloading user types recorded in sys_types.
func (d *Dbroot) PutScalarType(st *rel.ScalarType) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scalars[st.TypeName] = st
}

// DropScalarType removes name from the type cache. Callers must have
// already verified the type is unreferenced.
func (d *Dbroot) DropScalarType(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.scalars, name)
}

// ScalarTypes returns every scalar type currently cached, built-in and
// user-defined.
func (d *Dbroot) ScalarTypes() []*rel.ScalarType {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*rel.ScalarType, 0, len(d.scalars))
	for _, st := range d.scalars {
		out = append(out, st)
	}
	return out
}

// PutTable registers a table handle (real, virtual or public) in the table
// cache under its name, used by create_table/create_public_table and by
// Open when reloading the catalog.
func (d *Dbroot) PutTable(t table.Table) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tables[t.Name()] = t
}

// dropTableCache removes name from the in-memory table cache only; callers
// that also need the catalog rows removed use Dbroot.DropTable in
// tables.go.
func (d *Dbroot) dropTableCache(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.tables, name)
}

// Table looks up a table by name, satisfying the rel.Env.Resolve contract.
// A name with a single trailing tick (a transition constraint's pre-image
// reference, §4.10) resolves to the same-named table without the tick: at
// constraint-check time the base table in storage still holds its
// pre-mutation state, since base-table mutations are only applied once
// every constraint has been rechecked.
func (d *Dbroot) Table(name string) (rel.Relation, error) {
	d.mu.RLock()
	t, ok := d.tables[name]
	d.mu.RUnlock()
	if ok {
		return t, nil
	}
	if base, isTransition := transitionBase(name); isTransition {
		d.mu.RLock()
		t, ok := d.tables[base]
		d.mu.RUnlock()
		if ok {
			return t, nil
		}
	}
	return nil, rel.ErrNotFound.New("table " + name)
}

// ResolveType satisfies rel/expr.TypeEnv.Resolve, the static counterpart of
// Table: it infers a table's heading without evaluating it.
func (d *Dbroot) ResolveType(name string) (*rel.RelationType, error) {
	rv, err := d.Table(name)
	if err != nil {
		return nil, err
	}
	t, ok := rv.(table.Table)
	if !ok {
		return nil, rel.ErrInternal.New("table " + name + " is not a table.Table")
	}
	return t.RelType(), nil
}

// transitionBase strips a single trailing tick from name, reporting
// whether one was present.
func transitionBase(name string) (string, bool) {
	if len(name) > 1 && name[len(name)-1] == '\'' && name[len(name)-2] != '\'' {
		return name[:len(name)-1], true
	}
	return "", false
}

// Env builds a rel.Env for tx, resolving table names through d and
// dispatching operators through d.Ops.
func (d *Dbroot) Env(ctx *rel.ExecContext, tx *txn.Transaction) rel.Env {
	return rel.Env{
		Ctx:     ctx,
		Tx:      tx,
		Resolve: d.Table,
		Ops:     d.Ops,
	}
}

// TypeEnv builds an expr.TypeEnv for static inference against d's current
// table and operator catalogs, seeded with vars (nil for none).
func (d *Dbroot) TypeEnv(vars map[string]rel.Type) expr.TypeEnv {
	return expr.TypeEnv{Vars: vars, Resolve: d.ResolveType, Ops: d.Ops}
}

// PutConstraint registers a declarative constraint's (possibly rewritten)
// expression in the in-memory list consulted by the mutation engine.
func (d *Dbroot) PutConstraint(name string, e expr.Expr) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.constraints[name] = e
}

// DropConstraint removes name from the in-memory list.
func (d *Dbroot) DropConstraint(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.constraints, name)
}

// Constraint looks up a single constraint's expression by name.
func (d *Dbroot) Constraint(name string) (expr.Expr, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.constraints[name]
	return e, ok
}

// Constraints returns every declared constraint's name and expression, in
// no particular order.
func (d *Dbroot) Constraints() map[string]expr.Expr {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]expr.Expr, len(d.constraints))
	for k, v := range d.constraints {
		out[k] = v
	}
	return out
}
