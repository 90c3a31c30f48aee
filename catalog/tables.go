package catalog

import (
	"sort"
	"strings"

	"github.com/duro-db/duro/rel"
	"github.com/duro-db/duro/rel/expr"
	"github.com/duro-db/duro/table"
	"github.com/duro-db/duro/txn"
)

// CreateRealTable creates a new stored table named name, recording its
// heading, keys and candidate-key list in sys_rtables/sys_tableattrs/
// sys_keys (§4.6). user reports whether the table was created by
// application code (true) rather than as part of a type's internal
// representation.
func (d *Dbroot) CreateRealTable(tx *txn.Transaction, name string, relType *rel.RelationType, user bool) (*table.RealTable, error) {
	if _, err := d.Table(name); err == nil {
		return nil, rel.ErrElementExists.New("table " + name)
	}
	storeTx := tx.StoreTx()
	rt, err := table.CreateRealTable(storeTx, d.st, name, relType, true)
	if err != nil {
		return nil, err
	}
	if err := d.recordTable(tx, SysRtables, name, user); err != nil {
		return nil, err
	}
	if err := d.recordHeadingAndKeys(tx, name, relType); err != nil {
		return nil, err
	}
	if err := d.linkDbtable(tx, name); err != nil {
		return nil, err
	}
	d.PutTable(rt)
	return rt, nil
}

// CreateVirtualTable registers a non-persistent derived table defined by e,
// without any catalog row: a plain virtual table is a named shorthand
// recomputed from its expression and forgotten when the environment closes
// (§4.6).
func (d *Dbroot) CreateVirtualTable(name string, relType *rel.RelationType, keys []rel.Key, e expr.Expr) (*table.VirtualTable, error) {
	if _, err := d.Table(name); err == nil {
		return nil, rel.ErrElementExists.New("table " + name)
	}
	vt := table.NewVirtualTable(name, relType, keys, e)
	d.PutTable(vt)
	return vt, nil
}

// CreatePublicTable declares a persistent virtual table with a fixed
// heading and key set but no defining expression yet; MapPublicTable
// supplies the expression afterward. The declaration is recorded in
// sys_ptables so it survives a reopen even before it is mapped.
func (d *Dbroot) CreatePublicTable(tx *txn.Transaction, name string, relType *rel.RelationType, keys []rel.Key) (*table.PublicTable, error) {
	if _, err := d.Table(name); err == nil {
		return nil, rel.ErrElementExists.New("table " + name)
	}
	pt := table.NewPublicTable(name, relType, keys)
	rec, ok := d.SystemTable(SysPtables)
	if !ok {
		return nil, rel.ErrInternal.New("sys_ptables not bootstrapped")
	}
	tup := rel.NewEmptyTuple()
	tup.Set("tablename", rel.NewString(name))
	tup.Set("i_def", rel.NewBinary(nil))
	tup.Set("mapped", rel.NewBool(false))
	if err := rec.Insert(tx.StoreTx(), tup); err != nil {
		return nil, err
	}
	if err := d.recordHeadingAndKeys(tx, name, relType); err != nil {
		return nil, err
	}
	if err := d.linkDbtable(tx, name); err != nil {
		return nil, err
	}
	d.PutTable(pt)
	return pt, nil
}

// MapPublicTable attaches e as name's defining expression, validating its
// inferred heading and keys against the table's declaration, and updates
// sys_ptables to record it as mapped.
func (d *Dbroot) MapPublicTable(tx *txn.Transaction, name string, e expr.Expr, tenv expr.TypeEnv) error {
	rv, err := d.Table(name)
	if err != nil {
		return err
	}
	pt, ok := rv.(*table.PublicTable)
	if !ok {
		return rel.ErrInvalidArgument.New(name + " is not a public table")
	}
	t, err := e.InferType(tenv)
	if err != nil {
		return err
	}
	rt, ok := t.(*rel.RelationType)
	if !ok {
		return rel.ErrTypeMismatch.New("map_public_table: defining expression is not relation-valued")
	}
	if err := pt.MapPublicTable(e, rt, rt.Keys); err != nil {
		return err
	}
	sys, ok := d.SystemTable(SysPtables)
	if !ok {
		return rel.ErrInternal.New("sys_ptables not bootstrapped")
	}
	key := rel.NewEmptyTuple()
	key.Set("tablename", rel.NewString(name))
	old, err := sys.Get(tx.StoreTx(), key)
	if err != nil {
		return err
	}
	updated := old.Copy()
	updated.Set("mapped", rel.NewBool(true))
	return sys.Update(tx.StoreTx(), old, updated)
}

// GetTable looks up a table by name, regardless of kind.
func (d *Dbroot) GetTable(name string) (table.Table, error) {
	rv, err := d.Table(name)
	if err != nil {
		return nil, err
	}
	t, ok := rv.(table.Table)
	if !ok {
		return nil, rel.ErrInternal.New("table " + name + " is not a table.Table")
	}
	return t, nil
}

// DropTable removes a stored or declared table and its catalog rows. It
// does not check for dependent constraints or public-table mappings; a
// caller wiring this into a higher-level drop_table must check those first.
func (d *Dbroot) DropTable(tx *txn.Transaction, name string) error {
	t, err := d.GetTable(name)
	if err != nil {
		return err
	}
	if _, ok := t.(*table.RealTable); ok {
		tx.DelRecmap(name)
		if err := d.deleteRow(tx, SysRtables, "tablename", name); err != nil {
			return err
		}
	} else if _, ok := t.(*table.PublicTable); ok {
		if err := d.deleteRow(tx, SysPtables, "tablename", name); err != nil {
			return err
		}
	}
	if err := d.deleteRow(tx, SysTableattrs, "tablename", name); err != nil {
		return err
	}
	if err := d.deleteRow(tx, SysKeys, "tablename", name); err != nil {
		return err
	}
	if err := d.deleteRow(tx, SysDbtables, "tablename", name); err != nil {
		return err
	}
	d.dropTableCache(name)
	return nil
}

// linkDbtable inserts (tablename, d.DBName) into sys_dbtables, satisfying
// the invariant that every reachable catalog table links back to the
// current database (§3). A no-op when d.DBName is unset, so bare
// Bootstrap-only callers (most of this package's tests) see no behavior
// change.
func (d *Dbroot) linkDbtable(tx *txn.Transaction, tablename string) error {
	if d.DBName == "" {
		return nil
	}
	sys, ok := d.SystemTable(SysDbtables)
	if !ok {
		return rel.ErrInternal.New("sys_dbtables not bootstrapped")
	}
	tup := rel.NewEmptyTuple()
	tup.Set("tablename", rel.NewString(tablename))
	tup.Set("dbname", rel.NewString(d.DBName))
	return sys.Insert(tx.StoreTx(), tup)
}

// RegisterDatabase sets d's database name and links every table already
// known to d (the system tables, at minimum) into sys_dbtables, per §4.5:
// "a new database registration inserts rows into sys_dbtables linking the
// catalog tables to the database name." Idempotent: re-registering the
// same name after a reopen skips tables already linked.
func (d *Dbroot) RegisterDatabase(tx *txn.Transaction, dbname string) error {
	d.DBName = dbname
	d.mu.RLock()
	names := make([]string, 0, len(d.tables))
	for name := range d.tables {
		names = append(names, name)
	}
	d.mu.RUnlock()
	sort.Strings(names)

	sys, ok := d.SystemTable(SysDbtables)
	if !ok {
		return rel.ErrInternal.New("sys_dbtables not bootstrapped")
	}
	existing, err := scanAll(sys, tx)
	if err != nil {
		return err
	}
	linked := make(map[string]bool, len(existing))
	for _, row := range existing {
		if row.MustGet("dbname").String() == dbname {
			linked[row.MustGet("tablename").String()] = true
		}
	}
	for _, name := range names {
		if linked[name] {
			continue
		}
		if err := d.linkDbtable(tx, name); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dbroot) recordTable(tx *txn.Transaction, sysName, tablename string, isUser bool) error {
	sys, ok := d.SystemTable(sysName)
	if !ok {
		return rel.ErrInternal.New(sysName + " not bootstrapped")
	}
	tup := rel.NewEmptyTuple()
	tup.Set("tablename", rel.NewString(tablename))
	tup.Set("is_user", rel.NewBool(isUser))
	return sys.Insert(tx.StoreTx(), tup)
}

func (d *Dbroot) recordHeadingAndKeys(tx *txn.Transaction, tablename string, relType *rel.RelationType) error {
	attrs, ok := d.SystemTable(SysTableattrs)
	if !ok {
		return rel.ErrInternal.New("sys_tableattrs not bootstrapped")
	}
	for i, a := range relType.Tuple.Attrs {
		enc, err := rel.EncodeType(a.Type)
		if err != nil {
			return err
		}
		tup := rel.NewEmptyTuple()
		tup.Set("tablename", rel.NewString(tablename))
		tup.Set("attrname", rel.NewString(a.Name))
		tup.Set("type", rel.NewBinary(enc))
		tup.Set("attrno", rel.NewInt(int64(i)))
		if err := attrs.Insert(tx.StoreTx(), tup); err != nil {
			return err
		}
	}
	keys, ok := d.SystemTable(SysKeys)
	if !ok {
		return rel.ErrInternal.New("sys_keys not bootstrapped")
	}
	for i, k := range relType.Keys {
		tup := rel.NewEmptyTuple()
		tup.Set("tablename", rel.NewString(tablename))
		tup.Set("keyno", rel.NewInt(int64(i)))
		tup.Set("attrs", rel.NewString(strings.Join([]string(k), " ")))
		if err := keys.Insert(tx.StoreTx(), tup); err != nil {
			return err
		}
	}
	return nil
}

// DeleteRowsByAttr removes every row of the system table sysName whose
// attr attribute equals val. Exported for typesys/constraint to clean up
// sys_types/sys_possreps/sys_possrepcomps/sys_constraints rows.
func (d *Dbroot) DeleteRowsByAttr(tx *txn.Transaction, sysName, attr, val string) error {
	return d.deleteRow(tx, sysName, attr, val)
}

// deleteRow removes every row of sysName whose attr attribute equals val,
// by a full scan: the system tables are small and this path runs only on
// DDL, not per-query.
func (d *Dbroot) deleteRow(tx *txn.Transaction, sysName, attr, val string) error {
	sys, ok := d.SystemTable(sysName)
	if !ok {
		return rel.ErrInternal.New(sysName + " not bootstrapped")
	}
	cur, err := sys.Scan(tx.StoreTx(), "")
	if err != nil {
		return err
	}
	defer cur.Close()
	var toDelete []*rel.Tuple
	ok2, err := cur.First()
	for ; ok2 && err == nil; ok2, err = cur.Next() {
		rec, rerr := cur.Current()
		if rerr != nil {
			return rerr
		}
		tup, derr := sys.DecodeRecord(rec)
		if derr != nil {
			return derr
		}
		v, present := tup.Get(attr)
		if present && v.Kind() == rel.KindBinary && v.String() == val {
			toDelete = append(toDelete, tup)
		}
	}
	if err != nil {
		return err
	}
	for _, tup := range toDelete {
		if err := sys.Delete(tx.StoreTx(), tup); err != nil {
			return err
		}
	}
	return nil
}

