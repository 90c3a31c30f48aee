package catalog

import (
	"strings"

	"github.com/duro-db/duro/qresult"
	"github.com/duro-db/duro/rel"
	"github.com/duro-db/duro/table"
	"github.com/duro-db/duro/txn"
)

// Discover rehydrates a Dbroot's in-memory caches from the system tables
// after Bootstrap has opened them, the half of §6's "opening an environment
// for an existing database discovers the catalog" contract that Bootstrap
// itself does not cover (Bootstrap only guarantees the twelve system tables
// exist; it never reads their rows back into d.scalars/d.tables). Call it
// once, inside the same transaction as Bootstrap, before any user DDL.
//
// sys_vtables rows are not rehydrated: a virtual table's defining
// expression has no serializer in this core (see constraint.record and
// typesys.Define's Constraint/Initializer comments for the same limitation
// applied to constraints and type callbacks), so a plain (non-public)
// virtual table created in a prior process is unrecoverable and must be
// redefined by the caller. sys_ptables rows are rehydrated as declared but
// unmapped public tables: the heading and keys survive, the mapping
// expression does not, so MapPublicTable must be called again before the
// table is queryable.
func Discover(d *Dbroot, tx *txn.Transaction) error {
	if err := discoverTypes(d, tx); err != nil {
		return err
	}
	if err := discoverRealTables(d, tx); err != nil {
		return err
	}
	if err := discoverPublicTables(d, tx); err != nil {
		return err
	}
	return nil
}

func discoverTypes(d *Dbroot, tx *txn.Transaction) error {
	types, ok := d.SystemTable(SysTypes)
	if !ok {
		return rel.ErrInternal.New("sys_types not bootstrapped")
	}
	rows, err := scanAll(types, tx)
	if err != nil {
		return err
	}
	for _, row := range rows {
		name := row.MustGet("typename").String()
		if _, err := d.ScalarType(name); err == nil {
			continue // built-in or already cached
		}
		possreps, err := discoverPossreps(d, tx, name)
		if err != nil {
			return err
		}
		st := &rel.ScalarType{
			TypeName:    name,
			InternalLen: int(row.MustGet("internallen").Int()),
			Possreps:    possreps,
			Ordered:     row.MustGet("ordered").Bool(),
		}
		d.PutScalarType(st)
	}
	return nil
}

func discoverPossreps(d *Dbroot, tx *txn.Transaction, typeName string) ([]rel.Possrep, error) {
	possrepsTbl, ok := d.SystemTable(SysPossreps)
	if !ok {
		return nil, rel.ErrInternal.New("sys_possreps not bootstrapped")
	}
	rows, err := scanAll(possrepsTbl, tx)
	if err != nil {
		return nil, err
	}
	var out []rel.Possrep
	for _, row := range rows {
		if row.MustGet("typename").String() != typeName {
			continue
		}
		prName := row.MustGet("possrepname").String()
		comps, err := discoverPossrepComps(d, tx, typeName, prName)
		if err != nil {
			return nil, err
		}
		out = append(out, rel.Possrep{Name: prName, Components: comps})
	}
	return out, nil
}

func discoverPossrepComps(d *Dbroot, tx *txn.Transaction, typeName, possrepName string) ([]rel.Attribute, error) {
	compsTbl, ok := d.SystemTable(SysPossrepcomps)
	if !ok {
		return nil, rel.ErrInternal.New("sys_possrepcomps not bootstrapped")
	}
	rows, err := scanAll(compsTbl, tx)
	if err != nil {
		return nil, err
	}
	type indexed struct {
		no   int64
		attr rel.Attribute
	}
	var found []indexed
	for _, row := range rows {
		if row.MustGet("typename").String() != typeName || row.MustGet("possrepname").String() != possrepName {
			continue
		}
		t, err := rel.DecodeType(row.MustGet("comptype").Binary(), d)
		if err != nil {
			return nil, err
		}
		found = append(found, indexed{
			no:   row.MustGet("compno").Int(),
			attr: rel.Attribute{Name: row.MustGet("compname").String(), Type: t},
		})
	}
	// sys_possrepcomps carries no declared order guarantee from the store,
	// so sort by the recorded compno explicitly rather than relying on
	// insertion order.
	for i := 1; i < len(found); i++ {
		for j := i; j > 0 && found[j].no < found[j-1].no; j-- {
			found[j], found[j-1] = found[j-1], found[j]
		}
	}
	out := make([]rel.Attribute, len(found))
	for i, f := range found {
		out[i] = f.attr
	}
	return out, nil
}

func discoverRealTables(d *Dbroot, tx *txn.Transaction) error {
	rtables, ok := d.SystemTable(SysRtables)
	if !ok {
		return rel.ErrInternal.New("sys_rtables not bootstrapped")
	}
	rows, err := scanAll(rtables, tx)
	if err != nil {
		return err
	}
	for _, row := range rows {
		name := row.MustGet("tablename").String()
		if _, err := d.Table(name); err == nil {
			continue
		}
		relType, err := loadRelType(d, tx, name)
		if err != nil {
			return err
		}
		rt, err := table.OpenRealTable(tx.StoreTx(), d.st, name, relType, true)
		if err != nil {
			return err
		}
		d.PutTable(rt)
	}
	return nil
}

func discoverPublicTables(d *Dbroot, tx *txn.Transaction) error {
	ptables, ok := d.SystemTable(SysPtables)
	if !ok {
		return rel.ErrInternal.New("sys_ptables not bootstrapped")
	}
	rows, err := scanAll(ptables, tx)
	if err != nil {
		return err
	}
	for _, row := range rows {
		name := row.MustGet("tablename").String()
		if _, err := d.Table(name); err == nil {
			continue
		}
		relType, err := loadRelType(d, tx, name)
		if err != nil {
			return err
		}
		pt := table.NewPublicTable(name, relType, relType.Keys)
		d.PutTable(pt)
	}
	return nil
}

// loadRelType rebuilds name's tuple type and key list from
// sys_tableattrs/sys_keys, used by both real- and public-table discovery.
func loadRelType(d *Dbroot, tx *txn.Transaction, name string) (*rel.RelationType, error) {
	attrsTbl, ok := d.SystemTable(SysTableattrs)
	if !ok {
		return nil, rel.ErrInternal.New("sys_tableattrs not bootstrapped")
	}
	rows, err := scanAll(attrsTbl, tx)
	if err != nil {
		return nil, err
	}
	type indexed struct {
		no   int64
		attr rel.Attribute
	}
	var found []indexed
	for _, row := range rows {
		if row.MustGet("tablename").String() != name {
			continue
		}
		t, err := rel.DecodeType(row.MustGet("type").Binary(), d)
		if err != nil {
			return nil, err
		}
		found = append(found, indexed{
			no:   row.MustGet("attrno").Int(),
			attr: rel.Attribute{Name: row.MustGet("attrname").String(), Type: t},
		})
	}
	for i := 1; i < len(found); i++ {
		for j := i; j > 0 && found[j].no < found[j-1].no; j-- {
			found[j], found[j-1] = found[j-1], found[j]
		}
	}
	attrs := make([]rel.Attribute, len(found))
	for i, f := range found {
		attrs[i] = f.attr
	}

	keysTbl, ok := d.SystemTable(SysKeys)
	if !ok {
		return nil, rel.ErrInternal.New("sys_keys not bootstrapped")
	}
	krows, err := scanAll(keysTbl, tx)
	if err != nil {
		return nil, err
	}
	type indexedKey struct {
		no  int64
		key rel.Key
	}
	var foundKeys []indexedKey
	for _, row := range krows {
		if row.MustGet("tablename").String() != name {
			continue
		}
		attrList := strings.Fields(row.MustGet("attrs").String())
		foundKeys = append(foundKeys, indexedKey{no: row.MustGet("keyno").Int(), key: rel.Key(attrList)})
	}
	for i := 1; i < len(foundKeys); i++ {
		for j := i; j > 0 && foundKeys[j].no < foundKeys[j-1].no; j-- {
			foundKeys[j], foundKeys[j-1] = foundKeys[j-1], foundKeys[j]
		}
	}
	keys := make([]rel.Key, len(foundKeys))
	for i, k := range foundKeys {
		keys[i] = k.key
	}

	return rel.NewRelationType(rel.NewTupleType(attrs...), keys), nil
}

// scanAll drains every tuple currently stored in sys, used only for the
// small, DDL-frequency system tables during Discover.
func scanAll(sys *table.RealTable, tx *txn.Transaction) ([]*rel.Tuple, error) {
	q, err := qresult.Open(sys, tx.StoreTx(), rel.Env{})
	if err != nil {
		return nil, err
	}
	return qresult.ToSlice(q)
}
