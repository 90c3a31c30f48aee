// Package catalog implements the system tables and the dbroot bootstrap
// sequence (§4.5): on first open of an environment, a dbroot is created that
// seeds the built-in type and operator maps, then opens or creates each
// system table, all driven through the same store.Store and table.RealTable
// machinery real user tables use.
package catalog

import (
	"github.com/duro-db/duro/rel"
)

// System table names, matching §3/§4.5 exactly.
const (
	SysTypes        = "sys_types"
	SysPossreps     = "sys_possreps"
	SysPossrepcomps = "sys_possrepcomps"
	SysRtables      = "sys_rtables"
	SysVtables      = "sys_vtables"
	SysTableattrs   = "sys_tableattrs"
	SysKeys         = "sys_keys"
	SysROOps        = "sys_ro_ops"
	SysUpdOps       = "sys_upd_ops"
	SysConstraints  = "sys_constraints"
	SysDbtables     = "sys_dbtables"
	SysPtables      = "sys_ptables"
)

// systemTableNames lists every system table in bootstrap order; sys_types
// through sys_possrepcomps must exist before any user type is defined,
// sys_rtables/sys_vtables/sys_ptables before any table is created.
var systemTableNames = []string{
	SysTypes, SysPossreps, SysPossrepcomps,
	SysRtables, SysVtables, SysPtables,
	SysTableattrs, SysKeys,
	SysROOps, SysUpdOps,
	SysConstraints, SysDbtables,
}

func attr(name string, t rel.Type) rel.Attribute { return rel.Attribute{Name: name, Type: t} }

// systemRelType returns the relation type and primary key for a system
// table name; panics on an unknown name since the set is fixed and
// internal.
func systemRelType(name string) (*rel.RelationType, []rel.Key) {
	switch name {
	case SysTypes:
		tt := rel.NewTupleType(
			attr("typename", rel.StringType),
			attr("internallen", rel.IntegerType),
			attr("ordered", rel.BooleanType),
		)
		keys := []rel.Key{{"typename"}}
		return rel.NewRelationType(tt, keys), keys
	case SysPossreps:
		tt := rel.NewTupleType(
			attr("typename", rel.StringType),
			attr("possrepname", rel.StringType),
		)
		keys := []rel.Key{{"typename", "possrepname"}}
		return rel.NewRelationType(tt, keys), keys
	case SysPossrepcomps:
		tt := rel.NewTupleType(
			attr("typename", rel.StringType),
			attr("possrepname", rel.StringType),
			attr("compname", rel.StringType),
			attr("compno", rel.IntegerType),
			attr("comptype", rel.BinaryType),
		)
		keys := []rel.Key{{"typename", "possrepname", "compname"}}
		return rel.NewRelationType(tt, keys), keys
	case SysRtables:
		tt := rel.NewTupleType(
			attr("tablename", rel.StringType),
			attr("is_user", rel.BooleanType),
		)
		keys := []rel.Key{{"tablename"}}
		return rel.NewRelationType(tt, keys), keys
	case SysVtables:
		tt := rel.NewTupleType(
			attr("tablename", rel.StringType),
			attr("i_def", rel.BinaryType),
		)
		keys := []rel.Key{{"tablename"}}
		return rel.NewRelationType(tt, keys), keys
	case SysPtables:
		tt := rel.NewTupleType(
			attr("tablename", rel.StringType),
			attr("i_def", rel.BinaryType),
			attr("mapped", rel.BooleanType),
		)
		keys := []rel.Key{{"tablename"}}
		return rel.NewRelationType(tt, keys), keys
	case SysTableattrs:
		tt := rel.NewTupleType(
			attr("tablename", rel.StringType),
			attr("attrname", rel.StringType),
			attr("type", rel.BinaryType),
			attr("attrno", rel.IntegerType),
		)
		keys := []rel.Key{{"tablename", "attrname"}}
		return rel.NewRelationType(tt, keys), keys
	case SysKeys:
		tt := rel.NewTupleType(
			attr("tablename", rel.StringType),
			attr("keyno", rel.IntegerType),
			attr("attrs", rel.StringType),
		)
		keys := []rel.Key{{"tablename", "keyno"}}
		return rel.NewRelationType(tt, keys), keys
	case SysROOps:
		tt := rel.NewTupleType(
			attr("name", rel.StringType),
			attr("argtypes", rel.BinaryType),
			attr("rtype", rel.BinaryType),
			attr("lib", rel.StringType),
			attr("symbol", rel.StringType),
			attr("source", rel.StringType),
			attr("version", rel.StringType),
		)
		keys := []rel.Key{{"name", "argtypes"}}
		return rel.NewRelationType(tt, keys), keys
	case SysUpdOps:
		tt := rel.NewTupleType(
			attr("name", rel.StringType),
			attr("argtypes", rel.BinaryType),
			attr("paramupdate", rel.StringType),
			attr("lib", rel.StringType),
			attr("symbol", rel.StringType),
			attr("source", rel.StringType),
			attr("version", rel.StringType),
		)
		keys := []rel.Key{{"name", "argtypes"}}
		return rel.NewRelationType(tt, keys), keys
	case SysConstraints:
		tt := rel.NewTupleType(
			attr("constraintname", rel.StringType),
			attr("i_expr", rel.BinaryType),
		)
		keys := []rel.Key{{"constraintname"}}
		return rel.NewRelationType(tt, keys), keys
	case SysDbtables:
		tt := rel.NewTupleType(
			attr("tablename", rel.StringType),
			attr("dbname", rel.StringType),
		)
		keys := []rel.Key{{"tablename", "dbname"}}
		return rel.NewRelationType(tt, keys), keys
	default:
		panic("catalog: unknown system table " + name)
	}
}
