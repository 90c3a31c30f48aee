// Package duro wires the engine's collaborators (a store.Store, a
// catalog.Dbroot, and a txn.Transaction family) into the single
// "Environment" entry point §6 describes: "An environment wraps a
// record-store environment plus the dbroot. Opening an environment for an
// existing database discovers the catalog; creating a new database
// populates the catalog." Everything below this package (catalog, table,
// relalg, qresult, mutate, constraint, typesys, operator) is usable
// directly against a store.Store and txn.Transaction without it; this
// package exists only to give a host program (a CLI, a test harness, a
// language binding) one place to open a database by name.
package duro

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/duro-db/duro/catalog"
	"github.com/duro-db/duro/rel"
	"github.com/duro-db/duro/store"
	"github.com/duro-db/duro/txn"
)

// Backend selects which store.Store implementation an Environment opens.
type Backend string

const (
	// BackendMemory uses store.MemStore: transient, process-lifetime only.
	BackendMemory Backend = "memory"
	// BackendBolt uses store.BoltStore: a durable github.com/boltdb/bolt
	// file, the persistent record-store collaborator for real tables.
	BackendBolt Backend = "bolt"
)

// OpenOptions configures Open, either built up in code or loaded from a
// TOML file via LoadOpenOptions (SPEC_FULL §2: "Configuration... loads
// Environment open options (record-store backend selection, cache sizes)
// from a TOML file"). The zero value (BackendMemory with no path) is a
// valid, purely in-process configuration.
type OpenOptions struct {
	// Backend selects the record-store implementation. Empty defaults to
	// BackendMemory.
	Backend Backend `toml:"backend"`
	// Path is the bolt database file path; required when Backend is
	// BackendBolt, ignored otherwise.
	Path string `toml:"path"`
}

// LoadOpenOptions reads an OpenOptions value from a TOML file at path,
// the Config layer SPEC_FULL §2 grounds on the teacher's own Config
// struct in engine.go, persisted here instead of passed as a Go literal.
func LoadOpenOptions(path string) (OpenOptions, error) {
	var opts OpenOptions
	if _, err := toml.DecodeFile(path, &opts); err != nil {
		return OpenOptions{}, errors.Wrap(err, "duro: load open options")
	}
	return opts, nil
}

// Environment is the top-level handle a host program opens once per
// database: it owns the store.Store and the catalog.Dbroot built over it.
type Environment struct {
	st     store.Store
	Dbroot *catalog.Dbroot
	Name   string
}

// Open opens or creates the database named name using opts. A new database
// (no prior sys_dbtables rows for name) is populated: Bootstrap seeds the
// system tables and built-ins, Discover rehydrates anything a prior run of
// this same store already recorded, and RegisterDatabase links every
// visible table into sys_dbtables under name. Reopening an existing
// on-disk database (BackendBolt with the same Path) runs the identical
// sequence; Discover and RegisterDatabase are both idempotent, so the net
// effect is "discover what's there, add what's missing."
func Open(name string, opts OpenOptions) (*Environment, error) {
	st, err := newStore(opts)
	if err != nil {
		return nil, err
	}
	ctx := rel.NewExecContext()
	tx, err := txn.Begin(st, ctx)
	if err != nil {
		st.Close()
		return nil, err
	}
	d, err := catalog.Bootstrap(st, tx)
	if err != nil {
		tx.Rollback()
		st.Close()
		return nil, err
	}
	if err := d.RegisterDatabase(tx, name); err != nil {
		tx.Rollback()
		st.Close()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		st.Close()
		return nil, err
	}
	return &Environment{st: st, Dbroot: d, Name: name}, nil
}

func newStore(opts OpenOptions) (store.Store, error) {
	switch opts.Backend {
	case "", BackendMemory:
		return store.NewMemStore(), nil
	case BackendBolt:
		if opts.Path == "" {
			return nil, rel.ErrInvalidArgument.New("duro: bolt backend requires a Path")
		}
		return store.OpenBoltStore(opts.Path)
	default:
		return nil, rel.ErrInvalidArgument.New("duro: unknown backend " + string(opts.Backend))
	}
}

// Begin starts a new top-level transaction against e's store, the entry
// point every DDL/DML operation in this engine requires (§11).
func (e *Environment) Begin(ctx *rel.ExecContext) (*txn.Transaction, error) {
	return txn.Begin(e.st, ctx)
}

// Close releases e's underlying store. Per §6, the environment's own close
// hook frees the dbroot on release; since Dbroot holds no resources beyond
// Go-managed maps and the store itself, closing the store is sufficient.
func (e *Environment) Close() error {
	return e.st.Close()
}
