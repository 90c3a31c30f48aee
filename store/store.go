// Package store defines the record-store contract the engine requires from
// an external, physical storage collaborator: create/open/close a recmap
// with a vector of field lengths and a primary-key prefix length;
// insert/delete/update/get by primary key; cursor iteration, optionally
// against a secondary index; secondary index management; and sorted recmap
// creation for explicit-ordering reads. All operations take an opaque
// transaction handle so the store never depends on the txn package.
//
// Two concrete stores are provided: an in-memory store (memstore.go) for
// transient tables, and a github.com/boltdb/bolt-backed persistent store
// (boltstore.go) for durable tables. A github.com/google/btree-backed sorted
// index (btreeindex.go) backs explicit-ordering reads.
package store

import (
	"github.com/pkg/errors"

	"github.com/duro-db/duro/rel"
)

// FieldLen marks a variable-length field in a recmap's field-length vector.
const FieldLen = -1

// Record is one stored row: an ordered list of field byte-encodings,
// positioned according to the recmap's field map (primary-key fields
// first).
type Record [][]byte

// RecmapSpec describes the physical shape of a recmap at creation time.
type RecmapSpec struct {
	Name string
	// FieldLens gives the byte length of each field, or FieldLen for a
	// variable-length field.
	FieldLens []int
	// KeyFields is the number of leading fields that make up the primary
	// key.
	KeyFields int
	// Unique, for a secondary index, requires every key to be distinct.
	Unique bool
}

// IndexSpec describes a secondary index over an existing recmap.
type IndexSpec struct {
	Name string
	// FieldNos lists, in order, which fields of the base recmap the index
	// keys on.
	FieldNos []int
	Unique   bool
	// Less, if non-nil, compares two encoded key tuples for a sorted
	// index; nil means the index is unordered (hash-like).
	Less func(a, b Record) bool
}

// Cursor iterates a recmap's records, optionally positioned on a secondary
// index.
type Cursor interface {
	First() (bool, error)
	Next() (bool, error)
	Current() (Record, error)
	Update(rec Record) error
	Delete() error
	Close() error
}

// Recmap is a single stored table's physical handle.
type Recmap interface {
	Name() string
	Get(tx Tx, key Record) (Record, error)
	Insert(tx Tx, rec Record) error
	Update(tx Tx, key Record, rec Record) error
	Delete(tx Tx, key Record) error
	OpenCursor(tx Tx, index string) (Cursor, error)
	CreateIndex(tx Tx, spec IndexSpec) error
	OpenIndex(tx Tx, name string) (Recmap, error)
	DeleteIndex(tx Tx, name string) error
	Close() error
}

// Tx is the opaque transaction handle a Store operation is scoped to. The
// txn package wraps one of these for every top-level transaction and shares
// it across nested scopes, since neither backing store supports true nested
// transactions.
type Tx interface {
	ID() string
	Commit() error
	Rollback() error
}

// Store is the root record-store collaborator: it begins transactions and
// creates, opens, closes and deletes recmaps.
type Store interface {
	Begin(writable bool) (Tx, error)
	CreateRecmap(tx Tx, spec RecmapSpec) (Recmap, error)
	OpenRecmap(tx Tx, name string) (Recmap, error)
	DeleteRecmap(tx Tx, name string) error
	Close() error
}

// TranslateError maps a store-level failure to the engine's error taxonomy,
// the boundary described for record-store error codes: key-exists ->
// KEY_VIOLATION, not-found -> NOT_FOUND, deadlock -> DEADLOCK,
// lock-not-granted -> LOCK_NOT_GRANTED, runtime-recovery-required -> FATAL,
// anything else -> SYSTEM with the store's message.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	switch errors.Cause(err) {
	case ErrKeyExists:
		return rel.ErrKeyViolation.New(err.Error())
	case ErrRecordNotFound:
		return rel.ErrNotFound.New(err.Error())
	case ErrDeadlock:
		return rel.ErrDeadlock.New(err.Error())
	case ErrLockNotGranted:
		return rel.ErrLockNotGranted.New(err.Error())
	case ErrRunRecovery:
		return rel.ErrFatal.New(err.Error())
	default:
		return rel.ErrSystem.New(err.Error())
	}
}

// Sentinel store-level errors, translated by TranslateError at the engine
// boundary via pkg/errors-wrapped causes (see memstore.go/boltstore.go).
var (
	ErrKeyExists      = storeErr("key exists")
	ErrRecordNotFound = storeErr("record not found")
	ErrDeadlock       = storeErr("deadlock")
	ErrLockNotGranted = storeErr("lock not granted")
	ErrRunRecovery    = storeErr("run recovery")
)

type storeErr string

func (e storeErr) Error() string { return string(e) }
