// Package txn implements nested transaction scoping over a store.Store and
// deferred resource cleanup for recmaps/indexes scheduled for deletion
// during a transaction, per the concurrency model: single-threaded per
// transaction, no cross-thread sharing of a handle.
package txn

import (
	"sync"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"
	uuid "github.com/satori/go.uuid"

	"github.com/duro-db/duro/rel"
	"github.com/duro-db/duro/store"
)

// pendingDeletion names a recmap or index scheduled for deletion on commit.
type pendingDeletion struct {
	recmap string
	index  string // empty for a whole-recmap deletion
}

// Transaction is a (possibly nested) scope over a single underlying
// store.Tx. Neither backing store supports true nested transactions, so
// every transaction in a family shares the root's store.Tx; nesting only
// affects deferred-deletion bookkeeping and rollback granularity at the
// engine level.
type Transaction struct {
	mu       sync.Mutex
	id       uuid.UUID
	parent   *Transaction
	root     *Transaction
	st       store.Store
	storeTx  store.Tx
	running  bool
	span     opentracing.Span
	logger   *logrus.Entry
	deferred []pendingDeletion
}

// Begin starts a new top-level transaction against st.
func Begin(st store.Store, ctx *rel.ExecContext) (*Transaction, error) {
	return begin(st, ctx, nil)
}

// BeginNested starts a transaction nested under parent, sharing its
// underlying store.Tx.
func BeginNested(parent *Transaction, ctx *rel.ExecContext) (*Transaction, error) {
	if parent == nil {
		return nil, rel.ErrInvalidArgument.New("nil parent transaction")
	}
	return begin(parent.st, ctx, parent)
}

func begin(st store.Store, ctx *rel.ExecContext, parent *Transaction) (*Transaction, error) {
	tx := &Transaction{id: uuid.NewV4(), parent: parent, st: st, running: true}
	if parent != nil {
		tx.root = parent.root
		tx.storeTx = parent.storeTx
	} else {
		tx.root = tx
		storeTx, err := st.Begin(true)
		if err != nil {
			return nil, store.TranslateError(err)
		}
		tx.storeTx = storeTx
	}
	if ctx != nil {
		tx.logger = ctx.Logger
		if ctx.Tracer != nil {
			span := ctx.Tracer.StartSpan("tx.begin")
			span.SetTag("tx.id", tx.id.String())
			tx.span = span
		}
	}
	if tx.logger != nil {
		tx.logger.WithField("tx", tx.id.String()).Trace("begin")
	}
	return tx, nil
}

// IsRunning reports whether the transaction has neither committed nor
// rolled back.
func (t *Transaction) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// StoreTx returns the underlying store.Tx every operation in this family
// executes against.
func (t *Transaction) StoreTx() store.Tx { return t.storeTx }

// DelRecmap enqueues an entire recmap for deletion, performed on top-level
// commit and discarded on rollback.
func (t *Transaction) DelRecmap(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deferred = append(t.deferred, pendingDeletion{recmap: name})
}

// DelIndex enqueues a secondary index for deletion.
func (t *Transaction) DelIndex(recmap, index string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deferred = append(t.deferred, pendingDeletion{recmap: recmap, index: index})
}

// Commit ends the transaction. On a nested commit, pending deletions
// migrate to the parent's list rather than being performed; on a top-level
// commit they are performed against the store, then the store.Tx commits.
func (t *Transaction) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return rel.ErrNoRunningTx.New("transaction already ended")
	}
	t.running = false
	if t.span != nil {
		t.span.Finish()
	}
	if t.parent != nil {
		t.parent.mu.Lock()
		t.parent.deferred = append(t.parent.deferred, t.deferred...)
		t.parent.mu.Unlock()
		return nil
	}
	for _, d := range t.deferred {
		if err := t.performDeletion(d); err != nil {
			return err
		}
	}
	if err := t.storeTx.Commit(); err != nil {
		return store.TranslateError(err)
	}
	if t.logger != nil {
		t.logger.WithField("tx", t.id.String()).Trace("commit")
	}
	return nil
}

// Rollback ends the transaction, discarding its pending deletions. On
// top-level rollback, the underlying store.Tx is rolled back.
func (t *Transaction) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return rel.ErrNoRunningTx.New("transaction already ended")
	}
	t.running = false
	if t.span != nil {
		t.span.Finish()
	}
	t.deferred = nil
	if t.parent != nil {
		return nil
	}
	if err := t.storeTx.Rollback(); err != nil {
		return store.TranslateError(err)
	}
	if t.logger != nil {
		t.logger.WithField("tx", t.id.String()).Trace("rollback")
	}
	return nil
}

func (t *Transaction) performDeletion(d pendingDeletion) error {
	if d.index != "" {
		rm, err := t.st.OpenRecmap(t.storeTx, d.recmap)
		if err != nil {
			return store.TranslateError(err)
		}
		if err := rm.DeleteIndex(t.storeTx, d.index); err != nil {
			return store.TranslateError(err)
		}
		return nil
	}
	if err := t.st.DeleteRecmap(t.storeTx, d.recmap); err != nil {
		return store.TranslateError(err)
	}
	return nil
}
