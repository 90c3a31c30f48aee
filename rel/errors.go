// Package rel implements the core value and type system of the engine:
// polymorphic values, user-defined scalar types with possreps, and the
// error/context model.
package rel

import goerrors "gopkg.in/src-d/go-errors.v1"

// Error kinds. Each is a sum-type member: raising one destroys any
// previously active error on the context.
var (
	ErrNoMemory               = goerrors.NewKind("out of memory")
	ErrNoRunningTx            = goerrors.NewKind("no running transaction")
	ErrInvalidArgument        = goerrors.NewKind("invalid argument: %s")
	ErrTypeMismatch           = goerrors.NewKind("type mismatch: %s")
	ErrNotFound               = goerrors.NewKind("not found: %s")
	ErrOperatorNotFound       = goerrors.NewKind("operator not found: %s/%d")
	ErrName                   = goerrors.NewKind("invalid name: %s")
	ErrElementExists          = goerrors.NewKind("element already exists")
	ErrTypeConstraintViolation = goerrors.NewKind("type constraint violation: %s")
	ErrKeyViolation           = goerrors.NewKind("key violation: %s")
	ErrPredicateViolation     = goerrors.NewKind("predicate violation: %s")
	ErrAggregateUndefined     = goerrors.NewKind("aggregate undefined over empty relation")
	ErrVersionMismatch        = goerrors.NewKind("version mismatch: %s")
	ErrNotSupported           = goerrors.NewKind("not supported: %s")
	ErrSyntax                 = goerrors.NewKind("syntax error: %s")
	ErrInUse                  = goerrors.NewKind("in use: %s")
	ErrSystem                 = goerrors.NewKind("system error: %s")
	ErrLockNotGranted         = goerrors.NewKind("lock not granted")
	ErrDeadlock               = goerrors.NewKind("deadlock detected")
	ErrResourceNotFound       = goerrors.NewKind("resource not found: %s")
	ErrInternal               = goerrors.NewKind("internal error: %s")
	ErrFatal                  = goerrors.NewKind("fatal error: %s")
)

// IsErrorKind reports whether err is (or wraps) an error of kind k.
func IsErrorKind(k *goerrors.Kind, err error) bool {
	return k.Is(err)
}
