package rel

import (
	"sync"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"
	uuid "github.com/satori/go.uuid"
	goerrors "gopkg.in/src-d/go-errors.v1"
)

// ExecContext is an execution context: one per logical thread of execution,
// holding at most one active error and an open bag of named properties a
// host binding can use to stash session state (the D interpreter, the JNI
// bridge, ...).
type ExecContext struct {
	ID     uuid.UUID
	Logger *logrus.Entry
	Tracer opentracing.Tracer

	mu         sync.Mutex
	err        error
	properties map[string]interface{}
}

// NewExecContext creates a fresh context with no active error.
func NewExecContext() *ExecContext {
	return &ExecContext{
		ID:         uuid.NewV4(),
		Logger:     logrus.NewEntry(logrus.StandardLogger()),
		Tracer:     opentracing.GlobalTracer(),
		properties: make(map[string]interface{}),
	}
}

// Raise stores err as the context's single active error, discarding any
// previous one, and returns it so callers can `return ctx.Raise(...)`.
func (c *ExecContext) Raise(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
	return err
}

// Err returns the currently active error, or nil.
func (c *ExecContext) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// ClearErr drops the active error. Used once a caller has fully handled it.
func (c *ExecContext) ClearErr() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = nil
}

// SetProperty attaches a named, host-defined value to the context (for
// example a JNI env pointer, or a FastCGI request handle).
func (c *ExecContext) SetProperty(name string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.properties[name] = value
}

// Property retrieves a value set by SetProperty.
func (c *ExecContext) Property(name string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.properties[name]
	return v, ok
}

// Is reports whether the active error is of kind k, a thin convenience over
// errors.Kind.Is so callers needn't import go-errors.v1 themselves.
func (c *ExecContext) Is(k *goerrors.Kind) bool {
	return k.Is(c.Err())
}
