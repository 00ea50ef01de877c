package execctx

import "sync"

// Context is the implicit parameter threaded through every fallible
// kernel operation (spec §4.3). It is not safe for concurrent use by
// multiple goroutines at once — the kernel is single-threaded per
// execution context (spec §5) — the mutex here only guards against
// accidental concurrent access during debugging/logging, the way the
// teacher's Transaction embeds a mutex "to reduce contention" even though
// its intended owner is single-threaded per call path.
type Context struct {
	mu        sync.Mutex
	err       *Error
	active    bool
	retryable bool
	rollback  bool
	props     map[string]interface{}
}

// NewContext returns a fresh Context with no active error.
func NewContext() *Context {
	return &Context{props: make(map[string]interface{})}
}

// Raise records err as the context's active error. If an error is already
// active, it is discarded first (spec §4.3: "Any operation that detects
// an already-active error during a raise must destroy the previous error
// first").
func (c *Context) Raise(err *Error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
	c.active = true
	if err != nil && IsRetryable(err.Kind) {
		c.retryable = true
	}
}

// RaiseKind is a convenience wrapper around Raise for the common case of
// raising a fresh error by kind and message.
func (c *Context) RaiseKind(kind ErrorKind, message string) {
	c.Raise(New(kind, message))
}

// Error returns the active error, or nil if none is active.
func (c *Context) Error() *Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return nil
	}
	return c.err
}

// Active reports whether an error is currently active.
func (c *Context) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Clear releases the active error and resets the retryable flag. Per
// spec open question (§9), whether callers must clear a not_found left
// by iterator exhaustion is ambiguous in the original; in this kernel
// QResult.Next signals the end with (nil, nil) and raises nothing into
// the context, so exhaustion leaves no not_found behind to clear.
func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = nil
	c.active = false
	c.retryable = false
}

// Retryable reports whether any error raised since the context was
// created or last cleared was one of the transactional kinds a caller
// should retry after abort; a later non-retryable raise does not reset it.
func (c *Context) Retryable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retryable
}

// SetRollback marks the context's transaction as needing to roll back
// regardless of the error kind, mirroring the rollback flag of spec §4.3.
func (c *Context) SetRollback(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollback = v
}

// Rollback reports the rollback flag.
func (c *Context) Rollback() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rollback
}

// SetProperty stores a value in the context's string-keyed property map.
func (c *Context) SetProperty(key string, val interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.props[key] = val
}

// Property retrieves a value from the context's property map.
func (c *Context) Property(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.props[key]
	return v, ok
}

// Destroy releases any pending error, mirroring the execution context
// destructor of spec §5 ("the execution context destructor destroys any
// pending error").
func (c *Context) Destroy() {
	c.Clear()
}
