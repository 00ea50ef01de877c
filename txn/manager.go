package txn

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"reld/execctx"
	"reld/record"
)

// Manager coordinates record-layer transactions with the kernel's
// logical lock manager: Begin opens a record-layer transaction and a
// Session tracking its isolation level, Commit/Abort release the
// session's locks and close out the record-layer transaction, and every
// backend error surfaces through record.TranslateError into the
// canonical execctx taxonomy (spec §5/§6.2).
type Manager struct {
	recEnv record.Environment
	locks  *LockManager
	nextID uint64
	mu     sync.RWMutex
	open   map[uint64]*openTxn
	closed bool
}

type openTxn struct {
	session *Session
	rtx     record.Transaction
}

// NewManager constructs a Manager over recEnv, using locks for logical
// resource locking.
func NewManager(recEnv record.Environment, locks *LockManager) *Manager {
	return &Manager{recEnv: recEnv, locks: locks, open: make(map[uint64]*openTxn)}
}

// Begin starts a new transaction at the given isolation level, nested
// under parent's record-layer transaction if parent is non-nil.
func (m *Manager) Begin(ctx context.Context, parent *Session, isolation IsolationLevel) (*Session, record.Transaction, *execctx.Error) {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return nil, nil, execctx.New(execctx.ErrSystem, "transaction manager is closed")
	}

	var parentTx record.Transaction
	if parent != nil {
		m.mu.RLock()
		if ot, ok := m.open[parent.ID]; ok {
			parentTx = ot.rtx
		}
		m.mu.RUnlock()
	}

	rtx, err := m.recEnv.BeginTx(ctx, parentTx)
	if err != nil {
		return nil, nil, execctx.Wrap(record.TranslateError(err), "begin transaction", err)
	}

	id := atomic.AddUint64(&m.nextID, 1)
	sess := &Session{ID: id, Isolation: isolation, StartedAt: time.Now()}
	sess.setActive(true)

	m.mu.Lock()
	m.open[id] = &openTxn{session: sess, rtx: rtx}
	m.mu.Unlock()

	return sess, rtx, nil
}

// Lock acquires a logical lock on resource for sess's transaction,
// translating a lock-manager timeout into a retryable concurrency_error
// per spec §5.
func (m *Manager) Lock(sess *Session, resource string, lockType LockType) *execctx.Error {
	if !sess.Active() {
		return execctx.New(execctx.ErrNoRunningTransaction, "transaction is not active")
	}
	if err := m.locks.Acquire(sess.ID, resource, lockType); err != nil {
		return execctx.New(execctx.ErrConcurrency, err.Error())
	}
	return nil
}

// Commit commits sess's transaction and releases its locks.
func (m *Manager) Commit(sess *Session) *execctx.Error {
	m.mu.Lock()
	ot, ok := m.open[sess.ID]
	if ok {
		delete(m.open, sess.ID)
	}
	m.mu.Unlock()
	if !ok {
		return execctx.New(execctx.ErrNoRunningTransaction, "no such transaction")
	}

	if err := m.recEnv.Commit(ot.rtx); err != nil {
		sess.setActive(false)
		m.locks.ReleaseAll(sess.ID)
		return execctx.Wrap(record.TranslateError(err), "commit transaction", err)
	}
	sess.setActive(false)
	if err := m.locks.ReleaseAll(sess.ID); err != nil {
		return execctx.New(execctx.ErrSystem, fmt.Sprintf("commit succeeded but lock release failed: %v", err))
	}
	return nil
}

// Abort aborts sess's transaction and releases its locks, invalidating
// every iterator it owns (spec §5).
func (m *Manager) Abort(sess *Session) *execctx.Error {
	m.mu.Lock()
	ot, ok := m.open[sess.ID]
	if ok {
		delete(m.open, sess.ID)
	}
	m.mu.Unlock()
	sess.setActive(false)
	m.locks.ReleaseAll(sess.ID)
	if !ok {
		return nil
	}
	if err := m.recEnv.Abort(ot.rtx); err != nil {
		return execctx.Wrap(record.TranslateError(err), "abort transaction", err)
	}
	return nil
}

// abortAsDeadlockVictim is called by Detector when victimID's session is
// chosen to break a wait-for cycle; it raises no error to a caller since
// the detector runs out-of-band, but the session's next record-layer
// call will observe an aborted transaction and the kernel surfaces
// no_running_transaction per spec §5.
func (m *Manager) abortAsDeadlockVictim(victimID uint64) {
	m.mu.RLock()
	ot, ok := m.open[victimID]
	m.mu.RUnlock()
	if !ok {
		return
	}
	m.Abort(ot.session)
}

// Close aborts every open transaction and closes the lock manager.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	open := make([]*openTxn, 0, len(m.open))
	for _, ot := range m.open {
		open = append(open, ot)
	}
	m.closed = true
	m.mu.Unlock()

	for _, ot := range open {
		m.Abort(ot.session)
	}
	return m.locks.Close()
}
