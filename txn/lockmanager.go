package txn

import (
	"fmt"
	"sync"
	"time"
)

// lockRequest is a pending lock request parked on a resource's wait
// queue.
type lockRequest struct {
	txnID     uint64
	resource  string
	lockType  LockType
	requestAt time.Time
	done      chan error
}

// resourceLock holds the current holders and wait queue for one logical
// resource (a relation name, or a relation name plus a bound candidate
// key value once the planner has one).
type resourceLock struct {
	resource  string
	holders   map[uint64]LockType
	waitQueue []*lockRequest
	mu        sync.Mutex
}

// LockManager implements relation/key-granularity two-phase locking for
// record-layer backends that do not serialize access themselves (spec
// §5: "the kernel maps the backend's native lock/deadlock codes...and
// falls back to its own locking when the backend only detects conflicts
// optimistically", per SPEC_FULL.md §5).
type LockManager struct {
	mu          sync.RWMutex
	locks       map[string]*resourceLock
	txnLocks    map[uint64][]string
	lockTimeout time.Duration
	closed      bool
}

// NewLockManager constructs a LockManager with the given lock-wait
// timeout (config.TxnConfig.LockTimeout; defaults to 30s if non-positive).
func NewLockManager(lockTimeout time.Duration) *LockManager {
	if lockTimeout <= 0 {
		lockTimeout = 30 * time.Second
	}
	return &LockManager{
		locks:       make(map[string]*resourceLock),
		txnLocks:    make(map[uint64][]string),
		lockTimeout: lockTimeout,
	}
}

// Acquire blocks until txnID holds lockType on resource, or the lock
// timeout elapses.
func (lm *LockManager) Acquire(txnID uint64, resource string, lockType LockType) error {
	lm.mu.RLock()
	closed := lm.closed
	lm.mu.RUnlock()
	if closed {
		return fmt.Errorf("txn: lock manager is closed")
	}

	rl := lm.getOrCreate(resource)
	if lm.tryAcquire(rl, txnID, lockType) {
		lm.addTxnLock(txnID, resource)
		return nil
	}

	req := &lockRequest{txnID: txnID, resource: resource, lockType: lockType, requestAt: time.Now(), done: make(chan error, 1)}
	rl.mu.Lock()
	rl.waitQueue = append(rl.waitQueue, req)
	rl.mu.Unlock()

	select {
	case err := <-req.done:
		if err == nil {
			lm.addTxnLock(txnID, resource)
		}
		return err
	case <-time.After(lm.lockTimeout):
		lm.removeFromWaitQueue(rl, req)
		return fmt.Errorf("txn: lock timeout for transaction %d on %s", txnID, resource)
	}
}

// Release releases txnID's lock on resource, if held, and wakes any
// compatible waiters.
func (lm *LockManager) Release(txnID uint64, resource string) error {
	lm.mu.RLock()
	rl, ok := lm.locks[resource]
	lm.mu.RUnlock()
	if !ok {
		return nil
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, holds := rl.holders[txnID]; !holds {
		return nil
	}
	delete(rl.holders, txnID)
	lm.removeTxnLock(txnID, resource)
	lm.wakeWaiters(rl)
	return nil
}

// ReleaseAll releases every lock txnID holds, run on commit or abort.
func (lm *LockManager) ReleaseAll(txnID uint64) error {
	lm.mu.RLock()
	resources := append([]string(nil), lm.txnLocks[txnID]...)
	lm.mu.RUnlock()

	var firstErr error
	for _, resource := range resources {
		if err := lm.Release(txnID, resource); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DetectDeadlocks walks the current wait-for graph for cycles, returning
// one DeadlockInfo per cycle found with the highest-numbered (youngest)
// transaction in the cycle chosen as the abort victim.
func (lm *LockManager) DetectDeadlocks() []DeadlockInfo {
	graph := lm.buildWaitForGraph()
	cycles := findCycles(graph)

	infos := make([]DeadlockInfo, 0, len(cycles))
	for _, cycle := range cycles {
		if len(cycle) > 1 {
			infos = append(infos, DeadlockInfo{Cycle: cycle, VictimTxnID: youngest(cycle), DetectedAt: time.Now()})
		}
	}
	return infos
}

func (lm *LockManager) buildWaitForGraph() *WaitForGraph {
	graph := &WaitForGraph{Edges: make(map[uint64][]uint64)}

	lm.mu.RLock()
	defer lm.mu.RUnlock()
	for _, rl := range lm.locks {
		rl.mu.Lock()
		for _, req := range rl.waitQueue {
			for holder := range rl.holders {
				if holder != req.txnID {
					graph.Edges[req.txnID] = append(graph.Edges[req.txnID], holder)
				}
			}
		}
		rl.mu.Unlock()
	}
	return graph
}

// Close cancels every pending wait and marks the manager unusable.
func (lm *LockManager) Close() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if lm.closed {
		return nil
	}
	for _, rl := range lm.locks {
		rl.mu.Lock()
		for _, req := range rl.waitQueue {
			select {
			case req.done <- fmt.Errorf("txn: lock manager closing"):
			default:
			}
		}
		rl.waitQueue = nil
		rl.mu.Unlock()
	}
	lm.closed = true
	return nil
}

func (lm *LockManager) getOrCreate(resource string) *resourceLock {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if rl, ok := lm.locks[resource]; ok {
		return rl
	}
	rl := &resourceLock{resource: resource, holders: make(map[uint64]LockType)}
	lm.locks[resource] = rl
	return rl
}

func (lm *LockManager) tryAcquire(rl *resourceLock, txnID uint64, lockType LockType) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if existing, holds := rl.holders[txnID]; holds {
		if existing == lockType || (existing == ExclusiveLock && lockType == SharedLock) {
			return true
		}
		if existing == SharedLock && lockType == ExclusiveLock && len(rl.holders) == 1 {
			rl.holders[txnID] = ExclusiveLock
			return true
		}
	}

	if len(rl.holders) == 0 {
		rl.holders[txnID] = lockType
		return true
	}
	if lockType == SharedLock {
		for _, t := range rl.holders {
			if t == ExclusiveLock {
				return false
			}
		}
		rl.holders[txnID] = lockType
		return true
	}
	return false
}

func (lm *LockManager) wakeWaiters(rl *resourceLock) {
	i := 0
	for i < len(rl.waitQueue) {
		req := rl.waitQueue[i]
		if canGrant(rl, req.lockType) {
			rl.holders[req.txnID] = req.lockType
			rl.waitQueue = append(rl.waitQueue[:i], rl.waitQueue[i+1:]...)
			select {
			case req.done <- nil:
			default:
			}
			continue
		}
		i++
	}
}

func canGrant(rl *resourceLock, lockType LockType) bool {
	if lockType == SharedLock {
		for _, t := range rl.holders {
			if t == ExclusiveLock {
				return false
			}
		}
		return true
	}
	return len(rl.holders) == 0
}

func (lm *LockManager) addTxnLock(txnID uint64, resource string) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	for _, r := range lm.txnLocks[txnID] {
		if r == resource {
			return
		}
	}
	lm.txnLocks[txnID] = append(lm.txnLocks[txnID], resource)
}

func (lm *LockManager) removeTxnLock(txnID uint64, resource string) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	resources := lm.txnLocks[txnID]
	for i, r := range resources {
		if r == resource {
			lm.txnLocks[txnID] = append(resources[:i], resources[i+1:]...)
			break
		}
	}
	if len(lm.txnLocks[txnID]) == 0 {
		delete(lm.txnLocks, txnID)
	}
}

func (lm *LockManager) removeFromWaitQueue(rl *resourceLock, req *lockRequest) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for i, r := range rl.waitQueue {
		if r == req {
			rl.waitQueue = append(rl.waitQueue[:i], rl.waitQueue[i+1:]...)
			break
		}
	}
}

func findCycles(graph *WaitForGraph) [][]uint64 {
	visited := make(map[uint64]bool)
	onStack := make(map[uint64]bool)
	var cycles [][]uint64

	var dfs func(node uint64, path []uint64)
	dfs = func(node uint64, path []uint64) {
		visited[node] = true
		onStack[node] = true
		path = append(path, node)

		for _, next := range graph.Edges[node] {
			if !visited[next] {
				dfs(next, path)
			} else if onStack[next] {
				start := -1
				for i, n := range path {
					if n == next {
						start = i
						break
					}
				}
				if start >= 0 {
					cycle := make([]uint64, len(path)-start)
					copy(cycle, path[start:])
					cycles = append(cycles, cycle)
				}
			}
		}
		onStack[node] = false
	}

	for node := range graph.Edges {
		if !visited[node] {
			dfs(node, nil)
		}
	}
	return cycles
}

func youngest(cycle []uint64) uint64 {
	v := cycle[0]
	for _, id := range cycle[1:] {
		if id > v {
			v = id
		}
	}
	return v
}
