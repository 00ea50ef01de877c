package txn

import (
	"context"
	"testing"
	"time"

	"reld/execctx"
	"reld/record/rmem"
)

func mustRecEnv(t *testing.T) *rmem.Environment {
	t.Helper()
	env := rmem.New()
	if err := env.Create("/test"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return env
}

func TestBeginCommitReleasesLocks(t *testing.T) {
	locks := NewLockManager(time.Second)
	mgr := NewManager(mustRecEnv(t), locks)

	sess, _, err := mgr.Begin(context.Background(), nil, ReadCommitted)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if lerr := mgr.Lock(sess, "parts", ExclusiveLock); lerr != nil {
		t.Fatalf("Lock: %v", lerr)
	}
	if cerr := mgr.Commit(sess); cerr != nil {
		t.Fatalf("Commit: %v", cerr)
	}
	if sess.Active() {
		t.Error("expected session to be inactive after commit")
	}

	// A fresh transaction should be able to acquire the same exclusive
	// lock immediately now that the first transaction released it.
	sess2, _, err := mgr.Begin(context.Background(), nil, ReadCommitted)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- locks.Acquire(sess2.ID, "parts", ExclusiveLock) }()
	select {
	case lerr := <-done:
		if lerr != nil {
			t.Fatalf("expected lock to be free after commit, got: %v", lerr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out acquiring a lock that should have been released")
	}
}

func TestAbortReleasesLocks(t *testing.T) {
	locks := NewLockManager(time.Second)
	mgr := NewManager(mustRecEnv(t), locks)

	sess, _, err := mgr.Begin(context.Background(), nil, ReadCommitted)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if lerr := mgr.Lock(sess, "suppliers", ExclusiveLock); lerr != nil {
		t.Fatalf("Lock: %v", lerr)
	}
	if aerr := mgr.Abort(sess); aerr != nil {
		t.Fatalf("Abort: %v", aerr)
	}
	if sess.Active() {
		t.Error("expected session to be inactive after abort")
	}
	if err := locks.Acquire(99, "suppliers", ExclusiveLock); err != nil {
		t.Fatalf("expected lock free after abort, got: %v", err)
	}
}

func TestLockOnInactiveSessionFails(t *testing.T) {
	locks := NewLockManager(time.Second)
	mgr := NewManager(mustRecEnv(t), locks)

	sess, _, err := mgr.Begin(context.Background(), nil, ReadCommitted)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if cerr := mgr.Commit(sess); cerr != nil {
		t.Fatalf("Commit: %v", cerr)
	}
	lerr := mgr.Lock(sess, "parts", SharedLock)
	if lerr == nil || lerr.Kind != execctx.ErrNoRunningTransaction {
		t.Fatalf("expected no_running_transaction, got %v", lerr)
	}
}

func TestDeadlockDetectorChoosesYoungestVictim(t *testing.T) {
	locks := NewLockManager(200 * time.Millisecond)
	mgr := NewManager(mustRecEnv(t), locks)

	sessA, _, _ := mgr.Begin(context.Background(), nil, ReadCommitted)
	sessB, _, _ := mgr.Begin(context.Background(), nil, ReadCommitted)

	if err := locks.Acquire(sessA.ID, "r1", ExclusiveLock); err != nil {
		t.Fatalf("acquire r1 for A: %v", err)
	}
	if err := locks.Acquire(sessB.ID, "r2", ExclusiveLock); err != nil {
		t.Fatalf("acquire r2 for B: %v", err)
	}

	waitErrA := make(chan error, 1)
	waitErrB := make(chan error, 1)
	go func() { waitErrA <- locks.Acquire(sessA.ID, "r2", ExclusiveLock) }()
	go func() { waitErrB <- locks.Acquire(sessB.ID, "r1", ExclusiveLock) }()

	time.Sleep(50 * time.Millisecond)
	deadlocks := locks.DetectDeadlocks()
	if len(deadlocks) == 0 {
		t.Fatal("expected at least one deadlock to be detected")
	}
	if deadlocks[0].VictimTxnID != sessB.ID {
		t.Errorf("expected the higher-numbered session (%d) to be chosen as victim, got %d", sessB.ID, deadlocks[0].VictimTxnID)
	}

	<-waitErrA
	<-waitErrB
}
