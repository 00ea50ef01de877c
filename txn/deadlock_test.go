package txn

import (
	"context"
	"testing"
	"time"
)

func TestDetectorAbortsVictimPeriodically(t *testing.T) {
	locks := NewLockManager(2 * time.Second)
	mgr := NewManager(mustRecEnv(t), locks)
	det := NewDetector(locks, mgr, 20*time.Millisecond)
	det.Start()
	defer det.Stop()

	sessA, _, _ := mgr.Begin(context.Background(), nil, ReadCommitted)
	sessB, _, _ := mgr.Begin(context.Background(), nil, ReadCommitted)

	if err := locks.Acquire(sessA.ID, "r1", ExclusiveLock); err != nil {
		t.Fatalf("acquire r1 for A: %v", err)
	}
	if err := locks.Acquire(sessB.ID, "r2", ExclusiveLock); err != nil {
		t.Fatalf("acquire r2 for B: %v", err)
	}

	go locks.Acquire(sessA.ID, "r2", ExclusiveLock)
	go locks.Acquire(sessB.ID, "r1", ExclusiveLock)

	deadline := time.After(3 * time.Second)
	for {
		if !sessA.Active() || !sessB.Active() {
			return
		}
		select {
		case <-deadline:
			t.Fatal("expected the detector to abort one of the deadlocked sessions")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
