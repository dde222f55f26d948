package flap

import (
	"context"
	"testing"
	"time"
)

func TestLocalLockUnlockIdempotence(t *testing.T) {
	l := NewLocal(time.Hour)

	ok, err := l.Lock(context.Background(), "test")
	if err != nil || !ok {
		t.Fatalf("first lock = %v, %v; want true, nil", ok, err)
	}
	if l.State() != Locked {
		t.Fatalf("State() = %v, want Locked", l.State())
	}

	ok, err = l.Lock(context.Background(), "test again")
	if err != nil || ok {
		t.Fatalf("second lock = %v, %v; want false, nil (already locked)", ok, err)
	}

	ok, err = l.Unlock(context.Background(), "test")
	if err != nil || !ok {
		t.Fatalf("unlock = %v, %v; want true, nil", ok, err)
	}
	if l.State() != Unlocked {
		t.Fatalf("State() after unlock = %v, want Unlocked", l.State())
	}

	ok, err = l.Unlock(context.Background(), "again")
	if err != nil || ok {
		t.Fatalf("second unlock = %v, %v; want false, nil (already unlocked)", ok, err)
	}
}

func TestLocalAutoUnlockAfterDuration(t *testing.T) {
	l := NewLocal(30 * time.Millisecond)

	if _, err := l.Lock(context.Background(), "test"); err != nil {
		t.Fatalf("lock failed: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for l.State() == Locked {
		select {
		case <-deadline:
			t.Fatal("auto-unlock did not fire within deadline")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestLocalManualUnlockCancelsAutoTimer(t *testing.T) {
	l := NewLocal(30 * time.Millisecond)

	if _, err := l.Lock(context.Background(), "test"); err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	ok, err := l.Unlock(context.Background(), "manual")
	if err != nil || !ok {
		t.Fatalf("manual unlock = %v, %v; want true, nil", ok, err)
	}

	// The cancelled auto-unlock task must not fire a second, spurious
	// unlock once its original deadline passes.
	time.Sleep(60 * time.Millisecond)
	if l.State() != Unlocked {
		t.Error("state changed after manual unlock once the stale timer's deadline passed")
	}

	ok, err = l.Unlock(context.Background(), "again")
	if err != nil || ok {
		t.Fatalf("unlock of already-unlocked flap = %v, %v; want false, nil", ok, err)
	}
}
