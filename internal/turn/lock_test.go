package turn

import (
	"context"
	"testing"
	"time"

	"civ-server/internal/shared/errors"
)

func TestLockerConflictWhileHeld(t *testing.T) {
	locker := NewLocker(nil, time.Minute, testLogger())
	ctx := context.Background()

	token, err := locker.Acquire(ctx, 1)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	if _, err := locker.Acquire(ctx, 1); errors.GetType(err) != errors.ErrorTypeConflict {
		t.Errorf("second Acquire() error = %v, want conflict", err)
	}

	locker.Release(ctx, 1, token)

	if _, err := locker.Acquire(ctx, 1); err != nil {
		t.Errorf("Acquire() after release error = %v", err)
	}
}

func TestLockerGamesIndependent(t *testing.T) {
	locker := NewLocker(nil, time.Minute, testLogger())
	ctx := context.Background()

	if _, err := locker.Acquire(ctx, 1); err != nil {
		t.Fatalf("Acquire(game 1) error = %v", err)
	}
	if _, err := locker.Acquire(ctx, 2); err != nil {
		t.Errorf("Acquire(game 2) error = %v, locks must be per game", err)
	}
}

func TestLockerStaleReleaseIgnored(t *testing.T) {
	locker := NewLocker(nil, time.Minute, testLogger())
	ctx := context.Background()

	token, err := locker.Acquire(ctx, 1)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	// A stale token must not drop someone else's lease.
	locker.Release(ctx, 1, "not-the-token")

	if _, err := locker.Acquire(ctx, 1); errors.GetType(err) != errors.ErrorTypeConflict {
		t.Errorf("Acquire() after stale release error = %v, want conflict", err)
	}

	locker.Release(ctx, 1, token)
}

func TestLockerExpiredLeaseReacquirable(t *testing.T) {
	locker := NewLocker(nil, time.Millisecond, testLogger())
	ctx := context.Background()

	if _, err := locker.Acquire(ctx, 1); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	if _, err := locker.Acquire(ctx, 1); err != nil {
		t.Errorf("Acquire() after lease expiry error = %v", err)
	}
}
