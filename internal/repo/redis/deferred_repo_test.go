package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newDeferredTestRepo(t *testing.T) *DeferredRepo {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewDeferredRepo(client)
}

func TestDeferredScheduleAndClaim(t *testing.T) {
	repo := newDeferredTestRepo(t)
	ctx := context.Background()
	now := time.Now()

	due := Task{ID: "t1", Kind: TaskKindModerationRecheck, Subject: "post-1"}
	future := Task{ID: "t2", Kind: TaskKindSessionPayout, Subject: "room-1"}

	if err := repo.Schedule(ctx, due, now.Add(-time.Minute)); err != nil {
		t.Fatalf("schedule due task: %v", err)
	}
	if err := repo.Schedule(ctx, future, now.Add(time.Hour)); err != nil {
		t.Fatalf("schedule future task: %v", err)
	}

	claimed, err := repo.ClaimDue(ctx, now, 10)
	if err != nil {
		t.Fatalf("claim due: %v", err)
	}
	if len(claimed) != 1 {
		t.Fatalf("expected 1 due task, got %d", len(claimed))
	}
	if claimed[0].ID != "t1" || claimed[0].Subject != "post-1" {
		t.Fatalf("unexpected task: %+v", claimed[0])
	}

	count, err := repo.PendingCount(ctx)
	if err != nil {
		t.Fatalf("pending count: %v", err)
	}
	if count != 1 {
		t.Fatalf("future task must remain queued, count=%d", count)
	}
}

func TestDeferredClaimIsExclusive(t *testing.T) {
	repo := newDeferredTestRepo(t)
	ctx := context.Background()
	now := time.Now()

	task := Task{ID: "t1", Kind: TaskKindModerationRecheck, Subject: "post-1"}
	if err := repo.Schedule(ctx, task, now.Add(-time.Second)); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	first, err := repo.ClaimDue(ctx, now, 10)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	second, err := repo.ClaimDue(ctx, now, 10)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}

	if len(first) != 1 || len(second) != 0 {
		t.Fatalf("task claimed %d+%d times, want exactly once", len(first), len(second))
	}
}

func TestDeferredScheduleValidatesPayload(t *testing.T) {
	repo := newDeferredTestRepo(t)

	if err := repo.Schedule(context.Background(), Task{Kind: TaskKindSessionPayout}, time.Now()); err == nil {
		t.Fatalf("expected validation error for task without id and subject")
	}
}
