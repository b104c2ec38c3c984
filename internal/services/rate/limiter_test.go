package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	redrepo "github.com/smpg2030-sys/trailmindrise/internal/repo/redis"
)

func newTestLimiter(t *testing.T, perMinute, perHour int) *Limiter {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewLimiter(redrepo.NewRateRepo(client), perMinute, perHour)
}

func TestAllowSubmitWithinLimit(t *testing.T) {
	limiter := newTestLimiter(t, 3, 10)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		retry, ok, err := limiter.AllowSubmit(ctx, "u1")
		if err != nil {
			t.Fatalf("allow submit %d: %v", i, err)
		}
		if !ok || retry != 0 {
			t.Fatalf("submission %d must be allowed, ok=%v retry=%d", i, ok, retry)
		}
	}
}

func TestAllowSubmitBlocksOverMinuteLimit(t *testing.T) {
	limiter := newTestLimiter(t, 2, 100)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, ok, err := limiter.AllowSubmit(ctx, "u1"); err != nil || !ok {
			t.Fatalf("warmup %d: ok=%v err=%v", i, ok, err)
		}
	}

	retry, ok, err := limiter.AllowSubmit(ctx, "u1")
	if err != nil {
		t.Fatalf("allow submit: %v", err)
	}
	if ok {
		t.Fatalf("third submission in a minute must be blocked")
	}
	if retry <= 0 || retry > int64(time.Minute/time.Second) {
		t.Fatalf("unexpected retry after: %d", retry)
	}
}

func TestAllowSubmitIsPerAuthor(t *testing.T) {
	limiter := newTestLimiter(t, 1, 100)
	ctx := context.Background()

	if _, ok, err := limiter.AllowSubmit(ctx, "u1"); err != nil || !ok {
		t.Fatalf("first author first submit: ok=%v err=%v", ok, err)
	}
	if _, ok, err := limiter.AllowSubmit(ctx, "u2"); err != nil || !ok {
		t.Fatalf("second author must have an independent window: ok=%v err=%v", ok, err)
	}
}
