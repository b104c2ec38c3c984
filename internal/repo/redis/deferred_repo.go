package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const deferredKey = "deferred:tasks"

// Task kinds understood by the deferred worker.
const (
	TaskKindModerationRecheck = "moderation_recheck"
	TaskKindSessionPayout     = "session_payout"
)

// Task is one deferred unit of work. Tasks survive process restarts because
// they live in a redis sorted set scored by their due time.
type Task struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Subject string `json:"subject"`
}

type DeferredRepo struct {
	client *goredis.Client
}

func NewDeferredRepo(client *goredis.Client) *DeferredRepo {
	return &DeferredRepo{client: client}
}

func (r *DeferredRepo) Schedule(ctx context.Context, task Task, due time.Time) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if task.ID == "" || task.Kind == "" || task.Subject == "" {
		return fmt.Errorf("invalid deferred task payload")
	}

	member, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode deferred task: %w", err)
	}

	if err := r.client.ZAdd(ctx, deferredKey, goredis.Z{
		Score:  float64(due.Unix()),
		Member: string(member),
	}).Err(); err != nil {
		return fmt.Errorf("schedule deferred task: %w", err)
	}

	return nil
}

// ClaimDue pops tasks whose due time has passed. A task is returned only when
// this caller removed it from the set, so concurrent workers never process
// the same task twice.
func (r *DeferredRepo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]Task, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if limit <= 0 {
		limit = 10
	}

	members, err := r.client.ZRangeByScore(ctx, deferredKey, &goredis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list due deferred tasks: %w", err)
	}

	tasks := make([]Task, 0, len(members))
	for _, member := range members {
		removed, err := r.client.ZRem(ctx, deferredKey, member).Result()
		if err != nil {
			return nil, fmt.Errorf("claim deferred task: %w", err)
		}
		if removed == 0 {
			continue
		}

		var task Task
		if err := json.Unmarshal([]byte(member), &task); err != nil {
			// A malformed member would otherwise be re-claimed forever.
			continue
		}
		tasks = append(tasks, task)
	}

	return tasks, nil
}

func (r *DeferredRepo) PendingCount(ctx context.Context) (int64, error) {
	if r.client == nil {
		return 0, fmt.Errorf("redis client is nil")
	}

	count, err := r.client.ZCard(ctx, deferredKey).Result()
	if err != nil {
		return 0, fmt.Errorf("count deferred tasks: %w", err)
	}

	return count, nil
}
