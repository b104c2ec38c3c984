package cleanup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/smpg2030-sys/trailmindrise/internal/domain/model"
)

const purgeBatchSize = 100

type rejectedStore interface {
	ListRejectedOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]model.Post, error)
	DeletePendingByID(ctx context.Context, id string) error
}

type attachmentStore interface {
	Delete(ctx context.Context, key string) error
}

// Job purges rejected posts that have outlived the retention window, removing
// their stored attachments along the way. Rejected records are kept for a
// while so authors can see why a post was removed, then dropped.
type Job struct {
	posts     rejectedStore
	storage   attachmentStore
	retention time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

func NewRejectedPurgeJob(posts rejectedStore, storage attachmentStore, retention time.Duration, logger *zap.Logger) *Job {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		posts:     posts,
		storage:   storage,
		retention: retention,
		now:       time.Now,
		logger:    logger,
	}
}

func (j *Job) Run(ctx context.Context) error {
	if j.posts == nil {
		return nil
	}

	cutoff := j.now().Add(-j.retention)
	stale, err := j.posts.ListRejectedOlderThan(ctx, cutoff, purgeBatchSize)
	if err != nil {
		return fmt.Errorf("list stale rejected posts: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	for _, post := range stale {
		j.deleteAttachments(ctx, post)
		if err := j.posts.DeletePendingByID(ctx, post.ID); err != nil {
			return fmt.Errorf("purge rejected post: %w", err)
		}
	}

	j.logger.Info("purged stale rejected posts", zap.Int("purged", len(stale)))
	return nil
}

func (j *Job) deleteAttachments(ctx context.Context, post model.Post) {
	if j.storage == nil {
		return
	}

	for _, ref := range []string{post.ImageRef, post.VideoRef} {
		if ref == "" || strings.Contains(ref, "://") {
			continue
		}
		if err := j.storage.Delete(ctx, ref); err != nil {
			j.logger.Warn("failed to delete attachment for purged post",
				zap.Error(err), zap.String("post_id", post.ID), zap.String("object_key", ref))
		}
	}
}
