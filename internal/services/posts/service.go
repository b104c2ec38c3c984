package posts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smpg2030-sys/trailmindrise/internal/domain/enums"
	"github.com/smpg2030-sys/trailmindrise/internal/domain/model"
	"github.com/smpg2030-sys/trailmindrise/internal/pkg/validate"
	pgrepo "github.com/smpg2030-sys/trailmindrise/internal/repo/postgres"
	redrepo "github.com/smpg2030-sys/trailmindrise/internal/repo/redis"
	modsvc "github.com/smpg2030-sys/trailmindrise/internal/services/moderation"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrPostNotFound    = errors.New("post not found")
	ErrInvalidDecision = errors.New("override decision must be approved or rejected")
)

type TooFastError struct {
	RetryAfterSec int64
}

func (e TooFastError) Error() string {
	return "too many posts"
}

func IsTooFast(err error) (*TooFastError, bool) {
	var tf TooFastError
	if errors.As(err, &tf) {
		return &tf, true
	}
	return nil, false
}

const (
	operatorSystem = "AI_SYSTEM"
	maxBodyLength  = 5000
)

type PostStore interface {
	InsertPending(ctx context.Context, p model.Post) error
	GetPending(ctx context.Context, id string) (model.Post, error)
	GetFromAny(ctx context.Context, id string) (model.Post, bool, error)
	UpdatePendingModeration(ctx context.Context, p model.Post) error
	UpdatePublishedModeration(ctx context.Context, p model.Post) error
	PromoteToPublished(ctx context.Context, p model.Post) error
	DemoteToPending(ctx context.Context, p model.Post) error
	DeleteOwned(ctx context.Context, id, authorID string) (bool, error)
	DeleteByID(ctx context.Context, id string) (bool, error)
	ListByAuthor(ctx context.Context, authorID string) ([]model.Post, error)
	Counts(ctx context.Context) (pgrepo.PostCounts, error)
}

type Moderator interface {
	Evaluate(ctx context.Context, in modsvc.Input) modsvc.Verdict
}

type TaskScheduler interface {
	Schedule(ctx context.Context, task redrepo.Task, due time.Time) error
}

type AttachmentStore interface {
	Delete(ctx context.Context, key string) error
}

type SubmitLimiter interface {
	AllowSubmit(ctx context.Context, authorID string) (int64, bool, error)
}

type Config struct {
	RecheckDelay time.Duration
}

// Service owns the post lifecycle: submission through the moderation
// pipeline, deferred re-evaluation of flagged posts, admin overrides and the
// pending/published moves that follow from each verdict.
type Service struct {
	store       PostStore
	moderator   Moderator
	scheduler   TaskScheduler
	attachments AttachmentStore
	limiter     SubmitLimiter
	cfg         Config
	now         func() time.Time
	logger      *zap.Logger
}

func NewService(store PostStore, moderator Moderator, scheduler TaskScheduler, cfg Config, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("post store is required")
	}
	if moderator == nil {
		return nil, fmt.Errorf("moderator is required")
	}
	if cfg.RecheckDelay <= 0 {
		cfg.RecheckDelay = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		store:     store,
		moderator: moderator,
		scheduler: scheduler,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger,
	}, nil
}

// AttachAttachmentCleanup enables best-effort removal of stored media objects
// when their post is deleted.
func (s *Service) AttachAttachmentCleanup(store AttachmentStore) {
	s.attachments = store
}

// AttachSubmitLimiter enables per-author submission throttling.
func (s *Service) AttachSubmitLimiter(limiter SubmitLimiter) {
	s.limiter = limiter
}

type SubmitInput struct {
	AuthorID string
	Body     string
	ImageRef string
	VideoRef string
}

// Submit creates the post in the pending collection, runs the first
// moderation pass and applies its verdict: approved posts move straight to
// published, flagged posts get a deferred re-evaluation, rejected posts stay
// in pending as a terminal record.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (model.Post, error) {
	if !validate.Required(in.AuthorID) {
		return model.Post{}, fmt.Errorf("%w: author id is required", ErrValidation)
	}
	if !validate.Required(in.Body) && !validate.Required(in.ImageRef) && !validate.Required(in.VideoRef) {
		return model.Post{}, fmt.Errorf("%w: post needs text or media", ErrValidation)
	}
	if len(in.Body) > maxBodyLength {
		return model.Post{}, fmt.Errorf("%w: body exceeds %d characters", ErrValidation, maxBodyLength)
	}

	if s.limiter != nil {
		retryAfter, ok, err := s.limiter.AllowSubmit(ctx, in.AuthorID)
		if err != nil {
			s.logger.Warn("submit rate check failed, allowing", zap.Error(err))
		} else if !ok {
			return model.Post{}, TooFastError{RetryAfterSec: retryAfter}
		}
	}

	post := model.Post{
		ID:        uuid.NewString(),
		AuthorID:  in.AuthorID,
		Body:      strings.TrimSpace(in.Body),
		ImageRef:  in.ImageRef,
		VideoRef:  in.VideoRef,
		Status:    enums.ModerationStatusPending,
		CreatedAt: s.now().UTC(),
	}

	verdict := s.moderator.Evaluate(ctx, modsvc.Input{
		Text:     post.Body,
		ImageRef: post.ImageRef,
		VideoRef: post.VideoRef,
	})
	s.applyVerdict(&post, verdict, "first_pass", operatorSystem)

	if err := s.store.InsertPending(ctx, post); err != nil {
		return model.Post{}, fmt.Errorf("store submitted post: %w", err)
	}

	switch post.Status {
	case enums.ModerationStatusApproved:
		if err := s.store.PromoteToPublished(ctx, post); err != nil {
			return model.Post{}, fmt.Errorf("publish approved post: %w", err)
		}
	case enums.ModerationStatusFlagged:
		s.scheduleRecheck(ctx, post.ID)
	}

	s.logger.Info("post submitted",
		zap.String("post_id", post.ID),
		zap.String("status", string(post.Status)),
		zap.String("category", post.ModerationCategory))

	return post, nil
}

// Reconcile is the deferred second moderation pass for a flagged post. A post
// that already left the flagged state, or the pending collection, is left
// alone.
func (s *Service) Reconcile(ctx context.Context, postID string) error {
	post, err := s.store.GetPending(ctx, postID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrPostNotFound) {
			return nil
		}
		return fmt.Errorf("load post for recheck: %w", err)
	}
	if post.Status != enums.ModerationStatusFlagged {
		return nil
	}

	verdict := s.moderator.Evaluate(ctx, modsvc.Input{
		Text:     post.Body,
		ImageRef: post.ImageRef,
		VideoRef: post.VideoRef,
	})
	s.applyVerdict(&post, verdict, "second_pass", operatorSystem)

	if post.Status == enums.ModerationStatusApproved {
		if err := s.store.PromoteToPublished(ctx, post); err != nil {
			return fmt.Errorf("publish rechecked post: %w", err)
		}
		return nil
	}

	// Rejected becomes terminal; a still-flagged post waits for an admin.
	if err := s.store.UpdatePendingModeration(ctx, post); err != nil {
		if errors.Is(err, pgrepo.ErrPostNotFound) {
			return nil
		}
		return fmt.Errorf("update rechecked post: %w", err)
	}

	return nil
}

// AdminOverride applies a human decision on top of whatever the pipeline
// concluded. The override always wins and is recorded in the transition log
// under the admin's id.
func (s *Service) AdminOverride(ctx context.Context, postID, adminID string, decision enums.ModerationStatus, reason string) (model.Post, error) {
	if decision != enums.ModerationStatusApproved && decision != enums.ModerationStatusRejected {
		return model.Post{}, ErrInvalidDecision
	}
	if !validate.Required(adminID) {
		return model.Post{}, fmt.Errorf("%w: admin id is required", ErrValidation)
	}

	post, published, err := s.store.GetFromAny(ctx, postID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrPostNotFound) {
			return model.Post{}, ErrPostNotFound
		}
		return model.Post{}, fmt.Errorf("load post for override: %w", err)
	}

	post.Status = decision
	post.ModerationSource = enums.ModerationSourceAdminOverride
	post.RejectionReason = ""
	if decision == enums.ModerationStatusRejected {
		post.RejectionReason = reason
		if post.RejectionReason == "" {
			post.RejectionReason = "removed by moderator"
		}
	}
	post.ModerationLogs = append(post.ModerationLogs, model.ModerationLogEntry{
		Action:    "admin_override",
		Timestamp: s.now().UTC(),
		Operator:  adminID,
		Details:   reason,
	})

	switch {
	case decision == enums.ModerationStatusApproved && published:
		err = s.store.UpdatePublishedModeration(ctx, post)
	case decision == enums.ModerationStatusApproved:
		err = s.store.PromoteToPublished(ctx, post)
	case published:
		err = s.store.DemoteToPending(ctx, post)
	default:
		err = s.store.UpdatePendingModeration(ctx, post)
	}
	if err != nil {
		if errors.Is(err, pgrepo.ErrPostNotFound) {
			return model.Post{}, ErrPostNotFound
		}
		return model.Post{}, fmt.Errorf("apply admin override: %w", err)
	}

	s.logger.Info("admin override applied",
		zap.String("post_id", post.ID),
		zap.String("admin_id", adminID),
		zap.String("decision", string(decision)))

	return post, nil
}

// Status returns the author's view of their post wherever it currently lives.
func (s *Service) Status(ctx context.Context, postID, requesterID string) (model.Post, error) {
	post, _, err := s.store.GetFromAny(ctx, postID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrPostNotFound) {
			return model.Post{}, ErrPostNotFound
		}
		return model.Post{}, fmt.Errorf("load post status: %w", err)
	}
	if post.AuthorID != requesterID {
		return model.Post{}, ErrPostNotFound
	}

	return post, nil
}

// Delete removes the author's post from whichever collection holds it, then
// best-effort removes its stored attachments.
// Delete removes the requester's post. Admins may remove any post through
// the same path.
func (s *Service) Delete(ctx context.Context, postID, requesterID string, isAdmin bool) error {
	post, _, err := s.store.GetFromAny(ctx, postID)
	if err != nil && !errors.Is(err, pgrepo.ErrPostNotFound) {
		return fmt.Errorf("load post for delete: %w", err)
	}

	var deleted bool
	if isAdmin {
		deleted, err = s.store.DeleteByID(ctx, postID)
	} else {
		deleted, err = s.store.DeleteOwned(ctx, postID, requesterID)
	}
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if !deleted {
		return ErrPostNotFound
	}

	s.cleanupAttachments(ctx, post)

	s.logger.Info("post deleted",
		zap.String("post_id", postID), zap.String("operator", requesterID), zap.Bool("admin", isAdmin))
	return nil
}

func (s *Service) cleanupAttachments(ctx context.Context, post model.Post) {
	if s.attachments == nil {
		return
	}

	for _, ref := range []string{post.ImageRef, post.VideoRef} {
		if ref == "" || strings.Contains(ref, "://") {
			continue
		}
		if err := s.attachments.Delete(ctx, ref); err != nil {
			s.logger.Warn("delete post attachment failed",
				zap.Error(err), zap.String("post_id", post.ID), zap.String("object_key", ref))
		}
	}
}

func (s *Service) ListMine(ctx context.Context, authorID string) ([]model.Post, error) {
	if !validate.Required(authorID) {
		return nil, fmt.Errorf("%w: author id is required", ErrValidation)
	}

	posts, err := s.store.ListByAuthor(ctx, authorID)
	if err != nil {
		return nil, fmt.Errorf("list own posts: %w", err)
	}

	return posts, nil
}

func (s *Service) Stats(ctx context.Context) (pgrepo.PostCounts, error) {
	counts, err := s.store.Counts(ctx)
	if err != nil {
		return pgrepo.PostCounts{}, fmt.Errorf("load post stats: %w", err)
	}
	return counts, nil
}

func (s *Service) applyVerdict(post *model.Post, verdict modsvc.Verdict, action, operator string) {
	post.Status = verdict.Status
	post.ModerationScore = verdict.Score
	post.ModerationCategory = verdict.Category
	post.ModerationSource = verdict.Source
	post.RejectionReason = ""
	if verdict.Status == enums.ModerationStatusRejected {
		post.RejectionReason = verdict.Category
	}
	post.ModerationLogs = append(post.ModerationLogs, model.ModerationLogEntry{
		Action:    action,
		Timestamp: s.now().UTC(),
		Operator:  operator,
		Details:   strings.Join(verdict.Details, "; "),
	})
}

func (s *Service) scheduleRecheck(ctx context.Context, postID string) {
	if s.scheduler == nil {
		s.logger.Warn("no scheduler configured, flagged post will wait for an admin",
			zap.String("post_id", postID))
		return
	}

	task := redrepo.Task{
		ID:      uuid.NewString(),
		Kind:    redrepo.TaskKindModerationRecheck,
		Subject: postID,
	}
	if err := s.scheduler.Schedule(ctx, task, s.now().Add(s.cfg.RecheckDelay)); err != nil {
		s.logger.Error("schedule moderation recheck failed",
			zap.Error(err), zap.String("post_id", postID))
	}
}
