package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smpg2030-sys/trailmindrise/internal/domain/enums"
	"github.com/smpg2030-sys/trailmindrise/internal/domain/model"
)

var ErrPostNotFound = errors.New("post not found")

const (
	tablePending   = "pending_posts"
	tablePublished = "published_posts"
)

// PostRepo owns both post collections. A post lives in exactly one of
// pending_posts or published_posts; moves between them run in a single
// transaction so the post never exists in both or in neither.
type PostRepo struct {
	pool *pgxpool.Pool
}

func NewPostRepo(pool *pgxpool.Pool) *PostRepo {
	return &PostRepo{pool: pool}
}

const postColumns = `id, author_id, body, image_ref, video_ref, status, moderation_score, moderation_category, moderation_source, moderation_logs, rejection_reason, created_at`

func (r *PostRepo) InsertPending(ctx context.Context, p model.Post) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if p.ID == "" || p.AuthorID == "" {
		return fmt.Errorf("invalid post payload")
	}

	logs, err := marshalLogs(p.ModerationLogs)
	if err != nil {
		return err
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO pending_posts (`+postColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`, p.ID, p.AuthorID, p.Body, p.ImageRef, p.VideoRef, string(p.Status),
		p.ModerationScore, p.ModerationCategory, string(p.ModerationSource),
		logs, p.RejectionReason, p.CreatedAt); err != nil {
		return fmt.Errorf("insert pending post: %w", err)
	}

	return nil
}

func (r *PostRepo) GetPending(ctx context.Context, id string) (model.Post, error) {
	return r.getFrom(ctx, tablePending, id)
}

func (r *PostRepo) GetPublished(ctx context.Context, id string) (model.Post, error) {
	return r.getFrom(ctx, tablePublished, id)
}

// GetFromAny looks the post up in the pending collection first, then the
// published one. The second return value reports whether the post was found
// in published_posts.
func (r *PostRepo) GetFromAny(ctx context.Context, id string) (model.Post, bool, error) {
	post, err := r.getFrom(ctx, tablePending, id)
	if err == nil {
		return post, false, nil
	}
	if !errors.Is(err, ErrPostNotFound) {
		return model.Post{}, false, err
	}

	post, err = r.getFrom(ctx, tablePublished, id)
	if err != nil {
		return model.Post{}, false, err
	}
	return post, true, nil
}

// UpdatePendingModeration rewrites the moderation outcome of a post that is
// still in the pending collection.
func (r *PostRepo) UpdatePendingModeration(ctx context.Context, p model.Post) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	logs, err := marshalLogs(p.ModerationLogs)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE pending_posts
SET status = $2,
	moderation_score = $3,
	moderation_category = $4,
	moderation_source = $5,
	moderation_logs = $6,
	rejection_reason = $7
WHERE id = $1
`, p.ID, string(p.Status), p.ModerationScore, p.ModerationCategory,
		string(p.ModerationSource), logs, p.RejectionReason)
	if err != nil {
		return fmt.Errorf("update pending post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPostNotFound
	}

	return nil
}

// UpdatePublishedModeration rewrites the moderation outcome of a post that
// already lives in the published collection.
func (r *PostRepo) UpdatePublishedModeration(ctx context.Context, p model.Post) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	logs, err := marshalLogs(p.ModerationLogs)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE published_posts
SET status = $2,
	moderation_score = $3,
	moderation_category = $4,
	moderation_source = $5,
	moderation_logs = $6,
	rejection_reason = $7
WHERE id = $1
`, p.ID, string(p.Status), p.ModerationScore, p.ModerationCategory,
		string(p.ModerationSource), logs, p.RejectionReason)
	if err != nil {
		return fmt.Errorf("update published post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPostNotFound
	}

	return nil
}

// PromoteToPublished moves the post into the published collection with the
// state carried in p. If the post already left pending_posts the move is a
// no-op so duplicate deferred tasks and admin actions stay safe to replay.
func (r *PostRepo) PromoteToPublished(ctx context.Context, p model.Post) error {
	return r.move(ctx, tablePending, tablePublished, p)
}

// DemoteToPending moves a published post back into pending_posts, which is
// where rejected posts live. Used by admin overrides that revoke a published
// post.
func (r *PostRepo) DemoteToPending(ctx context.Context, p model.Post) error {
	return r.move(ctx, tablePublished, tablePending, p)
}

func (r *PostRepo) move(ctx context.Context, from, to string, p model.Post) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if p.ID == "" {
		return fmt.Errorf("invalid post id")
	}

	logs, err := marshalLogs(p.ModerationLogs)
	if err != nil {
		return err
	}

	return WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM `+from+` WHERE id = $1`, p.ID)
		if err != nil {
			return fmt.Errorf("remove post from %s: %w", from, err)
		}
		if tag.RowsAffected() == 0 {
			// Already moved by a concurrent actor. Leave the winner's state alone.
			return nil
		}

		if _, err := tx.Exec(ctx, `
INSERT INTO `+to+` (`+postColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (id) DO UPDATE SET
	status = EXCLUDED.status,
	moderation_score = EXCLUDED.moderation_score,
	moderation_category = EXCLUDED.moderation_category,
	moderation_source = EXCLUDED.moderation_source,
	moderation_logs = EXCLUDED.moderation_logs,
	rejection_reason = EXCLUDED.rejection_reason
`, p.ID, p.AuthorID, p.Body, p.ImageRef, p.VideoRef, string(p.Status),
			p.ModerationScore, p.ModerationCategory, string(p.ModerationSource),
			logs, p.RejectionReason, p.CreatedAt); err != nil {
			return fmt.Errorf("insert post into %s: %w", to, err)
		}

		return nil
	})
}

// DeleteOwned removes the author's post from whichever collection holds it.
// Returns false when no row matched the id and author pair.
func (r *PostRepo) DeleteOwned(ctx context.Context, id, authorID string) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}
	if id == "" || authorID == "" {
		return false, fmt.Errorf("invalid delete request")
	}

	var deleted bool
	err := WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		for _, table := range []string{tablePending, tablePublished} {
			tag, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1 AND author_id = $2`, id, authorID)
			if err != nil {
				return fmt.Errorf("delete post from %s: %w", table, err)
			}
			if tag.RowsAffected() > 0 {
				deleted = true
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	return deleted, nil
}

// DeleteByID removes the post regardless of author. Moderator path.
func (r *PostRepo) DeleteByID(ctx context.Context, id string) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}
	if id == "" {
		return false, fmt.Errorf("invalid delete request")
	}

	var deleted bool
	err := WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		for _, table := range []string{tablePending, tablePublished} {
			tag, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
			if err != nil {
				return fmt.Errorf("delete post from %s: %w", table, err)
			}
			if tag.RowsAffected() > 0 {
				deleted = true
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	return deleted, nil
}

func (r *PostRepo) ListPublished(ctx context.Context, limit, offset int) ([]model.Post, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+postColumns+`
FROM published_posts
ORDER BY created_at DESC, id DESC
LIMIT $1 OFFSET $2
`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list published posts: %w", err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

// ListByAuthor returns the author's own posts across both collections.
// Rejected posts are excluded, matching what authors see in their feed of
// their own content.
func (r *PostRepo) ListByAuthor(ctx context.Context, authorID string) ([]model.Post, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if authorID == "" {
		return nil, fmt.Errorf("invalid author id")
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+postColumns+` FROM published_posts WHERE author_id = $1
UNION ALL
SELECT `+postColumns+` FROM pending_posts WHERE author_id = $1 AND status <> $2
ORDER BY created_at DESC
`, authorID, string(enums.ModerationStatusRejected))
	if err != nil {
		return nil, fmt.Errorf("list posts by author: %w", err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

// ListPendingByStatus feeds the deferred re-evaluation worker and the admin
// review surface.
func (r *PostRepo) ListPendingByStatus(ctx context.Context, status enums.ModerationStatus, limit int) ([]model.Post, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+postColumns+`
FROM pending_posts
WHERE status = $1
ORDER BY created_at ASC
LIMIT $2
`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list pending posts by status: %w", err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

// ListRejectedOlderThan returns terminal rejected posts whose record has
// outlived the retention window.
func (r *PostRepo) ListRejectedOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]model.Post, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+postColumns+`
FROM pending_posts
WHERE status = $1 AND created_at < $2
ORDER BY created_at ASC
LIMIT $3
`, string(enums.ModerationStatusRejected), cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list rejected posts older than cutoff: %w", err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

func (r *PostRepo) DeletePendingByID(ctx context.Context, id string) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if id == "" {
		return fmt.Errorf("invalid post id")
	}

	if _, err := r.pool.Exec(ctx, `DELETE FROM pending_posts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete pending post: %w", err)
	}

	return nil
}

type PostCounts struct {
	Pending   int
	Flagged   int
	Published int
}

func (r *PostRepo) Counts(ctx context.Context) (PostCounts, error) {
	if r.pool == nil {
		return PostCounts{}, fmt.Errorf("postgres pool is nil")
	}

	var counts PostCounts
	if err := r.pool.QueryRow(ctx, `
SELECT
	(SELECT COUNT(*) FROM pending_posts),
	(SELECT COUNT(*) FROM pending_posts WHERE status = $1),
	(SELECT COUNT(*) FROM published_posts)
`, string(enums.ModerationStatusFlagged)).Scan(&counts.Pending, &counts.Flagged, &counts.Published); err != nil {
		return PostCounts{}, fmt.Errorf("count posts: %w", err)
	}

	return counts, nil
}

func (r *PostRepo) getFrom(ctx context.Context, table, id string) (model.Post, error) {
	if r.pool == nil {
		return model.Post{}, fmt.Errorf("postgres pool is nil")
	}
	if id == "" {
		return model.Post{}, fmt.Errorf("invalid post id")
	}

	row := r.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM `+table+` WHERE id = $1`, id)
	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Post{}, ErrPostNotFound
		}
		return model.Post{}, fmt.Errorf("get post from %s: %w", table, err)
	}

	return post, nil
}

func scanPost(row pgx.Row) (model.Post, error) {
	var (
		p       model.Post
		status  string
		source  string
		rawLogs []byte
	)
	if err := row.Scan(&p.ID, &p.AuthorID, &p.Body, &p.ImageRef, &p.VideoRef,
		&status, &p.ModerationScore, &p.ModerationCategory, &source,
		&rawLogs, &p.RejectionReason, &p.CreatedAt); err != nil {
		return model.Post{}, err
	}

	p.Status = enums.ModerationStatus(status)
	p.ModerationSource = enums.ModerationSource(source)
	if len(rawLogs) > 0 {
		if err := json.Unmarshal(rawLogs, &p.ModerationLogs); err != nil {
			return model.Post{}, fmt.Errorf("decode moderation logs: %w", err)
		}
	}

	return p, nil
}

func scanPosts(rows pgx.Rows) ([]model.Post, error) {
	posts := make([]model.Post, 0)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}

	return posts, nil
}

func marshalLogs(logs []model.ModerationLogEntry) ([]byte, error) {
	if logs == nil {
		logs = []model.ModerationLogEntry{}
	}
	raw, err := json.Marshal(logs)
	if err != nil {
		return nil, fmt.Errorf("encode moderation logs: %w", err)
	}
	return raw, nil
}
