package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smpg2030-sys/trailmindrise/internal/domain/enums"
	"github.com/smpg2030-sys/trailmindrise/internal/domain/model"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	if r.pool == nil {
		return model.User{}, fmt.Errorf("postgres pool is nil")
	}
	if id == "" {
		return model.User{}, fmt.Errorf("invalid user id")
	}

	var (
		user model.User
		role string
	)
	err := r.pool.QueryRow(ctx, `
SELECT id, username, display_name, avatar_ref, role, created_at
FROM users
WHERE id = $1
`, id).Scan(&user.ID, &user.Username, &user.DisplayName, &user.AvatarRef, &role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("get user: %w", err)
	}

	user.Role = enums.Role(role)
	if !user.Role.Valid() {
		user.Role = enums.RoleUser
	}

	return user, nil
}

// Summaries resolves author summaries for a batch of user ids. Missing users
// are simply absent from the result map.
func (r *UserRepo) Summaries(ctx context.Context, ids []string) (map[string]model.AuthorSummary, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if len(ids) == 0 {
		return map[string]model.AuthorSummary{}, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, display_name, avatar_ref
FROM users
WHERE id = ANY($1)
`, ids)
	if err != nil {
		return nil, fmt.Errorf("list author summaries: %w", err)
	}
	defer rows.Close()

	summaries := make(map[string]model.AuthorSummary, len(ids))
	for rows.Next() {
		var s model.AuthorSummary
		if err := rows.Scan(&s.ID, &s.DisplayName, &s.AvatarRef); err != nil {
			return nil, fmt.Errorf("scan author summary: %w", err)
		}
		summaries[s.ID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate author summaries: %w", err)
	}

	return summaries, nil
}
