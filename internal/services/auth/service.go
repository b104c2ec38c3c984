package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/smpg2030-sys/trailmindrise/internal/domain/enums"
	"github.com/smpg2030-sys/trailmindrise/internal/domain/model"
	pgrepo "github.com/smpg2030-sys/trailmindrise/internal/repo/postgres"
)

var ErrUnknownUser = errors.New("unknown user")

type UserStore interface {
	GetByID(ctx context.Context, id string) (model.User, error)
}

// Service resolves the caller's identity. Token verification happens at the
// edge; this service turns the forwarded user id into an identity with the
// role read from the user record.
type Service struct {
	users  UserStore
	logger *zap.Logger
}

func NewService(users UserStore, logger *zap.Logger) (*Service, error) {
	if users == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{users: users, logger: logger}, nil
}

func (s *Service) Resolve(ctx context.Context, userID string) (Identity, error) {
	if userID == "" {
		return Identity{}, ErrUnknownUser
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrUserNotFound) {
			return Identity{}, ErrUnknownUser
		}
		return Identity{}, fmt.Errorf("resolve identity: %w", err)
	}

	role := user.Role
	if !role.Valid() {
		role = enums.RoleUser
	}

	return Identity{UserID: user.ID, Role: role}, nil
}
