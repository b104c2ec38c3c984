package payouts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smpg2030-sys/trailmindrise/internal/domain/model"
	pgrepo "github.com/smpg2030-sys/trailmindrise/internal/repo/postgres"
	redrepo "github.com/smpg2030-sys/trailmindrise/internal/repo/redis"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrNotHost      = errors.New("only the host can end the room")
)

const accessPaid = "paid"

type RoomStore interface {
	Get(ctx context.Context, id string) (model.Room, error)
	MarkEnded(ctx context.Context, id string, endedAt time.Time) (model.Room, error)
	QualifiedAttendees(ctx context.Context, roomID string, minStay time.Duration, requirePayment bool) ([]string, error)
	RecordEarnings(ctx context.Context, e model.HostEarnings) (bool, error)
}

type TaskScheduler interface {
	Schedule(ctx context.Context, task redrepo.Task, due time.Time) error
}

type Config struct {
	Delay             time.Duration
	CommissionPercent float64
	MinStay           time.Duration
}

// Service ends session rooms and settles host earnings. The settlement runs
// as a deferred task so late attendance writes have landed by the time the
// payout is computed.
type Service struct {
	rooms     RoomStore
	scheduler TaskScheduler
	cfg       Config
	now       func() time.Time
	logger    *zap.Logger
}

func NewService(rooms RoomStore, scheduler TaskScheduler, cfg Config, logger *zap.Logger) (*Service, error) {
	if rooms == nil {
		return nil, fmt.Errorf("room store is required")
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 5 * time.Minute
	}
	if cfg.CommissionPercent < 0 || cfg.CommissionPercent > 100 {
		cfg.CommissionPercent = 10
	}
	if cfg.MinStay <= 0 {
		cfg.MinStay = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		rooms:     rooms,
		scheduler: scheduler,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger,
	}, nil
}

// EndRoom closes the room and queues its payout settlement.
func (s *Service) EndRoom(ctx context.Context, roomID, hostID string) (model.Room, error) {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrRoomNotFound) {
			return model.Room{}, ErrRoomNotFound
		}
		return model.Room{}, fmt.Errorf("load room: %w", err)
	}
	if room.HostID != hostID {
		return model.Room{}, ErrNotHost
	}

	alreadyEnded := room.EndedAt != nil

	room, err = s.rooms.MarkEnded(ctx, roomID, s.now().UTC())
	if err != nil {
		return model.Room{}, fmt.Errorf("end room: %w", err)
	}

	if !alreadyEnded && s.scheduler != nil {
		task := redrepo.Task{
			ID:      uuid.NewString(),
			Kind:    redrepo.TaskKindSessionPayout,
			Subject: roomID,
		}
		if err := s.scheduler.Schedule(ctx, task, s.now().Add(s.cfg.Delay)); err != nil {
			s.logger.Error("schedule session payout failed",
				zap.Error(err), zap.String("room_id", roomID))
		}
	}

	return room, nil
}

// ProcessPayout is the deferred settlement handler. Free rooms and rooms with
// no qualified paying attendees settle to nothing; a room is settled at most
// once no matter how many times the task fires.
func (s *Service) ProcessPayout(ctx context.Context, roomID string) error {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrRoomNotFound) {
			return nil
		}
		return fmt.Errorf("load room for payout: %w", err)
	}
	if room.EndedAt == nil {
		return fmt.Errorf("room %s has not ended yet", roomID)
	}
	if room.Access != accessPaid || room.Price <= 0 {
		return nil
	}

	attendees, err := s.rooms.QualifiedAttendees(ctx, roomID, s.cfg.MinStay, true)
	if err != nil {
		return fmt.Errorf("list qualified attendees: %w", err)
	}
	if len(attendees) == 0 {
		s.logger.Info("no qualified attendees, skipping payout", zap.String("room_id", roomID))
		return nil
	}

	gross := room.Price * float64(len(attendees))
	commission := gross * s.cfg.CommissionPercent / 100
	recorded, err := s.rooms.RecordEarnings(ctx, model.HostEarnings{
		HostID:           room.HostID,
		RoomID:           room.ID,
		GrossAmount:      gross,
		CommissionAmount: commission,
		NetAmount:        gross - commission,
		PayoutStatus:     "settled",
		ProcessedAt:      s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("record host earnings: %w", err)
	}
	if !recorded {
		s.logger.Info("payout already settled", zap.String("room_id", roomID))
		return nil
	}

	s.logger.Info("session payout settled",
		zap.String("room_id", roomID),
		zap.String("host_id", room.HostID),
		zap.Int("attendees", len(attendees)),
		zap.Float64("net_amount", gross-commission))

	return nil
}
