package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smpg2030-sys/trailmindrise/internal/domain/model"
)

var ErrRoomNotFound = errors.New("room not found")

type RoomRepo struct {
	pool *pgxpool.Pool
}

func NewRoomRepo(pool *pgxpool.Pool) *RoomRepo {
	return &RoomRepo{pool: pool}
}

func (r *RoomRepo) Get(ctx context.Context, id string) (model.Room, error) {
	if r.pool == nil {
		return model.Room{}, fmt.Errorf("postgres pool is nil")
	}
	if id == "" {
		return model.Room{}, fmt.Errorf("invalid room id")
	}

	var room model.Room
	err := r.pool.QueryRow(ctx, `
SELECT id, host_id, access, price, status, ended_at, created_at
FROM rooms
WHERE id = $1
`, id).Scan(&room.ID, &room.HostID, &room.Access, &room.Price, &room.Status, &room.EndedAt, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Room{}, ErrRoomNotFound
		}
		return model.Room{}, fmt.Errorf("get room: %w", err)
	}

	return room, nil
}

// MarkEnded transitions the room to ended and stamps ended_at. Calling it on
// an already ended room keeps the original timestamp.
func (r *RoomRepo) MarkEnded(ctx context.Context, id string, endedAt time.Time) (model.Room, error) {
	if r.pool == nil {
		return model.Room{}, fmt.Errorf("postgres pool is nil")
	}
	if id == "" {
		return model.Room{}, fmt.Errorf("invalid room id")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE rooms
SET status = 'ended', ended_at = $2
WHERE id = $1 AND ended_at IS NULL
`, id, endedAt)
	if err != nil {
		return model.Room{}, fmt.Errorf("mark room ended: %w", err)
	}
	_ = tag

	return r.Get(ctx, id)
}

// QualifiedAttendees returns the unique attendees whose total stay in the
// room reached minStay. For paid rooms requirePayment restricts the set to
// attendees with a recorded payment.
func (r *RoomRepo) QualifiedAttendees(ctx context.Context, roomID string, minStay time.Duration, requirePayment bool) ([]string, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if roomID == "" {
		return nil, fmt.Errorf("invalid room id")
	}

	query := `
SELECT a.user_id
FROM room_attendance a
WHERE a.room_id = $1
GROUP BY a.user_id
HAVING SUM(EXTRACT(EPOCH FROM (COALESCE(a.left_at, NOW()) - a.joined_at))) >= $2
`
	if requirePayment {
		query = `
SELECT a.user_id
FROM room_attendance a
JOIN room_payments p ON p.room_id = a.room_id AND p.user_id = a.user_id
WHERE a.room_id = $1
GROUP BY a.user_id
HAVING SUM(EXTRACT(EPOCH FROM (COALESCE(a.left_at, NOW()) - a.joined_at))) >= $2
`
	}

	rows, err := r.pool.Query(ctx, query, roomID, minStay.Seconds())
	if err != nil {
		return nil, fmt.Errorf("list qualified attendees: %w", err)
	}
	defer rows.Close()

	attendees := make([]string, 0)
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan attendee: %w", err)
		}
		attendees = append(attendees, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendees: %w", err)
	}

	return attendees, nil
}

// RecordEarnings writes the payout record for a room. At most one record per
// room exists; a duplicate payout attempt reports false and changes nothing.
func (r *RoomRepo) RecordEarnings(ctx context.Context, e model.HostEarnings) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}
	if e.RoomID == "" || e.HostID == "" {
		return false, fmt.Errorf("invalid earnings payload")
	}

	tag, err := r.pool.Exec(ctx, `
INSERT INTO host_earnings (room_id, host_id, gross_amount, commission_amount, net_amount, payout_status, processed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (room_id) DO NOTHING
`, e.RoomID, e.HostID, e.GrossAmount, e.CommissionAmount, e.NetAmount, e.PayoutStatus, e.ProcessedAt)
	if err != nil {
		return false, fmt.Errorf("record host earnings: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}
