package model

import "time"

// Room is a live session room. Payouts are computed after the room has ended,
// once the deferred payout task fires.
type Room struct {
	ID        string     `json:"id"`
	HostID    string     `json:"host_id"`
	Access    string     `json:"access"` // "free" or "paid"
	Price     float64    `json:"price"`
	Status    string     `json:"status"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type HostEarnings struct {
	HostID           string    `json:"host_id"`
	RoomID           string    `json:"room_id"`
	GrossAmount      float64   `json:"gross_amount"`
	CommissionAmount float64   `json:"commission_amount"`
	NetAmount        float64   `json:"net_amount"`
	PayoutStatus     string    `json:"payout_status"`
	ProcessedAt      time.Time `json:"processed_at"`
}
