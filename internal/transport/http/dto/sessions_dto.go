package dto

import (
	"time"

	"github.com/smpg2030-sys/trailmindrise/internal/domain/model"
)

type RoomResponse struct {
	ID      string     `json:"id"`
	HostID  string     `json:"host_id"`
	Access  string     `json:"access"`
	Price   float64    `json:"price"`
	Status  string     `json:"status"`
	EndedAt *time.Time `json:"ended_at,omitempty"`
}

func RoomToResponse(room model.Room) RoomResponse {
	return RoomResponse{
		ID:      room.ID,
		HostID:  room.HostID,
		Access:  room.Access,
		Price:   room.Price,
		Status:  room.Status,
		EndedAt: room.EndedAt,
	}
}
