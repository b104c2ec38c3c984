package model

import (
	"time"

	"github.com/smpg2030-sys/trailmindrise/internal/domain/enums"
)

type User struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	DisplayName string     `json:"display_name"`
	AvatarRef   string     `json:"avatar_ref,omitempty"`
	Role        enums.Role `json:"role"`
	CreatedAt   time.Time  `json:"created_at"`
}

// AuthorSummary is the slice of a user profile that is stitched onto feed
// entries.
type AuthorSummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarRef   string `json:"avatar_ref,omitempty"`
}
