package model

import (
	"time"

	"github.com/smpg2030-sys/trailmindrise/internal/domain/enums"
)

// Post is the atomic unit of user-submitted content. Exactly one copy lives in
// either the pending or the published collection at any time.
type Post struct {
	ID                 string                 `json:"id"`
	AuthorID           string                 `json:"author_id"`
	Body               string                 `json:"body,omitempty"`
	ImageRef           string                 `json:"image_ref,omitempty"`
	VideoRef           string                 `json:"video_ref,omitempty"`
	Status             enums.ModerationStatus `json:"status"`
	ModerationScore    float64                `json:"moderation_score"`
	ModerationCategory string                 `json:"moderation_category"`
	ModerationSource   enums.ModerationSource `json:"moderation_source"`
	ModerationLogs     []ModerationLogEntry   `json:"moderation_logs"`
	RejectionReason    string                 `json:"rejection_reason,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
}

// ModerationLogEntry is one element of the append-only transition log.
type ModerationLogEntry struct {
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	Operator  string    `json:"operator"`
	Details   string    `json:"details,omitempty"`
}
