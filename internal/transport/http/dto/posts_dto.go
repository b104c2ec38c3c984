package dto

import (
	"time"

	"github.com/smpg2030-sys/trailmindrise/internal/domain/model"
)

type CreatePostRequest struct {
	Body     string `json:"body"`
	ImageRef string `json:"image_ref"`
	VideoRef string `json:"video_ref"`
}

type ModerationLogEntry struct {
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	Operator  string    `json:"operator"`
	Details   string    `json:"details,omitempty"`
}

type PostResponse struct {
	ID              string    `json:"id"`
	AuthorID        string    `json:"author_id"`
	Body            string    `json:"body,omitempty"`
	ImageRef        string    `json:"image_ref,omitempty"`
	VideoRef        string    `json:"video_ref,omitempty"`
	Status          string    `json:"status"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type PostStatusResponse struct {
	ID              string               `json:"id"`
	Status          string               `json:"status"`
	Category        string               `json:"category,omitempty"`
	Source          string               `json:"source,omitempty"`
	RejectionReason string               `json:"rejection_reason,omitempty"`
	ModerationLogs  []ModerationLogEntry `json:"moderation_logs"`
}

type PostListResponse struct {
	Posts []PostResponse `json:"posts"`
}

func PostToResponse(p model.Post) PostResponse {
	return PostResponse{
		ID:              p.ID,
		AuthorID:        p.AuthorID,
		Body:            p.Body,
		ImageRef:        p.ImageRef,
		VideoRef:        p.VideoRef,
		Status:          string(p.Status),
		RejectionReason: p.RejectionReason,
		CreatedAt:       p.CreatedAt,
	}
}

func PostToStatusResponse(p model.Post) PostStatusResponse {
	logs := make([]ModerationLogEntry, 0, len(p.ModerationLogs))
	for _, entry := range p.ModerationLogs {
		logs = append(logs, ModerationLogEntry{
			Action:    entry.Action,
			Timestamp: entry.Timestamp,
			Operator:  entry.Operator,
			Details:   entry.Details,
		})
	}

	return PostStatusResponse{
		ID:              p.ID,
		Status:          string(p.Status),
		Category:        p.ModerationCategory,
		Source:          string(p.ModerationSource),
		RejectionReason: p.RejectionReason,
		ModerationLogs:  logs,
	}
}
