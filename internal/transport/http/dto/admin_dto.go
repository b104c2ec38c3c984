package dto

type AdminOverrideRequest struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
}

type AdminStatsResponse struct {
	PendingPosts   int   `json:"pending_posts"`
	FlaggedPosts   int   `json:"flagged_posts"`
	PublishedPosts int   `json:"published_posts"`
	QueuedTasks    int64 `json:"queued_tasks"`
}
