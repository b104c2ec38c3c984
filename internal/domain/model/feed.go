package model

// FeedItem is a published post joined with its author summary.
type FeedItem struct {
	Post   Post          `json:"post"`
	Author AuthorSummary `json:"author"`
}
