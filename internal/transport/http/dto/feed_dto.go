package dto

import "github.com/smpg2030-sys/trailmindrise/internal/domain/model"

type FeedAuthor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarRef   string `json:"avatar_ref,omitempty"`
}

type FeedItem struct {
	Post   PostResponse `json:"post"`
	Author FeedAuthor   `json:"author"`
}

type FeedResponse struct {
	Items []FeedItem `json:"items"`
}

func FeedToResponse(items []model.FeedItem) FeedResponse {
	out := make([]FeedItem, 0, len(items))
	for _, item := range items {
		out = append(out, FeedItem{
			Post: PostToResponse(item.Post),
			Author: FeedAuthor{
				ID:          item.Author.ID,
				DisplayName: item.Author.DisplayName,
				AvatarRef:   item.Author.AvatarRef,
			},
		})
	}
	return FeedResponse{Items: out}
}
