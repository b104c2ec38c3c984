package feed

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/smpg2030-sys/trailmindrise/internal/domain/enums"
	"github.com/smpg2030-sys/trailmindrise/internal/domain/model"
	redrepo "github.com/smpg2030-sys/trailmindrise/internal/repo/redis"
)

type stubPublished struct {
	posts []model.Post
	calls int
}

func (s *stubPublished) ListPublished(_ context.Context, _, _ int) ([]model.Post, error) {
	s.calls++
	return s.posts, nil
}

type stubAuthors struct {
	summaries map[string]model.AuthorSummary
	requested []string
}

func (s *stubAuthors) Summaries(_ context.Context, ids []string) (map[string]model.AuthorSummary, error) {
	s.requested = ids
	return s.summaries, nil
}

func TestListStitchesAuthors(t *testing.T) {
	posts := &stubPublished{posts: []model.Post{
		{ID: "p1", AuthorID: "u1", Status: enums.ModerationStatusApproved},
		{ID: "p2", AuthorID: "u2", Status: enums.ModerationStatusApproved},
		{ID: "p3", AuthorID: "u1", Status: enums.ModerationStatusApproved},
	}}
	authors := &stubAuthors{summaries: map[string]model.AuthorSummary{
		"u1": {ID: "u1", DisplayName: "Maya"},
		"u2": {ID: "u2", DisplayName: "Jo"},
	}}

	svc, err := NewService(posts, authors, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	items, err := svc.List(context.Background(), 20, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if len(items) != 3 {
		t.Fatalf("expected 3 feed items, got %d", len(items))
	}
	if items[0].Author.DisplayName != "Maya" || items[1].Author.DisplayName != "Jo" {
		t.Fatalf("unexpected authors: %+v", items)
	}
	if len(authors.requested) != 2 {
		t.Fatalf("author lookup must be deduplicated, got %v", authors.requested)
	}
}

func TestListKeepsPostWhenAuthorMissing(t *testing.T) {
	posts := &stubPublished{posts: []model.Post{
		{ID: "p1", AuthorID: "ghost", Status: enums.ModerationStatusApproved},
	}}
	authors := &stubAuthors{summaries: map[string]model.AuthorSummary{}}

	svc, err := NewService(posts, authors, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	items, err := svc.List(context.Background(), 20, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].Author.ID != "ghost" {
		t.Fatalf("post without author record must survive with a bare summary: %+v", items)
	}
}

func TestListServesCachedPage(t *testing.T) {
	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	posts := &stubPublished{posts: []model.Post{
		{ID: "p1", AuthorID: "u1", Status: enums.ModerationStatusApproved},
	}}
	authors := &stubAuthors{summaries: map[string]model.AuthorSummary{
		"u1": {ID: "u1", DisplayName: "Maya"},
	}}

	svc, err := NewService(posts, authors, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	svc.AttachCache(redrepo.NewCacheRepo(client))

	for i := 0; i < 3; i++ {
		items, err := svc.List(context.Background(), 20, 0)
		if err != nil {
			t.Fatalf("list %d: %v", i, err)
		}
		if len(items) != 1 || items[0].Author.DisplayName != "Maya" {
			t.Fatalf("unexpected items on pass %d: %+v", i, items)
		}
	}

	if posts.calls != 1 {
		t.Fatalf("expected a single store read, got %d", posts.calls)
	}
}
