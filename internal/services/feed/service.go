package feed

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/smpg2030-sys/trailmindrise/internal/domain/model"
)

const pageCacheTTL = 30 * time.Second

type PublishedStore interface {
	ListPublished(ctx context.Context, limit, offset int) ([]model.Post, error)
}

type AuthorStore interface {
	Summaries(ctx context.Context, ids []string) (map[string]model.AuthorSummary, error)
}

type PageCache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Service serves the public feed. Only posts in the published collection ever
// appear here; the pending collection is invisible to readers by
// construction.
type Service struct {
	posts   PublishedStore
	authors AuthorStore
	cache   PageCache
	logger  *zap.Logger
}

func NewService(posts PublishedStore, authors AuthorStore, logger *zap.Logger) (*Service, error) {
	if posts == nil {
		return nil, fmt.Errorf("published store is required")
	}
	if authors == nil {
		return nil, fmt.Errorf("author store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{posts: posts, authors: authors, logger: logger}, nil
}

// AttachCache enables short-lived page caching for feed reads.
func (s *Service) AttachCache(cache PageCache) {
	s.cache = cache
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]model.FeedItem, error) {
	cacheKey := fmt.Sprintf("cache:feed:%d:%d", limit, offset)
	if s.cache != nil {
		var cached []model.FeedItem
		hit, err := s.cache.GetJSON(ctx, cacheKey, &cached)
		if err != nil {
			s.logger.Warn("feed cache read failed", zap.Error(err))
		} else if hit {
			return cached, nil
		}
	}

	posts, err := s.posts.ListPublished(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list feed posts: %w", err)
	}

	ids := make([]string, 0, len(posts))
	seen := make(map[string]struct{}, len(posts))
	for _, p := range posts {
		if _, ok := seen[p.AuthorID]; ok {
			continue
		}
		seen[p.AuthorID] = struct{}{}
		ids = append(ids, p.AuthorID)
	}

	summaries, err := s.authors.Summaries(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve feed authors: %w", err)
	}

	items := make([]model.FeedItem, 0, len(posts))
	for _, p := range posts {
		author, ok := summaries[p.AuthorID]
		if !ok {
			// Author record missing, keep the post with a bare summary.
			author = model.AuthorSummary{ID: p.AuthorID}
		}
		items = append(items, model.FeedItem{Post: p, Author: author})
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, cacheKey, items, pageCacheTTL); err != nil {
			s.logger.Warn("feed cache write failed", zap.Error(err))
		}
	}

	return items, nil
}
