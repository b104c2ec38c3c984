package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/smpg2030-sys/trailmindrise/internal/config"
	redrepo "github.com/smpg2030-sys/trailmindrise/internal/repo/redis"
	authsvc "github.com/smpg2030-sys/trailmindrise/internal/services/auth"
	feedsvc "github.com/smpg2030-sys/trailmindrise/internal/services/feed"
	payoutssvc "github.com/smpg2030-sys/trailmindrise/internal/services/payouts"
	postssvc "github.com/smpg2030-sys/trailmindrise/internal/services/posts"
	"github.com/smpg2030-sys/trailmindrise/internal/transport/http/handlers"
)

type Dependencies struct {
	AuthService   *authsvc.Service
	PostService   *postssvc.Service
	FeedService   *feedsvc.Service
	PayoutService *payoutssvc.Service
	DeferredRepo  *redrepo.DeferredRepo
	Logger        *zap.Logger
	Config        config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	postsHandler := handlers.NewPostsHandler(deps.PostService)
	feedHandler := handlers.NewFeedHandler(deps.FeedService)
	sessionsHandler := handlers.NewSessionsHandler(deps.PayoutService)
	adminHandler := handlers.NewAdminHandler(deps.PostService)
	if deps.DeferredRepo != nil {
		adminHandler.AttachQueueInspector(deps.DeferredRepo)
	}

	identityMW := IdentityMiddleware(deps.AuthService, deps.Logger)

	r.Get("/healthz", healthHandler.Get)
	r.With(identityMW).Get("/feed", feedHandler.Handle)
	r.Route("/posts", func(r chi.Router) {
		r.Use(identityMW)
		r.Post("/", postsHandler.Create)
		r.Get("/my", postsHandler.ListMine)
		r.Get("/{postID}/status", postsHandler.Status)
		r.Delete("/{postID}", postsHandler.Delete)
	})
	r.Route("/admin", func(r chi.Router) {
		r.Use(identityMW)
		r.Post("/posts/{postID}/override", adminHandler.Override)
		r.Get("/stats", adminHandler.Stats)
	})
	r.With(identityMW).Post("/sessions/rooms/{roomID}/end", sessionsHandler.EndRoom)
}
