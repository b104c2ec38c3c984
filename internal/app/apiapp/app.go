package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/smpg2030-sys/trailmindrise/internal/config"
	"github.com/smpg2030-sys/trailmindrise/internal/infra/httpclient"
	s3infra "github.com/smpg2030-sys/trailmindrise/internal/infra/s3"
	"github.com/smpg2030-sys/trailmindrise/internal/jobs/cleanup"
	"github.com/smpg2030-sys/trailmindrise/internal/jobs/deferred"
	pgrepo "github.com/smpg2030-sys/trailmindrise/internal/repo/postgres"
	redrepo "github.com/smpg2030-sys/trailmindrise/internal/repo/redis"
	authsvc "github.com/smpg2030-sys/trailmindrise/internal/services/auth"
	feedsvc "github.com/smpg2030-sys/trailmindrise/internal/services/feed"
	mediasvc "github.com/smpg2030-sys/trailmindrise/internal/services/media"
	modsvc "github.com/smpg2030-sys/trailmindrise/internal/services/moderation"
	payoutssvc "github.com/smpg2030-sys/trailmindrise/internal/services/payouts"
	postssvc "github.com/smpg2030-sys/trailmindrise/internal/services/posts"
	ratesvc "github.com/smpg2030-sys/trailmindrise/internal/services/rate"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	s3         *minio.Client
	worker     *deferred.Worker
	cleanupJob *cleanup.Job
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	deferredRepo := redrepo.NewDeferredRepo(redisClient)
	postRepo := pgrepo.NewPostRepo(pool)
	userRepo := pgrepo.NewUserRepo(pool)
	roomRepo := pgrepo.NewRoomRepo(pool)

	var s3Client *minio.Client
	if c, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
	}); err != nil {
		log.Warn("s3 init failed, continuing in degraded mode", zap.Error(err))
	} else {
		s3Client = c
	}
	mediaStorage := mediasvc.NewS3Storage(s3Client, cfg.S3.Bucket)

	safetyClient := modsvc.NewSafetyClient(httpclient.New(cfg.Providers.MediaSafety.Timeout), modsvc.SafetyConfig{
		Endpoint:  cfg.Providers.MediaSafety.Endpoint,
		APIUser:   cfg.Providers.MediaSafety.APIUser,
		APISecret: cfg.Providers.MediaSafety.APISecret,
	})
	arbiterClient := modsvc.NewArbiterClient(httpclient.New(cfg.Providers.Arbiter.Timeout), modsvc.ArbiterConfig{
		Endpoint:    cfg.Providers.Arbiter.Endpoint,
		APIKey:      cfg.Providers.Arbiter.APIKey,
		Model:       cfg.Providers.Arbiter.Model,
		MaxAttempts: cfg.Providers.Arbiter.MaxAttempts,
		RetryDelay:  cfg.Providers.Arbiter.RetryDelay,
	}, log)

	moderationService := modsvc.NewService(safetyClient, arbiterClient, modsvc.Config{
		CoerceFlaggedToRejected: cfg.Moderation.CoerceFlaggedToRejected,
	}, log)
	if s3Client != nil {
		moderationService.AttachSigner(mediaStorage)
	}

	postService, err := postssvc.NewService(postRepo, moderationService, deferredRepo, postssvc.Config{
		RecheckDelay: cfg.Moderation.RecheckDelay,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("create post service: %w", err)
	}
	if s3Client != nil {
		postService.AttachAttachmentCleanup(mediaStorage)
	}
	postService.AttachSubmitLimiter(ratesvc.NewLimiter(
		redrepo.NewRateRepo(redisClient),
		cfg.Limits.PostsPerMinute,
		cfg.Limits.PostsPerHour,
	))

	feedService, err := feedsvc.NewService(postRepo, userRepo, log)
	if err != nil {
		return nil, fmt.Errorf("create feed service: %w", err)
	}
	feedService.AttachCache(redrepo.NewCacheRepo(redisClient))

	payoutService, err := payoutssvc.NewService(roomRepo, deferredRepo, payoutssvc.Config{
		Delay:             cfg.Payouts.Delay,
		CommissionPercent: cfg.Payouts.CommissionPercent,
		MinStay:           cfg.Payouts.MinStay(),
	}, log)
	if err != nil {
		return nil, fmt.Errorf("create payout service: %w", err)
	}

	authService, err := authsvc.NewService(userRepo, log)
	if err != nil {
		return nil, fmt.Errorf("create auth service: %w", err)
	}

	worker := deferred.NewWorker(deferredRepo, cfg.Jobs.PollInterval, log)
	worker.Register(redrepo.TaskKindModerationRecheck, postService.Reconcile)
	worker.Register(redrepo.TaskKindSessionPayout, payoutService.ProcessPayout)

	cleanupJob := cleanup.NewRejectedPurgeJob(postRepo, mediaStorage, cfg.Jobs.RejectedRetention, log)

	RegisterRoutes(r, Dependencies{
		AuthService:   authService,
		PostService:   postService,
		FeedService:   feedService,
		PayoutService: payoutService,
		DeferredRepo:  deferredRepo,
		Logger:        log,
		Config:        cfg,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		s3:         s3Client,
		worker:     worker,
		cleanupJob: cleanupJob,
		httpRouter: r,
	}, nil
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// RunWorker drains the deferred-task queue until ctx is cancelled.
func (a *App) RunWorker(ctx context.Context) error {
	if a.worker == nil {
		return nil
	}
	return a.worker.Run(ctx)
}

// RunCleanup periodically purges rejected posts past their retention window.
func (a *App) RunCleanup(ctx context.Context) error {
	if a.cleanupJob == nil {
		return nil
	}

	interval := a.cfg.Jobs.CleanupInterval
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	if err := a.cleanupJob.Run(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := a.cleanupJob.Run(ctx); err != nil {
				return err
			}
		}
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
