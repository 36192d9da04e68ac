package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"natours/internal/auth"
	"natours/internal/config"
	"natours/internal/db"
	transport "natours/internal/http"
	"natours/internal/http/handlers"
	"natours/internal/http/middleware"
	"natours/internal/mail"
	"natours/internal/media"
	"natours/internal/models"
	"natours/internal/payments"
	"natours/internal/repo"
	"natours/internal/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.IsProduction())

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
	logger.Info("http server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	pool, err := db.Connect(ctx, cfg.DBURL, db.PoolOptions{})
	if err != nil {
		return err
	}
	defer pool.Close()

	gormDB, err := db.ConnectGorm(ctx, cfg.DBURL, db.PoolOptions{}, !cfg.IsProduction())
	if err != nil {
		return err
	}
	defer gormDB.Close()

	if err := db.Migrate(gormDB); err != nil {
		return err
	}

	userRepo := repo.NewUserRepo(pool.Pool, cfg.RequestTimeout)
	tourRepo := repo.NewTourRepo(pool.Pool, cfg.RequestTimeout)
	reviewRepo := repo.NewReviewRepo(pool.Pool, cfg.RequestTimeout)
	bookingRepo := repo.NewBookingRepo(gormDB.DB, cfg.RequestTimeout)

	hasher := auth.NewHasher(auth.DefaultCost)

	if cfg.SeedAdminEnabled {
		created, err := db.EnsureSeedUsers(ctx, userRepo, hasher, db.SeedUser{
			Name:     "Admin",
			Email:    cfg.SeedAdminEmail,
			Password: cfg.SeedAdminPass,
			Role:     models.RoleAdmin,
		})
		if err != nil {
			return err
		}
		if created > 0 {
			logger.Info("seeded admin account", "email", cfg.SeedAdminEmail)
		}
	}

	sender, err := newMailSender(cfg, logger)
	if err != nil {
		return err
	}
	mailer, err := mail.NewMailer(sender)
	if err != nil {
		return err
	}

	limiter, pingers, closeRedis, err := newLimiter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTExpiry)
	authService := services.NewAuthService(userRepo, hasher, tokens, mailer, logger)
	userService := services.NewUserService(userRepo)
	tourService := services.NewTourService(tourRepo, userRepo, reviewRepo)
	reviewService := services.NewReviewService(reviewRepo, tourRepo)
	bookingService := services.NewBookingService(bookingRepo, tourRepo, payments.NewStripeCheckout(cfg.StripeSecretKey, nil))

	router, err := transport.NewRouter(transport.Dependencies{
		Config:   cfg,
		Logger:   logger,
		Limiter:  limiter,
		Auth:     authService,
		Users:    userService,
		Tours:    tourService,
		Reviews:  reviewService,
		Bookings: bookingService,
		Media:    media.NewStore(cfg.PublicDir),
		Health:   append([]handlers.Pinger{pool}, pingers...),
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadTimeout:       cfg.RequestTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.RequestTimeout,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "addr", cfg.HTTPAddr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErrors:
		logger.Error("http server stopped unexpectedly", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newMailSender(cfg *config.Config, logger *slog.Logger) (mail.Sender, error) {
	if cfg.EmailHost == "" {
		logger.Warn("EMAIL_HOST not set, emails are logged instead of sent")
		return mail.NewLogSender(logger), nil
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		From:     cfg.EmailFrom,
		Host:     cfg.EmailHost,
		Port:     cfg.EmailPort,
		Username: cfg.EmailUsername,
		Password: cfg.EmailPassword,
		Timeout:  cfg.RequestTimeout,
	})
}

type redisPinger struct {
	rdb *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

// newLimiter shares rate limit windows through Redis when REDIS_URL is set.
func newLimiter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (middleware.Limiter, []handlers.Pinger, func(), error) {
	if cfg.RedisURL == "" {
		return middleware.NewMemoryLimiter(cfg.RateLimitMax, cfg.RateLimitWindow), nil, func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, nil, err
	}
	logger.Info("rate limiter backed by redis", "addr", opts.Addr)

	closeFn := func() { _ = rdb.Close() }
	return middleware.NewRedisLimiter(rdb, cfg.RateLimitMax, cfg.RateLimitWindow),
		[]handlers.Pinger{redisPinger{rdb: rdb}}, closeFn, nil
}

func newLogger(production bool) *slog.Logger {
	level := slog.LevelInfo
	if !production {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if production {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}
