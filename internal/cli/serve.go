package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/iliyamo/video-access/internal/config"
	"github.com/iliyamo/video-access/internal/database"
	"github.com/iliyamo/video-access/internal/handler"
	"github.com/iliyamo/video-access/internal/logger"
	"github.com/iliyamo/video-access/internal/middleware"
	"github.com/iliyamo/video-access/internal/notification"
	"github.com/iliyamo/video-access/internal/queue"
	"github.com/iliyamo/video-access/internal/repository"
	"github.com/iliyamo/video-access/internal/router"
	"github.com/iliyamo/video-access/internal/scheduler"
	"github.com/iliyamo/video-access/internal/service"
	"github.com/iliyamo/video-access/internal/storage"
	"github.com/iliyamo/video-access/internal/utils"
)

const shutdownTimeout = 15 * time.Second

// publisher is what serve needs from the event sink it picks.
type publisher interface {
	service.EventPublisher
	Close() error
}

func newServeCommand() *cobra.Command {
	var autoMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), autoMigrate)
		},
	}
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "apply pending migrations before serving")
	return cmd
}

func serve(parent context.Context, autoMigrate bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer db.Close()

	if autoMigrate {
		if err := database.MigrateUp(db, log); err != nil {
			return err
		}
	}

	rdb, err := config.NewRedisClient(config.LoadRedisConfig())
	if err != nil {
		log.Warn("redis unavailable, rate limiting and caching disabled", "error", err)
	} else {
		defer rdb.Close()
	}

	var events publisher = queue.NoopPublisher{}
	if cfg.AMQP.Enabled {
		events = queue.NewPublisher(cfg.AMQP.URL, logger.WithComponent("queue.publisher"))
	}
	defer events.Close()

	mailer := notification.NewSender(cfg.Mail, logger.WithComponent("mail"))
	if !mailer.Configured() {
		log.Warn("mail host not set, login codes are only logged outside production")
	}

	objects, err := storage.NewSigner(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("init storage signer: %w", err)
	}
	var signer service.URLSigner
	if objects != nil {
		signer = objects
	}

	sessions := utils.NewSessionIssuer(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience, cfg.JWT.TTL)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	videos := repository.NewVideoRepo(db)
	entitlements := repository.NewEntitlementRepo(db)

	auth := service.NewAuthService(users, tokens, mailer, sessions, events,
		service.DefaultAuthConfig(cfg.Env, cfg.Location()), log)
	defer auth.Wait()
	catalog := service.NewCatalogService(videos, entitlements, users, events, signer, log)
	directory := service.NewUserService(users, log)

	sched, err := scheduler.New(cfg.Location(), logger.WithComponent("scheduler"))
	if err != nil {
		return err
	}
	if err := sched.RegisterTokenCleanup(auth); err != nil {
		return err
	}
	sched.Start()
	defer func() {
		if err := sched.Shutdown(); err != nil {
			log.Warn("scheduler shutdown", "error", err)
		}
	}()

	if cfg.AMQP.Enabled {
		consumer := queue.NewConsumer(cfg.AMQP.URL, mailer, logger.WithComponent("queue.consumer"))
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("event consumer stopped", "error", err)
			}
		}()
	}

	e := router.NewServer(router.ServerOptions{Origins: origins(cfg), Log: log})
	router.Register(e, router.Handlers{
		Auth:   handler.NewAuthHandler(auth, log),
		Videos: handler.NewVideoHandler(catalog, log),
		Admin:  handler.NewAdminHandler(catalog, log),
		Users:  handler.NewUserHandler(directory, log),
		Health: handler.NewHealthHandler(db, cfg.Env, Version, mailer.Configured()),
	}, guards(cfg, rdb, sessions, auth, log))

	return run(ctx, e, ":"+cfg.Port, log)
}

func guards(cfg config.Config, rdb *redis.Client, sessions *utils.SessionIssuer, auth *service.AuthService, log *slog.Logger) router.Guards {
	tiers := config.LoadRateLimitTiers()
	limitLog := logger.WithComponent("ratelimit")
	return router.Guards{
		JWT:   middleware.JWTAuth(sessions, auth, logger.WithComponent("auth.middleware")),
		Admin: middleware.RequireAdmin(cfg.AdminEmails),
		Limits: map[router.Tier]echo.MiddlewareFunc{
			router.TierDefault:       middleware.NewTokenBucket(tiers.Default, rdb, limitLog),
			router.TierRequestToken:  middleware.NewTokenBucket(tiers.RequestToken, rdb, limitLog),
			router.TierValidateToken: middleware.NewTokenBucket(tiers.ValidateToken, rdb, limitLog),
		},
		Cache: middleware.NewRedisCache(config.LoadCacheConfig(), rdb, log),
	}
}

func origins(cfg config.Config) []string {
	out := []string{"http://localhost:3000", "http://localhost:3001"}
	if cfg.FrontendURL != "" && cfg.FrontendURL != out[0] && cfg.FrontendURL != out[1] {
		out = append(out, cfg.FrontendURL)
	}
	return out
}

// run serves until ctx is cancelled, then drains in-flight requests.
func run(ctx context.Context, e *echo.Echo, addr string, log *slog.Logger) error {
	errc := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(sctx)
}
