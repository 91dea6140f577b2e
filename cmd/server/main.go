package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/botforge/miniapp-system/internal/api"
	"github.com/botforge/miniapp-system/internal/api/handler"
	"github.com/botforge/miniapp-system/internal/core/service"
	"github.com/botforge/miniapp-system/internal/infrastructure/config"
	mongodb "github.com/botforge/miniapp-system/internal/infrastructure/db/mongo"
	redisdb "github.com/botforge/miniapp-system/internal/infrastructure/db/redis"
	"github.com/botforge/miniapp-system/internal/infrastructure/notify"
	"github.com/botforge/miniapp-system/internal/infrastructure/queue"
	"github.com/botforge/miniapp-system/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		panic(err)
	}

	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	// --- Storage collaborators ---
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connect failed")
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()

	rdb, err := redisdb.Connect(ctx, redisdb.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connect failed")
	}
	defer func() { _ = rdb.Close() }()

	principals := mongodb.NewPrincipalRepository(db)
	if err := principals.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("index bootstrap failed")
	}

	// --- Core services ---
	sessions := service.NewSessionManager(redisdb.NewSessionStore(rdb), service.SessionConfig{
		TTL:        cfg.Session.TTL,
		CookieName: cfg.Session.CookieName,
		Secure:     cfg.Session.Secure,
		SameSite:   parseSameSite(cfg.Session.SameSite),
	})
	resolver := service.NewIdentityResolver(principals)
	roles := service.NewRoleService(principals, cfg.Auth.OwnerKeys, log)
	attempts := redisdb.NewAttemptStore(rdb)
	notifier := notify.NewLogNotifier(log)
	auth := service.NewAuthService(resolver, sessions, attempts, principals, notifier, service.AuthConfig{
		CodeTTL: cfg.Auth.CodeTTL,
		LinkTTL: cfg.Auth.LinkTTL,
		LinkKey: []byte(cfg.Auth.LinkSecret),
		MinPass: cfg.Auth.MinPassword,
	})

	if err := roles.SyncOwnerRoles(ctx); err != nil {
		log.Fatal().Err(err).Msg("initial owner sync failed")
	}
	go roles.RunPeriodicSync(ctx, cfg.Auth.OwnerSyncTick)

	// --- Webhook processing ---
	dispatcher := queue.NewDispatcher(cfg.Bot.Workers, notify.NewLogUpdateHandler(log), log)
	dispatcher.Start(ctx)

	// --- HTTP surface ---
	e := api.NewRouter(api.Deps{
		Log:        log,
		DB:         db,
		RDB:        rdb,
		Sessions:   sessions,
		Repo:       principals,
		Roles:      roles,
		CookieName: cfg.Session.CookieName,
		Auth:       handler.NewAuthHandler(auth, sessions, cfg.Bot.Token, cfg.Bot.InitDataMaxAge),
		Webhook:    handler.NewWebhookHandler(cfg.Bot.WebhookSecret, cfg.Bot.WebhookSecretHeader, redisdb.NewUpdateDedup(rdb), dispatcher, log),
		Payment:    handler.NewPaymentHandler(cfg.Payment.Secret, cfg.Payment.SignatureHeader, notify.NewLogPaymentProcessor(log)),
		Admin:      handler.NewAdminHandler(roles),
	})

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()
	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("miniapp-system started")

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("miniapp-system stopped")
}

func parseSameSite(s string) http.SameSite {
	switch s {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
