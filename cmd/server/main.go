package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"recipe-server/internal/auth"
	"recipe-server/internal/config"
	"recipe-server/internal/hub"
	"recipe-server/internal/logging"
	"recipe-server/internal/push"
	"recipe-server/internal/revocation"
	"recipe-server/internal/server"
	"recipe-server/internal/store"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	revocations, err := openRevocationStore(ctx, cfg)
	if err != nil {
		l := logging.Logger()
		l.Fatal().Err(err).Str("backend", cfg.RevocationBackend).Msg("open revocation store")
	}
	defer func() {
		if err := revocations.Close(); err != nil {
			logging.Error().Err(err).Msg("close revocation store")
		}
	}()

	accessCfg := auth.TokenConfig{Secret: cfg.AccessTokenSecret, Expiry: cfg.AccessTokenExpiry, Issuer: "recipe-server"}
	refreshCfg := auth.TokenConfig{Secret: cfg.RefreshTokenSecret, Expiry: cfg.RefreshTokenExpiry, Issuer: "recipe-server"}

	st := store.New()
	sockets := hub.NewRouter(hub.New(), hub.NewTopics())

	hydration := push.NewHydrationScheduler(st, openPushSender(ctx, cfg), cfg.HydrationInterval)
	go hydration.Run(ctx)

	router := server.NewRouter(server.Deps{
		Store:         st,
		AccessConfig:  accessCfg,
		RefreshConfig: refreshCfg,
		Validator:     auth.NewValidator(accessCfg, revocations),
		Router:        sockets,
		CloseGrace:    cfg.WSCloseGrace,
		AuthTimeout:   cfg.WSAuthTimeout,
	})

	if err := server.Run(ctx, cfg, router); err != nil {
		logging.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
	logging.Info().Msg("server stopped")
}

func openRevocationStore(ctx context.Context, cfg config.Config) (revocation.Store, error) {
	switch cfg.RevocationBackend {
	case config.RevocationRedis:
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return revocation.DialRedis(dialCtx, cfg.RedisURL)
	case config.RevocationBadger:
		return revocation.OpenBadger(cfg.BadgerDir)
	default:
		logging.Warn().Msg("using in-memory revocation store; revocations are lost on restart")
		return revocation.NewMemoryStore(), nil
	}
}

func openPushSender(ctx context.Context, cfg config.Config) push.Sender {
	if cfg.FirebaseCredentialsFile == "" {
		logging.Warn().Msg("FIREBASE_CREDENTIALS_FILE not set; push notifications are only logged")
		return push.NewLogSender()
	}
	sender, err := push.DialFCM(ctx, cfg.FirebaseCredentialsFile)
	if err != nil {
		l := logging.Logger()
		l.Fatal().Err(err).Msg("open fcm sender")
	}
	return sender
}
