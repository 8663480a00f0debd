package main

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

	"promohub/internal/ai"
	"promohub/internal/api"
	"promohub/internal/auth"
	"promohub/internal/config"
	"promohub/internal/logging"
	"promohub/internal/payment"
	"promohub/internal/redis"
	"promohub/internal/service"
	"promohub/internal/store"
	"promohub/internal/vote"
	"promohub/internal/ws"
)

const rosterInterval = 30 * time.Second

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			logger.Error("closing store", "error", err)
		}
	}()

	if cfg.AdminKey == "" {
		logger.Warn("ADMIN_KEY is not set, admin endpoints will deny every request")
	}

	hub := ws.NewHub(ws.NewPresence(), rosterInterval, logger)
	go hub.Run(ctx)

	var (
		guard vote.Guard = vote.NewStoreGuard(st.Votes())
		relay ws.Relay
	)
	if cfg.RedisURL != "" {
		rc, err := redis.NewClient(ctx, cfg.RedisURL, logger)
		if err != nil {
			return err
		}
		defer rc.Close()

		// events published before the subscription is confirmed would be lost
		sub, err := rc.Subscribe(ctx)
		if err != nil {
			return err
		}
		go sub.Forward(ctx, hub.Deliver)

		guard = redis.NewVoteGuard(rc)
		relay = rc
	}

	history := ws.NewHistory(st.DirectMessages())
	if err := history.Warm(ctx, st.PublicChat()); err != nil {
		logger.Warn("warming chat history", "error", err)
	}

	var (
		tokens   *auth.TokenService
		verifier ws.TokenVerifier
		issuer   service.TokenIssuer
	)
	if cfg.JWTSecret != "" {
		if tokens, err = auth.NewTokenService(cfg.JWTSecret); err != nil {
			return fmt.Errorf("configuring tokens: %w", err)
		}
		verifier, issuer = tokens, tokens
	}

	chat := ws.NewChat(hub, st, history, verifier, ws.Options{
		Durability:     cfg.ChatDurability,
		PersistTimeout: cfg.PersistTimeout,
		RateLimit:      cfg.WSRateLimit,
		RateBurst:      cfg.WSRateBurst,
	}, logger)
	broadcaster := ws.NewBroadcaster(hub, relay, logger)

	var payments payment.Provider
	if cfg.StripeSecretKey != "" {
		payments = payment.NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookSecret, logger)
	}
	var assistant ai.Assistant
	if cfg.OpenAIKey != "" {
		assistant = ai.NewOpenAI(cfg.OpenAIKey, cfg.OpenAIModel, cfg.AIMaxTokens, logger)
	}

	users := service.NewUserService(st, issuer, broadcaster, logger)
	router := api.NewRouter(api.Deps{
		Users:           users,
		Content:         service.NewContentService(st, users, guard, broadcaster, logger),
		Groups:          service.NewGroupService(st, users, guard, broadcaster, logger),
		Moderation:      service.NewModerationService(st, users, logger),
		Billing:         service.NewBillingService(payments, users, cfg.UpstreamTimeout, logger),
		Assistant:       assistant,
		UpstreamTimeout: cfg.UpstreamTimeout,
		Admin:           auth.NewAdminKey(cfg.AdminKey),
		Tokens:          tokens,
		Realtime:        http.HandlerFunc(chat.ServeWS),
		StaticDir:       cfg.StaticDir,
	}, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			"port", cfg.Port,
			"url", fmt.Sprintf("http://localhost:%s", cfg.Port),
			"mongo", cfg.MongoURI != "",
			"redis", cfg.RedisURL != "",
			"payments", payments != nil,
			"assistant", assistant != nil,
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		srv.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	if cfg.MongoURI != "" {
		m, err := store.NewMongo(ctx, cfg.MongoURI, cfg.MongoDB, logger)
		if err != nil {
			return nil, err
		}
		return m, nil
	}

	mem, err := store.NewMemory(cfg.SnapshotPath, logger)
	if err != nil {
		return nil, fmt.Errorf("opening memory store: %w", err)
	}
	mem.StartSnapshots(ctx, cfg.SnapshotInterval)
	logger.Info("[STORE] Using in-memory store", "snapshot", cfg.SnapshotPath)
	return mem, nil
}
