package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/SoCloseSociety/WhatsappSender/internal/config"
	"github.com/SoCloseSociety/WhatsappSender/internal/httpserver"
	"github.com/SoCloseSociety/WhatsappSender/internal/inbound"
	"github.com/SoCloseSociety/WhatsappSender/internal/logging"
	"github.com/SoCloseSociety/WhatsappSender/internal/observability"
	"github.com/SoCloseSociety/WhatsappSender/internal/provider/registry"
	"github.com/SoCloseSociety/WhatsappSender/internal/ratelimit"
	"github.com/SoCloseSociety/WhatsappSender/internal/reconcile"
	"github.com/SoCloseSociety/WhatsappSender/internal/store/pg"
)

func main() {
	_ = godotenv.Load()
	cfg := config.LoadWebhook()
	logging.Init("webhook", cfg.LogFormat)

	for _, warning := range cfg.ProviderSettings.Validate() {
		slog.Warn("config warning", "warning", warning)
	}
	if cfg.VerifyToken == "" {
		slog.Warn("config warning", "warning", "WA_VERIFY_TOKEN not set, webhook verification disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.NewPool(ctx, cfg.DBDSN, pg.PoolOptions{})
	if err != nil {
		slog.Error("webhook db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	store := pg.New(db)
	startupCtx, startupCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := store.EnsureSchema(startupCtx); err != nil {
		startupCancel()
		slog.Error("webhook schema init failed", "err", err)
		os.Exit(1)
	}
	startupCancel()

	observability.Register(prometheus.DefaultRegisterer)

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	} else {
		slog.Warn("REDIS_ADDR not set, inbound rate limiting disabled")
	}

	sender := registry.New(cfg.ProviderSettings)
	limiter := ratelimit.New(cfg.MessagesPerSecond)

	wh := &httpserver.Webhook{
		Reconciler: &reconcile.Reconciler{Store: store},
		Inbound: &inbound.Router{
			Store:     store,
			Sender:    sender,
			Limiter:   limiter,
			Redis:     rdb,
			PerMinute: cfg.InboundPerMinute,
		},
		VerifyToken: cfg.VerifyToken,
	}

	s := httpserver.New()
	wh.Register(s.Mux)

	s.Mux.HandleFunc("/health", httpserver.Identity(config.BotName, config.BotVersion, cfg.Provider))
	s.Mux.HandleFunc("/", httpserver.Index(config.BotName, config.BotVersion)).Methods(http.MethodGet)
	s.Mux.HandleFunc("/healthz", httpserver.Healthz())
	s.Mux.HandleFunc("/readyz", httpserver.Readyz(2*time.Second, func(ctx context.Context) error {
		return db.Ping(ctx)
	}))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httpserver.Logging(httpserver.Metrics(s.Mux)),
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("webhook shutdown", "signal", sig.String())
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("webhook listening", "port", cfg.Port, "provider", cfg.Provider)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("webhook server failed", "err", err)
		os.Exit(1)
	}
}
