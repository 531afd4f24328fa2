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
	"github.com/sony/gobreaker"

	"github.com/SoCloseSociety/WhatsappSender/internal/config"
	"github.com/SoCloseSociety/WhatsappSender/internal/dispatch"
	"github.com/SoCloseSociety/WhatsappSender/internal/httpserver"
	"github.com/SoCloseSociety/WhatsappSender/internal/logging"
	"github.com/SoCloseSociety/WhatsappSender/internal/observability"
	"github.com/SoCloseSociety/WhatsappSender/internal/provider/registry"
	"github.com/SoCloseSociety/WhatsappSender/internal/ratelimit"
	"github.com/SoCloseSociety/WhatsappSender/internal/service"
	"github.com/SoCloseSociety/WhatsappSender/internal/store/pg"
	"github.com/SoCloseSociety/WhatsappSender/internal/util"
)

func main() {
	_ = godotenv.Load()
	cfg := config.LoadAPI()
	logging.Init("api", cfg.LogFormat)

	for _, warning := range cfg.ProviderSettings.Validate() {
		slog.Warn("config warning", "warning", warning)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.NewPool(ctx, cfg.DBDSN, pg.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		slog.Error("api db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	store := pg.New(db)
	startupCtx, startupCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := store.EnsureSchema(startupCtx); err != nil {
		startupCancel()
		slog.Error("api schema init failed", "err", err)
		os.Exit(1)
	}
	startupCancel()

	observability.Register(prometheus.DefaultRegisterer)

	sender := registry.New(cfg.ProviderSettings)
	limiter := ratelimit.New(cfg.MessagesPerSecond)
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        sender.Name(),
		MaxRequests: 3,
		Timeout:     20 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 10 },
	})

	dispatcher := &dispatch.Dispatcher{
		Sender:  sender,
		Store:   store,
		Limiter: limiter,
		Breaker: breaker,
		OnProgress: func(p dispatch.Progress) {
			slog.Info("broadcast progress", "current", p.Current, "total", p.Total, "status", p.Status)
		},
	}

	svc := &service.BroadcastService{
		Store:      store,
		Dispatcher: dispatcher,
		Now:        util.NowUTC,
	}

	s := httpserver.New()
	api := &httpserver.API{Svc: svc}
	api.Register(s.Mux)

	s.Mux.HandleFunc("/healthz", httpserver.Healthz())
	s.Mux.HandleFunc("/readyz", httpserver.Readyz(2*time.Second, func(ctx context.Context) error {
		return db.Ping(ctx)
	}))
	s.Mux.HandleFunc("/health", httpserver.Identity(config.BotName, config.BotVersion, cfg.Provider))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httpserver.Logging(httpserver.Metrics(s.Mux)),
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("api shutdown", "signal", sig.String())
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("api listening", "port", cfg.Port, "provider", cfg.Provider)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("api server failed", "err", err)
		os.Exit(1)
	}
}
