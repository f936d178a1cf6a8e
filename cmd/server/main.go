package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scangate/gateway/internal/auth"
	"github.com/scangate/gateway/internal/config"
	"github.com/scangate/gateway/internal/inference"
	"github.com/scangate/gateway/internal/logsink"
	"github.com/scangate/gateway/internal/metrics"
	"github.com/scangate/gateway/internal/middleware"
	"github.com/scangate/gateway/internal/pipeline"
	"github.com/scangate/gateway/internal/rest"
	"github.com/scangate/gateway/internal/session"
	"github.com/scangate/gateway/internal/storage"
	"github.com/scangate/gateway/internal/transport"
)

func main() {
	cfg := config.Get()

	var logHandler slog.Handler = slog.NewTextHandler(os.Stderr, nil)
	if cfg.Logging.Format == "json" {
		logHandler = slog.NewJSONHandler(os.Stderr, nil)
	}
	slog.SetDefault(slog.New(logHandler))

	slog.Info("frame ingestion gateway starting", "env", cfg.Server.Env, "addr", cfg.Addr())

	db, err := storage.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("open storage: %v", err)
	}
	defer db.Close()

	verifier := auth.NewVerifier(cfg.Auth.Secret, time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)

	sink, err := logsink.New(cfg.Logging.Dir, []string{"mobile-android", "mobile-ios", "desktop-agent"})
	if err != nil {
		log.Fatalf("open log sink: %v", err)
	}
	defer sink.Close()

	m := metrics.New()

	poolCtx, poolCancel := context.WithTimeout(context.Background(), 60*time.Second)
	pool, err := inference.NewPool(poolCtx, cfg.InferenceAddr(), cfg.Inference.PoolSize, cfg.Inference.AllowDegraded, log.New(os.Stderr, "[inference] ", log.LstdFlags))
	poolCancel()
	if err != nil {
		log.Fatalf("connect inference pool: %v", err)
	}
	if pool.Degraded() {
		slog.Warn("inference pool running degraded, frames will be accepted but not scored", "addr", cfg.InferenceAddr())
	}
	defer pool.Close()

	sessions := session.NewRegistry()

	pl := pipeline.New(verifier, pool, db, slog.Default())
	pl.SetMetrics(m)

	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{})

	restServer := rest.NewServer(cfg.Addr(), db, verifier, sink, m, limiter, slog.Default())
	wsServer := transport.NewWSServer(cfg.WSAddr(), cfg.Server.WSPath, time.Duration(cfg.Server.IdleTimeoutSec)*time.Second, pl, sessions, slog.Default())
	wsServer.SetMetrics(m)
	udpServer := transport.NewUDPServer(cfg.UDPAddr(), pl, sessions, slog.Default())
	udpServer.SetMetrics(m)

	servers := []transport.Server{restServer, wsServer, udpServer}

	ctx := context.Background()
	for _, srv := range servers {
		if err := srv.Start(ctx); err != nil {
			log.Fatalf("start server: %v", err)
		}
	}

	gaugeDone := make(chan struct{})
	go reportGauges(gaugeDone, m, pool, sessions, udpServer)
	defer close(gaugeDone)

	slog.Info("frame ingestion gateway ready",
		"rest_addr", restServer.Addr(),
		"ws_addr", wsServer.Addr(),
		"ws_path", cfg.Server.WSPath,
		"inference_pool_size", pool.Size(),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	slog.Info("received shutdown signal, shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSec)*time.Second)
	defer cancel()

	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}

	slog.Info("frame ingestion gateway stopped")
}

// reportGauges periodically refreshes the point-in-time gauges that have no
// natural increment/decrement call site (pool size, map sizes).
func reportGauges(done <-chan struct{}, m *metrics.Metrics, pool *inference.Pool, sessions *session.Registry, udp *transport.UDPServer) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.InferencePoolSize.Set(float64(pool.Size()))
			m.SessionMapSize.Set(float64(sessions.Len()))
			m.ReassemblyMapSize.Set(float64(udp.ReassemblyLen()))
		case <-done:
			return
		}
	}
}
