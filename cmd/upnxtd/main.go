package main

import (
	"context"
	"expvar"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Adrieleise/upnxt/internal/analytics"
	"github.com/Adrieleise/upnxt/internal/config"
	"github.com/Adrieleise/upnxt/internal/httpapi"
	"github.com/Adrieleise/upnxt/internal/hub"
	"github.com/Adrieleise/upnxt/internal/queue"
	"github.com/Adrieleise/upnxt/internal/scheduler"
	"github.com/Adrieleise/upnxt/internal/store/postgres"
	"github.com/Adrieleise/upnxt/internal/telemetry"

	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	shutdownTelemetry := telemetry.Setup("upnxtd", logger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	st := postgres.NewStore(pool)
	if err := st.Migrate(context.Background()); err != nil {
		logger.Error("migrate failed", "error", err)
		os.Exit(1)
	}

	marker, err := scheduler.OpenMarkerStore(cfg.StateDir)
	if err != nil {
		logger.Error("open reset marker failed", "error", err)
		os.Exit(1)
	}
	defer marker.Close()
	logger.Info("reset marker ready", "path", marker.Path())

	engine := queue.New(st)
	h := hub.New(logger)
	analyticsSvc := analytics.NewService(st, st)
	pipeline := scheduler.NewResetPipeline(st, analyticsSvc, h)
	sched := scheduler.New(marker, pipeline, logger, scheduler.Options{
		CheckInterval: cfg.ResetCheckInterval,
		LockPath:      filepath.Join(cfg.StateDir, "reset.lock"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go sched.Run(ctx)

	handler := httpapi.NewHandler(engine, st, analyticsSvc, sched, h)
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute: cfg.RateLimitPerMinute,
		IPBurst:     cfg.RateLimitBurst,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", expvar.Handler())
	mux.Handle("/realtime/", sockjs.NewHandler("/realtime", sockjs.DefaultOptions, realtimeHandler(h)))
	mux.Handle("/", handler.Routes())

	otelHandler := otelhttp.NewHandler(httpapi.LoggingMiddleware(logger, limiter.Middleware(mux)), "upnxtd")
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("upnxtd listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func realtimeHandler(h *hub.Hub) func(sockjs.Session) {
	return func(session sockjs.Session) {
		client := &hub.Client{ID: uuid.NewString(), Send: make(chan []byte, 16)}
		h.Register(client)
		defer h.Unregister(client)

		go func() {
			for msg := range client.Send {
				_ = session.Send(string(msg))
			}
		}()

		for {
			msg, err := session.Recv()
			if err != nil {
				return
			}
			parsed, ok := hub.ParseSubscribe([]byte(msg))
			if !ok {
				continue
			}
			switch parsed.Action {
			case "subscribe":
				h.UpdateSubscription(client, hub.Subscription{DoctorID: parsed.DoctorID})
			case "unsubscribe":
				h.UpdateSubscription(client, hub.Subscription{})
			case "suspend":
				h.Suspend(client)
			case "resume":
				h.Resume(client)
			}
		}
	}
}
