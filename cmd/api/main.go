package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/crucial707/autosignin/internal/config"
	"github.com/crucial707/autosignin/internal/db"
	"github.com/crucial707/autosignin/internal/handlers"
	"github.com/crucial707/autosignin/internal/history"
	"github.com/crucial707/autosignin/internal/middleware"
	"github.com/crucial707/autosignin/internal/notify"
	"github.com/crucial707/autosignin/internal/orchestrator"
	"github.com/crucial707/autosignin/internal/repo"
	"github.com/crucial707/autosignin/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(newLogHandler(cfg.LogFormat)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(ctx,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
		cfg.DBUser,
		cfg.DBPass,
		cfg.DBMaxOpenConns,
		cfg.DBMaxIdleConns,
	)
	if err != nil {
		slog.Error("connect database", "err", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.Info("connected to database", "host", cfg.DBHost, "name", cfg.DBName)

	if err := db.Migrate(cfg.DatabaseURL()); err != nil {
		slog.Error("migrate database", "err", err)
		os.Exit(1)
	}

	var notifier notify.Notifier = notify.LogNotifier{}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer client.Close()
		notifier = notify.NewRedisNotifier(client, cfg.RedisStream)
		slog.Info("notifications go to redis stream", "addr", cfg.RedisAddr, "stream", cfg.RedisStream)
	}

	o := orchestrator.New(cfg.SignIn, orchestrator.Deps{
		Sites:    repo.NewSiteRepo(database),
		History:  history.NewStore(repo.NewPluginDataRepo(database), history.DefaultRetentionDays),
		Notifier: notifier,
	})

	go func() {
		if err := scheduler.Run(ctx, cfg.SignIn, func() { o.Trigger(nil) }); err != nil {
			slog.Error("scheduler stopped", "err", err)
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(database, cfg, o),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown", "err", err)
		}
	}()

	slog.Info("starting server", "port", cfg.Port, "env", cfg.Env)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server", "err", err)
		os.Exit(1)
	}
}

func newLogHandler(format string) slog.Handler {
	if format == "json" {
		return slog.NewJSONHandler(os.Stdout, nil)
	}
	return slog.NewTextHandler(os.Stdout, nil)
}

// newRouter wires the HTTP API. Everything except /health and /metrics
// requires a bearer token.
func newRouter(database *sql.DB, cfg config.Config, runner handlers.Runner) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Observe)
	r.Use(middleware.APIHeaders(cfg.Env == "prod"))
	r.Use(middleware.MaxBytes(middleware.DefaultMaxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	signInHandler := &handlers.SignInHandler{Runner: runner}
	historyHandler := &handlers.HistoryHandler{
		Store: history.NewStore(repo.NewPluginDataRepo(database), history.DefaultRetentionDays),
	}
	siteHandler := &handlers.SiteHandler{Repo: repo.NewSiteRepo(database)}

	limiter := middleware.TriggerRateLimiter()

	r.Group(func(r chi.Router) {
		r.Use(middleware.JWTMiddleware([]byte(cfg.JWTSecret)))

		r.With(limiter.Middleware).Post("/signin", signInHandler.RunSignIn)
		r.Get("/targets", signInHandler.ListTargets)
		r.Get("/history", historyHandler.GetHistory)
		r.Get("/sites", siteHandler.ListSites)
	})

	return r
}
