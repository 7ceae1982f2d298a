package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/jobportal-notify/internal/auth"
	"github.com/rickgao/jobportal-notify/internal/config"
	"github.com/rickgao/jobportal-notify/internal/database"
	"github.com/rickgao/jobportal-notify/internal/events"
	"github.com/rickgao/jobportal-notify/internal/fanout"
	"github.com/rickgao/jobportal-notify/internal/hub"
	"github.com/rickgao/jobportal-notify/internal/pruner"
	"github.com/rickgao/jobportal-notify/internal/repository"
	"github.com/rickgao/jobportal-notify/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/notifyd.local.yaml", "path to config file")
	issueFor := flag.String("issue-token", "", "print a session token for this user id and exit")
	issueTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of a token printed by -issue-token")
	flag.Parse()

	cfg, err := config.LoadServerAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	secret, err := auth.LoadSecret(cfg.Auth.JWTSecret, cfg.Auth.JWTSecretPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load jwt secret: %v\n", err)
		os.Exit(1)
	}

	if *issueFor != "" {
		token, err := auth.NewIssuer(secret, cfg.Auth.Issuer).Issue(*issueFor, *issueTTL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to issue token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	// Validate already rejected unknown levels.
	level, _ := config.ParseLogLevel(cfg.Log.Level)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting notifyd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"instance_id", cfg.Instance.ID,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, secret, logger); err != nil {
		logger.Error("notifyd failed", "error", err)
		os.Exit(1)
	}

	logger.Info("notifyd stopped")
}

func run(ctx context.Context, cfg *config.ServerConfig, secret []byte, logger *slog.Logger) error {
	db := cfg.Database.Postgres
	logger.Info("connecting to database",
		"host", db.Host,
		"port", db.Port,
		"database", db.Name,
	)

	pool, err := database.Connect(ctx, db)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	repo := repository.NewNotifications(pool, logger)
	if err := repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	logger.Info("database connected")

	h := hub.New(cfg.Hub, repo, auth.NewVerifier(secret, cfg.Auth.Issuer), logger)
	router := events.NewRouter(repo, h, logger)

	g, gctx := errgroup.WithContext(ctx)

	var fo *fanout.Fanout
	if cfg.Redis.Addr != "" {
		fo = fanout.New(cfg.Redis, cfg.Instance.ID, logger)
		defer fo.Close()

		if err := fo.Ping(ctx); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		h.SetFanout(fo)
		g.Go(func() error { return fo.Run(gctx, h.DeliverRaw) })
		logger.Info("fanout enabled", "addr", cfg.Redis.Addr, "channel", cfg.Redis.Channel)
	}

	if cfg.AMQP.URL != "" {
		consumer := events.NewConsumer(cfg.AMQP, router.Handle, logger)
		g.Go(func() error { return consumer.Run(gctx) })
		logger.Info("event consumer enabled", "exchange", cfg.AMQP.Exchange, "queue", cfg.AMQP.Queue)
	}

	p := pruner.New(pruner.Config{
		Interval: cfg.Retention.Interval,
		MaxAge:   cfg.Retention.MaxAge,
	}, repo, logger)
	if err := p.Start(gctx); err != nil {
		return fmt.Errorf("start pruner: %w", err)
	}

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           newMux(cfg, h, router, pool, fo, logger),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	g.Go(func() error {
		logger.Info("http server listening",
			"addr", cfg.HTTP.Addr,
			"ws_path", cfg.HTTP.WSPath,
			"metrics_path", cfg.Metrics.Path,
		)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Close sessions first; Shutdown does not track hijacked connections.
		if err := h.Close(shutdownCtx); err != nil {
			logger.Warn("hub close", "error", err)
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "error", err)
		}
		if err := p.Stop(shutdownCtx); err != nil {
			logger.Warn("pruner stop", "error", err)
		}
		return nil
	})

	return g.Wait()
}

// newMux wires the HTTP surface.
func newMux(cfg *config.ServerConfig, h *hub.Hub, router *events.Router, pool *pgxpool.Pool, fo *fanout.Fanout, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.Handle(cfg.HTTP.WSPath, h)
	mux.Handle(cfg.Metrics.Path, promhttp.Handler())

	publish := events.PublishHandler(router.Handle, cfg.HTTP.PublishToken, logger)
	mux.Handle("POST /api/notifications", publish)
	mux.Handle("POST /api/events/{key}", publish)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Version    string         `json:"version"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Version:    version.Version,
			Components: make(map[string]any),
		}

		if err := pool.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["postgres"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["postgres"] = "connected"
		}

		if fo != nil {
			if err := fo.Ping(ctx); err != nil {
				if health.Status == "healthy" {
					health.Status = "degraded"
				}
				health.Components["redis"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["redis"] = "connected"
			}
		}

		health.Components["hub"] = map[string]any{
			"sessions": h.SessionCount(""),
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
