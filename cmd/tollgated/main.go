package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tollgate/internal/config"
	"tollgate/internal/service"
	"tollgate/internal/store"
	"tollgate/shared/audit"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("TOLLGATE_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, sqliteKV, rdb, err := buildStore(cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open condition store")
	}
	if sqliteKV != nil {
		defer sqliteKV.Close()
	}

	svc := service.New(&service.Config{TickInterval: cfg.TickInterval()}, kv, logger)

	if cfg.Monitoring.PrometheusEnabled {
		svc.UseMetrics(service.NewMetrics("tollgate"))
	}
	if cfg.Audit.Enabled {
		retention := time.Duration(cfg.Audit.RetentionDays) * 24 * time.Hour
		svc.UseAudit(audit.NewTrail(cfg.Audit.MaxEntries, retention))
	}

	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = svc.Refresh(loadCtx)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load conditions from store")
	}

	if sqliteKV != nil && cfg.Backup.Enabled {
		backup := store.NewBackupService(sqliteKV.Path(), cfg.BackupInterval(), cfg.Backup, &logger)
		go backup.Start(ctx)
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, sqliteKV, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	svc.Start()
	logger.Info().Str("backend", cfg.Store.Backend).Msg("tollgate engine started")

	<-ctx.Done()
	svc.Stop()
}

// buildStore opens the configured backend. The SQLite handle is returned
// separately so the backup and readiness probes can reach it.
func buildStore(cfg *config.Config, logger *zerolog.Logger) (store.KV, *store.SQLiteKV, *redis.Client, error) {
	newRedis := func() (*redis.Client, *store.RedisKV, error) {
		if cfg.Redis.Address == "" {
			return nil, nil, fmt.Errorf("store backend %q needs redis.address", cfg.Store.Backend)
		}
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		return rdb, store.NewRedisKV(rdb, cfg.Redis.KeyPrefix), nil
	}

	switch cfg.Store.Backend {
	case "sqlite":
		kv, err := store.NewSQLiteKV(cfg.Database.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		return kv, kv, nil, nil
	case "redis":
		rdb, kv, err := newRedis()
		if err != nil {
			return nil, nil, nil, err
		}
		return kv, nil, rdb, nil
	case "failover":
		rdb, primary, err := newRedis()
		if err != nil {
			return nil, nil, nil, err
		}
		fallback, err := store.NewSQLiteKV(cfg.Database.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		return store.NewFailoverKV(primary, fallback, time.Minute, *logger), fallback, rdb, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func startHealthServer(ctx context.Context, port int, sqliteKV *store.SQLiteKV, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if sqliteKV != nil {
			if err := sqliteKV.Ping(ctxPing); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
