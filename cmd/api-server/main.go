package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilsharma0818/OPD-Token-Allocation/internal/api"
	"github.com/nikhilsharma0818/OPD-Token-Allocation/internal/config"
	"github.com/nikhilsharma0818/OPD-Token-Allocation/internal/db"
	"github.com/nikhilsharma0818/OPD-Token-Allocation/internal/opd"
	redisclient "github.com/nikhilsharma0818/OPD-Token-Allocation/internal/redis"
	"github.com/nikhilsharma0818/OPD-Token-Allocation/internal/schedule"
	"github.com/nikhilsharma0818/OPD-Token-Allocation/internal/telemetry"
	"github.com/nikhilsharma0818/OPD-Token-Allocation/internal/token"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running in env=%s http_port=%s version=%s", cfg.Env, cfg.HTTPPort, cfg.Version)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := telemetry.Setup(rootCtx, "opd-api", cfg.Version, cfg.OTLPEndpoint, cfg.OTLPInsecure)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			log.Printf("error shutting down tracing: %v", err)
		}
	}()

	roster := schedule.DefaultRoster()
	if cfg.RosterFile != "" {
		roster, err = schedule.LoadRoster(cfg.RosterFile)
		if err != nil {
			log.Fatalf("roster load error: %v", err)
		}
		log.Printf("loaded roster file=%s doctors=%d", cfg.RosterFile, len(roster))
	} else {
		log.Printf("using default roster doctors=%d", len(roster))
	}

	// Postgres only backs the audit log
	var (
		pgPool *pgxpool.Pool
		events token.EventSink = token.NewMemorySink()
	)
	if cfg.PostgresDSN != "" {
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err = db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.PostgresMaxConns)
		cancelPg()
		if err != nil {
			log.Fatalf("postgres connection error: %v", err)
		}
		defer pgPool.Close()
		events = token.NewPgEventSink(pgPool)
		log.Println("connected to Postgres")
	} else {
		log.Println("POSTGRES_DSN not set, keeping events in memory")
	}

	var (
		rdb    *redis.Client
		locker redisclient.Locker
	)
	if cfg.RedisAddr != "" {
		rdb, err = redisclient.NewRedisClient(rootCtx, redisclient.ClientOptions{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TLS:      cfg.RedisTLS,
		})
		if err != nil {
			log.Fatalf("redis connection error: %v", err)
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Printf("error closing redis: %v", err)
			}
		}()
		locker = redisclient.NewRedisDoctorLocker(rdb, cfg.LockTTL, cfg.LockWait)
		log.Println("connected to Redis")
	} else {
		locker = redisclient.NewLocalDoctorLocker(cfg.LockWait)
		log.Println("REDIS_ADDR not set, using in-process doctor locks")
	}

	svc := token.NewService(schedule.NewMemoryStore(roster), locker, opd.NewEngine(), events)

	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: api.NewRouter(api.RouterConfig{
			Service: svc,
			PgPool:  pgPool,
			Redis:   rdb,
			Env:     cfg.Env,
			Version: cfg.Version,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("http server listening addr=%s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-rootCtx.Done():
		log.Println("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Printf("http server error: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http server shutdown error: %v", err)
	}

	log.Println("shutting down api-server")
}
