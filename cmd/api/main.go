package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"gigshield.org/internal/audit"
	"gigshield.org/internal/auth"
	"gigshield.org/internal/config"
	"gigshield.org/internal/events"
	"gigshield.org/internal/httpapi"
	"gigshield.org/internal/keeper"
	"gigshield.org/internal/migrate"
	"gigshield.org/internal/obs"
	"gigshield.org/internal/shield"
	"gigshield.org/internal/store"
	"gigshield.org/internal/store/pg"
	"gigshield.org/internal/stream"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := obs.NewLogger(cfg.Log.Level, cfg.Log.Format, "gigshield-api")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	restore := obs.SetLogger(logger)
	defer restore()

	// Metrics registration and build info
	obs.Init()
	obs.InitBuildInfo(version, commit)

	if cfg.AuthSecret != "" {
		auth.SetSecret(cfg.AuthSecret)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()

	var (
		db  *sql.DB
		rec store.Store
	)
	if cfg.DatabaseURL != "" {
		pgs, err := pg.Open(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("open database", zap.Error(err))
		}
		db = pgs.DB()
		if err := applyMigrations(ctx, db, logger); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		rec = pgs
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		rec = store.NewMemory(clock)
	}

	live := stream.New()
	publishers := []events.Publisher{live, audit.Publisher{}}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
		publishers = append(publishers, events.NewRedisPublisher(rdb, cfg.Redis.Stream, 0))
		logger.Info("publishing events to redis", zap.String("addr", cfg.Redis.Addr), zap.String("stream", cfg.Redis.Stream))
	}

	svc := shield.New(rec,
		shield.WithClock(clock),
		shield.WithPublisher(events.Multi(publishers...)),
		shield.WithLogger(logger.Named("shield")),
	)

	probe := httpapi.ReadyProbe{DB: db, Redis: rdb}
	api := httpapi.New(probe, version, svc, live, httpapi.WithProduction(cfg.Production()))
	api.SetRateLimit(cfg.RateBurst, cfg.RatePerSec)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	health := httpapi.NewHealthServer(probe, clock)
	grpcServer := grpc.NewServer()
	health.Register(grpcServer)
	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		logger.Fatal("grpc listen", zap.String("addr", cfg.GRPC.Addr), zap.Error(err))
	}

	go func() {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error("grpc serve", zap.Error(err))
			stop()
		}
	}()
	go health.Watch(ctx, 10*time.Second)

	resolver := keeper.New(svc, cfg.ResolverInterval,
		keeper.WithClock(clock),
		keeper.WithLogger(logger.Named("keeper")),
	)
	go resolver.Run(ctx)

	go func() {
		logger.Info("starting gigshield-api",
			zap.String("version", version),
			zap.String("env", cfg.Env),
			zap.String("http_addr", srv.Addr),
			zap.String("grpc_addr", cfg.GRPC.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http listen", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	health.Shutdown()
	obs.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()
	if rdb != nil {
		_ = rdb.Close()
	}
	if db != nil {
		_ = db.Close()
	}
	logger.Info("stopped")
}

func applyMigrations(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	mgr, err := migrate.NewManager(db)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	applied, err := mgr.Up(ctx)
	if err != nil {
		return err
	}
	logger.Info("schema up to date", zap.Strings("applied", applied))
	return nil
}
