package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/mitchelldurbincs/conquest/internal/common"
	"github.com/mitchelldurbincs/conquest/internal/config"
	"github.com/mitchelldurbincs/conquest/internal/game/events"
	"github.com/mitchelldurbincs/conquest/internal/monitoring"
	"github.com/mitchelldurbincs/conquest/internal/server"
	"github.com/mitchelldurbincs/conquest/internal/storage/redisstore"
	"github.com/mitchelldurbincs/conquest/internal/storage/results"
	"github.com/mitchelldurbincs/conquest/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	env := flag.String("env", "", "Environment overlay to merge (defaults to APP_ENV)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error) (empty to use config default)")
	enableReflection := flag.Bool("enable-reflection", false, "Enable gRPC reflection for debugging")
	flag.Parse()

	if err := config.Init(*configPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize config")
	}
	if *env == "" {
		*env = os.Getenv("APP_ENV")
	}
	if err := config.LoadEnvironmentConfig(*env); err != nil {
		log.Fatal().Err(err).Str("env", *env).Msg("Failed to load environment config")
	}

	cfg := config.Get()
	if *logLevel == "" {
		*logLevel = cfg.Server.LogLevel
	}
	if !*enableReflection {
		*enableReflection = cfg.Server.GRPC.EnableReflection
	}

	logger := common.SetupLogging(*logLevel, cfg.Server.LogFormat)
	logger.Info().
		Str("config", config.ConfigFilePath()).
		Str("env", *env).
		Str("grpc_addr", cfg.GRPCAddr()).
		Str("http_addr", cfg.HTTPAddr()).
		Int("max_rooms", cfg.Server.Rooms.MaxRooms).
		Msg("Starting conquest server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to set up tracing")
	}

	recorder, err := results.Open(cfg.Storage.ResultsPath, cfg.Storage.ResultsQueue, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Storage.ResultsPath).Msg("Failed to open results database")
	}
	recorder.Start(ctx)

	// A typed nil *redisstore.Store must not end up in the interface
	var store server.SnapshotStore
	var redis *redisstore.Store
	if cfg.Storage.RedisURL != "" {
		redis, err = redisstore.New(ctx, cfg.Storage.RedisURL, cfg.Storage.SnapshotTTL, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to redis")
		}
		store = redis
		logger.Info().Dur("ttl", cfg.Storage.SnapshotTTL).Msg("Snapshot cache enabled")
	}

	rooms, err := newRoomManager(ctx, cfg, store, recorder, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build room manager")
	}
	go rooms.RunCleanup(ctx)

	monitor := monitoring.NewMonitor(cfg.Monitoring, logger)
	monitor.Register("rooms", func() int64 { return int64(rooms.Count()) })
	monitor.Register("observers", func() int64 { return int64(rooms.Observers()) })
	monitor.Register("results_dropped", func() int64 { return int64(recorder.Dropped()) })
	go monitor.Run(ctx)

	config.WatchConfig(func(reloaded *config.Config, err error) {
		if err != nil {
			logger.Error().Err(err).Msg("Config reload rejected, keeping previous config")
			return
		}
		zerolog.SetGlobalLevel(common.ParseLevel(reloaded.Server.LogLevel))
		logger.Info().Str("log_level", reloaded.Server.LogLevel).Msg("Config reloaded; room settings apply after restart")
	})

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to listen")
	}

	observer := server.NewObserverService(rooms, logger)
	grpcServer, healthServer := server.NewGRPCServer(observer, server.GRPCOptions{
		EnableReflection: *enableReflection,
		Tracing:          cfg.Telemetry.Enabled,
	}, logger)
	if *enableReflection {
		logger.Info().Msg("gRPC reflection enabled")
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           server.NewHTTPHandler(rooms, server.HTTPOptions{
			Store:   store,
			Monitor: monitor,
			Results: recorder,
		}, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("address", lis.Addr().String()).Msg("gRPC server listening")
		if err := grpcServer.Serve(lis); err != nil {
			logger.Fatal().Err(err).Msg("Failed to serve gRPC")
		}
	}()
	go func() {
		logger.Info().Str("address", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Failed to serve HTTP")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(server.ObserverServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	// Give ongoing requests time to complete
	time.Sleep(cfg.Server.GRPC.GracefulShutdownDelay)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Rooms abort and write their final snapshots before the listeners go away,
	// so open Watch streams and sockets see the end of their match.
	if err := rooms.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Rooms did not stop in time")
	}

	logger.Info().Msg("Gracefully stopping gRPC server")
	grpcServer.GracefulStop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP shutdown failed")
	}

	cancel()
	if err := recorder.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close results database")
	}
	if redis != nil {
		if err := redis.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close redis client")
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to flush traces")
	}
	logger.Info().Msg("Server stopped")
}

func newRoomManager(ctx context.Context, cfg *config.Config, store server.SnapshotStore, recorder *results.Recorder, logger zerolog.Logger) (*server.RoomManager, error) {
	difficulty, err := cfg.DefaultDifficulty()
	if err != nil {
		return nil, err
	}

	rooms := cfg.Server.Rooms
	return server.NewRoomManager(ctx, server.ManagerConfig{
		MaxRooms:         rooms.MaxRooms,
		IdleTimeout:      rooms.IdleTimeout,
		FinishedTTL:      rooms.FinishedTTL,
		CleanupInterval:  rooms.CleanupInterval,
		Settings:         cfg.Game,
		StrategistParams: cfg.Strategist,
		Map:              cfg.Map,
		Difficulty:       difficulty,
		Difficulties:     cfg.DifficultyPresets(),
		Room: server.RoomOptions{
			ProgressInterval: rooms.ProgressInterval,
			SnapshotInterval: rooms.SnapshotInterval,
			ObserverBuffer:   rooms.ObserverBuffer,
			IdempotencyTTL:   rooms.IdempotencyTTL,
			Store:            store,
			Subscribers:      []events.Subscriber{recorder},
		},
		LogEvents: rooms.LogEvents,
	}, logger), nil
}
