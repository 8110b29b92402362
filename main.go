package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"checkin-gate/internal/checkin/checkin_api"
	"checkin-gate/internal/checkin/db"
	gateredis "checkin-gate/internal/checkin/redis"
	checkin "checkin-gate/internal/checkin/service"
	"checkin-gate/internal/config"
	"checkin-gate/internal/database"
	"checkin-gate/internal/database/migrations"
	"checkin-gate/internal/kafka"
	"checkin-gate/internal/logger"
	"checkin-gate/internal/metrics"
	"checkin-gate/internal/sse"
)

// connectRedis returns nil when no address is configured or Redis is down;
// the gate then runs without the operator key lockout.
func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	if cfg.Addr == "" {
		log.Info("REDIS", "REDIS_ADDR not set, operator key lockout disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("REDIS", fmt.Sprintf("Redis at %s unavailable, lockout disabled: %v", cfg.Addr, err))
		client.Close()
		return nil
	}
	log.Info("REDIS", "✅ Redis connection successful")
	return client
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("CONFIG: .env file not found, using environment variables")
	}
	cfg := config.Load()

	log := logger.NewLogger(cfg.Log.Dir, "gate")
	defer log.Close()

	log.Info("APP", "Starting check-in gate")
	if cfg.Gate.AdminKey == "" {
		log.Warn("CONFIG", "ADMIN_KEY not set, operator endpoints will refuse every request")
	}

	ctx := context.Background()

	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if err := migrations.NewRunner(bunDB, log).RunMigrations(ctx); err != nil {
		log.Fatal("MIGRATE", err.Error())
	}

	gateService := checkin.NewGateService(&db.DB{Bun: bunDB}, log)

	events := sse.NewArrivalEmitter()
	gateService.Publishers = append(gateService.Publishers, events)

	if cfg.Kafka.Enabled {
		log.Info("KAFKA", fmt.Sprintf("Using Kafka brokers %v", cfg.Kafka.Brokers))
		topics := []string{cfg.Kafka.Topics.Admissions, cfg.Kafka.Topics.Resets}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics, log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics, log)
		defer producer.Close()
		gateService.Publishers = append(gateService.Publishers, producer)
		log.Info("KAFKA", "Kafka producer initialized successfully")
	}

	var recorder *metrics.Recorder
	if cfg.Metrics.Enabled {
		recorder = metrics.NewRecorder()
		gateService.Metrics = recorder
	}

	handler := checkin_api.NewHandler(gateService, cfg.Gate, log)
	handler.Events = events

	if redisClient := connectRedis(ctx, cfg.Redis, log); redisClient != nil {
		defer redisClient.Close()
		handler.KeyGuard = gateredis.NewKeyGuard(redisClient, log, cfg.Redis.MaxKeyFailures, cfg.Redis.KeyLockout)
	}

	log.Info("HTTP", "Setting up router and middleware")
	if len(handler.TrustedProxies) > 0 {
		log.Info("HTTP", fmt.Sprintf("Forwarded client addresses honoured from %d trusted proxy networks", len(handler.TrustedProxies)))
	}
	r := checkin_api.NewRouter(handler)
	if recorder != nil {
		r.Handle("/metrics", recorder.Handler())
		log.Info("ROUTER", "Prometheus metrics registered at /metrics")
	}

	// Request contexts derive from baseCtx so open /events streams end on shutdown.
	baseCtx, cancelBase := context.WithCancel(ctx)
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return baseCtx },
	}
	server.RegisterOnShutdown(cancelBase)

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Check-in gate listening on %s", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Check-in gate shutdown complete")
	}
}
