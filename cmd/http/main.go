package main

import (
	"context"
	"expvar"
	"log"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/parleychat/parley/internal/infrastructure/configs"
	"github.com/parleychat/parley/internal/infrastructure/db"
	"github.com/parleychat/parley/internal/infrastructure/events"
	"github.com/parleychat/parley/internal/infrastructure/logging"
	"github.com/parleychat/parley/internal/infrastructure/messaging"
	"github.com/parleychat/parley/internal/infrastructure/metrics"
	"github.com/parleychat/parley/internal/infrastructure/ratelimiter"
	"github.com/parleychat/parley/internal/infrastructure/repository"
	"github.com/parleychat/parley/internal/infrastructure/tracing"
	"github.com/parleychat/parley/internal/infrastructure/ws"
	"github.com/parleychat/parley/internal/presentation/api"
	chatsHandler "github.com/parleychat/parley/internal/presentation/handler/chats"
	healthHandler "github.com/parleychat/parley/internal/presentation/handler/health"
	syncHandler "github.com/parleychat/parley/internal/presentation/handler/sync"
	usersHandler "github.com/parleychat/parley/internal/presentation/handler/users"
)

const serviceName = "parley"

func main() {
	_ = godotenv.Load()

	configPath := configs.DetermineConfigPath()
	cfg, err := configs.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		FilePath: cfg.Logger.FilePath,
		Encoding: cfg.Logger.Encoding,
		Level:    cfg.Logger.Level,
		Logger:   cfg.Logger.Logger,
	})

	ctx := context.Background()

	shutdownTracer, err := tracing.InitTracer(tracing.NewDefaultConfig(serviceName))
	if err != nil {
		logger.Fatal(logging.General, logging.Startup, "failed to init tracer", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
	defer func() {
		_ = shutdownTracer(ctx)
	}()

	mongoClient, err := db.NewMongoClient(ctx, cfg.Mongo)
	if err != nil {
		logger.Fatal(logging.Mongo, logging.Startup, "failed to connect to mongodb", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
	defer func() {
		_ = db.DisconnectMongo(ctx, mongoClient)
	}()

	database := db.GetDatabase(mongoClient, cfg.Mongo)
	if err := repository.EnsureIndexes(ctx, database); err != nil {
		logger.Fatal(logging.Mongo, logging.Startup, "failed to create indexes", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}

	chatRepository := repository.NewChatRepository(database)
	messageRepository := repository.NewMessageRepository(database)
	userRepository := repository.NewUserRepository(database)

	var publisher ws.EventPublisher
	if cfg.RabbitMQ.Enabled {
		rabbitmq, err := messaging.NewRabbitMQ(cfg.RabbitMQ.URI)
		if err != nil {
			// The broker mirrors events for out-of-process consumers;
			// the sync layer works without it.
			logger.Warn(logging.RabbitMQ, logging.Startup, "rabbitmq unavailable, continuing without broker", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		} else {
			defer rabbitmq.Close()
			publisher = events.NewSyncPublisher(rabbitmq)

			consumer := events.NewSyncConsumer(rabbitmq, logger)
			go func() {
				if err := consumer.Listen(); err != nil {
					logger.Error(logging.RabbitMQ, logging.ExternalService, "sync consumer stopped", map[logging.ExtraKey]any{
						logging.ErrorMessage: err.Error(),
					})
				}
			}()
		}
	}

	registry := prometheus.NewRegistry()
	syncMetrics := metrics.NewSyncMetrics(registry)

	core := ws.NewCore(logger, cfg.WS, syncMetrics, publisher)

	rateLimiter := ratelimiter.NewFixedWindowRateLimiter(cfg.RateLimiter.RequestsPerTimeFrame, cfg.RateLimiter.TimeFrame)
	defer rateLimiter.Close()

	app := api.NewApplication(
		*cfg,
		core,
		chatsHandler.NewHandler(chatRepository, messageRepository, userRepository),
		usersHandler.NewHandler(userRepository),
		syncHandler.NewHandler(cfg.WS, core),
		healthHandler.NewHandler(),
		logger,
		rateLimiter,
		registry,
	)

	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	mux := app.Mount()
	if err := app.Run(mux); err != nil {
		logger.Fatal(logging.General, logging.Shutdown, "server exited with error", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
}
