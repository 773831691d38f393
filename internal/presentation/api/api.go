package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/parleychat/parley/internal/infrastructure/configs"
	"github.com/parleychat/parley/internal/infrastructure/logging"
	"github.com/parleychat/parley/internal/infrastructure/ratelimiter"
	"github.com/parleychat/parley/internal/infrastructure/ws"
	chatsHandler "github.com/parleychat/parley/internal/presentation/handler/chats"
	healthHandler "github.com/parleychat/parley/internal/presentation/handler/health"
	syncHandler "github.com/parleychat/parley/internal/presentation/handler/sync"
	usersHandler "github.com/parleychat/parley/internal/presentation/handler/users"
)

type Application struct {
	config        configs.Config
	core          *ws.Core
	chatsHandler  *chatsHandler.Handler
	usersHandler  *usersHandler.Handler
	syncHandler   *syncHandler.Handler
	healthHandler *healthHandler.Handler
	logger        logging.Logger
	ratelimiter   ratelimiter.Limiter
	registry      *prometheus.Registry
}

func NewApplication(
	config configs.Config,
	core *ws.Core,
	chatsHandler *chatsHandler.Handler,
	usersHandler *usersHandler.Handler,
	syncHandler *syncHandler.Handler,
	healthHandler *healthHandler.Handler,
	logger logging.Logger,
	ratelimiter ratelimiter.Limiter,
	registry *prometheus.Registry,
) *Application {
	return &Application{
		config:        config,
		core:          core,
		chatsHandler:  chatsHandler,
		usersHandler:  usersHandler,
		syncHandler:   syncHandler,
		healthHandler: healthHandler,
		logger:        logger,
		ratelimiter:   ratelimiter,
		registry:      registry,
	}
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Use(app.rateLimiterMiddleware)
	r.Use(app.enableCors)

	// The socket endpoint stays outside the timeout group: connections
	// are long-lived and a request timeout would sever them.
	r.Get("/ws", app.syncHandler.ConnectHandler)

	r.Handle("/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Route("/api", func(r chi.Router) {
			r.Route("/chats", func(r chi.Router) {
				r.Post("/", app.chatsHandler.CreateChatHandler)
				r.Get("/", app.chatsHandler.ListChatsHandler)
				r.Get("/{chatId}", app.chatsHandler.GetChatHandler)

				r.Post("/{chatId}/messages", app.chatsHandler.CreateMessageHandler)
				r.Get("/{chatId}/messages", app.chatsHandler.GetMessagesHandler)
				r.Delete("/{chatId}/messages/{messageId}", app.chatsHandler.DeleteMessageHandler)
			})

			r.Route("/users", func(r chi.Router) {
				r.Put("/", app.usersHandler.UpsertUserHandler)
				r.Get("/", app.usersHandler.ListUsersHandler)
				r.Get("/{userId}", app.usersHandler.GetUserHandler)
			})

			r.Get("/health", app.healthHandler.GetHealth)
			r.Get("/healthz", app.healthHandler.GetHealth)
			r.Get("/ready", app.healthHandler.GetHealth)
			r.Get("/live", app.healthHandler.GetHealth)
		})
	})

	return otelhttp.NewHandler(r, "parley.http")
}

func (app *Application) Run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", app.config.HTTP.Host, app.config.HTTP.Port),
		Handler:      mux,
		WriteTimeout: time.Second * 30,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Info(logging.General, logging.Shutdown, "signal caught", map[logging.ExtraKey]any{
			"Signal": s.String(),
		})

		app.core.Shutdown()

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Info(logging.General, logging.Startup, "server has started", map[logging.ExtraKey]any{
		"Addr": srv.Addr,
	})

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Info(logging.General, logging.Shutdown, "server has stopped", map[logging.ExtraKey]any{
		"Addr": srv.Addr,
	})

	return nil
}
