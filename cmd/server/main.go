package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"quiz-practice/internal/achievement"
	"quiz-practice/internal/auth"
	"quiz-practice/internal/config"
	"quiz-practice/internal/content"
	"quiz-practice/internal/httpx"
	"quiz-practice/internal/metrics"
	"quiz-practice/internal/observability"
	"quiz-practice/internal/oracle"
	"quiz-practice/internal/question"
	"quiz-practice/internal/scheduler"
	"quiz-practice/internal/session"
	"quiz-practice/internal/tutor"
	"quiz-practice/pkg/cache"
	"quiz-practice/pkg/database"
	"quiz-practice/pkg/events"
	"quiz-practice/pkg/logger"
	"quiz-practice/pkg/websocket"
)

func main() {
	cfg, envLoaded, err := config.Load()
	if err != nil {
		mustLogger(logger.New, "development").Fatal("invalid configuration", "error", err)
	}

	log := mustLogger(logger.New, cfg.AppEnv)
	defer log.Sync()
	if !envLoaded {
		log.Warn(".env file not found, using process environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", "error", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("failed to migrate database", "error", err)
	}

	// Initialize Redis cache
	redisCache := cache.NewRedisCache(cfg.RedisAddr)
	defer redisCache.Close()
	if err := redisCache.Ping(ctx); err != nil {
		log.Warn("redis not reachable, leaderboard and scheduler lock will fail until it is", "addr", cfg.RedisAddr, "error", err)
	}

	// Question generator
	completer, err := oracle.New(oracle.Config{
		APIKey:      cfg.LLMAPIKey,
		BaseURL:     cfg.LLMBaseURL,
		Model:       cfg.LLMModel,
		MaxAttempts: cfg.LLMMaxAttempts,
	}, log)
	if err != nil {
		log.Fatal("failed to build question generator client", "error", err)
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(auth.UserIDFromRequest, log)
	go wsHub.Run(ctx)

	sessionListeners := []session.Listener{redisCache, wsHub, observability.SessionListener{}}
	deliveryNotifiers := []scheduler.Notifier{wsHub}
	if cfg.AMQPURL != "" {
		publisher, err := events.NewEventPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Warn("event publishing disabled", "error", err)
		} else {
			defer publisher.Close()
			sessionListeners = append(sessionListeners, publisher)
			deliveryNotifiers = append(deliveryNotifiers, publisher)
		}
	}

	// Initialize repositories and services
	contentService := content.NewService(content.NewRepository(db), completer, question.NewValidator(), content.Options{
		GateOnValidation: cfg.GateOnValidation,
		MaxAttempts:      cfg.GenerationMaxAttempts,
	}, log)
	metricsRepo := metrics.NewRepository(db)
	achievementEngine := achievement.NewEngine(db, metricsRepo)
	metricsService := metrics.NewService(metricsRepo, achievementEngine)
	tutorService := tutor.NewService(tutor.NewRepository(db), metricsRepo, completer, log)
	sessionService := session.NewService(db, session.NewRepository(db), contentService,
		metrics.NewAggregator(metricsRepo), achievementEngine, log, sessionListeners...)

	if cfg.SchedulerEnabled {
		sched := scheduler.New(cfg.SchedulerSpec, contentService, scheduler.RedisLock(redisCache), log, deliveryNotifiers...)
		if err := sched.Start(ctx); err != nil {
			log.Fatal("failed to start scheduler", "spec", cfg.SchedulerSpec, "error", err)
		}
		defer sched.Stop()
	}

	// Setup router
	router := mux.NewRouter()
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(auth.JWTMiddleware(cfg.JWTSecret))
	content.NewHandler(contentService, log).RegisterRoutes(apiRouter)
	session.NewHandler(sessionService, log).RegisterRoutes(apiRouter)
	metrics.NewHandler(metricsService, log).RegisterRoutes(apiRouter)
	metrics.NewLeaderboardHandler(redisCache, log).RegisterRoutes(apiRouter)
	tutor.NewHandler(tutorService, log).RegisterRoutes(apiRouter)

	// WebSocket endpoint; browsers pass the token as a query parameter
	router.Handle("/ws", auth.JWTMiddleware(cfg.JWTSecret)(http.HandlerFunc(wsHub.HandleWebSocket)))

	// CORS middleware configuration
	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     corsMiddleware.Handler(router),
		ReadTimeout: 15 * time.Second,
		// Backfilling a session can take several generator round trips.
		WriteTimeout: 2 * time.Minute,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start server", "error", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	log.Info("server shutdown gracefully")
}

// mustLogger panics when no logger can be built; nothing else can report it.
func mustLogger(build func(mode string) (*logger.Logger, error), mode string) *logger.Logger {
	log, err := build(mode)
	if err != nil {
		panic(fmt.Sprintf("init logger: %v", err))
	}
	return log
}
