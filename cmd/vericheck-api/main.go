package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dimitrije/vericheck-api/internal/config"
	"github.com/dimitrije/vericheck-api/internal/database"
	"github.com/dimitrije/vericheck-api/internal/events"
	"github.com/dimitrije/vericheck-api/internal/handlers"
	"github.com/dimitrije/vericheck-api/internal/metrics"
	authmw "github.com/dimitrije/vericheck-api/internal/middleware"
	"github.com/dimitrije/vericheck-api/internal/oauth"
	"github.com/dimitrije/vericheck-api/internal/services"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/m1z23r/drift/pkg/middleware"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	recorder := metrics.Init(cfg.MetricsEnabled)
	publisher := newPublisher(cfg.AMQP)
	defer publisher.Close()
	rdb := newRedis(ctx, cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	}

	jwtService := services.NewJWTService(cfg.JWTSecret, cfg.JWTExpiry)
	userService := services.NewUserService(db)
	emailService := services.NewEmailService(cfg.SMTP)
	authService := services.NewAuthService(
		userService,
		services.NewPasswordHasher(cfg.BcryptCost),
		jwtService,
		publisher,
		recorder,
		emailService,
	)
	defer authService.Close()

	var google oauth.Provider
	if cfg.Google.ClientID != "" {
		google = oauth.NewGoogleProvider(cfg.Google)
	}
	states := oauth.NewStateStore(10 * time.Minute)
	go states.Cleanup(ctx, time.Minute)

	app := drift.New()

	if cfg.IsProduction() {
		app.SetMode(drift.ReleaseMode)
	} else {
		app.SetMode(drift.DebugMode)
	}

	app.Use(middleware.Recovery())
	app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       86400,
	}))
	app.Use(middleware.BodyParser())
	if cfg.MetricsEnabled {
		app.Use(metrics.HTTPMetricsMiddleware(recorder))
		app.Get("/metrics", metrics.Handler())
	}

	handlers.Routes{
		Auth:         handlers.NewAuthHandler(authService, google, states),
		User:         handlers.NewUserHandler(authService),
		Admin:        handlers.NewAdminHandler(authService),
		Authenticate: authmw.Auth(jwtService, userService, recorder),
		RateLimit:    authmw.RateLimit(cfg.RateLimit, rdb),
	}.Mount(app.Group("/api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           app,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown failed: %v", err)
		os.Exit(1)
	}
}

func newPublisher(cfg config.AMQPConfig) events.Publisher {
	if cfg.URL == "" {
		return events.NoopPublisher{}
	}
	p, err := events.NewAMQPPublisher(cfg.URL, cfg.Exchange)
	if err != nil {
		log.Printf("AMQP unavailable, user events disabled: %v", err)
		return events.NoopPublisher{}
	}
	return p
}

// newRedis returns nil when Redis is not configured or unreachable, which turns rate limiting off.
func newRedis(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Printf("Redis unavailable, rate limiting disabled: %v", err)
		_ = rdb.Close()
		return nil
	}
	return rdb
}
