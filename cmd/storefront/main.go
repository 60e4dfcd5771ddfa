package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/trinislearning/hit339/internal/admin"
	"github.com/trinislearning/hit339/internal/cart"
	"github.com/trinislearning/hit339/internal/catalog"
	"github.com/trinislearning/hit339/internal/checkout"
	"github.com/trinislearning/hit339/internal/config"
	"github.com/trinislearning/hit339/internal/events"
	h "github.com/trinislearning/hit339/internal/http"
	"github.com/trinislearning/hit339/internal/identity"
	"github.com/trinislearning/hit339/internal/logger"
	"github.com/trinislearning/hit339/internal/repository"
	"github.com/trinislearning/hit339/internal/session"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	log := logger.New(cfg.LogLevel)
	log.WithFields(logrus.Fields{
		"env":    cfg.Env,
		"driver": cfg.Database.Driver,
		"broker": cfg.Events.Broker,
	}).Info("storefront starting...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database setup
	repo, err := openRepository(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(cfg.Database.MigrationsPath); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Info("Database migrations completed")

	// Session store
	var sessions session.Store
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("Redis connection failed: %v", err)
		}
		sessions = session.NewRedisStore(redisClient, cfg.Session.IdleTimeout)
		log.WithField("addr", cfg.Redis.Addr).Info("Using Redis session store")
	} else {
		sessions = session.NewMemoryStore(cfg.Session.IdleTimeout)
		log.Info("Using in-memory session store")
	}

	// Services
	users := identity.NewService(
		repo,
		identity.NewBcryptHasher(0),
		identity.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		log,
	)
	if err := users.Seed(ctx, repo, identity.SeedConfig{
		OwnerEmail:    cfg.Auth.OwnerEmail,
		OwnerPassword: cfg.Auth.OwnerPassword,
		ProductsFile:  cfg.SeedProductsFile,
	}); err != nil {
		log.Fatalf("Failed to seed data: %v", err)
	}

	carts := cart.NewService(sessions, repo, log)
	checkoutService := checkout.NewService(carts, repo, repo, log)
	adminService := admin.NewService(repo, admin.NewDiskImageStore(cfg.UploadsDir), cfg.MaxUploadBytes, log)

	// Order events
	publisher, err := events.NewPublisher(cfg.Events.Broker, events.Options{
		KafkaBrokers: cfg.Events.KafkaBrokers,
		KafkaTopic:   cfg.Events.KafkaTopic,
		RabbitURL:    cfg.Events.RabbitMQURL,
		RabbitQueue:  cfg.Events.RabbitQueue,
	}, log)
	if err != nil {
		log.Fatalf("Failed to create event publisher: %v", err)
	}
	defer publisher.Close()

	poller := events.NewOutboxPoller(repo, publisher, cfg.Events.PollInterval, log)
	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		poller.Run(ctx)
	}()

	router := h.NewRouter(h.Deps{
		Catalog:           catalog.NewService(repo),
		Carts:             carts,
		Checkout:          checkoutService,
		Orders:            repo,
		Admin:             adminService,
		Identity:          users,
		Health:            repo,
		Log:               log,
		RequestTimeout:    cfg.RequestTimeout,
		UploadsDir:        cfg.UploadsDir,
		MaxUploadBytes:    cfg.MaxUploadBytes,
		SessionCookieName: cfg.Session.CookieName,
		SecureCookies:     cfg.Env != config.EnvDev,
		LoginRatePerMin:   cfg.Auth.LoginRatePerMin,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("Storefront listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("server forced to shutdown: %v", err)
	}
	<-pollerDone

	log.Info("server exited")
}

func openRepository(cfg *config.Config) (*repository.Repository, error) {
	if !cfg.UsesPostgres() {
		return repository.NewRepository(cfg.Database.Path)
	}
	return repository.NewPostgresRepository(&repository.Credentials{
		Host:              cfg.Database.Host,
		Port:              cfg.Database.Port,
		User:              cfg.Database.User,
		Password:          cfg.Database.Password,
		DBName:            cfg.Database.Name,
		MigrationsDirPath: cfg.Database.MigrationsPath,
	})
}
