package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"anoa.com/storerating/internal/bootstrap"
	"anoa.com/storerating/internal/config"
	userRepo "anoa.com/storerating/internal/modules/user/repository"
	"anoa.com/storerating/internal/server"
	"anoa.com/storerating/pkg/cache"
	"anoa.com/storerating/pkg/database"
	"anoa.com/storerating/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("development", "info").WithError(err).Fatal("invalid configuration")
	}
	log := logger.Init(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, closeDB, err := database.Connect(cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("database unavailable")
	}
	defer func() {
		if err := closeDB(); err != nil {
			log.WithError(err).Warn("failed to close database")
		}
	}()

	if err := bootstrap.Migrate(db); err != nil {
		log.WithError(err).Fatal("migration failed")
	}
	if err := bootstrap.SeedAdminUser(ctx, userRepo.NewUserRepository(db), bootstrap.AdminSeed{
		Email:    cfg.SeedAdminEmail,
		Password: cfg.SeedAdminPassword,
	}, log); err != nil {
		log.WithError(err).Fatal("failed to seed admin user")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.WithError(err).Warn("redis unavailable, running without cache, live feed and shared rate limits")
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	srv, err := server.NewServer(cfg, db, redisClient, log)
	if err != nil {
		log.WithError(err).Fatal("failed to build server")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Fatal("server exited with error")
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}
