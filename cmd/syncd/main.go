package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/salespulse/realtime/internal/config"
	"github.com/salespulse/realtime/internal/database"
	"github.com/salespulse/realtime/internal/repositories"
	"github.com/salespulse/realtime/internal/server"
	"github.com/salespulse/realtime/internal/services"
)

func main() {
	ctx := context.Background()

	godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := config.NewLogger(cfg.LogLevel)

	// Initialize database connections
	postgresPool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("Failed to create postgres pool")
	}
	defer postgresPool.Close()

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.WithError(err).Fatal("Failed to create redis client")
	}
	defer redisClient.Close()

	eventRepo := repositories.NewPostgresEventRepository(postgresPool)
	presenceRepo := repositories.NewRedisPresenceRepository(redisClient)
	tokens := services.NewTokenService(cfg.TokenSecret, cfg.APIKeyHash, cfg.TokenExpiry)

	hub := server.NewHub(log, eventRepo, presenceRepo)

	// Bridge events across syncd nodes
	fanoutCtx, cancelFanout := context.WithCancel(ctx)
	defer cancelFanout()
	fanout := server.NewRedisFanout(log, redisClient, hub)
	go func() {
		if err := fanout.Run(fanoutCtx); err != nil && fanoutCtx.Err() == nil {
			log.WithError(err).Error("fanout bridge stopped")
		}
	}()

	srv := server.NewServer(log, hub, tokens, eventRepo, presenceRepo)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: srv.Router(),
	}

	// graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.WithField("port", cfg.ServerPort).Info("Starting syncd")
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.WithError(err).Fatal("Server error")
	}

	log.Info("Server stopped gracefully")
}
