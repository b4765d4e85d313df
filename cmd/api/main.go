package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/doctrine-engine/internal/config"
	"github.com/jwebster45206/doctrine-engine/internal/handlers"
	"github.com/jwebster45206/doctrine-engine/internal/logger"
	"github.com/jwebster45206/doctrine-engine/internal/middleware"
	"github.com/jwebster45206/doctrine-engine/internal/services"
	"github.com/jwebster45206/doctrine-engine/internal/storage"
	"github.com/jwebster45206/doctrine-engine/pkg/engine"
	"github.com/jwebster45206/doctrine-engine/pkg/roll"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Doctrine Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"llm_provider", cfg.LLMProvider,
		"model_name", cfg.ModelName,
		"storage", cfg.Storage)

	initCtx, initCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer initCancel()

	backend, err := services.NewBackend(initCtx, cfg, log)
	if err != nil {
		log.Error("Failed to create LLM backend", "error", err)
		os.Exit(1)
	}
	// An unreachable model is not fatal; new sessions answer 503 until it is up.
	if err := backend.Ping(initCtx); err != nil {
		log.Warn("LLM backend not reachable yet", "backend", backend.Name(), "error", err)
	}
	gateway := services.NewGateway(cfg, backend, log)

	store, err := storage.New(cfg, log)
	if err != nil {
		log.Error("Failed to create session store", "error", err)
		os.Exit(1)
	}
	if rs, ok := store.(*storage.RedisStore); ok {
		if err := rs.WaitForConnection(initCtx, 10, 2*time.Second); err != nil {
			log.Error("Failed to connect to storage", "error", err)
			os.Exit(1)
		}
	}
	log.Info("Storage connection established successfully")

	eng := engine.New(gateway, roll.Default(), log)

	mux := http.NewServeMux()
	mux.Handle("/health", handlers.NewHealthHandler(store, backend, log))
	mux.Handle("/v1/models", handlers.NewModelsHandler(backend, log))

	sessionHandler := handlers.NewSessionHandler(eng, store, backend, cfg.PartyNames, log)
	mux.Handle("/v1/sessions", sessionHandler)
	mux.Handle("/v1/sessions/", sessionHandler)

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     middleware.CORS(middleware.Logger(log, mux)),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: a full combat run can take many LLM round trips.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}
