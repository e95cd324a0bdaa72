// Command server is the engine's HTTP entrypoint, grounded on the
// teacher's cmd/api/main.go: load settings, wire the composition root,
// start the HTTP server and the background maintenance loop, then wait
// for an interrupt and shut both down gracefully.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"relevance-engine/infrastructure/di"
	"relevance-engine/interfaces/http/rest"
	"relevance-engine/interfaces/toolcontract"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	environment := getenv("ENVIRONMENT", "development")
	addr := getenv("SERVER_ADDRESS", ":8080")

	settings := di.DefaultSettings()
	if v := os.Getenv("AWS_REGION"); v != "" {
		settings.AWSRegion = v
	}
	if v := os.Getenv("DYNAMODB_TABLE"); v != "" {
		settings.DynamoDBTable = v
	}
	if v := os.Getenv("EVENT_BUS_NAME"); v != "" {
		settings.EventBusName = v
	}
	if v := os.Getenv("COLD_STORAGE_BUCKET"); v != "" {
		settings.ColdStorageBucket = v
	}
	if v := os.Getenv("VECTOR_INDEX_PATH"); v != "" {
		settings.VectorIndexPath = v
	}
	if v := os.Getenv("VECTOR_DIMENSION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.VectorDimension = n
		}
	}
	if v := os.Getenv("LANGUAGE_BACKEND_URL"); v != "" {
		settings.LanguageBackendURL = v
	}

	container, err := di.New(ctx, environment, settings)
	if err != nil {
		log.Fatalf("failed to initialize container: %v", err)
	}
	defer func() {
		if err := container.Close(); err != nil {
			container.Logger.Warn("error closing container resources", zap.Error(err))
		}
	}()

	stopMaintenance := startMaintenanceLoop(ctx, container)
	defer stopMaintenance()

	adapter := toolcontract.New(container)
	router := rest.NewRouter(adapter, container.Logger)

	srv := &http.Server{
		Addr:         addr,
		Handler:      router.Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		container.Logger.Info("starting server", zap.String("address", addr), zap.String("environment", environment))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			container.Logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	container.Logger.Info("shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		container.Logger.Error("server shutdown error", zap.Error(err))
	}
	cancel()

	if err := container.Logger.Sync(); err != nil {
		log.Printf("failed to sync logger: %v", err)
	}
	log.Println("server stopped")
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
