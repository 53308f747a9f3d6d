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

	"github.com/codyseavey/card-atlas/internal/api"
	"github.com/codyseavey/card-atlas/internal/services"
)

func main() {
	// Optional API key for the primary provider; absence means the provider's
	// unauthenticated rate limits apply, not an error.
	apiKey := os.Getenv("POKEMONTCG_API_KEY")
	if apiKey == "" {
		log.Println("POKEMONTCG_API_KEY not set, using unauthenticated rate limits")
	}

	catalogTTL := services.DefaultCatalogTTL
	if ttlStr := os.Getenv("CATALOG_TTL_MINUTES"); ttlStr != "" {
		if minutes, err := strconv.Atoi(ttlStr); err == nil && minutes > 0 {
			catalogTTL = time.Duration(minutes) * time.Minute
		}
	}

	primary := services.NewPokemonTCGService(apiKey)
	secondary := services.NewTCGdexService()
	cache := services.NewCatalogCache(catalogTTL)
	static := services.NewStaticDataset()

	catalogService := services.NewCatalogService(primary, secondary, cache, static)

	router := api.SetupRouter(catalogService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests a deadline to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
