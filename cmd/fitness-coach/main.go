package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fitness-coach/internal/app"
	"fitness-coach/internal/auth"
	"fitness-coach/internal/config"
	"fitness-coach/internal/database"
	"fitness-coach/internal/decide"
	"fitness-coach/internal/httpapi"
	"fitness-coach/internal/library"
	"fitness-coach/internal/llm"
	"fitness-coach/internal/metrics"
	"fitness-coach/internal/migration"
	"fitness-coach/internal/observe"
	"fitness-coach/internal/plan"
	"fitness-coach/internal/scan"
	"fitness-coach/internal/storage"
)

func main() {
	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	geminiClient, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		log.Fatalf("Failed to create Gemini client: %v", err)
	}
	defer geminiClient.Close()

	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	store, err := storage.NewObjectStore(cfg.MediaStoragePath)
	if err != nil {
		log.Fatalf("Failed to initialize media storage: %v", err)
	}

	scanRepo := scan.NewRepository(db.SQL)
	decisionRepo := decide.NewRepository(db.SQL)
	planRepo := plan.NewRepository(db.SQL)
	libraryRepo := library.NewRepository(db.SQL)

	if err := libraryRepo.SeedIfEmpty(ctx); err != nil {
		log.Fatalf("Failed to seed workout library: %v", err)
	}

	metricsStore := metrics.NewStore(db.SQL)
	gateway := observe.NewGateway(scanRepo, store, geminiClient, geminiClient, metricsStore)
	agent := plan.NewLLMAgent(geminiClient)
	engine := plan.NewEngine(planRepo, libraryRepo, agent, cfg.RestDays)
	coordinator := migration.NewCoordinator(db.SQL)

	application := app.NewApp(cfg, store, scanRepo, decisionRepo, planRepo,
		gateway, engine, coordinator, geminiClient, metricsStore)

	verifier := auth.NewVerifier(cfg.JWTSecret)
	handler := httpapi.NewServer(application, verifier, store)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: handler,
	}

	go func() {
		log.Printf("Fitness coach server listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}
