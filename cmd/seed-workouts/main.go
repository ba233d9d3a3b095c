package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"fitness-coach/internal/config"
	"fitness-coach/internal/database"
	"fitness-coach/internal/library"
	"fitness-coach/internal/llm"
	"fitness-coach/internal/metrics"
)

func main() {
	ctx := context.Background()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	libraryRepo := library.NewRepository(db.SQL)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "seed":
		if err := libraryRepo.SeedIfEmpty(ctx); err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
		count, err := libraryRepo.Count(ctx)
		if err != nil {
			log.Fatalf("Failed to count workouts: %v", err)
		}
		fmt.Printf("Workout library holds %d workouts.\n", count)
	case "extract":
		extractCmd := flag.NewFlagSet("extract", flag.ExitOnError)
		url := extractCmd.String("url", "", "Workout page URL to extract")
		extractCmd.Parse(os.Args[2:])
		if *url == "" {
			log.Fatal("extract requires -url")
		}

		geminiClient, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			log.Fatalf("Failed to initialize Gemini client: %v", err)
		}
		defer geminiClient.Close()

		extractor := library.NewExtractor(geminiClient)
		workout, err := extractor.ExtractURL(ctx, *url)
		if err != nil {
			log.Fatalf("Extraction failed: %v", err)
		}
		if err := libraryRepo.Save(ctx, *workout); err != nil {
			log.Fatalf("Failed to save workout: %v", err)
		}
		fmt.Printf("Saved workout %s (%s, %d mins).\n", workout.ID, workout.Title, workout.DurationMins)
	case "metrics-cleanup":
		cleanupCmd := flag.NewFlagSet("metrics-cleanup", flag.ExitOnError)
		days := cleanupCmd.Int("days", 30, "Keep records for the last N days")
		cleanupCmd.Parse(os.Args[2:])

		affected, err := metrics.NewStore(db.SQL).Cleanup(*days)
		if err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
		fmt.Printf("Successfully removed %d old metric records.\n", affected)
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: seed-workouts <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  seed               Load the default workout library when empty")
	fmt.Println("  extract            Extract a workout from a web page with -url")
	fmt.Println("  metrics-cleanup    Remove old metric records")
}
