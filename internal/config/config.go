package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the configuration for the application.
type Config struct {
	GeminiAPIKey string
	JWTSecret    string

	DatabasePath     string
	MediaStoragePath string
	ListenAddr       string
	SessionTTLDays   int
	RestDays         []int // 1-based day indices that are rest days in every generated week
}

// NewFromEnv creates a new Config object from environment variables.
func NewFromEnv() (*Config, error) {
	geminiAPIKey := os.Getenv("GEMINI_API_KEY")
	if geminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable not set")
	}

	databasePath := os.Getenv("DATABASE_PATH")
	if databasePath == "" {
		databasePath = "data/fitness-coach.db"
	}

	mediaPath := os.Getenv("MEDIA_STORAGE_PATH")
	if mediaPath == "" {
		mediaPath = "data/media"
	}

	listenAddr := os.Getenv("LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = ":8080"
	}

	sessionTTLDays := 7
	if v := os.Getenv("SESSION_TTL_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_TTL_DAYS %q: %w", v, err)
		}
		sessionTTLDays = n
	}

	// Weekly template: which day indices are rest days. Defaults to Thursday
	// and Sunday.
	restDays := []int{4, 7}
	if v := os.Getenv("PLAN_REST_DAYS"); v != "" {
		parsed, err := parseRestDays(v)
		if err != nil {
			return nil, err
		}
		restDays = parsed
	}

	return &Config{
		GeminiAPIKey:     geminiAPIKey,
		JWTSecret:        jwtSecret,
		DatabasePath:     databasePath,
		MediaStoragePath: mediaPath,
		ListenAddr:       listenAddr,
		SessionTTLDays:   sessionTTLDays,
		RestDays:         restDays,
	}, nil
}

func parseRestDays(v string) ([]int, error) {
	var days []int
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 || n > 7 {
			return nil, fmt.Errorf("invalid PLAN_REST_DAYS entry %q", part)
		}
		days = append(days, n)
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("PLAN_REST_DAYS set but contains no valid days")
	}
	return days, nil
}
