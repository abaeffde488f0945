package main

import (
	"flag"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/noah-isme/backend-b2b/internal/migrations"
	"github.com/noah-isme/backend-b2b/internal/obs"
)

func main() {
	_ = godotenv.Load()
	logger := obs.NewLogger(envOrDefault("OBS_LOG_FORMAT", "console"), "info").With().Str("component", "migrate").Logger()

	direction := flag.String("direction", "up", "up or down")
	steps := flag.Int("steps", 1, "steps to roll back when direction=down")
	flag.Parse()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		logger.Fatal().Msg("DATABASE_URL is required")
	}
	m, err := migrations.New(databaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("open migrator")
	}
	defer func() { _, _ = m.Close() }()

	switch *direction {
	case "up":
		err = migrations.Up(m)
	case "down":
		err = migrations.Down(m, *steps)
	default:
		logger.Fatal().Str("direction", *direction).Msg("unknown direction")
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}
	version, dirty, _ := m.Version()
	logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("schema migrated")
}

func envOrDefault(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}
