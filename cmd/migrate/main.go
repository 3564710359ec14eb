package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog"

	"insurance-management/backend/internal/config"
	"insurance-management/backend/internal/db"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	direction := flag.String("direction", "up", "migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if err := db.Migrate(cfg.DatabaseDSN, *direction); err != nil {
		log.Fatal().Err(err).Str("direction", *direction).Msg("migrate")
	}
	log.Info().Str("direction", *direction).Msg("migrations applied")
}
