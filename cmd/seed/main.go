// Command seed bootstraps the first admin account so a fresh deployment can
// log in. Registration goes through the same stored procedure the API uses.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"insurance-management/backend/internal/config"
	"insurance-management/backend/internal/db"
	"insurance-management/backend/internal/procedure"
	"insurance-management/backend/internal/security"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	email := flag.String("email", "admin@baohiem.local", "admin account email")
	password := flag.String("password", "", "admin account password (required)")
	name := flag.String("name", "Quan tri vien", "admin full name")
	flag.Parse()

	if *password == "" {
		log.Fatal().Msg("-password is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	hasher := security.NewHasher(bcrypt.DefaultCost)
	hash, err := hasher.Hash([]byte(*password))
	if err != nil {
		log.Fatal().Err(err).Msg("hash password")
	}

	procs := procedure.NewClient(procedure.NewSQLCaller(pool))
	res, err := procs.RegisterUser(ctx, *email, hash, *name, "", "")
	if err != nil {
		log.Fatal().Err(err).Msg("register admin")
	}
	if !res.Success {
		log.Fatal().Str("message", res.Message).Msg("admin registration rejected")
	}
	log.Info().Int64("user_id", res.UserID).Str("email", *email).Msg("admin account created")
}
