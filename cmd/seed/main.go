// Command seed prepares a fresh store: it inserts the closed role set
// and a bootstrap ADMIN user so the service is usable immediately after
// migration.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/peopleops/hrms-backend/internal/auth/repository"
	"github.com/peopleops/hrms-backend/pkg/apperr"
	"github.com/peopleops/hrms-backend/pkg/config"
	"github.com/peopleops/hrms-backend/pkg/database"
	"github.com/peopleops/hrms-backend/pkg/logger"
)

func main() {
	username := flag.String("username", envOr("HRMS_SEED_USERNAME", "admin"), "bootstrap admin username")
	email := flag.String("email", envOr("HRMS_SEED_EMAIL", "admin@example.com"), "bootstrap admin email")
	password := flag.String("password", envOr("HRMS_SEED_PASSWORD", "admin123"), "bootstrap admin password")
	flag.Parse()

	cfg, err := config.Load("hrms-backend")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("hrms-seed", cfg.Server.Environment)

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, role := range repository.AllRoles {
		_, err := db.ExecContext(ctx,
			`INSERT INTO roles (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, role)
		if err != nil {
			log.Fatal().Err(err).Str("role", role).Msg("failed to seed role")
		}
	}
	log.Info().Int("count", len(repository.AllRoles)).Msg("roles seeded")

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), 12)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to hash password")
	}

	repo := repository.NewUserRepository(db)
	admin := &repository.User{
		Username:     *username,
		Email:        *email,
		PasswordHash: string(hash),
		Enabled:      true,
	}
	if err := repo.Create(ctx, admin, []string{repository.RoleAdmin}); err != nil {
		if apperr.Is(err, apperr.ErrConflict) {
			log.Info().Str("username", *username).Msg("admin user already present")
			return
		}
		log.Fatal().Err(err).Msg("failed to create admin user")
	}

	log.Info().Str("username", *username).Msg("bootstrap admin created")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
