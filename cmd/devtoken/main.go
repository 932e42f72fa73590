// Command devtoken registers a task owner in PostgreSQL (if not yet present)
// and prints a bearer token for it, signed with the server's JWT settings.
//
//	TASKD_DATABASE_URL=... TASKD_AUTH_JWT_SECRET=... go run ./cmd/devtoken -email me@example.com
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/phrazzld/taskd/internal/config"
	"github.com/phrazzld/taskd/internal/platform/logger"
	"github.com/phrazzld/taskd/internal/platform/postgres"
	"github.com/phrazzld/taskd/internal/service/auth"
	"github.com/phrazzld/taskd/internal/store"
)

func main() {
	email := flag.String("email", "", "email of the task owner")
	header := flag.Bool("header", false, "print a complete Authorization header value")
	flag.Parse()

	if *email == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*email, *header); err != nil {
		fmt.Fprintf(os.Stderr, "devtoken: %v\n", err)
		os.Exit(1)
	}
}

func run(email string, header bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Database.Driver != config.BackendPostgres {
		return fmt.Errorf("database driver %q keeps no users between runs; the server logs a development token instead", cfg.Database.Driver)
	}

	log, err := logger.Setup(logger.LoggerConfig{Level: "warn", Output: os.Stderr})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, db, log); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
	}

	user, err := store.EnsureUser(ctx, postgres.NewPostgresUserStore(db, log), email)
	if err != nil {
		return fmt.Errorf("failed to register user: %w", err)
	}

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return err
	}
	token, err := jwtService.GenerateToken(ctx, user.ID)
	if err != nil {
		return err
	}

	log.Debug("token issued", slog.String("user_id", user.ID.String()))
	if header {
		token = "Bearer " + token
	}
	fmt.Println(token)
	return nil
}
