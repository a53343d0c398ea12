package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"

	creationdomain "github.com/mirage-studio/mirage/internal/creation/domain"
	creditdomain "github.com/mirage-studio/mirage/internal/credit/domain"
	favoritedomain "github.com/mirage-studio/mirage/internal/favorite/domain"
	paymentdomain "github.com/mirage-studio/mirage/internal/payment/domain"
	referraldomain "github.com/mirage-studio/mirage/internal/referral/domain"
	votedomain "github.com/mirage-studio/mirage/internal/vote/domain"
)

//go:embed sql/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "sql"

// RunPostgres applies the versioned SQL migrations. All tables are created
// automatically on startup so a fresh deployment is usable out of the box.
func RunPostgres(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// AutoMigrate covers the non-postgres dialects (sqlite for local runs and
// tests, mysql) where the versioned SQL does not apply.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&creditdomain.User{},
		&creditdomain.Transaction{},
		&creationdomain.Creation{},
		&votedomain.Vote{},
		&favoritedomain.Favorite{},
		&paymentdomain.Order{},
		&referraldomain.Referral{},
	)
}
