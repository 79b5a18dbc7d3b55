package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	"gorm.io/gorm"

	"github.com/Skotchmaster/blog_guard/internal/repo/migrations"
)

// runGoose is a seam so tests can stub the Postgres migration run.
var runGoose = func(ctx context.Context, sqlDB *sql.DB) error {
	p, err := goose.NewProvider(goose.DialectPostgres, sqlDB, migrations.FS)
	if err != nil {
		return err
	}
	_, err = p.Up(ctx)
	return err
}

// Migrate brings the users table up to date: goose with the embedded SQL on
// Postgres, gorm AutoMigrate everywhere else (sqlite in tests).
func Migrate(ctx context.Context, db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		if err := db.WithContext(ctx).AutoMigrate(&accountRecord{}); err != nil {
			return fmt.Errorf("automigrate users: %w", err)
		}
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	if err := runGoose(ctx, sqlDB); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}
