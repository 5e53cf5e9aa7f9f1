package database

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/birthday-greetings-api/pkg/database/migrations"
)

// Migrate applies every pending embedded goose migration.
func Migrate(ctx context.Context, db *sqlx.DB, logger *zap.Logger) error {
	provider, err := newMigrationProvider(db, migrations.FS)
	if err != nil {
		return err
	}
	return migrate(ctx, provider, logger)
}

func newMigrationProvider(db *sqlx.DB, source fs.FS) (*goose.Provider, error) {
	provider, err := goose.NewProvider(goose.DialectPostgres, db.DB, source)
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	return provider, nil
}

func migrate(ctx context.Context, provider *goose.Provider, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, result := range results {
		logger.Info("migration applied",
			zap.Int64("version", result.Source.Version),
			zap.String("path", result.Source.Path),
			zap.Duration("duration", result.Duration),
		)
	}
	return nil
}
