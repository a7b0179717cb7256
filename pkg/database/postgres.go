package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"goodies-platform/config"
	"goodies-platform/pkg/logger"
)

// Connect opens a pgx-backed *sql.DB and verifies it with a ping.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Connection pool settings
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.GetGlobalLogger().Infof("Database connection established (%s:%s/%s)", cfg.Host, cfg.Port, cfg.Name)
	return db, nil
}

// HealthCheck runs a trivial query within a short deadline.
func HealthCheck(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	var one int
	if err := db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	return nil
}

// ApplyRawMigrations executes every *.up.sql file in migrationsDir in
// lexical order. Each file must be idempotent.
func ApplyRawMigrations(ctx context.Context, db *sql.DB, migrationsDir string) ([]string, error) {
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var names []string
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".up.sql") {
			continue
		}
		names = append(names, file.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := os.ReadFile(filepath.Join(migrationsDir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", name, err)
		}
		logger.GetGlobalLogger().Infof("Applying migration: %s", name)
		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return nil, fmt.Errorf("failed to execute migration %s: %w", name, err)
		}
	}
	return names, nil
}
