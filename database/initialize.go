package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"ads-manager/config"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/umakantv/go-utils/db"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// InitializeDatabase migrates the configured database and returns a connection
func InitializeDatabase(cfg config.DatabaseConfig) *sqlx.DB {
	if err := Migrate(cfg.Path); err != nil {
		logger.Error("Error while running migration", zap.Error(err))
		os.Exit(1)
	}

	dbConn := db.GetDBConnection(db.DatabaseConfig{
		DRIVER: cfg.Driver,
		DB:     cfg.Path,
	})

	logger.Info("Database initialized successfully", zap.String("path", cfg.Path))
	return dbConn
}

// Open migrates the SQLite file at path and connects to it.
// Used by tools and tests that run without the shared connection helper.
func Open(path string) (*sqlx.DB, error) {
	if err := Migrate(path); err != nil {
		return nil, err
	}
	conn, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", path, err)
	}
	return conn, nil
}

// Migrate applies the embedded migrations to the SQLite file at path
func Migrate(path string) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, "sqlite3://"+path)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Debug("Migrations applied", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

var migrationName = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// CreateMigration writes an empty up/down pair named <unix-ts>_<name> into dir
func CreateMigration(name, dir string) ([]string, error) {
	if !migrationName.MatchString(name) {
		return nil, fmt.Errorf("migration name %q must be alphanumeric or underscore", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	version := time.Now().Unix()
	var created []string
	for _, direction := range []string{"up", "down"} {
		file := filepath.Join(dir, fmt.Sprintf("%d_%s.%s.sql", version, name, direction))
		f, err := os.OpenFile(file, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			return created, err
		}
		f.Close()
		created = append(created, file)
	}
	return created, nil
}

// SeedUser inserts a user with a bcrypt hash of password.
// cost 0 selects bcrypt.DefaultCost.
func SeedUser(ctx context.Context, conn *sqlx.DB, login, password, fullName string, cost int) (int, error) {
	if login == "" || password == "" {
		return 0, errors.New("login and password are required")
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	result, err := conn.ExecContext(ctx,
		"INSERT INTO user (user_login, user_password, full_name, created_at) VALUES (?, ?, ?, ?)",
		login, string(hash), fullName, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("insert user %s: %w", login, err)
	}
	id, _ := result.LastInsertId()
	return int(id), nil
}
