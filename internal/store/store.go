// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

// Package store implements PostgreSQL persistence for accounts, notes and
// the shared platform credential using GORM.
package store

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tomtom215/notetrace/internal/config"
	"github.com/tomtom215/notetrace/internal/logging"
	"github.com/tomtom215/notetrace/internal/models"
)

// Store wraps the GORM connection and exposes the persistence operations
// used by the sync orchestrator and the API layer.
type Store struct {
	db *gorm.DB
}

// New opens a PostgreSQL connection, configures the pool, and optionally
// runs schema migration.
func New(cfg config.DatabaseConfig) (*Store, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		// GORM's own logger is silenced; queries worth logging are logged
		// by callers through the logging package.
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		// Translate driver errors so duplicate keys surface as
		// gorm.ErrDuplicatedKey.
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	s := &Store{db: db}

	if cfg.AutoMigrate {
		if err := s.Migrate(); err != nil {
			return nil, err
		}
	}

	logging.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Name).
		Msg("Connected to PostgreSQL")

	return s, nil
}

// NewWithDB wraps an existing GORM connection. Used by tests.
func NewWithDB(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the schema for all models.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(
		&models.Account{},
		&models.Note{},
		&models.Credential{},
	); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}
	return nil
}

// Ping verifies the database connection is alive.
func (s *Store) Ping() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// nowPtr returns a pointer to the current time, for nullable timestamp columns.
func nowPtr() *time.Time {
	t := time.Now()
	return &t
}
