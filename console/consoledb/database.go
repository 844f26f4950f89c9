// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

// Package consoledb implements the control-plane and analytics repositories
// on Postgres.
package consoledb

import (
	"context"
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx database/sql driver
	"github.com/jmoiron/sqlx"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/podiumhq/podium/accounting"
	"github.com/podiumhq/podium/console"
)

var (
	mon = monkit.Package()

	// Error is the default consoledb errs class.
	Error = errs.Class("consoledb")
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB combines access to the control-plane and analytics tables.
type DB struct {
	log *zap.Logger
	db  *sqlx.DB
}

// ensures DB implements the domain database interfaces.
var _ console.DB = (*DB)(nil)

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, log *zap.Logger, url string) (*DB, error) {
	db, err := sqlx.Open("pgx", url)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, Error.Wrap(err)
	}
	return &DB{log: log, db: db}, nil
}

// MigrateUp applies all embedded migrations.
func (db *DB) MigrateUp() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return Error.Wrap(err)
	}
	driver, err := migratepg.WithInstance(db.db.DB, &migratepg.Config{})
	if err != nil {
		return Error.Wrap(err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "pgx", driver)
	if err != nil {
		return Error.Wrap(err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return Error.Wrap(err)
	}
	return nil
}

// Ping verifies the database connection, used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error { return Error.Wrap(db.db.PingContext(ctx)) }

// Tenants is a getter for Tenants repository.
func (db *DB) Tenants() console.Tenants { return &tenants{db: db.db} }

// Projects is a getter for Projects repository.
func (db *DB) Projects() console.Projects { return &projects{db: db.db} }

// APIKeys is a getter for APIKeys repository.
func (db *DB) APIKeys() console.APIKeys { return &apikeys{db: db.db} }

// Subscriptions is a getter for Subscriptions repository.
func (db *DB) Subscriptions() console.Subscriptions { return &subscriptions{db: db.db} }

// Leaderboards is a getter for Leaderboards repository.
func (db *DB) Leaderboards() console.Leaderboards { return &leaderboards{db: db.db} }

// Seasons is a getter for Seasons repository.
func (db *DB) Seasons() console.Seasons { return &seasons{db: db.db} }

// Usage is a getter for the usage aggregation repository.
func (db *DB) Usage() accounting.DB { return &usage{db: db.db} }

// ScoreEvents is a getter for the score event log.
func (db *DB) ScoreEvents() accounting.ScoreEvents { return &scoreevents{db: db.db} }

// Close is used to close db connection.
func (db *DB) Close() error { return Error.Wrap(db.db.Close()) }
