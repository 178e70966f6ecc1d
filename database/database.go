// Package database provides SQLite persistence for carrier access-point
// records and SIM subscription metadata.
//
// The database holds three tables:
//   - carriers: bundled and user-provisioned APN rows
//   - carriers_dm: the device-management variant of carriers
//   - siminfo: one row per provisioned SIM subscription
//
// See schema.go for the table definitions.
//
// # Versioning
//
// The schema version lives in PRAGMA user_version and is the bitwise OR of
// SchemaRevision and the version attribute of the bundled APN asset. On open
// a fresh file is created at the target version; an older file runs the
// forward-only upgrade steps in migrations.go; a newer file is left alone.
// Missing tables are recreated on every open.
//
// # Usage Example
//
//	cfg := database.DefaultConfig()
//	cfg.AssetVersion = 8
//	db, err := database.New(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
//
//	if db.Created() {
//		// populate from bundled assets
//	}
//
// # Concurrency
//
// The database is configured for concurrent access:
//   - WAL mode allows concurrent reads while writes are in progress
//   - 5-second busy timeout for lock contention
//   - multi-statement mutations run inside RunInTx
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	_ "modernc.org/sqlite" // SQLite driver
)

// DB wraps the SQL database with carrier table helpers.
type DB struct {
	ops
	db      *sql.DB
	path    string
	cfg     Config
	logger  logrus.FieldLogger
	created bool
	stored  int
}

// Config holds database configuration.
type Config struct {
	// Path to the SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum lifetime of a connection
	ConnMaxLifetime time.Duration

	// AssetVersion is the version attribute of the bundled APN asset;
	// zero when the asset could not be read.
	AssetVersion int

	// OMACP adds the OMA-CP provisioning columns to carrier tables.
	OMACP bool

	// PaletteSize is the number of subscription display colors.
	PaletteSize int

	// Logger receives schema and write diagnostics.
	Logger logrus.FieldLogger
}

// DefaultConfig returns a default database configuration.
func DefaultConfig() Config {
	return Config{
		Path:            "/var/lib/carrierconf/telephony.db",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 1 * time.Hour,
		PaletteSize:     4,
	}
}

var pragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"busy_timeout(5000)",
	"foreign_keys(ON)",
	"temp_store(MEMORY)",
}

// dsn builds the connection string; pragmas ride in the DSN so every pooled
// connection gets them.
func dsn(path string) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return "file:" + path + "?" + q.Encode()
}

// New opens the database and brings its schema to SchemaVersion(cfg.AssetVersion).
func New(ctx context.Context, cfg Config) (*DB, error) {
	if cfg.PaletteSize <= 0 {
		cfg.PaletteSize = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	db, err := sql.Open("sqlite", dsn(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	logger := cfg.Logger.WithField("component", "database")
	d := &DB{
		ops:    ops{q: db, omacp: cfg.OMACP, logger: logger},
		db:     db,
		path:   cfg.Path,
		cfg:    cfg,
		logger: logger,
	}

	if err := d.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping verifies the database connection is alive.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// Created reports whether New created the schema from scratch. Bulk
// population from bundled assets only follows creation.
func (d *DB) Created() bool {
	return d.created
}

// StoredVersion returns the schema version found in the file before New ran.
func (d *DB) StoredVersion() int {
	return d.stored
}

// OMACP reports whether carrier tables carry the OMA-CP columns.
func (d *DB) OMACP() bool {
	return d.cfg.OMACP
}

// Version returns the schema version currently recorded in the file.
func (d *DB) Version(ctx context.Context) (int, error) {
	var v int
	if err := d.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

func (d *DB) setVersion(ctx context.Context, v int) error {
	// PRAGMA does not accept bound parameters.
	if _, err := d.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", v)); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}
	return nil
}

func (d *DB) initSchema(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, schemaMigrationsTable); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	stored, err := d.Version(ctx)
	if err != nil {
		return err
	}
	d.stored = stored
	target := SchemaVersion(d.cfg.AssetVersion)

	fields := logrus.Fields{
		"stored_version": fmt.Sprintf("%#x", stored),
		"target_version": fmt.Sprintf("%#x", target),
		"db_file":        d.path,
	}

	switch {
	case stored == 0:
		if err := d.createTables(ctx); err != nil {
			return err
		}
		d.created = true
		d.logger.WithFields(fields).Info("created carrier database")
	case stored < target:
		applied := d.upgrade(ctx, stored)
		d.logger.WithFields(fields).WithField("steps", applied).Info("upgraded carrier database")
	case stored > target:
		d.logger.WithFields(fields).Warn("stored schema is newer than this build; leaving it untouched")
		return d.ensureTables(ctx)
	default:
		return d.ensureTables(ctx)
	}

	if err := d.ensureTables(ctx); err != nil {
		return err
	}
	return d.setVersion(ctx, target)
}

func (d *DB) createTables(ctx context.Context) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range d.tableDDL() {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema: %w", err)
	}
	return nil
}

// ensureTables recreates any table that has gone missing, for example one
// dropped by a failed upgrade statement.
func (d *DB) ensureTables(ctx context.Context) error {
	for _, stmt := range d.tableDDL() {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure tables: %w", err)
		}
	}
	if d.cfg.OMACP {
		u := &upgrader{q: d.db, logger: d.logger}
		for _, col := range []string{"omacpid", "napid", "proxyid"} {
			u.addCarrierColumn(ctx, col, "TEXT NOT NULL DEFAULT ''")
		}
	}
	return nil
}

func (d *DB) tableDDL() []string {
	return []string{
		createSimInfoTable(TableSimInfo),
		createCarriersTable(TableCarriers, d.cfg.OMACP),
		createCarriersTable(TableCarriersDM, d.cfg.OMACP),
		carriersNumericIndex,
	}
}

// Tx is a transaction carrying the same table helpers as DB.
type Tx struct {
	ops
	tx *sql.Tx
}

// RunInTx runs fn inside a transaction, committing when fn returns nil and
// rolling back otherwise.
func (d *DB) RunInTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	tx := &Tx{ops: ops{q: sqlTx, omacp: d.cfg.OMACP, logger: d.logger}, tx: sqlTx}

	if err := fn(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			d.logger.WithError(rbErr).Warn("rollback failed")
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Savepoint runs fn inside a named savepoint. When fn fails only the work
// done since the savepoint is undone; the enclosing transaction stays usable.
func (t *Tx) Savepoint(ctx context.Context, name string, fn func() error) error {
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("failed to open savepoint %s: %w", name, err)
	}
	if err := fn(); err != nil {
		if _, rbErr := t.tx.ExecContext(ctx, "ROLLBACK TO "+name); rbErr != nil {
			return fmt.Errorf("failed to roll back savepoint %s: %w (after %v)", name, rbErr, err)
		}
		_, _ = t.tx.ExecContext(ctx, "RELEASE "+name)
		return err
	}
	if _, err := t.tx.ExecContext(ctx, "RELEASE "+name); err != nil {
		return fmt.Errorf("failed to release savepoint %s: %w", name, err)
	}
	return nil
}
