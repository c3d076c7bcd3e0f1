// Package sqlite implements the ledger database on an embedded SQLite file using gorm.
// It backs local runs and tests; production deployments use the postgres package.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sqlitedriver "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/jakechorley/volunteer-ledger/pkg/db"
)

// DB provides database operations using SQLite
type DB struct {
	db   *gorm.DB
	inTx bool
}

var _ db.Database = (*DB)(nil)

// NewDB opens the SQLite database at path. An empty path opens a private in-memory database.
func NewDB(path string) (*DB, error) {
	var dsn string
	if path == "" {
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)", uuid.New().String())
	} else {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	gdb, err := gorm.Open(sqlitedriver.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sqlite handle: %w", err)
	}
	// SQLite allows one writer; a single connection serializes transactions instead of failing them
	sqlDB.SetMaxOpenConns(1)

	if err := gdb.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to register tracing plugin: %w", err)
	}

	return &DB{db: gdb}, nil
}

// Close closes the underlying connection
func (d *DB) Close() error {
	if d.inTx {
		return nil
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sqlite handle: %w", err)
	}
	return sqlDB.Close()
}

// RunMigrations creates or updates the schema for every record type
func (d *DB) RunMigrations(ctx context.Context) error {
	if err := d.db.WithContext(ctx).AutoMigrate(db.AllModels()...); err != nil {
		return fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}
	return nil
}

// WithTx runs fn inside a transaction. A DB already bound to a transaction reuses it.
func (d *DB) WithTx(ctx context.Context, fn func(tx db.Database) error) error {
	return d.transaction(ctx, func(tx *gorm.DB) error {
		return fn(&DB{db: tx, inTx: true})
	})
}

func (d *DB) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if d.inTx {
		return fn(d.db.WithContext(ctx))
	}
	return d.db.WithContext(ctx).Transaction(fn)
}

func (d *DB) conn(ctx context.Context) *gorm.DB {
	return d.db.WithContext(ctx)
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
