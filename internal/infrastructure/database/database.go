package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type DB struct {
	*gorm.DB
	sqlite bool
}

// Options tunes the connection; the zero value is suitable for tests.
type Options struct {
	LogLevel     logger.LogLevel
	MaxOpenConns int
	MaxIdleConns int
}

// New creates a new database connection
func New(databaseURL string) (*DB, error) {
	return NewWithOptions(databaseURL, Options{LogLevel: logger.Warn})
}

// NewWithOptions creates a database connection with explicit pool and log settings
func NewWithOptions(databaseURL string, opts Options) (*DB, error) {
	if opts.LogLevel == 0 {
		opts.LogLevel = logger.Silent
	}

	// Configure GORM
	config := &gorm.Config{
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		Logger: logger.Default.LogMode(opts.LogLevel),
	}

	var db *gorm.DB
	var err error

	isSQLite := IsSQLiteURL(databaseURL)
	if isSQLite {
		db, err = gorm.Open(sqlite.Open(databaseURL), config)
	} else {
		db, err = gorm.Open(postgres.Open(databaseURL), config)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if isSQLite {
		// SQLite allows a single writer; one connection turns lock
		// contention into ordinary queueing on the pool.
		sqlDB.SetMaxOpenConns(1)
	} else {
		maxOpen := opts.MaxOpenConns
		if maxOpen <= 0 {
			maxOpen = 100
		}
		maxIdle := opts.MaxIdleConns
		if maxIdle <= 0 {
			maxIdle = 10
		}
		sqlDB.SetMaxIdleConns(maxIdle)
		sqlDB.SetMaxOpenConns(maxOpen)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	return &DB{DB: db, sqlite: isSQLite}, nil
}

// IsSQLiteURL reports whether the URL selects the SQLite driver
func IsSQLiteURL(databaseURL string) bool {
	return strings.HasPrefix(databaseURL, "file:") || strings.HasSuffix(databaseURL, ".db")
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// AutoMigrate runs database migrations
func (db *DB) AutoMigrate(models ...interface{}) error {
	return db.DB.AutoMigrate(models...)
}

// IsSQLite reports whether the connection uses the SQLite driver
func (db *DB) IsSQLite() bool {
	return db.sqlite
}
