package store

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store is the reference server's gorm-backed metadata persistence,
// implementing the storage half of spec.md §6's server contract (everything
// but document bytes, which live in a blobstore.Store alongside it).
type Store struct {
	db *gorm.DB
}

// Open connects to the backend selected by cfg, migrates its schema, and
// returns a ready Store. Postgres schemas are brought up with golang-migrate
// against the embedded SQL; sqlite uses gorm's AutoMigrate, mirroring the
// asymmetry in the teacher's own postgres vs. sqlite store setup (a single
// file database has no concurrent-instance migration race to guard
// against, so the extra machinery buys nothing there).
func Open(cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store configuration: %w", err)
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverSQLite:
		dialector = sqlite.Open(cfg.SQLite.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	case DriverPostgres:
		if err := runPostgresMigrations(cfg.Postgres.DSN()); err != nil {
			return nil, err
		}
		dialector = postgres.Open(cfg.Postgres.DSN())
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		if err := db.AutoMigrate(allModels()...); err != nil {
			return nil, fmt.Errorf("migrate schema: %w", err)
		}
	} else {
		if err := db.AutoMigrate(&versionCounter{}); err != nil {
			return nil, fmt.Errorf("migrate version counter: %w", err)
		}
	}

	if cfg.Driver == DriverPostgres {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("get underlying connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Healthcheck verifies the database connection is reachable.
func (s *Store) Healthcheck() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
