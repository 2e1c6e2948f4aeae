package relational

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"ledgerly.dev/ledger/ledger"
)

const (
	DriverPostgres = "postgres"
	DriverSqlite   = "sqlite"
)

var ErrUnknownDriver = errors.New("unknown driver")

type Config struct {
	// One of DriverPostgres or DriverSqlite
	Driver string
	DSN    string
	Logger *zap.Logger
	// Queries slower than this are logged as warnings
	SlowThreshold time.Duration
}

// Open connects to the database and migrates the ledger tables
func Open(config Config) (db *gorm.DB, err error) {
	var dialector gorm.Dialector
	switch config.Driver {
	case DriverPostgres:
		dialector = postgres.Open(config.DSN)
	case DriverSqlite:
		dialector = sqlite.Open(config.DSN)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, config.Driver)
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	slow := config.SlowThreshold
	if slow <= 0 {
		slow = 200 * time.Millisecond
	}
	db, err = gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger: gormlogger.New(zap.NewStdLog(logger.Named("gorm")), gormlogger.Config{
			SlowThreshold:             slow,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if config.Driver == DriverSqlite {
		// sqlite allows a single writer
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get connection pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	err = db.AutoMigrate(&Merchant{}, &Transaction{})
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

type Storage struct {
	db *gorm.DB
}

var _ ledger.Storage = (*Storage)(nil)

func New(db *gorm.DB) (s *Storage) {
	return &Storage{db: db}
}

func (s *Storage) Close() (err error) {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get connection pool: %w", err)
	}
	return sqlDB.Close()
}
