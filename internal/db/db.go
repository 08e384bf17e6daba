// Package db provides database connectivity and operations
package db

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/eresh-mittal/ImageProc/internal/db/models"
)

// Supported drivers
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// Database configuration constants
const (
	// DefaultHost is the default database host
	DefaultHost = "localhost"
	// DefaultPostgresPort is the default postgres port
	DefaultPostgresPort = 5432
	// DefaultMySQLPort is the default mysql port
	DefaultMySQLPort = 3306
	// DefaultUser is the default database user
	DefaultUser = "postgres"
	// DefaultPassword is the default database password
	DefaultPassword = "postgres"
	// DefaultDBName is the default database name
	DefaultDBName = "imageproc"
	// DefaultSQLitePath is used when the sqlite driver has no path configured
	DefaultSQLitePath = "data/imageproc.db"
)

// Options represents database connection configuration options
type Options struct {
	Driver     string
	Host       string
	User       string
	Password   string
	DBName     string
	Port       int
	SSLEnabled *bool
	// Path is the database file for the sqlite driver
	Path     string
	LogLevel logger.LogLevel
}

// New creates a new database connection with the given options and
// migrates the schema
func New(opts Options) (*gorm.DB, error) {
	opts = setDefaults(opts)

	dialector, err := dialectorFor(opts)
	if err != nil {
		return nil, err
	}

	// Configure custom logger to ignore record not found errors
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			LogLevel:                  opts.LogLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{Logger: newLogger})
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the tables of every model
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(models.All()...)
}

// IsDuplicateKeyError checks if the given error is a duplicate key error
func IsDuplicateKeyError(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		errors.Is(postgres.Dialector{}.Translate(err), gorm.ErrDuplicatedKey)
}

func dialectorFor(opts Options) (gorm.Dialector, error) {
	switch opts.Driver {
	case DriverPostgres:
		sslMode := "disable"
		if opts.SSLEnabled != nil && *opts.SSLEnabled {
			sslMode = "require"
		}
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
			opts.Host, opts.User, opts.Password, opts.DBName, opts.Port, sslMode)
		return postgres.Open(dsn), nil
	case DriverMySQL:
		tls := "false"
		if opts.SSLEnabled != nil && *opts.SSLEnabled {
			tls = "true"
		}
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC&tls=%s",
			opts.User, opts.Password, opts.Host, opts.Port, opts.DBName, tls)
		return mysql.Open(dsn), nil
	case DriverSQLite:
		if dir := filepath.Dir(opts.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
			}
		}
		return sqlite.Open(opts.Path), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", opts.Driver)
	}
}

func setDefaults(opts Options) Options {
	if opts.Driver == "" {
		opts.Driver = DriverPostgres
	}
	if opts.Host == "" {
		opts.Host = DefaultHost
	}
	if opts.User == "" {
		opts.User = DefaultUser
	}
	if opts.Password == "" {
		opts.Password = DefaultPassword
	}
	if opts.DBName == "" {
		opts.DBName = DefaultDBName
	}
	if opts.Port == 0 {
		opts.Port = DefaultPostgresPort
		if opts.Driver == DriverMySQL {
			opts.Port = DefaultMySQLPort
		}
	}
	if opts.Path == "" {
		opts.Path = DefaultSQLitePath
	}
	if opts.SSLEnabled == nil {
		sslEnabled := false
		opts.SSLEnabled = &sslEnabled
	}
	if opts.LogLevel == 0 {
		opts.LogLevel = logger.Warn
	}
	return opts
}
