package db

import (
	"fmt"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/stageboard/stageboard/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Dialector picks the gorm dialector for the configured driver.
func Dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "sqlite", "":
		path := cfg.Path
		if path == "" {
			path = ":memory:"
		}
		return sqlite.Open(path), nil
	case "mysql":
		return mysql.Open(cfg.DSN), nil
	case "postgres":
		return postgres.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", cfg.Driver)
	}
}

// Connect opens a GORM connection for the configured driver.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect %s: %w", cfg.Driver, err)
	}
	return db, nil
}

// OpenMemory opens a migrated in-memory sqlite database.
func OpenMemory() (*gorm.DB, error) {
	db, err := Connect(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		return nil, err
	}
	// Each new connection to ":memory:" is a fresh database.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db: memory pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// EnsureDatabase creates the database named in a MySQL DSN if it doesn't
// already exist. Other drivers are left alone: sqlite creates its file on
// open and postgres databases are provisioned out of band.
func EnsureDatabase(cfg config.DatabaseConfig) error {
	if cfg.Driver != "mysql" {
		return nil
	}
	parsed, err := mysqldrv.ParseDSN(cfg.DSN)
	if err != nil {
		return fmt.Errorf("db: parse dsn: %w", err)
	}
	name := parsed.DBName
	if name == "" {
		return fmt.Errorf("db: dsn has no database name")
	}
	parsed.DBName = ""
	admin, err := gorm.Open(mysql.Open(parsed.FormatDSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("db: admin connect to %s: %w", parsed.Addr, err)
	}
	if sqlDB, err := admin.DB(); err == nil {
		defer sqlDB.Close()
	}
	return CreateDatabase(admin, name)
}

// CreateDatabase creates the named database if it doesn't already exist.
func CreateDatabase(adminDB *gorm.DB, name string) error {
	sql := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", name)
	if err := adminDB.Exec(sql).Error; err != nil {
		return fmt.Errorf("db: create database %s: %w", name, err)
	}
	return nil
}
