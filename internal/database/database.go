package database

import (
	"realtime-chat-api/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens the SQLite database file (created if it doesn't exist) and runs migrations.
// glebarez/sqlite is a pure Go driver, so no CGO is required.
func Open(path string, level logger.LogLevel) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open database %q", path)
	}

	// SQLite allows a single writer; serialize through one connection to avoid SQLITE_BUSY.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "access sql.DB")
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the users and messages tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Message{}); err != nil {
		return errors.Wrap(err, "migrate database")
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
