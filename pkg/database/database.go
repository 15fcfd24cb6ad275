package database

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormConfig is shared by the postgres connection and the sqlite test
// databases so both translate driver errors the same way.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: logger.New(&log.Logger, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		TranslateError: true,
	}
}

func Open(databaseURL string) (*gorm.DB, error) {
	d, err := gorm.Open(postgres.Open(databaseURL), GormConfig())
	if err != nil {
		return nil, err
	}

	if err := Migrate(d); err != nil {
		return nil, err
	}

	return d, nil
}

func Migrate(d *gorm.DB) error {
	return d.AutoMigrate(&User{}, &Species{}, &Sighting{}, &Friendship{})
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var e *pgconn.PgError
	return errors.As(err, &e) && e.Code == "23505"
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
