// Package db opens the gorm connection behind the persistent store.
package db

import (
	"fmt"

	"github.com/kasuganosora/mmocache/config"
	dbmysql "github.com/kasuganosora/mmocache/db/mysql"
	dbsqlite "github.com/kasuganosora/mmocache/db/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	ModeSQLite = "sqlite"
	ModeMySQL  = "mysql"
)

// Open connects to the database selected by cfg.Mode. Store errors are
// translated to gorm's portable errors so duplicate names surface as
// gorm.ErrDuplicatedKey on either driver.
func Open(cfg config.DatabaseConfig, logger *zap.Logger) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		Logger:         NewLogger(logger, cfg.SlowQuery),
		TranslateError: true,
	}
	switch cfg.Mode {
	case ModeSQLite:
		return dbsqlite.Open(cfg.SQLitePath, gcfg)
	case ModeMySQL:
		return dbmysql.Open(dbmysql.Pool{
			DSN:     cfg.MySQLDSN,
			MaxOpen: cfg.MySQLMaxOpen,
			MaxIdle: cfg.MySQLMaxIdle,
			MaxLife: cfg.MySQLMaxLife,
		}, gcfg)
	default:
		return nil, fmt.Errorf("db: unknown mode %q", cfg.Mode)
	}
}
