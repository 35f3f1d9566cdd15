package db

import (
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/doonfrs/trinacrud/internal/logging"
)

func Connect(dsn string) *gorm.DB {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		logging.Logger.Fatalf("failed to connect to database: %v", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		logging.Logger.Fatalf("failed to access database handle: %v", err)
	}
	if err := sqlDB.Ping(); err != nil {
		logging.Logger.Fatalf("database ping failed: %v", err)
	}

	logging.Infof("database connected")
	return gdb
}

func AutoMigrate(gdb *gorm.DB, models ...interface{}) {
	if err := gdb.AutoMigrate(models...); err != nil {
		logging.Logger.Fatalf("auto-migration failed: %v", err)
	}
}
