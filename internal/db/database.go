package db

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"facerag/config"
	"facerag/internal/core/models"
	"facerag/internal/logger"

	"github.com/glebarez/sqlite" // Pure Go SQLite Treiber
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DB ist die globale Datenbankverbindung
var DB *gorm.DB

// Initialize initialisiert die globale Datenbankverbindung
func Initialize(cfg *config.Config) error {
	conn, err := Open(cfg.DB.File)
	if err != nil {
		return err
	}
	DB = conn
	return nil
}

// Open öffnet die SQLite-Datenbank und führt die Migrationen aus
func Open(file string) (*gorm.DB, error) {
	if file != "" && file != ":memory:" {
		dbDir := filepath.Dir(file)
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			log.Errorf("Failed to create database directory '%s': %v", dbDir, err)
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	log.Infof("Connecting to database: %s", file)

	conn, err := gorm.Open(sqlite.Open(file), &gorm.Config{
		Logger: logger.Gorm(),
	})
	if err != nil {
		log.Errorf("Failed to connect to database: %v", err)
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	// SQLite verträgt nur einen Schreiber; eine Verbindung hält auch :memory: konsistent
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("Running database migrations...")
	if err := conn.AutoMigrate(
		&models.FaceRecord{},
		&models.TrainingRun{},
	); err != nil {
		log.Errorf("Database migration failed: %v", err)
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	log.Info("Database migrations completed successfully")
	return conn, nil
}

// GetDB gibt die initialisierte GORM-DB-Instanz zurück
func GetDB() (*gorm.DB, error) {
	if DB == nil {
		return nil, fmt.Errorf("database is not initialized")
	}
	return DB, nil
}
