package database

import (
	"context"
	"fmt"
	"time"

	"github.com/sdko-org/flathub-stats/internal/config"
	"github.com/sdko-org/flathub-stats/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const batchSize = 500

type PostgresConfig struct {
	User     string
	Password string
	Host     string
	Port     string
	DBName   string
	SSLMode  string
}

func ConfigFrom(cfg *config.Config) PostgresConfig {
	return PostgresConfig{
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPassword,
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		DBName:   cfg.PostgresDatabase,
		SSLMode:  cfg.PostgresSSLMode,
	}
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

func NewPostgresDB(logger *logrus.Logger, cfg PostgresConfig) (*gorm.DB, error) {
	log := logger.WithFields(logrus.Fields{
		"component": "database",
		"host":      cfg.Host,
		"database":  cfg.DBName,
	})

	var db *gorm.DB
	var err error
	const maxRetries = 5
	retryDelay := 2 * time.Second

	for attempt := 1; attempt <= maxRetries; attempt++ {
		db, err = gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
		if err == nil {
			break
		}

		log.WithFields(logrus.Fields{
			"attempt": attempt,
			"error":   err,
		}).Warn("Database connection failed")

		if attempt < maxRetries {
			time.Sleep(retryDelay)
			retryDelay *= 2
		}
	}

	if err != nil {
		log.WithError(err).Error("Failed to connect to database after retries")
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if err := db.AutoMigrate(&models.DownloadEvent{}); err != nil {
		log.WithError(err).Error("Database migration failed")
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	log.Info("Database connection established")
	return db, nil
}

// EventStore appends download events to the download_events table.
type EventStore struct {
	db  *gorm.DB
	log *logrus.Entry
}

func NewEventStore(logger *logrus.Logger, db *gorm.DB) *EventStore {
	return &EventStore{db: db, log: logger.WithField("component", "event_store")}
}

func (s *EventStore) Save(ctx context.Context, events []models.DownloadEvent) error {
	if len(events) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).CreateInBatches(events, batchSize).Error; err != nil {
		s.log.WithError(err).Error("Failed to store download events")
		return fmt.Errorf("store events: %w", err)
	}
	s.log.WithField("events", len(events)).Info("Stored download events")
	return nil
}
