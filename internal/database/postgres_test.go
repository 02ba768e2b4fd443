package database

import (
	"context"
	"testing"

	"github.com/sdko-org/flathub-stats/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestConfigFrom_DSN(t *testing.T) {
	cfg := &config.Config{
		PostgresUser:     "stats",
		PostgresPassword: "secret",
		PostgresHost:     "db.internal",
		PostgresPort:     "5433",
		PostgresDatabase: "flathub_stats",
		PostgresSSLMode:  "require",
	}
	assert.Equal(t,
		"host=db.internal port=5433 user=stats password=secret dbname=flathub_stats sslmode=require",
		ConfigFrom(cfg).DSN())
}

func TestEventStore_SaveEmpty(t *testing.T) {
	store := &EventStore{}
	assert.NoError(t, store.Save(context.Background(), nil))
}
