package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-rental-backend/config"
	"fleet-rental-backend/internal/model"
)

func TestInit_SQLite(t *testing.T) {
	db, err := Init(&config.DatabaseConfig{Driver: "sqlite", DSN: "file:dbinit?mode=memory&cache=shared"})
	require.NoError(t, err)

	assert.True(t, db.Migrator().HasTable(&model.ActionLog{}))
	assert.True(t, db.Migrator().HasTable(&model.PushSubscription{}))
	assert.True(t, db.Migrator().HasTable(&model.SubscriptionCar{}))
}

func TestInit_UnknownDriver(t *testing.T) {
	_, err := Init(&config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}
