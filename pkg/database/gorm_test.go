package database

import (
	"context"
	"fmt"
	"testing"

	"doubtiq-go/internal/config"
	"doubtiq-go/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLiteAndMigrate(t *testing.T) {
	dsn := fmt.Sprintf("file:db_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := Open(config.DatabaseConfig{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))

	for _, table := range []interface{}{&model.User{}, &model.Chat{}, &model.Message{}, &model.Doubt{}} {
		assert.True(t, db.Migrator().HasTable(table))
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestNewRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()

	rdb, err := NewRedis(context.Background(), config.RedisConfig{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	mr.Close()
	_, err = NewRedis(context.Background(), config.RedisConfig{Addr: addr})
	assert.Error(t, err)
}
