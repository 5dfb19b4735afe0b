package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("oracle", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported DB_DRIVER "oracle"`)
}

func TestOpenAndPing(t *testing.T) {
	db, err := Open("sqlite", "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	assert.NoError(t, Ping(context.Background(), db))
}
