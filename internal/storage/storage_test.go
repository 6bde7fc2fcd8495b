package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aurora/internal/config"
	"aurora/internal/logging"
	"aurora/internal/record"
	"aurora/internal/storage/jsonstore"
	"aurora/internal/storage/sqlstore"
)

func TestOpenFileBackends(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(context.Background(), &config.Config{StoreDriver: config.DriverJSON, StoragePath: filepath.Join(dir, "a.json")}, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, &jsonstore.Store{}, s)
	require.NoError(t, s.Close(context.Background()))

	s, err = Open(context.Background(), &config.Config{StoreDriver: config.DriverSQLite, StoragePath: filepath.Join(dir, "a.db")}, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, &sqlstore.Store{}, s)
	require.NoError(t, s.Close(context.Background()))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{StoreDriver: "redis"}, logging.Discard())
	assert.ErrorContains(t, err, "unknown store driver")
}

func TestConnectDoesNotRetryConfigErrors(t *testing.T) {
	calls := 0
	bad := errors.New("malformed dsn")

	_, err := connect(context.Background(), logging.Discard(), func() (record.Store, error) {
		calls++
		return nil, bad
	})

	assert.ErrorIs(t, err, bad)
	assert.Equal(t, 1, calls)
}

func TestConnectStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	_, err := connect(ctx, logging.Discard(), func() (record.Store, error) {
		calls++
		cancel()
		return nil, record.ErrUnavailable
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
