package datastore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type guild struct {
	Language string `json:"language"`
}

func setupTestStore(t *testing.T, backups int) (*DataStore, string) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	path := filepath.Join(t.TempDir(), "nested", "store.json")
	ds, err := NewWithConfig(&Config{
		FilePath:    path,
		BackupCount: backups,
		Logger:      logrus.NewEntry(logger),
	})
	require.NoError(t, err)
	return ds, path
}

func TestNewCreatesEmptyFile(t *testing.T) {
	_, path := setupTestStore(t, 0)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, "{}", string(raw))
}

func TestPutGetDelete(t *testing.T) {
	ds, _ := setupTestStore(t, 0)

	require.NoError(t, ds.Put("g1", guild{Language: "ru"}))

	var got guild
	ok, err := ds.Get("g1", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ru", got.Language)

	require.NoError(t, ds.Delete("g1"))
	ok, err = ds.Get("g1", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCloseFlushesAndReloads(t *testing.T) {
	ds, path := setupTestStore(t, 0)
	require.NoError(t, ds.Put("b", guild{Language: "en-US"}))
	require.NoError(t, ds.Put("a", guild{Language: "ru"}))
	require.NoError(t, ds.Close())
	require.NoError(t, ds.Close())

	assert.ErrorIs(t, ds.Put("c", guild{}), ErrClosed)

	reopened, err := NewWithConfig(&Config{FilePath: path})
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	assert.Equal(t, []string{"a", "b"}, reopened.Keys())
	var got guild
	ok, err := reopened.Get("a", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ru", got.Language)
}

func TestMemoryLimitRejectsWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	ds, err := NewWithConfig(&Config{FilePath: path, MaxMemorySize: 16})
	require.NoError(t, err)
	t.Cleanup(func() { ds.Close() })

	require.NoError(t, ds.Put("k", "short"))
	assert.ErrorIs(t, ds.Put("k2", "this value is far too long"), ErrMemoryExceeded)
}

func TestBackupsAreRotated(t *testing.T) {
	ds, path := setupTestStore(t, 2)

	for _, lang := range []string{"a", "b", "c", "d"} {
		require.NoError(t, ds.Put("g", guild{Language: lang}))
		require.NoError(t, ds.SaveToFile())
	}
	require.NoError(t, ds.Close())

	matches, err := filepath.Glob(path + ".backup.*")
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := New(path)
	assert.ErrorContains(t, err, "invalid JSON format")
}
