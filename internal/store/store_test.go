package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStore_CreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	_, err := os.Stat(dbPath)
	require.True(t, os.IsNotExist(err), "database file should not exist before creating store")

	s, err := New(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file should exist after creating store")
	assert.Equal(t, dbPath, s.Path())
}

func TestNewStore_RunsMigrations(t *testing.T) {
	s := newTestStore(t)

	for _, name := range []string{"settings", "claps"} {
		var got string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", name,
		).Scan(&got)
		assert.NoError(t, err, "table %q should exist after migrations", name)
	}

	var idx string
	err := s.DB().QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_claps_occurred_at'",
	).Scan(&idx)
	assert.NoError(t, err)
}

func TestNewStore_ReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := New(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Settings().Set(SettingScoreThreshold, "0.6"))
	require.NoError(t, s.Close())

	s, err = New(dbPath)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.Settings().Get(SettingScoreThreshold)
	require.NoError(t, err)
	assert.Equal(t, "0.6", v)
}

func TestStore_Close(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	require.NoError(t, s.Close())

	_, err = s.DB().Exec("SELECT 1")
	assert.Error(t, err, "DB operations should fail after close")
}

func TestSettingsRepository(t *testing.T) {
	s := newTestStore(t)
	repo := s.Settings()

	t.Run("missing key", func(t *testing.T) {
		_, err := repo.Get("nope")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, repo.Delete("nope"), ErrNotFound)
	})

	t.Run("set overwrites", func(t *testing.T) {
		require.NoError(t, repo.Set(SettingClapDistanceFactor, "0.35"))
		require.NoError(t, repo.Set(SettingClapDistanceFactor, "0.5"))

		v, err := repo.Get(SettingClapDistanceFactor)
		require.NoError(t, err)
		assert.Equal(t, "0.5", v)
	})

	t.Run("set all and list", func(t *testing.T) {
		require.NoError(t, repo.SetAll(map[string]string{
			SettingDetectEveryNthFrame: "2",
			SettingEnableClapDetection: "false",
		}))

		all, err := repo.All()
		require.NoError(t, err)
		assert.Equal(t, map[string]string{
			SettingClapDistanceFactor:  "0.5",
			SettingDetectEveryNthFrame: "2",
			SettingEnableClapDetection: "false",
		}, all)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(SettingDetectEveryNthFrame))
		_, err := repo.Get(SettingDetectEveryNthFrame)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestClapRepository(t *testing.T) {
	s := newTestStore(t)
	repo := s.Claps()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	n, err := repo.Count()
	require.NoError(t, err)
	assert.Zero(t, n)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Create(&Clap{
			ID:            id,
			OccurredAt:    base.Add(time.Duration(i) * time.Minute),
			WristDistance: 0.05,
			ShoulderWidth: 0.2,
		}))
	}

	t.Run("duplicate id", func(t *testing.T) {
		assert.Error(t, repo.Create(&Clap{ID: "a", OccurredAt: base}))
	})

	t.Run("list newest first", func(t *testing.T) {
		claps, err := repo.List(2)
		require.NoError(t, err)
		require.Len(t, claps, 2)
		assert.Equal(t, "c", claps[0].ID)
		assert.Equal(t, "b", claps[1].ID)
		assert.True(t, claps[0].OccurredAt.Equal(base.Add(2*time.Minute)))
		assert.InDelta(t, 0.05, claps[0].WristDistance, 1e-12)

		all, err := repo.List(0)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("delete before", func(t *testing.T) {
		removed, err := repo.DeleteBefore(base.Add(90 * time.Second))
		require.NoError(t, err)
		assert.EqualValues(t, 2, removed)

		n, err := repo.Count()
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}
