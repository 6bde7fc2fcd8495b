package recordtest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aurora/internal/record"
)

// RunContract exercises the collection semantics every backend must share.
// open must return a fresh, empty store.
func RunContract(t *testing.T, open func(t *testing.T) record.Store) {
	t.Helper()

	t.Run("user find miss", func(t *testing.T) {
		s := open(t)
		_, err := s.Users().FindFirst(context.Background(), record.UserKey{UserID: "u1", GuildID: "g1"})
		assert.True(t, errors.Is(err, record.ErrNotFound), "got %v", err)
	})

	t.Run("user create and find", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		key := record.UserKey{UserID: "u1", GuildID: "g1"}

		created, err := s.Users().Create(ctx, key, record.Fields{"bio": "hello", "user_id": "spoof"})
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, "u1", created.UserID)
		assert.Equal(t, "g1", created.GuildID)
		assert.False(t, created.CreatedAt.IsZero())

		found, err := s.Users().FindFirst(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, created.ID, found.ID)
		assert.Equal(t, "hello", found.Data.String("bio"))
		assert.NotContains(t, found.Data, "user_id")

		_, err = s.Users().FindFirst(ctx, record.UserKey{UserID: "u1", GuildID: "g2"})
		assert.ErrorIs(t, err, record.ErrNotFound)
	})

	t.Run("user duplicates update and delete", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		key := record.UserKey{UserID: "u1", GuildID: "g1"}
		other := record.UserKey{UserID: "u2", GuildID: "g1"}

		_, err := s.Users().Create(ctx, key, record.Fields{"bio": "a", "keep": "yes"})
		require.NoError(t, err)
		_, err = s.Users().Create(ctx, key, nil)
		require.NoError(t, err)
		_, err = s.Users().Create(ctx, other, record.Fields{"bio": "other"})
		require.NoError(t, err)

		n, err := s.Users().UpdateMany(ctx, key, record.Fields{"bio": "b"})
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		found, err := s.Users().FindFirst(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "b", found.Data.String("bio"))

		untouched, err := s.Users().FindFirst(ctx, other)
		require.NoError(t, err)
		assert.Equal(t, "other", untouched.Data.String("bio"))

		n, err = s.Users().UpdateMany(ctx, record.UserKey{UserID: "ghost", GuildID: "g1"}, record.Fields{"bio": "x"})
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = s.Users().DeleteMany(ctx, key)
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		n, err = s.Users().DeleteMany(ctx, key)
		require.NoError(t, err)
		assert.Zero(t, n)

		_, err = s.Users().FindFirst(ctx, other)
		assert.NoError(t, err)
	})

	t.Run("guild lifecycle", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		_, err := s.Guilds().FindFirst(ctx, "g1")
		assert.ErrorIs(t, err, record.ErrNotFound)

		g, err := s.Guilds().Create(ctx, "g1", nil)
		require.NoError(t, err)
		assert.Equal(t, "g1", g.GuildID)

		n, err := s.Guilds().UpdateMany(ctx, "g1", record.Fields{"language": "ru"})
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		found, err := s.Guilds().FindFirst(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, "ru", found.Data.String("language"))
		assert.False(t, found.UpdatedAt.Before(found.CreatedAt))

		n, err = s.Guilds().DeleteMany(ctx, "g1")
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		_, err = s.Guilds().FindFirst(ctx, "g1")
		assert.ErrorIs(t, err, record.ErrNotFound)
	})

	t.Run("upsert", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		key := record.UserKey{UserID: "u1", GuildID: "g1"}

		up, ok := s.Users().(record.UserUpserter)
		if !ok {
			t.Skip("backend has no native user upsert")
		}
		first, err := up.UpsertUser(ctx, key, record.Fields{"bio": "seed"})
		require.NoError(t, err)
		second, err := up.UpsertUser(ctx, key, record.Fields{"bio": "ignored"})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "seed", second.Data.String("bio"))

		gup, ok := s.Guilds().(record.GuildUpserter)
		require.True(t, ok, "user upsert without guild upsert")
		g1, err := gup.UpsertGuild(ctx, "g1", nil)
		require.NoError(t, err)
		g2, err := gup.UpsertGuild(ctx, "g1", nil)
		require.NoError(t, err)
		assert.Equal(t, g1.ID, g2.ID)
	})
}
