package recordsync

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"aurora/internal/record"
)

// The methods below never return errors. A failing store call is logged and
// turned into a nil result, so nil means "missing guild id, not found or store
// error" alike.

// GetUser returns the user record, creating an empty one on a miss.
func (s *Syncer) GetUser(ctx context.Context, userID, guildID string) *record.User {
	if guildID == "" {
		return nil
	}
	u, err := s.EnsureUser(ctx, record.UserKey{UserID: userID, GuildID: guildID})
	if err != nil {
		s.userLog("get_user", userID, guildID).Error(describe("get user", err))
		return nil
	}
	return u
}

// AddUser inserts a new record without looking for an existing one first.
// Calling it twice for one key stores two records.
func (s *Syncer) AddUser(ctx context.Context, userID, guildID string, data record.Fields) *record.User {
	if guildID == "" {
		return nil
	}
	u, err := s.store.Users().Create(ctx, record.UserKey{UserID: userID, GuildID: guildID}, data.Clean())
	if err != nil {
		s.userLog("add_user", userID, guildID).Error(describe("add user", err))
		return nil
	}
	return u
}

// UpdateUser merges data into the user's records. When no record exists the
// payload becomes the initial data of a new record and no update is issued.
// The lookup and the write are not atomic.
func (s *Syncer) UpdateUser(ctx context.Context, userID, guildID string, data record.Fields) {
	if guildID == "" {
		return
	}
	key := record.UserKey{UserID: userID, GuildID: guildID}

	if s.lookupUser(ctx, key) == nil {
		s.AddUser(ctx, userID, guildID, data)
		return
	}

	if _, err := s.store.Users().UpdateMany(ctx, key, data.Clean()); err != nil {
		s.userLog("update_user", userID, guildID).Error(describe("update user", err))
	}
}

// RemoveUser deletes every record of the user in the guild.
func (s *Syncer) RemoveUser(ctx context.Context, userID, guildID string) {
	if guildID == "" {
		return
	}
	if _, err := s.store.Users().DeleteMany(ctx, record.UserKey{UserID: userID, GuildID: guildID}); err != nil {
		s.userLog("remove_user", userID, guildID).Error(describe("remove user", err))
	}
}

// GetGuild returns the guild record, creating an empty one on a miss.
func (s *Syncer) GetGuild(ctx context.Context, guildID string) *record.Guild {
	if guildID == "" {
		return nil
	}
	g, err := s.EnsureGuild(ctx, guildID)
	if err != nil {
		s.guildLog("get_guild", guildID).Error(describe("get guild", err))
		return nil
	}
	return g
}

// AddGuild inserts an empty guild record without checking for an existing one.
func (s *Syncer) AddGuild(ctx context.Context, guildID string) *record.Guild {
	if guildID == "" {
		return nil
	}
	g, err := s.store.Guilds().Create(ctx, guildID, record.Fields{})
	if err != nil {
		s.guildLog("add_guild", guildID).Error(describe("add guild", err))
		return nil
	}
	return g
}

// UpdateGuild merges data into the guild's records. Unlike UpdateUser, a
// missing guild is first created empty and the update is still applied.
func (s *Syncer) UpdateGuild(ctx context.Context, guildID string, data record.Fields) {
	if guildID == "" {
		return
	}

	if s.lookupGuild(ctx, guildID) == nil {
		s.AddGuild(ctx, guildID)
	}

	if _, err := s.store.Guilds().UpdateMany(ctx, guildID, data.Clean()); err != nil {
		s.guildLog("update_guild", guildID).Error(describe("update guild", err))
	}
}

// DeleteGuild deletes every record of the guild.
func (s *Syncer) DeleteGuild(ctx context.Context, guildID string) {
	if guildID == "" {
		return
	}
	if _, err := s.store.Guilds().DeleteMany(ctx, guildID); err != nil {
		s.guildLog("delete_guild", guildID).Error(describe("delete guild", err))
	}
}

func (s *Syncer) lookupUser(ctx context.Context, key record.UserKey) *record.User {
	u, err := s.store.Users().FindFirst(ctx, key)
	if err != nil {
		if !errors.Is(err, record.ErrNotFound) {
			s.userLog("find_user", key.UserID, key.GuildID).Error(describe("find user", err))
		}
		return nil
	}
	return u
}

func (s *Syncer) lookupGuild(ctx context.Context, guildID string) *record.Guild {
	g, err := s.store.Guilds().FindFirst(ctx, guildID)
	if err != nil {
		if !errors.Is(err, record.ErrNotFound) {
			s.guildLog("find_guild", guildID).Error(describe("find guild", err))
		}
		return nil
	}
	return g
}

func (s *Syncer) userLog(op, userID, guildID string) *logrus.Entry {
	return s.log.WithFields(logrus.Fields{"op": op, "user_id": userID, "guild_id": guildID})
}

func (s *Syncer) guildLog(op, guildID string) *logrus.Entry {
	return s.log.WithFields(logrus.Fields{"op": op, "guild_id": guildID})
}
