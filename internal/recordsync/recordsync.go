// Package recordsync keeps the User and Guild collections in step with what the
// bot sees on the gateway. It offers a strict API returning explicit errors and a
// legacy API that logs failures and hands back nil instead.
package recordsync

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"aurora/internal/keylock"
	"aurora/internal/record"
)

// ErrNoGuild is returned when an operation lacks the guild id it is keyed by.
var ErrNoGuild = errors.New("guild id is required")

// sharedCallTimeout bounds a get-or-create run that several callers may be
// waiting on. It is detached from any single caller's context.
const sharedCallTimeout = 10 * time.Second

type Syncer struct {
	store record.Store
	log   *logrus.Entry
	locks keylock.Map
	group singleflight.Group
}

func New(store record.Store, log *logrus.Entry) *Syncer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Syncer{store: store, log: log.WithField("component", "recordsync")}
}

func userLockKey(key record.UserKey) string { return "user:" + key.GuildID + ":" + key.UserID }
func guildLockKey(guildID string) string    { return "guild:" + guildID }

// FindUser returns the first record for key or record.ErrNotFound.
func (s *Syncer) FindUser(ctx context.Context, key record.UserKey) (*record.User, error) {
	if key.GuildID == "" {
		return nil, ErrNoGuild
	}
	return s.store.Users().FindFirst(ctx, key)
}

// EnsureUser returns the record for key, creating an empty one on a miss.
// Callers racing on the same key observe a single record.
func (s *Syncer) EnsureUser(ctx context.Context, key record.UserKey) (*record.User, error) {
	if key.GuildID == "" {
		return nil, ErrNoGuild
	}

	lockKey := userLockKey(key)
	v, err := s.shared(ctx, lockKey, func(ctx context.Context) (any, error) {
		users := s.store.Users()
		if up, ok := users.(record.UserUpserter); ok {
			return up.UpsertUser(ctx, key, record.Fields{})
		}

		unlock := s.locks.Lock(lockKey)
		defer unlock()

		u, err := users.FindFirst(ctx, key)
		if errors.Is(err, record.ErrNotFound) {
			return users.Create(ctx, key, record.Fields{})
		}
		return u, err
	})
	if err != nil {
		return nil, err
	}
	return cloneUser(v.(*record.User)), nil
}

// SaveUser writes data onto the record for key. A missing record is created
// with data as its initial payload and no follow-up update is issued.
func (s *Syncer) SaveUser(ctx context.Context, key record.UserKey, data record.Fields) (*record.User, error) {
	if key.GuildID == "" {
		return nil, ErrNoGuild
	}

	unlock := s.locks.Lock(userLockKey(key))
	defer unlock()

	users := s.store.Users()
	_, err := users.FindFirst(ctx, key)
	switch {
	case errors.Is(err, record.ErrNotFound):
		return users.Create(ctx, key, data.Clean())
	case err != nil:
		return nil, err
	}

	if _, err := users.UpdateMany(ctx, key, data.Clean()); err != nil {
		return nil, err
	}
	return users.FindFirst(ctx, key)
}

// DropUser deletes every record for key and reports how many went away.
func (s *Syncer) DropUser(ctx context.Context, key record.UserKey) (int64, error) {
	if key.GuildID == "" {
		return 0, ErrNoGuild
	}
	return s.store.Users().DeleteMany(ctx, key)
}

// FindGuild returns the first record for guildID or record.ErrNotFound.
func (s *Syncer) FindGuild(ctx context.Context, guildID string) (*record.Guild, error) {
	if guildID == "" {
		return nil, ErrNoGuild
	}
	return s.store.Guilds().FindFirst(ctx, guildID)
}

// EnsureGuild returns the record for guildID, creating an empty one on a miss.
func (s *Syncer) EnsureGuild(ctx context.Context, guildID string) (*record.Guild, error) {
	if guildID == "" {
		return nil, ErrNoGuild
	}

	lockKey := guildLockKey(guildID)
	v, err := s.shared(ctx, lockKey, func(ctx context.Context) (any, error) {
		guilds := s.store.Guilds()
		if up, ok := guilds.(record.GuildUpserter); ok {
			return up.UpsertGuild(ctx, guildID, record.Fields{})
		}

		unlock := s.locks.Lock(lockKey)
		defer unlock()

		g, err := guilds.FindFirst(ctx, guildID)
		if errors.Is(err, record.ErrNotFound) {
			return guilds.Create(ctx, guildID, record.Fields{})
		}
		return g, err
	})
	if err != nil {
		return nil, err
	}
	return cloneGuild(v.(*record.Guild)), nil
}

// SaveGuild mirrors SaveUser for guild records.
func (s *Syncer) SaveGuild(ctx context.Context, guildID string, data record.Fields) (*record.Guild, error) {
	if guildID == "" {
		return nil, ErrNoGuild
	}

	unlock := s.locks.Lock(guildLockKey(guildID))
	defer unlock()

	guilds := s.store.Guilds()
	_, err := guilds.FindFirst(ctx, guildID)
	switch {
	case errors.Is(err, record.ErrNotFound):
		return guilds.Create(ctx, guildID, data.Clean())
	case err != nil:
		return nil, err
	}

	if _, err := guilds.UpdateMany(ctx, guildID, data.Clean()); err != nil {
		return nil, err
	}
	return guilds.FindFirst(ctx, guildID)
}

// DropGuild deletes every record for guildID.
func (s *Syncer) DropGuild(ctx context.Context, guildID string) (int64, error) {
	if guildID == "" {
		return 0, ErrNoGuild
	}
	return s.store.Guilds().DeleteMany(ctx, guildID)
}

// shared runs fn once per key for every concurrent caller. fn gets a context
// that no single caller can cancel; each caller still stops waiting when its
// own ctx is done.
func (s *Syncer) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := s.group.DoChan(key, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedCallTimeout)
		defer cancel()
		return fn(runCtx)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", record.ErrUnavailable, ctx.Err())
	}
}

func cloneUser(u *record.User) *record.User {
	if u == nil {
		return nil
	}
	c := *u
	c.Data = maps.Clone(u.Data)
	return &c
}

func cloneGuild(g *record.Guild) *record.Guild {
	if g == nil {
		return nil
	}
	c := *g
	c.Data = maps.Clone(g.Data)
	return &c
}

func describe(op string, err error) string {
	return fmt.Sprintf("%s failed: %v", op, err)
}
