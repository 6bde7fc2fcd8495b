// Package jsonstore keeps User and Guild records in a single JSON file through
// the datastore package. It is the default backend for small deployments.
package jsonstore

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"aurora/datastore"
	"aurora/internal/record"
)

const (
	usersKey  = "users"
	guildsKey = "guilds"
)

type Store struct {
	ds     *datastore.DataStore
	mu     sync.Mutex
	users  []*record.User
	guilds []*record.Guild
	now    func() time.Time
}

// Open loads (or creates) the file at path.
func Open(path string, log *logrus.Entry) (*Store, error) {
	cfg := datastore.DefaultConfig(path)
	if log != nil {
		cfg.Logger = log.WithField("component", "datastore")
	}
	ds, err := datastore.NewWithConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("open datastore: %w", err)
	}

	s := &Store{ds: ds, now: func() time.Time { return time.Now().UTC() }}
	if _, err := ds.Get(usersKey, &s.users); err != nil {
		ds.Close()
		return nil, fmt.Errorf("load users: %w", err)
	}
	if _, err := ds.Get(guildsKey, &s.guilds); err != nil {
		ds.Close()
		return nil, fmt.Errorf("load guilds: %w", err)
	}
	return s, nil
}

func (s *Store) Users() record.UserCollection   { return users{s} }
func (s *Store) Guilds() record.GuildCollection { return guilds{s} }

func (s *Store) Close(context.Context) error {
	return s.ds.Close()
}

func (s *Store) persistUsers() error {
	if err := s.ds.Put(usersKey, s.users); err != nil {
		return fmt.Errorf("%w: %w", record.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) persistGuilds() error {
	if err := s.ds.Put(guildsKey, s.guilds); err != nil {
		return fmt.Errorf("%w: %w", record.ErrUnavailable, err)
	}
	return nil
}

func copyUser(u *record.User) *record.User {
	c := *u
	c.Data = maps.Clone(u.Data)
	if c.Data == nil {
		c.Data = record.Fields{}
	}
	return &c
}

func copyGuild(g *record.Guild) *record.Guild {
	c := *g
	c.Data = maps.Clone(g.Data)
	if c.Data == nil {
		c.Data = record.Fields{}
	}
	return &c
}

type users struct{ s *Store }

func (c users) Create(_ context.Context, key record.UserKey, data record.Fields) (*record.User, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return c.create(key, data)
}

func (c users) create(key record.UserKey, data record.Fields) (*record.User, error) {
	now := c.s.now()
	u := &record.User{
		ID:        uuid.NewString(),
		UserID:    key.UserID,
		GuildID:   key.GuildID,
		Data:      data.Clean(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	c.s.users = append(c.s.users, u)
	if err := c.s.persistUsers(); err != nil {
		c.s.users = c.s.users[:len(c.s.users)-1]
		return nil, fmt.Errorf("create user: %w", err)
	}
	return copyUser(u), nil
}

func (c users) find(key record.UserKey) *record.User {
	for _, u := range c.s.users {
		if u.Key() == key {
			return u
		}
	}
	return nil
}

func (c users) FindFirst(_ context.Context, key record.UserKey) (*record.User, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if u := c.find(key); u != nil {
		return copyUser(u), nil
	}
	return nil, record.ErrNotFound
}

func (c users) UpsertUser(_ context.Context, key record.UserKey, defaults record.Fields) (*record.User, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if u := c.find(key); u != nil {
		return copyUser(u), nil
	}
	return c.create(key, defaults)
}

func (c users) UpdateMany(_ context.Context, key record.UserKey, data record.Fields) (int64, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	var n int64
	now := c.s.now()
	next := make([]*record.User, len(c.s.users))
	for i, u := range c.s.users {
		next[i] = u
		if u.Key() == key {
			updated := *u
			updated.Data = record.Merge(u.Data, data)
			updated.UpdatedAt = now
			next[i] = &updated
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	prev := c.s.users
	c.s.users = next
	if err := c.s.persistUsers(); err != nil {
		c.s.users = prev
		return 0, fmt.Errorf("update users: %w", err)
	}
	return n, nil
}

func (c users) DeleteMany(_ context.Context, key record.UserKey) (int64, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	kept := make([]*record.User, 0, len(c.s.users))
	for _, u := range c.s.users {
		if u.Key() != key {
			kept = append(kept, u)
		}
	}
	n := int64(len(c.s.users) - len(kept))
	if n == 0 {
		return 0, nil
	}
	prev := c.s.users
	c.s.users = kept
	if err := c.s.persistUsers(); err != nil {
		c.s.users = prev
		return 0, fmt.Errorf("delete users: %w", err)
	}
	return n, nil
}

type guilds struct{ s *Store }

func (c guilds) Create(_ context.Context, guildID string, data record.Fields) (*record.Guild, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return c.create(guildID, data)
}

func (c guilds) create(guildID string, data record.Fields) (*record.Guild, error) {
	now := c.s.now()
	g := &record.Guild{
		ID:        uuid.NewString(),
		GuildID:   guildID,
		Data:      data.Clean(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	c.s.guilds = append(c.s.guilds, g)
	if err := c.s.persistGuilds(); err != nil {
		c.s.guilds = c.s.guilds[:len(c.s.guilds)-1]
		return nil, fmt.Errorf("create guild: %w", err)
	}
	return copyGuild(g), nil
}

func (c guilds) find(guildID string) *record.Guild {
	for _, g := range c.s.guilds {
		if g.GuildID == guildID {
			return g
		}
	}
	return nil
}

func (c guilds) FindFirst(_ context.Context, guildID string) (*record.Guild, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if g := c.find(guildID); g != nil {
		return copyGuild(g), nil
	}
	return nil, record.ErrNotFound
}

func (c guilds) UpsertGuild(_ context.Context, guildID string, defaults record.Fields) (*record.Guild, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if g := c.find(guildID); g != nil {
		return copyGuild(g), nil
	}
	return c.create(guildID, defaults)
}

func (c guilds) UpdateMany(_ context.Context, guildID string, data record.Fields) (int64, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	var n int64
	now := c.s.now()
	next := make([]*record.Guild, len(c.s.guilds))
	for i, g := range c.s.guilds {
		next[i] = g
		if g.GuildID == guildID {
			updated := *g
			updated.Data = record.Merge(g.Data, data)
			updated.UpdatedAt = now
			next[i] = &updated
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	prev := c.s.guilds
	c.s.guilds = next
	if err := c.s.persistGuilds(); err != nil {
		c.s.guilds = prev
		return 0, fmt.Errorf("update guilds: %w", err)
	}
	return n, nil
}

func (c guilds) DeleteMany(_ context.Context, guildID string) (int64, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	kept := make([]*record.Guild, 0, len(c.s.guilds))
	for _, g := range c.s.guilds {
		if g.GuildID != guildID {
			kept = append(kept, g)
		}
	}
	n := int64(len(c.s.guilds) - len(kept))
	if n == 0 {
		return 0, nil
	}
	prev := c.s.guilds
	c.s.guilds = kept
	if err := c.s.persistGuilds(); err != nil {
		c.s.guilds = prev
		return 0, fmt.Errorf("delete guilds: %w", err)
	}
	return n, nil
}
