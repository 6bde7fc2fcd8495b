// Package recordtest provides an in-memory record.Store for tests, with call
// counting and failure injection.
package recordtest

import (
	"context"
	"fmt"
	"maps"
	"strconv"
	"sync"
	"time"

	"aurora/internal/record"
)

// Store keeps records in slices so duplicates stay observable.
type Store struct {
	mu     sync.Mutex
	users  []*record.User
	guilds []*record.Guild
	seq    int

	calls map[string]int
	fail  map[string]error

	// Delay, when set, is slept inside every call before the record lock is
	// taken, widening race windows in concurrency tests.
	Delay time.Duration
}

func New() *Store {
	return &Store{calls: map[string]int{}, fail: map[string]error{}}
}

// Fail makes op (for example "users.create") return err wrapped in record.ErrUnavailable.
func (s *Store) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[op] = err
}

// Calls reports how many times op was invoked.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// TotalCalls reports all invocations across operations.
func (s *Store) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// UserRecords returns copies of every stored user record matching key.
func (s *Store) UserRecords(key record.UserKey) []record.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []record.User
	for _, u := range s.users {
		if u.Key() == key {
			c := *u
			c.Data = maps.Clone(u.Data)
			out = append(out, c)
		}
	}
	return out
}

// GuildRecords returns copies of every stored guild record for guildID.
func (s *Store) GuildRecords(guildID string) []record.Guild {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []record.Guild
	for _, g := range s.guilds {
		if g.GuildID == guildID {
			c := *g
			c.Data = maps.Clone(g.Data)
			out = append(out, c)
		}
	}
	return out
}

func (s *Store) Users() record.UserCollection   { return users{s} }
func (s *Store) Guilds() record.GuildCollection { return guilds{s} }
func (s *Store) Close(context.Context) error    { return nil }

func (s *Store) enter(op string) error {
	if s.Delay > 0 {
		time.Sleep(s.Delay)
	}
	s.mu.Lock()
	s.calls[op]++
	if err := s.fail[op]; err != nil {
		return fmt.Errorf("%s: %w: %w", op, record.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) nextID() string {
	s.seq++
	return strconv.Itoa(s.seq)
}

type users struct{ s *Store }

func (c users) Create(_ context.Context, key record.UserKey, data record.Fields) (*record.User, error) {
	err := c.s.enter("users.create")
	defer c.s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u := &record.User{ID: c.s.nextID(), UserID: key.UserID, GuildID: key.GuildID, Data: data.Clean(), CreatedAt: now, UpdatedAt: now}
	c.s.users = append(c.s.users, u)
	out := *u
	out.Data = maps.Clone(u.Data)
	return &out, nil
}

func (c users) FindFirst(_ context.Context, key record.UserKey) (*record.User, error) {
	err := c.s.enter("users.find")
	defer c.s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	for _, u := range c.s.users {
		if u.Key() == key {
			out := *u
			out.Data = maps.Clone(u.Data)
			return &out, nil
		}
	}
	return nil, record.ErrNotFound
}

func (c users) UpdateMany(_ context.Context, key record.UserKey, data record.Fields) (int64, error) {
	err := c.s.enter("users.update")
	defer c.s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	var n int64
	for _, u := range c.s.users {
		if u.Key() == key {
			u.Data = record.Merge(u.Data, data)
			u.UpdatedAt = time.Now().UTC()
			n++
		}
	}
	return n, nil
}

func (c users) DeleteMany(_ context.Context, key record.UserKey) (int64, error) {
	err := c.s.enter("users.delete")
	defer c.s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	kept := c.s.users[:0]
	var n int64
	for _, u := range c.s.users {
		if u.Key() == key {
			n++
			continue
		}
		kept = append(kept, u)
	}
	c.s.users = kept
	return n, nil
}

type guilds struct{ s *Store }

func (c guilds) Create(_ context.Context, guildID string, data record.Fields) (*record.Guild, error) {
	err := c.s.enter("guilds.create")
	defer c.s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	g := &record.Guild{ID: c.s.nextID(), GuildID: guildID, Data: data.Clean(), CreatedAt: now, UpdatedAt: now}
	c.s.guilds = append(c.s.guilds, g)
	out := *g
	out.Data = maps.Clone(g.Data)
	return &out, nil
}

func (c guilds) FindFirst(_ context.Context, guildID string) (*record.Guild, error) {
	err := c.s.enter("guilds.find")
	defer c.s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	for _, g := range c.s.guilds {
		if g.GuildID == guildID {
			out := *g
			out.Data = maps.Clone(g.Data)
			return &out, nil
		}
	}
	return nil, record.ErrNotFound
}

func (c guilds) UpdateMany(_ context.Context, guildID string, data record.Fields) (int64, error) {
	err := c.s.enter("guilds.update")
	defer c.s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	var n int64
	for _, g := range c.s.guilds {
		if g.GuildID == guildID {
			g.Data = record.Merge(g.Data, data)
			g.UpdatedAt = time.Now().UTC()
			n++
		}
	}
	return n, nil
}

func (c guilds) DeleteMany(_ context.Context, guildID string) (int64, error) {
	err := c.s.enter("guilds.delete")
	defer c.s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	kept := c.s.guilds[:0]
	var n int64
	for _, g := range c.s.guilds {
		if g.GuildID == guildID {
			n++
			continue
		}
		kept = append(kept, g)
	}
	c.s.guilds = kept
	return n, nil
}
