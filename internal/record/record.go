// Package record defines the persisted User and Guild documents and the
// collection contract every storage backend implements.
package record

import (
	"context"
	"errors"
	"maps"
	"time"
)

var (
	// ErrNotFound is returned by FindFirst when no record matches the filter.
	ErrNotFound = errors.New("record not found")
	// ErrUnavailable wraps backend failures (connection loss, I/O, driver errors).
	ErrUnavailable = errors.New("record store unavailable")
)

// Reserved field names. They identify a record and cannot be overwritten through Data.
const (
	FieldID      = "id"
	FieldUserID  = "user_id"
	FieldGuildID = "guild_id"
)

// Fields is a free-form payload attached to a record.
type Fields map[string]any

// Clean returns a copy of f without the identifying keys.
func (f Fields) Clean() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		switch k {
		case FieldID, FieldUserID, FieldGuildID:
			continue
		}
		out[k] = v
	}
	return out
}

// Merge returns a shallow merge of base and patch, patch winning.
func Merge(base, patch Fields) Fields {
	out := make(Fields, len(base)+len(patch))
	maps.Copy(out, base)
	maps.Copy(out, patch.Clean())
	return out
}

// String reads a string field, returning "" when absent or of another type.
func (f Fields) String(key string) string {
	s, _ := f[key].(string)
	return s
}

// UserKey identifies a user within one guild.
type UserKey struct {
	UserID  string
	GuildID string
}

type User struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	GuildID   string    `json:"guild_id"`
	Data      Fields    `json:"data"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) Key() UserKey { return UserKey{UserID: u.UserID, GuildID: u.GuildID} }

type Guild struct {
	ID        string    `json:"id"`
	GuildID   string    `json:"guild_id"`
	Data      Fields    `json:"data"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserCollection is the per-user table. FindFirst returns ErrNotFound on a miss;
// UpdateMany shallow-merges data into every matching record.
type UserCollection interface {
	Create(ctx context.Context, key UserKey, data Fields) (*User, error)
	FindFirst(ctx context.Context, key UserKey) (*User, error)
	UpdateMany(ctx context.Context, key UserKey, data Fields) (int64, error)
	DeleteMany(ctx context.Context, key UserKey) (int64, error)
}

// GuildCollection is the per-guild table, same contract keyed by guild id.
type GuildCollection interface {
	Create(ctx context.Context, guildID string, data Fields) (*Guild, error)
	FindFirst(ctx context.Context, guildID string) (*Guild, error)
	UpdateMany(ctx context.Context, guildID string, data Fields) (int64, error)
	DeleteMany(ctx context.Context, guildID string) (int64, error)
}

// Store bundles both collections of one backend.
type Store interface {
	Users() UserCollection
	Guilds() GuildCollection
	Close(ctx context.Context) error
}

// UserUpserter is implemented by collections able to get-or-create atomically.
// The returned record is the existing one, or a new one carrying defaults.
type UserUpserter interface {
	UpsertUser(ctx context.Context, key UserKey, defaults Fields) (*User, error)
}

// GuildUpserter is the guild counterpart of UserUpserter.
type GuildUpserter interface {
	UpsertGuild(ctx context.Context, guildID string, defaults Fields) (*Guild, error)
}
