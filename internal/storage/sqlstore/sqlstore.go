// Package sqlstore persists records in SQLite through modernc.org/sqlite.
// Payloads live in a JSON text column; users and guilds tables carry no unique
// constraint on their keys, so duplicate rows are representable.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"aurora/internal/record"
)

type Store struct {
	db  *sql.DB
	log *logrus.Entry
}

// Open creates the database at path (and its parent directory) if needed.
func Open(path string, log *logrus.Entry) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One writer at a time keeps SQLITE_BUSY out of the picture.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &Store{db: db, log: log}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if log != nil {
		log.WithField("path", path).Info("SQLite store initialized")
	}
	return s, nil
}

func (s *Store) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			guild_id TEXT NOT NULL,
			data TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_users_key ON users(guild_id, user_id, created_at);

		CREATE TABLE IF NOT EXISTS guilds (
			id TEXT PRIMARY KEY,
			guild_id TEXT NOT NULL,
			data TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_guilds_key ON guilds(guild_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Users() record.UserCollection   { return users{s.db} }
func (s *Store) Guilds() record.GuildCollection { return guilds{s.db} }

func (s *Store) Close(context.Context) error {
	return s.db.Close()
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, record.ErrUnavailable, err)
}

func affected(op string, res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable(op, err)
	}
	return n, nil
}

func encode(data record.Fields) (string, error) {
	clean := data.Clean()
	raw, err := json.Marshal(clean)
	if err != nil {
		return "", fmt.Errorf("encoding data: %w", err)
	}
	return string(raw), nil
}

func decode(raw string) (record.Fields, error) {
	out := record.Fields{}
	if raw == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decoding data: %w", err)
	}
	return out, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// mergeRows rewrites data on every row selected by query, inside one transaction.
func mergeRows(ctx context.Context, db *sql.DB, table, where string, args []any, patch record.Fields) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, "SELECT id, data FROM "+table+" WHERE "+where, args...)
	if err != nil {
		return 0, err
	}

	type pending struct{ id, data string }
	var updates []pending
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			rows.Close()
			return 0, err
		}
		current, err := decode(raw)
		if err != nil {
			rows.Close()
			return 0, err
		}
		merged, err := encode(record.Merge(current, patch))
		if err != nil {
			rows.Close()
			return 0, err
		}
		updates = append(updates, pending{id, merged})
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	now := formatTime(time.Now())
	for _, u := range updates {
		if _, err := tx.ExecContext(ctx, "UPDATE "+table+" SET data = ?, updated_at = ? WHERE id = ?", u.data, now, u.id); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int64(len(updates)), nil
}

type users struct{ db *sql.DB }

func (c users) Create(ctx context.Context, key record.UserKey, data record.Fields) (*record.User, error) {
	raw, err := encode(data)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u := &record.User{ID: uuid.NewString(), UserID: key.UserID, GuildID: key.GuildID, CreatedAt: now, UpdatedAt: now}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO users (id, user_id, guild_id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, u.ID, u.UserID, u.GuildID, raw, formatTime(now), formatTime(now))
	if err != nil {
		return nil, unavailable("insert user", err)
	}

	u.Data, _ = decode(raw)
	return u, nil
}

func (c users) FindFirst(ctx context.Context, key record.UserKey) (*record.User, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, user_id, guild_id, data, created_at, updated_at
		FROM users WHERE guild_id = ? AND user_id = ?
		ORDER BY rowid LIMIT 1
	`, key.GuildID, key.UserID)

	var (
		u                 record.User
		raw, created, upd string
	)
	err := row.Scan(&u.ID, &u.UserID, &u.GuildID, &raw, &created, &upd)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, record.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("find user", err)
	}

	if u.Data, err = decode(raw); err != nil {
		return nil, err
	}
	u.CreatedAt, u.UpdatedAt = parseTime(created), parseTime(upd)
	return &u, nil
}

func (c users) UpdateMany(ctx context.Context, key record.UserKey, data record.Fields) (int64, error) {
	n, err := mergeRows(ctx, c.db, "users", "guild_id = ? AND user_id = ?", []any{key.GuildID, key.UserID}, data)
	if err != nil {
		return 0, unavailable("update users", err)
	}
	return n, nil
}

func (c users) DeleteMany(ctx context.Context, key record.UserKey) (int64, error) {
	res, err := c.db.ExecContext(ctx, "DELETE FROM users WHERE guild_id = ? AND user_id = ?", key.GuildID, key.UserID)
	if err != nil {
		return 0, unavailable("delete users", err)
	}
	return affected("delete users", res)
}

type guilds struct{ db *sql.DB }

func (c guilds) Create(ctx context.Context, guildID string, data record.Fields) (*record.Guild, error) {
	raw, err := encode(data)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	g := &record.Guild{ID: uuid.NewString(), GuildID: guildID, CreatedAt: now, UpdatedAt: now}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO guilds (id, guild_id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, g.ID, g.GuildID, raw, formatTime(now), formatTime(now))
	if err != nil {
		return nil, unavailable("insert guild", err)
	}

	g.Data, _ = decode(raw)
	return g, nil
}

func (c guilds) FindFirst(ctx context.Context, guildID string) (*record.Guild, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, guild_id, data, created_at, updated_at
		FROM guilds WHERE guild_id = ?
		ORDER BY rowid LIMIT 1
	`, guildID)

	var (
		g                 record.Guild
		raw, created, upd string
	)
	err := row.Scan(&g.ID, &g.GuildID, &raw, &created, &upd)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, record.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("find guild", err)
	}

	if g.Data, err = decode(raw); err != nil {
		return nil, err
	}
	g.CreatedAt, g.UpdatedAt = parseTime(created), parseTime(upd)
	return &g, nil
}

func (c guilds) UpdateMany(ctx context.Context, guildID string, data record.Fields) (int64, error) {
	n, err := mergeRows(ctx, c.db, "guilds", "guild_id = ?", []any{guildID}, data)
	if err != nil {
		return 0, unavailable("update guilds", err)
	}
	return n, nil
}

func (c guilds) DeleteMany(ctx context.Context, guildID string) (int64, error) {
	res, err := c.db.ExecContext(ctx, "DELETE FROM guilds WHERE guild_id = ?", guildID)
	if err != nil {
		return 0, unavailable("delete guilds", err)
	}
	return affected("delete guilds", res)
}
