// Package gormstore backs the record collections with Postgres or MySQL via gorm.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"aurora/internal/record"
)

type userModel struct {
	ID        string            `gorm:"primaryKey;size:36"`
	GuildID   string            `gorm:"size:32;not null;index:idx_users_key,priority:1"`
	UserID    string            `gorm:"size:32;not null;index:idx_users_key,priority:2"`
	Data      datatypes.JSONMap `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (userModel) TableName() string { return "users" }

type guildModel struct {
	ID        string            `gorm:"primaryKey;size:36"`
	GuildID   string            `gorm:"size:32;not null;index:idx_guilds_key"`
	Data      datatypes.JSONMap `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (guildModel) TableName() string { return "guilds" }

type Store struct {
	db *gorm.DB
}

// Dialector picks the gorm driver for a STORE_DRIVER value.
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "postgres":
		return postgres.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("gormstore: unsupported driver %q", driver)
	}
}

// Open connects, tunes the pool and migrates the schema.
func Open(ctx context.Context, driver, dsn string, log *logrus.Entry) (*Store, error) {
	dialector, err := Dialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %w", record.ErrUnavailable, driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.WithContext(ctx).AutoMigrate(&userModel{}, &guildModel{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("%w: migrate: %w", record.ErrUnavailable, err)
	}

	if log != nil {
		log.WithField("driver", driver).Info("SQL store initialized")
	}
	return &Store{db: db}, nil
}

func (s *Store) Users() record.UserCollection   { return users{s.db} }
func (s *Store) Guilds() record.GuildCollection { return guilds{s.db} }

func (s *Store) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, record.ErrUnavailable, err)
}

func toFields(m datatypes.JSONMap) record.Fields {
	out := make(record.Fields, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func toJSONMap(f record.Fields) datatypes.JSONMap {
	out := make(datatypes.JSONMap, len(f))
	for k, v := range f.Clean() {
		out[k] = v
	}
	return out
}

func (m *userModel) record() *record.User {
	return &record.User{ID: m.ID, UserID: m.UserID, GuildID: m.GuildID, Data: toFields(m.Data), CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

func (m *guildModel) record() *record.Guild {
	return &record.Guild{ID: m.ID, GuildID: m.GuildID, Data: toFields(m.Data), CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

type users struct{ db *gorm.DB }

func (c users) Create(ctx context.Context, key record.UserKey, data record.Fields) (*record.User, error) {
	m := userModel{ID: uuid.NewString(), UserID: key.UserID, GuildID: key.GuildID, Data: toJSONMap(data)}
	if err := c.db.WithContext(ctx).Create(&m).Error; err != nil {
		return nil, unavailable("insert user", err)
	}
	return m.record(), nil
}

func (c users) FindFirst(ctx context.Context, key record.UserKey) (*record.User, error) {
	var m userModel
	err := c.db.WithContext(ctx).
		Where("guild_id = ? AND user_id = ?", key.GuildID, key.UserID).
		Order("created_at, id").
		Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, record.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("find user", err)
	}
	return m.record(), nil
}

func (c users) UpdateMany(ctx context.Context, key record.UserKey, data record.Fields) (int64, error) {
	var n int64
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []userModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("guild_id = ? AND user_id = ?", key.GuildID, key.UserID).
			Find(&rows).Error; err != nil {
			return err
		}
		for i := range rows {
			rows[i].Data = toJSONMap(record.Merge(toFields(rows[i].Data), data))
			if err := tx.Save(&rows[i]).Error; err != nil {
				return err
			}
		}
		n = int64(len(rows))
		return nil
	})
	if err != nil {
		return 0, unavailable("update users", err)
	}
	return n, nil
}

func (c users) DeleteMany(ctx context.Context, key record.UserKey) (int64, error) {
	res := c.db.WithContext(ctx).
		Where("guild_id = ? AND user_id = ?", key.GuildID, key.UserID).
		Delete(&userModel{})
	if res.Error != nil {
		return 0, unavailable("delete users", res.Error)
	}
	return res.RowsAffected, nil
}

type guilds struct{ db *gorm.DB }

func (c guilds) Create(ctx context.Context, guildID string, data record.Fields) (*record.Guild, error) {
	m := guildModel{ID: uuid.NewString(), GuildID: guildID, Data: toJSONMap(data)}
	if err := c.db.WithContext(ctx).Create(&m).Error; err != nil {
		return nil, unavailable("insert guild", err)
	}
	return m.record(), nil
}

func (c guilds) FindFirst(ctx context.Context, guildID string) (*record.Guild, error) {
	var m guildModel
	err := c.db.WithContext(ctx).
		Where("guild_id = ?", guildID).
		Order("created_at, id").
		Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, record.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("find guild", err)
	}
	return m.record(), nil
}

func (c guilds) UpdateMany(ctx context.Context, guildID string, data record.Fields) (int64, error) {
	var n int64
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []guildModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("guild_id = ?", guildID).
			Find(&rows).Error; err != nil {
			return err
		}
		for i := range rows {
			rows[i].Data = toJSONMap(record.Merge(toFields(rows[i].Data), data))
			if err := tx.Save(&rows[i]).Error; err != nil {
				return err
			}
		}
		n = int64(len(rows))
		return nil
	})
	if err != nil {
		return 0, unavailable("update guilds", err)
	}
	return n, nil
}

func (c guilds) DeleteMany(ctx context.Context, guildID string) (int64, error) {
	res := c.db.WithContext(ctx).Where("guild_id = ?", guildID).Delete(&guildModel{})
	if res.Error != nil {
		return 0, unavailable("delete guilds", res.Error)
	}
	return res.RowsAffected, nil
}
