package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{"DISCORD_TOKEN": "abc"})
	require.NoError(t, err)

	assert.Equal(t, "abc", cfg.DiscordToken)
	assert.Equal(t, EnvProduction, cfg.AppEnv)
	assert.Equal(t, DriverJSON, cfg.StoreDriver)
	assert.Equal(t, "datastore.json", cfg.StoragePath)
	assert.Equal(t, "en-US", cfg.DefaultLocale)
	assert.True(t, cfg.Embed.ShowAuthor)
	assert.Equal(t, 0x7289da, cfg.Embed.Color())
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadFromRequiresToken(t *testing.T) {
	_, err := LoadFrom(map[string]string{})
	require.Error(t, err)
}

func TestLoadFromValidatesDriver(t *testing.T) {
	_, err := LoadFrom(map[string]string{"DISCORD_TOKEN": "abc", "STORE_DRIVER": "redis"})
	require.ErrorContains(t, err, "STORE_DRIVER")

	_, err = LoadFrom(map[string]string{"DISCORD_TOKEN": "abc", "STORE_DRIVER": "postgres"})
	require.ErrorContains(t, err, "DATABASE_URL")

	_, err = LoadFrom(map[string]string{"DISCORD_TOKEN": "abc", "STORE_DRIVER": "Mongo"})
	require.ErrorContains(t, err, "MONGO_URI")

	cfg, err := LoadFrom(map[string]string{
		"DISCORD_TOKEN": "abc",
		"STORE_DRIVER":  "mongo",
		"MONGO_URI":     "mongodb://localhost:27017",
	})
	require.NoError(t, err)
	assert.Equal(t, DriverMongo, cfg.StoreDriver)
	assert.Equal(t, "aurora", cfg.MongoDB)
}

func TestLoadFromRejectsBadColorAndEnv(t *testing.T) {
	_, err := LoadFrom(map[string]string{"DISCORD_TOKEN": "abc", "EMBED_HEX_COLOR": "zzz"})
	require.ErrorContains(t, err, "EMBED_HEX_COLOR")

	_, err = LoadFrom(map[string]string{"DISCORD_TOKEN": "abc", "APP_ENV": "staging"})
	require.ErrorContains(t, err, "APP_ENV")
}

func TestBlacklistAndDeveloper(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"DISCORD_TOKEN":           "abc",
		"DISCORD_GUILD_BLACKLIST": "111,,222",
		"DEVELOPER_ID":            "42",
		"EMBED_HEX_COLOR":         "#ff0000",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"111", "222"}, cfg.DiscordGuildBlacklist)
	assert.True(t, cfg.IsGuildBlacklisted("222"))
	assert.False(t, cfg.IsGuildBlacklisted("333"))
	assert.True(t, cfg.IsDeveloper("42"))
	assert.False(t, cfg.IsDeveloper(""))
	assert.Equal(t, 0xff0000, cfg.Embed.Color())
}
