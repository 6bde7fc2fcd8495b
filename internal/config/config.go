// /internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	DriverJSON     = "json"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverMongo    = "mongo"
)

var drivers = []string{DriverJSON, DriverSQLite, DriverPostgres, DriverMySQL, DriverMongo}

// EmbedConfig controls the look of embeds produced by the formatter.
type EmbedConfig struct {
	ShowAuthor   bool   `env:"EMBED_SHOW_AUTHOR" envDefault:"true"`
	HexColor     string `env:"EMBED_HEX_COLOR" envDefault:"7289da"`
	SetTimestamp bool   `env:"EMBED_TIMESTAMP" envDefault:"true"`
}

// Color parses HexColor; callers get the default blurple when it is unparsable.
func (e EmbedConfig) Color() int {
	c, err := strconv.ParseInt(strings.TrimPrefix(e.HexColor, "#"), 16, 32)
	if err != nil {
		return 0x7289da
	}
	return int(c)
}

type Config struct {
	DiscordToken          string   `env:"DISCORD_TOKEN,required"`
	DeveloperID           string   `env:"DEVELOPER_ID"`
	DiscordGuildBlacklist []string `env:"DISCORD_GUILD_BLACKLIST" envSeparator:","`
	InitSlashCommands     bool     `env:"INIT_SLASH_COMMANDS" envDefault:"true"`

	AppEnv   string `env:"APP_ENV" envDefault:"production"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"json"`
	StoragePath string `env:"STORAGE_PATH" envDefault:"datastore.json"`
	DatabaseURL string `env:"DATABASE_URL"`
	MongoURI    string `env:"MONGO_URI"`
	MongoDB     string `env:"MONGO_DB" envDefault:"aurora"`

	DefaultLocale string `env:"DEFAULT_LOCALE" envDefault:"en-US"`

	Embed EmbedConfig
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return parse(env.Options{})
}

// LoadFrom resolves configuration from an explicit variable set, ignoring the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.AppEnv = strings.ToLower(strings.TrimSpace(c.AppEnv))
	if c.AppEnv != EnvDevelopment && c.AppEnv != EnvProduction {
		return fmt.Errorf("invalid APP_ENV %q: must be %q or %q", c.AppEnv, EnvDevelopment, EnvProduction)
	}

	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	if !slices.Contains(drivers, c.StoreDriver) {
		return fmt.Errorf("invalid STORE_DRIVER %q: must be one of %s", c.StoreDriver, strings.Join(drivers, ", "))
	}

	switch c.StoreDriver {
	case DriverPostgres, DriverMySQL:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for STORE_DRIVER=%s", c.StoreDriver)
		}
	case DriverMongo:
		if c.MongoURI == "" {
			return errors.New("MONGO_URI is required for STORE_DRIVER=mongo")
		}
	case DriverJSON, DriverSQLite:
		if c.StoragePath == "" {
			return fmt.Errorf("STORAGE_PATH is required for STORE_DRIVER=%s", c.StoreDriver)
		}
	}

	if _, err := strconv.ParseInt(strings.TrimPrefix(c.Embed.HexColor, "#"), 16, 32); err != nil {
		return fmt.Errorf("invalid EMBED_HEX_COLOR %q: %w", c.Embed.HexColor, err)
	}

	c.DiscordGuildBlacklist = slices.DeleteFunc(c.DiscordGuildBlacklist, func(id string) bool {
		return strings.TrimSpace(id) == ""
	})
	return nil
}

// IsDevelopment reports if APP_ENV is development.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// IsDeveloper reports whether userID is the configured developer.
func (c *Config) IsDeveloper(userID string) bool {
	return c.DeveloperID != "" && c.DeveloperID == userID
}

// IsGuildBlacklisted reports whether the bot should refuse to serve guildID.
func (c *Config) IsGuildBlacklisted(guildID string) bool {
	return slices.Contains(c.DiscordGuildBlacklist, guildID)
}
