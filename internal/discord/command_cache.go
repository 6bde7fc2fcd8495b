package discord

import (
	"strings"

	"github.com/sirupsen/logrus"

	"aurora/datastore"
)

// commandCache remembers, per guild, the hash of every command last pushed to
// Discord so unchanged definitions are not re-registered on each start.
type commandCache struct {
	ds  *datastore.DataStore
	log *logrus.Entry
}

func openCommandCache(path string, log *logrus.Entry) (*commandCache, error) {
	cfg := datastore.DefaultConfig(path)
	cfg.Logger = log
	ds, err := datastore.NewWithConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &commandCache{ds: ds, log: log}, nil
}

const cacheKeyPrefix = "commands:"

func cacheKey(guildID string) string { return cacheKeyPrefix + guildID }

// load returns the cached hashes of a guild; a read failure yields an empty
// map so every command is pushed again.
func (c *commandCache) load(guildID string) map[string]string {
	hashes := map[string]string{}
	if _, err := c.ds.Get(cacheKey(guildID), &hashes); err != nil {
		c.log.WithError(err).WithField("guild_id", guildID).Warn("failed to read command cache")
		return map[string]string{}
	}
	return hashes
}

func (c *commandCache) save(guildID string, hashes map[string]string) {
	if err := c.ds.Put(cacheKey(guildID), hashes); err != nil {
		c.log.WithError(err).WithField("guild_id", guildID).Warn("failed to write command cache")
	}
}

func (c *commandCache) forget(guildID string) {
	if err := c.ds.Delete(cacheKey(guildID)); err != nil {
		c.log.WithError(err).WithField("guild_id", guildID).Warn("failed to clear command cache")
	}
}

// prune drops the entries of guilds not in keep and returns how many went.
func (c *commandCache) prune(keep []string) int {
	wanted := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		wanted[id] = struct{}{}
	}
	n := 0
	for _, key := range c.ds.Keys() {
		guildID, ok := strings.CutPrefix(key, cacheKeyPrefix)
		if !ok {
			continue
		}
		if _, ok := wanted[guildID]; ok {
			continue
		}
		c.forget(guildID)
		n++
	}
	return n
}

func (c *commandCache) Close() error {
	return c.ds.Close()
}
