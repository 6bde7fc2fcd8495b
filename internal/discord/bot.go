// Package discord runs the gateway session: it keeps guild and member records
// in step with gateway events and dispatches slash commands.
package discord

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"aurora/internal/config"
	"aurora/internal/locale"
	"aurora/internal/music/player"
	"aurora/internal/perms"
	"aurora/internal/record"
	"aurora/internal/recordsync"
	"aurora/internal/voicegate"
	"aurora/pkg/cmd"
	"aurora/pkg/jobmgr"
	"aurora/pkg/retrylimit"
)

const (
	commandCacheFile = "commands.json"
	// syncWorkers bounds concurrent per-guild command syncs on startup.
	syncWorkers = 4
	// interactionTimeout bounds one slash command run.
	interactionTimeout = 15 * time.Second
)

// Bot is the Discord front end of aurora.
type Bot struct {
	cfg     *config.Config
	log     *logrus.Entry
	dg      *discordgo.Session
	records *recordsync.Syncer
	locales *locale.Manager

	players   *player.Registry
	gate      *voicegate.Gate
	evaluator *perms.Evaluator
	commands  *cmd.Registry
	cache     *commandCache
	jobs      *jobmgr.Manager

	limiter       *retrylimit.AdaptiveLimiter
	retryAttempts int
	retryDelay    time.Duration

	mu        sync.RWMutex
	botUserID string
	synced    map[string]bool
}

// New prepares the session and every component; nothing connects until Run.
func New(cfg *config.Config, store record.Store, locales *locale.Manager, log *logrus.Entry) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	cache, err := openCommandCache(filepath.Join(filepath.Dir(cfg.StoragePath), commandCacheFile), log.WithField("component", "command_cache"))
	if err != nil {
		return nil, fmt.Errorf("failed to open command cache: %w", err)
	}

	b := newBot(cfg, recordsync.New(store, log.WithField("component", "recordsync")), locales, cache, log)
	b.dg = dg
	b.players = player.NewRegistry(player.SessionJoiner{Session: dg}, player.Silent{}, log)
	b.gate = voicegate.New(b.players, b.players)
	b.evaluator = perms.NewEvaluator(dg.State, b.botID)
	b.registerAll()
	return b, nil
}

func newBot(cfg *config.Config, records *recordsync.Syncer, locales *locale.Manager, cache *commandCache, log *logrus.Entry) *Bot {
	log = log.WithField("component", "discord")
	return &Bot{
		cfg:           cfg,
		log:           log,
		records:       records,
		locales:       locales,
		commands:      cmd.NewRegistry(),
		cache:         cache,
		jobs:          jobmgr.NewManager(jobReporter(log)),
		limiter:       retrylimit.NewAdaptiveLimiter(5, 1, 20, 0.5, 0.5),
		retryAttempts: 5,
		retryDelay:    500 * time.Millisecond,
		synced:        map[string]bool{},
	}
}

// Run opens the gateway and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildVoiceStates

	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onGuildCreate)
	b.dg.AddHandler(b.onGuildDelete)
	b.dg.AddHandler(b.onGuildMemberRemove)
	b.dg.AddHandler(b.onVoiceStateUpdate)
	b.dg.AddHandler(b.onInteractionCreate)

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}

	<-ctx.Done()
	b.log.Info("shutdown signal received, cleaning up")

	b.log.Info(b.jobs.Status())
	b.jobs.StopAll()
	b.players.Shutdown()
	if err := b.cache.Close(); err != nil {
		b.log.WithError(err).Warn("failed to flush command cache")
	}
	return b.dg.Close()
}

func (b *Bot) botID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.botUserID
}

func (b *Bot) setBotID(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.botUserID = id
}

// markSynced reports whether the guild still needed its commands synced.
func (b *Bot) markSynced(guildID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.synced[guildID] {
		return false
	}
	b.synced[guildID] = true
	return true
}

func (b *Bot) forgetSynced(guildID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.synced, guildID)
}

// limiterRate reports the current command registration pace.
func (b *Bot) limiterRate() rate.Limit {
	return rate.Limit(b.limiter.CurrentLimit())
}

func jobReporter(log *logrus.Entry) jobmgr.Reporter {
	return func(e jobmgr.Event) {
		entry := log.WithFields(logrus.Fields{"job": e.Job, "state": string(e.State)})
		if e.Err != nil {
			entry.WithError(e.Err).Warn("background job failed")
			return
		}
		entry.Debug("background job")
	}
}
