package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"aurora/internal/command"
	"aurora/internal/command/core"
	"aurora/internal/command/music"
	"aurora/internal/command/profile"
	"aurora/internal/command/settings"
	"aurora/internal/middleware"
	"aurora/internal/voicegate"
	"aurora/pkg/cmd"
	"aurora/pkg/retrylimit"
)

// commandAPI is the part of *discordgo.Session used to sync slash commands.
type commandAPI interface {
	ApplicationCommands(appID, guildID string, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
	ApplicationCommandCreate(appID string, guildID string, cmd *discordgo.ApplicationCommand, options ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error)
	ApplicationCommandDelete(appID, guildID, cmdID string, options ...discordgo.RequestOption) error
}

// registerAll builds every slash command with the shared middleware chain.
func (b *Bot) registerAll() {
	mws := []cmd.Middleware{
		middleware.WithCommandLogger(b.log.WithField("component", "command")),
		middleware.WithGuildOnly(),
		middleware.WithPermissionCheck(b.evaluator, b.cfg.IsDeveloper),
	}

	command.Register(b.commands, &core.PingCommand{Latency: b.latency}, mws...)
	command.Register(b.commands, &music.MusicCommand{
		Players: b.players,
		Gate:    b.gate,
		Voice:   b.voiceContext,
	}, mws...)
	command.Register(b.commands, &profile.ProfileCommand{}, mws...)
	command.Register(b.commands, &settings.SettingsCommand{Locales: b.locales}, mws...)
}

func (b *Bot) latency() time.Duration {
	if b.dg == nil {
		return 0
	}
	return b.dg.HeartbeatLatency()
}

func (b *Bot) voiceContext(guildID, userID string) voicegate.Context {
	return voicegate.ContextFromState(b.dg.State, guildID, userID, b.botID())
}

// definitions returns the ApplicationCommand definitions of all registered commands.
func (b *Bot) definitions() []*discordgo.ApplicationCommand {
	var defs []*discordgo.ApplicationCommand
	for _, c := range b.commands.GetAll() {
		def := command.Definition(c)
		if def == nil {
			continue
		}
		if def.Type == 0 {
			def.Type = discordgo.ChatApplicationCommand
		}
		defs = append(defs, def)
	}
	return defs
}

// syncCommands deletes obsolete guild commands and creates those whose
// definition changed since the last sync.
func (b *Bot) syncCommands(ctx context.Context, api commandAPI, appID, guildID string) error {
	log := b.log.WithField("guild_id", guildID)

	var remote []*discordgo.ApplicationCommand
	err := b.retry(ctx, log, func() error {
		var err error
		remote, err = api.ApplicationCommands(appID, guildID)
		return classify(err)
	})
	if err != nil {
		return fmt.Errorf("failed to list commands: %w", err)
	}

	local := b.definitions()
	localNames := make(map[string]struct{}, len(local))
	for _, d := range local {
		localNames[d.Name] = struct{}{}
	}
	remoteNames := make(map[string]struct{}, len(remote))

	hashes := b.cache.load(guildID)
	for _, rc := range remote {
		remoteNames[rc.Name] = struct{}{}
		if _, ok := localNames[rc.Name]; ok {
			continue
		}
		log.WithField("command", rc.Name).Info("deleting obsolete command")
		err := b.retry(ctx, log, func() error {
			return classify(api.ApplicationCommandDelete(appID, guildID, rc.ID))
		})
		if err != nil {
			log.WithError(err).WithField("command", rc.Name).Error("failed to delete command")
			continue
		}
		delete(hashes, rc.Name)
	}

	var failed int
	for _, d := range local {
		h := hashCommand(d)
		_, registered := remoteNames[d.Name]
		if registered && hashes[d.Name] == h {
			continue
		}
		err := b.retry(ctx, log, func() error {
			_, err := api.ApplicationCommandCreate(appID, guildID, d)
			return classify(err)
		})
		if err != nil {
			failed++
			log.WithError(err).WithField("command", d.Name).Error("failed to register command")
			continue
		}
		hashes[d.Name] = h
		log.WithField("command", d.Name).Info("registered command")
	}

	b.cache.save(guildID, hashes)
	if failed > 0 {
		return fmt.Errorf("%d command(s) failed to register", failed)
	}
	return nil
}

// removeCommands deletes every command of the bot in a guild.
func (b *Bot) removeCommands(ctx context.Context, api commandAPI, appID, guildID string) {
	log := b.log.WithField("guild_id", guildID)
	existing, err := api.ApplicationCommands(appID, guildID)
	if err != nil {
		log.WithError(err).Warn("failed to list commands")
		return
	}
	for _, c := range existing {
		err := b.retry(ctx, log, func() error {
			return classify(api.ApplicationCommandDelete(appID, guildID, c.ID))
		})
		if err != nil {
			log.WithError(err).WithField("command", c.Name).Error("failed to delete command")
		}
	}
	b.cache.forget(guildID)
}

func (b *Bot) retry(ctx context.Context, log *logrus.Entry, fn func() error) error {
	cfg := retrylimit.DefaultRetryConfig()
	cfg.MaxAttempts = b.retryAttempts
	cfg.InitialDelay = b.retryDelay
	cfg.Logger = log
	return retrylimit.WithRetryConfig(ctx, fn, b.limiter, cfg)
}
