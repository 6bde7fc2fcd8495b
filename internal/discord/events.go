package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"aurora/pkg/util"
)

const startupSyncJob = "sync:startup"

func syncJobName(guildID string) string { return "sync:" + guildID }

// onReady leaves blacklisted guilds and syncs commands in the others.
func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.setBotID(r.User.ID)

	var guildIDs []string
	for _, g := range r.Guilds {
		if b.cfg.IsGuildBlacklisted(g.ID) {
			b.leave(s, g.ID)
			continue
		}
		guildIDs = append(guildIDs, g.ID)
	}

	if !b.cfg.InitSlashCommands {
		b.log.Info("registering slash commands skipped")
	} else {
		b.log.WithFields(logrus.Fields{
			"guilds":    len(guildIDs),
			"limit_rps": float64(b.limiterRate()),
		}).Info("syncing slash commands")

		if n := b.cache.prune(guildIDs); n > 0 {
			b.log.WithField("entries", n).Info("pruned command cache of departed guilds")
		}
		_ = b.jobs.StartSync(context.Background(), startupSyncJob, func(ctx context.Context) error {
			return util.Parallel(ctx, guildIDs, syncWorkers, func(ctx context.Context, guildID string) error {
				b.syncGuild(ctx, s, guildID)
				return nil
			})
		})
	}

	b.log.WithField("user", r.User.String()).Info("discord bot is running")
}

// onGuildCreate fires for every guild after READY and when the bot joins one.
func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if !b.guildAvailable(context.Background(), g.ID) {
		b.leave(s, g.ID)
		return
	}
	if !b.cfg.InitSlashCommands {
		return
	}
	// Guilds from READY are synced there; this covers guilds joined later.
	err := b.jobs.StartAsync(syncJobName(g.ID), func(ctx context.Context) error {
		b.syncGuild(ctx, s, g.ID)
		return nil
	})
	if err != nil {
		b.log.WithError(err).WithField("guild_id", g.ID).Debug("command sync already running")
	}
}

// guildAvailable ensures the guild record exists; it reports false for
// blacklisted guilds, which get no record.
func (b *Bot) guildAvailable(ctx context.Context, guildID string) bool {
	if b.cfg.IsGuildBlacklisted(guildID) {
		return false
	}
	b.records.GetGuild(ctx, guildID)
	return true
}

// onGuildDelete drops the guild's data when the bot was removed. An outage
// (Unavailable) keeps everything.
func (b *Bot) onGuildDelete(_ *discordgo.Session, g *discordgo.GuildDelete) {
	b.guildRemoved(context.Background(), g.ID, g.Unavailable)
}

func (b *Bot) guildRemoved(ctx context.Context, guildID string, unavailable bool) {
	log := b.log.WithField("guild_id", guildID)
	if unavailable {
		log.Warn("guild became unavailable")
		return
	}

	log.Info("removed from guild")
	// A pending sync would push commands to a guild the bot already left.
	if err := b.jobs.Stop(syncJobName(guildID)); err == nil {
		log.Debug("cancelled pending command sync")
	}
	b.records.DeleteGuild(ctx, guildID)
	if b.players != nil {
		if err := b.players.Remove(guildID); err != nil {
			log.WithError(err).Warn("failed to stop player")
		}
	}
	b.cache.forget(guildID)
	b.forgetSynced(guildID)
}

func (b *Bot) onGuildMemberRemove(_ *discordgo.Session, m *discordgo.GuildMemberRemove) {
	if m.Member == nil || m.User == nil {
		return
	}
	b.memberRemoved(context.Background(), m.GuildID, m.User.ID)
}

func (b *Bot) memberRemoved(ctx context.Context, guildID, userID string) {
	if userID == b.botID() {
		return
	}
	b.records.RemoveUser(ctx, userID, guildID)
}

// onVoiceStateUpdate drops the player when the bot is disconnected from voice.
func (b *Bot) onVoiceStateUpdate(_ *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v.VoiceState == nil || v.UserID != b.botID() || v.ChannelID != "" {
		return
	}
	if err := b.players.Remove(v.GuildID); err != nil {
		b.log.WithError(err).WithField("guild_id", v.GuildID).Warn("failed to stop player")
	}
}

func (b *Bot) syncGuild(ctx context.Context, s *discordgo.Session, guildID string) {
	if !b.markSynced(guildID) {
		return
	}
	if err := b.syncCommands(ctx, s, b.botID(), guildID); err != nil {
		b.forgetSynced(guildID)
		b.log.WithError(err).WithField("guild_id", guildID).Error("failed to sync slash commands")
	}
}

func (b *Bot) leave(s *discordgo.Session, guildID string) {
	log := b.log.WithField("guild_id", guildID)
	log.Info("leaving blacklisted guild")
	if b.cfg.InitSlashCommands {
		b.removeCommands(context.Background(), s, b.botID(), guildID)
	}
	if err := s.GuildLeave(guildID); err != nil {
		log.WithError(err).Error("failed to leave guild")
	}
}
