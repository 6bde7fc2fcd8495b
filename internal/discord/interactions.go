package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"aurora/internal/bot"
	"aurora/internal/command"
	"aurora/internal/command/settings"
	"aurora/internal/format"
	"aurora/pkg/cmd"
)

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
	defer cancel()
	b.dispatch(ctx, s, i)
}

// dispatch runs the named command with the guild's language. A failing
// command is logged and answered with a generic error.
func (b *Bot) dispatch(ctx context.Context, r bot.Responder, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	lang := b.language(ctx, i.GuildID)
	localize := b.locales.For(lang)
	log := b.log.WithFields(logrus.Fields{"command": data.Name, "guild_id": i.GuildID})

	c, ok := b.commands.Get(data.Name)
	if !ok {
		log.Warn("unknown command")
		if err := bot.RespondEphemeral(r, i, format.Reply(localize("misc.error"), ":x:")); err != nil {
			log.WithError(err).Warn("failed to respond")
		}
		return
	}

	sc := &command.SlashInteractionContext{
		Session:  r,
		Event:    i,
		Records:  b.records,
		Localize: localize,
		Language: lang,
		Embed:    b.cfg.Embed,
		Log:      log,
	}
	err := c.Run(ctx, &cmd.Invocation{Data: sc})
	if err == nil {
		return
	}

	log.WithError(err).Error("error running slash command")
	failure := &discordgo.MessageEmbed{
		Description: format.Reply(localize("misc.error"), ":x:"),
		Color:       b.cfg.Embed.Color(),
	}
	if rerr := bot.RespondEmbedEphemeral(r, i, failure); rerr != nil {
		// Already acknowledged: answer with a followup instead.
		if _, ferr := r.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
			Embeds: []*discordgo.MessageEmbed{failure},
			Flags:  discordgo.MessageFlagsEphemeral,
		}); ferr != nil {
			log.WithError(ferr).Warn("failed to report command error")
		}
	}
}

// language resolves the guild's configured language, falling back to the
// default locale.
func (b *Bot) language(ctx context.Context, guildID string) string {
	if guildID == "" {
		return b.locales.Fallback()
	}
	g := b.records.GetGuild(ctx, guildID)
	if g == nil {
		return b.locales.Fallback()
	}
	if lang := g.Data.String(settings.LanguageField); b.locales.Has(lang) {
		return lang
	}
	return b.locales.Fallback()
}
