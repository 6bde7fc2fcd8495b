package core

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"

	"aurora/internal/bot"
	"aurora/internal/command"
	"aurora/internal/format"
	"aurora/internal/locale"
)

type PingCommand struct {
	// Latency reports the gateway heartbeat latency.
	Latency func() time.Duration
}

func (c *PingCommand) Name() string             { return "ping" }
func (c *PingCommand) Description() string      { return "Check bot latency" }
func (c *PingCommand) Group() string            { return "core" }
func (c *PingCommand) Category() string         { return "🛠️ Maintenance" }
func (c *PingCommand) UserPermissions() []int64 { return nil }
func (c *PingCommand) BotPermissions() []int64 {
	return []int64{discordgo.PermissionSendMessages, discordgo.PermissionEmbedLinks}
}

func (c *PingCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Type:        discordgo.ChatApplicationCommand,
	}
}

func (c *PingCommand) Run(_ context.Context, sc *command.SlashInteractionContext) error {
	var latency time.Duration
	if c.Latency != nil {
		latency = c.Latency()
	}

	e, err := format.Embed(sc.Event, sc.Embed)
	if err != nil {
		return err
	}
	e.SetDescription(format.Reply(sc.Localize("commands.ping.reply", locale.Vars{
		"latency": latency.Round(time.Millisecond).String(),
	}), "🏓"))

	return bot.RespondEmbedEphemeral(sc.Session, sc.Event, e.MessageEmbed)
}
