// Package middleware holds the cmd.Middleware chain applied to slash commands.
package middleware

import (
	"context"

	"aurora/internal/bot"
	"aurora/internal/command"
	"aurora/internal/format"
	"aurora/pkg/cmd"
)

// WithGuildOnly refuses commands invoked outside a guild.
func WithGuildOnly() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			sc, ok := inv.Data.(*command.SlashInteractionContext)
			if !ok || sc.Event.GuildID != "" {
				return c.Run(ctx, inv)
			}
			return bot.RespondEphemeral(sc.Session, sc.Event, format.Reply(sc.Localize("misc.guild_only"), ":x:"))
		})
	}
}
