package middleware

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"aurora/internal/bot"
	"aurora/internal/command"
	"aurora/internal/perms"
	"aurora/pkg/cmd"
)

// WithPermissionCheck runs the bot check first, then the member check, and
// answers with the list of missing permissions instead of running the command.
// isDeveloper bypasses the member check.
func WithPermissionCheck(ev *perms.Evaluator, isDeveloper func(userID string) bool) cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			sc, ok := inv.Data.(*command.SlashInteractionContext)
			if !ok || sc.Event.GuildID == "" {
				return c.Run(ctx, inv)
			}
			meta, ok := command.Meta(c)
			if !ok {
				return c.Run(ctx, inv)
			}

			target := perms.TargetOf(sc.Event.Interaction)

			msg, err := ev.BotPermissions(meta.BotPermissions(), target, sc.Localize)
			if err != nil {
				return fmt.Errorf("failed to check bot permissions: %w", err)
			}
			if msg == "" && (isDeveloper == nil || !isDeveloper(target.UserID)) {
				msg, err = ev.MemberPermissions(meta.UserPermissions(), target, sc.Localize)
				if err != nil {
					return fmt.Errorf("failed to check member permissions: %w", err)
				}
			}
			if msg != "" {
				return bot.RespondEmbedEphemeral(sc.Session, sc.Event, &discordgo.MessageEmbed{
					Description: msg,
					Color:       sc.Embed.Color(),
				})
			}
			return c.Run(ctx, inv)
		})
	}
}
