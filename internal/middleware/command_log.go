package middleware

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"aurora/internal/command"
	"aurora/pkg/cmd"
)

// WithCommandLogger logs every slash command run with its outcome.
func WithCommandLogger(log *logrus.Entry) cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			start := time.Now()
			err := c.Run(ctx, inv)

			entry := log.WithFields(logrus.Fields{
				"command":  c.Name(),
				"duration": time.Since(start).String(),
			})
			if sc, ok := inv.Data.(*command.SlashInteractionContext); ok {
				entry = entry.WithFields(logrus.Fields{
					"guild_id":   sc.Event.GuildID,
					"channel_id": sc.Event.ChannelID,
					"user_id":    sc.UserID(),
				})
			}
			if err != nil {
				entry.WithError(err).Warn("command failed")
			} else {
				entry.Info("command executed")
			}
			return err
		})
	}
}
