// Package command adapts Discord slash commands to the transport-agnostic
// pkg/cmd core and defines the context they run with.
package command

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"aurora/internal/bot"
	"aurora/internal/config"
	"aurora/internal/locale"
	"aurora/internal/recordsync"
	"aurora/pkg/cmd"
)

// SlashInteractionContext is what the dispatcher passes to a slash command.
type SlashInteractionContext struct {
	Session  bot.Responder
	Event    *discordgo.InteractionCreate
	Records  *recordsync.Syncer
	Localize locale.Localize
	Language string
	Embed    config.EmbedConfig
	Log      *logrus.Entry
}

// UserID returns the invoking user's id.
func (sc *SlashInteractionContext) UserID() string {
	switch {
	case sc.Event.Member != nil && sc.Event.Member.User != nil:
		return sc.Event.Member.User.ID
	case sc.Event.User != nil:
		return sc.Event.User.ID
	}
	return ""
}

// SlashProvider describes how a command is registered with Discord.
type SlashProvider interface {
	SlashDefinition() *discordgo.ApplicationCommand
}

// DiscordMeta is exposed by the adapter so middleware can read grouping and
// permissions without depending on the concrete command type.
type DiscordMeta interface {
	Group() string
	Category() string
	UserPermissions() []int64
	BotPermissions() []int64
}

// DiscordCommand is what individual slash commands implement.
type DiscordCommand interface {
	DiscordMeta
	SlashProvider
	Name() string
	Description() string
	Run(ctx context.Context, sc *SlashInteractionContext) error
}

// DiscordAdapter adapts a DiscordCommand to cmd.Command so it can live in the
// universal registry.
type DiscordAdapter struct {
	Cmd DiscordCommand
}

func (a *DiscordAdapter) Name() string             { return a.Cmd.Name() }
func (a *DiscordAdapter) Description() string      { return a.Cmd.Description() }
func (a *DiscordAdapter) Group() string            { return a.Cmd.Group() }
func (a *DiscordAdapter) Category() string         { return a.Cmd.Category() }
func (a *DiscordAdapter) UserPermissions() []int64 { return a.Cmd.UserPermissions() }
func (a *DiscordAdapter) BotPermissions() []int64  { return a.Cmd.BotPermissions() }
func (a *DiscordAdapter) SlashDefinition() *discordgo.ApplicationCommand {
	return a.Cmd.SlashDefinition()
}

func (a *DiscordAdapter) Run(ctx context.Context, inv *cmd.Invocation) error {
	sc, ok := inv.Data.(*SlashInteractionContext)
	if !ok {
		return fmt.Errorf("command %s: unexpected invocation data %T", a.Cmd.Name(), inv.Data)
	}
	return a.Cmd.Run(ctx, sc)
}

// Register wraps discordCmd in the adapter, applies middlewares and adds it to r.
func Register(r *cmd.Registry, discordCmd DiscordCommand, mws ...cmd.Middleware) {
	r.Register(cmd.Apply(&DiscordAdapter{Cmd: discordCmd}, mws...))
}

// Meta returns the Discord metadata of a possibly wrapped command.
func Meta(c cmd.Command) (DiscordMeta, bool) {
	m, ok := cmd.Root(c).(DiscordMeta)
	return m, ok
}

// Definition returns the slash definition of a possibly wrapped command.
func Definition(c cmd.Command) *discordgo.ApplicationCommand {
	if sp, ok := cmd.Root(c).(SlashProvider); ok {
		return sp.SlashDefinition()
	}
	return nil
}

// Subcommand returns the first option when it is a subcommand.
func Subcommand(e *discordgo.InteractionCreate) (*discordgo.ApplicationCommandInteractionDataOption, bool) {
	opts := e.ApplicationCommandData().Options
	if len(opts) == 0 || opts[0].Type != discordgo.ApplicationCommandOptionSubCommand {
		return nil, false
	}
	return opts[0], true
}

// Option finds a named option among opts.
func Option(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) (*discordgo.ApplicationCommandInteractionDataOption, bool) {
	for _, o := range opts {
		if o.Name == name {
			return o, true
		}
	}
	return nil, false
}
