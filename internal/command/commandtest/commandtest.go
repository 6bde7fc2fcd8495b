// Package commandtest builds slash interaction contexts for command tests.
package commandtest

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"

	"aurora/internal/bot/bottest"
	"aurora/internal/command"
	"aurora/internal/config"
	"aurora/internal/locale"
	"aurora/internal/logging"
	"aurora/internal/recordsync"
)

type Option = discordgo.ApplicationCommandInteractionDataOption

// Sub builds a subcommand option.
func Sub(name string, opts ...*Option) *Option {
	return &Option{Name: name, Type: discordgo.ApplicationCommandOptionSubCommand, Options: opts}
}

// String builds a string option.
func String(name, value string) *Option {
	return &Option{Name: name, Type: discordgo.ApplicationCommandOptionString, Value: value}
}

// User builds a user option.
func User(name, id string) *Option {
	return &Option{Name: name, Type: discordgo.ApplicationCommandOptionUser, Value: id}
}

// Invocation describes one slash command call.
type Invocation struct {
	Command  string
	GuildID  string
	UserID   string
	Username string
	Options  []*Option
	Resolved *discordgo.ApplicationCommandInteractionDataResolved
	Language string
	Records  *recordsync.Syncer
}

// Context builds the context and the recorder its replies go to.
func Context(t *testing.T, inv Invocation) (*command.SlashInteractionContext, *bottest.Responder) {
	t.Helper()

	m, err := locale.Load("en-US")
	require.NoError(t, err)
	lang := inv.Language
	if lang == "" {
		lang = "en-US"
	}
	if inv.UserID == "" {
		inv.UserID = "u1"
	}
	if inv.Username == "" {
		inv.Username = "tester"
	}

	r := &bottest.Responder{}
	return &command.SlashInteractionContext{
		Session: r,
		Event: &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
			ID:        "i1",
			Type:      discordgo.InteractionApplicationCommand,
			GuildID:   inv.GuildID,
			ChannelID: "text1",
			Member:    &discordgo.Member{User: &discordgo.User{ID: inv.UserID, Username: inv.Username, Discriminator: "0"}},
			Data: discordgo.ApplicationCommandInteractionData{
				Name:     inv.Command,
				Options:  inv.Options,
				Resolved: inv.Resolved,
			},
		}},
		Records:  inv.Records,
		Localize: m.For(lang),
		Language: lang,
		Embed:    config.EmbedConfig{HexColor: "7289da"},
		Log:      logging.Discard(),
	}, r
}
