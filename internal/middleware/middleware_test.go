package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aurora/internal/bot/bottest"
	"aurora/internal/command"
	"aurora/internal/locale"
	"aurora/internal/perms"
	"aurora/pkg/cmd"
)

type stubCommand struct {
	ran     int
	err     error
	userReq []int64
	botReq  []int64
}

func (c *stubCommand) Name() string             { return "stub" }
func (c *stubCommand) Description() string      { return "stub command" }
func (c *stubCommand) Group() string            { return "test" }
func (c *stubCommand) Category() string         { return "Test" }
func (c *stubCommand) UserPermissions() []int64 { return c.userReq }
func (c *stubCommand) BotPermissions() []int64  { return c.botReq }
func (c *stubCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.Name()}
}

func (c *stubCommand) Run(context.Context, *command.SlashInteractionContext) error {
	c.ran++
	return c.err
}

type grants map[string]int64

func (g grants) UserChannelPermissions(userID, _ string) (int64, error) {
	p, ok := g[userID]
	if !ok {
		return 0, errors.New("no such member")
	}
	return p, nil
}

func setupContext(t *testing.T, guildID string) (*command.SlashInteractionContext, *bottest.Responder) {
	t.Helper()
	m, err := locale.Load("en-US")
	require.NoError(t, err)

	r := &bottest.Responder{}
	return &command.SlashInteractionContext{
		Session: r,
		Event: &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
			GuildID:   guildID,
			ChannelID: "c1",
			Member:    &discordgo.Member{User: &discordgo.User{ID: "u1"}},
		}},
		Localize: m.For("en-US"),
	}, r
}

func run(t *testing.T, c cmd.Command, sc *command.SlashInteractionContext) error {
	t.Helper()
	return c.Run(context.Background(), &cmd.Invocation{Data: sc})
}

func TestGuildOnly(t *testing.T) {
	stub := &stubCommand{}
	c := cmd.Apply(&command.DiscordAdapter{Cmd: stub}, WithGuildOnly())

	sc, r := setupContext(t, "")
	require.NoError(t, run(t, c, sc))
	assert.Zero(t, stub.ran)
	last, ok := r.Last()
	require.True(t, ok)
	assert.True(t, last.Ephemeral)
	assert.Equal(t, ":x: | This command can only be used in a server.", last.Content)

	sc, _ = setupContext(t, "g1")
	require.NoError(t, run(t, c, sc))
	assert.Equal(t, 1, stub.ran)
}

func TestPermissionCheck(t *testing.T) {
	stub := &stubCommand{
		userReq: []int64{discordgo.PermissionManageGuild},
		botReq:  []int64{discordgo.PermissionSendMessages, discordgo.PermissionEmbedLinks},
	}

	tests := []struct {
		name      string
		granted   grants
		developer bool
		wantRun   bool
		wantText  string
	}{
		{
			name:     "bot missing embed links",
			granted:  grants{"bot": discordgo.PermissionSendMessages, "u1": discordgo.PermissionManageGuild},
			wantText: "* Embed Links",
		},
		{
			name:     "member missing manage guild",
			granted:  grants{"bot": discordgo.PermissionAdministrator, "u1": discordgo.PermissionSendMessages},
			wantText: "* Manage Server",
		},
		{
			name:      "developer skips member check",
			granted:   grants{"bot": discordgo.PermissionAdministrator, "u1": 0},
			developer: true,
			wantRun:   true,
		},
		{
			name:    "all granted",
			granted: grants{"bot": discordgo.PermissionAdministrator, "u1": discordgo.PermissionManageGuild},
			wantRun: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub.ran = 0
			ev := perms.NewEvaluator(tt.granted, func() string { return "bot" })
			isDev := func(string) bool { return tt.developer }
			c := cmd.Apply(&command.DiscordAdapter{Cmd: stub}, WithPermissionCheck(ev, isDev))

			sc, r := setupContext(t, "g1")
			require.NoError(t, run(t, c, sc))

			if tt.wantRun {
				assert.Equal(t, 1, stub.ran)
				assert.Empty(t, r.Replies())
				return
			}
			assert.Zero(t, stub.ran)
			last, ok := r.Last()
			require.True(t, ok)
			assert.True(t, last.Ephemeral)
			assert.Contains(t, last.Text(), tt.wantText)
		})
	}
}

func TestPermissionCheckResolverError(t *testing.T) {
	stub := &stubCommand{botReq: []int64{discordgo.PermissionSendMessages}}
	ev := perms.NewEvaluator(grants{}, func() string { return "bot" })
	c := cmd.Apply(&command.DiscordAdapter{Cmd: stub}, WithPermissionCheck(ev, nil))

	sc, _ := setupContext(t, "g1")
	err := run(t, c, sc)

	assert.ErrorContains(t, err, "failed to check bot permissions")
	assert.Zero(t, stub.ran)
}

func TestCommandLogger(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	boom := errors.New("boom")
	stub := &stubCommand{err: boom}
	c := cmd.Apply(&command.DiscordAdapter{Cmd: stub}, WithCommandLogger(logrus.NewEntry(logger)))

	sc, _ := setupContext(t, "g1")
	err := run(t, c, sc)

	assert.ErrorIs(t, err, boom)
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "stub", entry.Data["command"])
	assert.Equal(t, "g1", entry.Data["guild_id"])
	assert.Equal(t, "u1", entry.Data["user_id"])
}
