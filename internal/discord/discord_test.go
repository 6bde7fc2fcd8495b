package discord

import (
	"context"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aurora/internal/bot/bottest"
	"aurora/internal/command"
	"aurora/internal/command/core"
	"aurora/internal/command/settings"
	"aurora/internal/config"
	"aurora/internal/locale"
	"aurora/internal/logging"
	"aurora/internal/record"
	"aurora/internal/record/recordtest"
	"aurora/internal/recordsync"
	"aurora/pkg/cmd"
)

type fixture struct {
	bot   *Bot
	store *recordtest.Store
}

func setupBot(t *testing.T) *fixture {
	t.Helper()
	cfg, err := config.LoadFrom(map[string]string{
		"DISCORD_TOKEN":           "token",
		"DISCORD_GUILD_BLACKLIST": "bad",
		"STORAGE_PATH":            filepath.Join(t.TempDir(), "datastore.json"),
	})
	require.NoError(t, err)

	locales, err := locale.Load(cfg.DefaultLocale)
	require.NoError(t, err)

	cache, err := openCommandCache(filepath.Join(t.TempDir(), commandCacheFile), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	store := recordtest.New()
	b := newBot(cfg, recordsync.New(store, logging.Discard()), locales, cache, logging.Discard())
	b.limiter = nil
	b.retryDelay = time.Millisecond
	b.setBotID("bot")
	return &fixture{bot: b, store: store}
}

type fakeAPI struct {
	mu        sync.Mutex
	remote    map[string]*discordgo.ApplicationCommand
	creates   []string
	deletes   []string
	createErr []error
}

func newFakeAPI(names ...string) *fakeAPI {
	api := &fakeAPI{remote: map[string]*discordgo.ApplicationCommand{}}
	for _, n := range names {
		api.remote[n] = &discordgo.ApplicationCommand{ID: "id-" + n, Name: n}
	}
	return api
}

func (a *fakeAPI) ApplicationCommands(string, string, ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*discordgo.ApplicationCommand, 0, len(a.remote))
	for _, c := range a.remote {
		out = append(out, c)
	}
	return out, nil
}

func (a *fakeAPI) ApplicationCommandCreate(_ string, _ string, c *discordgo.ApplicationCommand, _ ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.createErr) > 0 {
		err := a.createErr[0]
		a.createErr = a.createErr[1:]
		if err != nil {
			return nil, err
		}
	}
	a.creates = append(a.creates, c.Name)
	a.remote[c.Name] = &discordgo.ApplicationCommand{ID: "id-" + c.Name, Name: c.Name}
	return c, nil
}

func (a *fakeAPI) ApplicationCommandDelete(_, _, cmdID string, _ ...discordgo.RequestOption) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for name, c := range a.remote {
		if c.ID == cmdID {
			delete(a.remote, name)
			a.deletes = append(a.deletes, name)
		}
	}
	return nil
}

func restErr(code int) error {
	return &discordgo.RESTError{Response: &http.Response{StatusCode: code, Status: http.StatusText(code)}}
}

func TestSyncCommandsUsesCache(t *testing.T) {
	f := setupBot(t)
	command.Register(f.bot.commands, &core.PingCommand{})
	api := newFakeAPI("obsolete")

	require.NoError(t, f.bot.syncCommands(context.Background(), api, "app", "g1"))
	assert.Equal(t, []string{"ping"}, api.creates)
	assert.Equal(t, []string{"obsolete"}, api.deletes)

	require.NoError(t, f.bot.syncCommands(context.Background(), api, "app", "g1"))
	assert.Len(t, api.creates, 1, "an unchanged definition is not pushed again")

	delete(api.remote, "ping")
	require.NoError(t, f.bot.syncCommands(context.Background(), api, "app", "g1"))
	assert.Len(t, api.creates, 2, "a command missing remotely is pushed even when cached")
}

func TestSyncCommandsRetries(t *testing.T) {
	f := setupBot(t)
	command.Register(f.bot.commands, &core.PingCommand{})
	api := newFakeAPI()
	api.createErr = []error{restErr(http.StatusInternalServerError), restErr(http.StatusTooManyRequests)}

	require.NoError(t, f.bot.syncCommands(context.Background(), api, "app", "g1"))

	assert.Equal(t, []string{"ping"}, api.creates)
}

func TestSyncCommandsFatal(t *testing.T) {
	f := setupBot(t)
	command.Register(f.bot.commands, &core.PingCommand{})
	api := newFakeAPI()
	api.createErr = []error{restErr(http.StatusForbidden), nil}

	err := f.bot.syncCommands(context.Background(), api, "app", "g1")

	assert.ErrorContains(t, err, "1 command(s) failed")
	assert.Empty(t, api.creates)
	assert.Empty(t, f.bot.cache.load("g1"))
}

func TestRemoveCommands(t *testing.T) {
	f := setupBot(t)
	api := newFakeAPI("a", "b")
	f.bot.cache.save("g1", map[string]string{"a": "x"})

	f.bot.removeCommands(context.Background(), api, "app", "g1")

	assert.ElementsMatch(t, []string{"a", "b"}, api.deletes)
	assert.Empty(t, f.bot.cache.load("g1"))
}

func TestGuildLifecycle(t *testing.T) {
	f := setupBot(t)
	ctx := context.Background()

	assert.True(t, f.bot.guildAvailable(ctx, "g1"))
	assert.True(t, f.bot.guildAvailable(ctx, "g1"))
	assert.Len(t, f.store.GuildRecords("g1"), 1)

	assert.False(t, f.bot.guildAvailable(ctx, "bad"))
	assert.Empty(t, f.store.GuildRecords("bad"))

	f.bot.guildRemoved(ctx, "g1", true)
	assert.Len(t, f.store.GuildRecords("g1"), 1, "an outage keeps the record")

	f.bot.guildRemoved(ctx, "g1", false)
	assert.Empty(t, f.store.GuildRecords("g1"))
}

func TestGuildRemovedCancelsPendingSync(t *testing.T) {
	f := setupBot(t)
	cancelled := make(chan struct{})
	require.NoError(t, f.bot.jobs.StartAsync(syncJobName("g1"), func(ctx context.Context) error {
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	}))

	f.bot.guildRemoved(context.Background(), "g1", false)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("sync job still running after the guild was removed")
	}
	assert.Empty(t, f.bot.jobs.List())
}

func TestCommandCachePrune(t *testing.T) {
	f := setupBot(t)
	for _, id := range []string{"g1", "g2", "g3"} {
		f.bot.cache.save(id, map[string]string{"ping": "h-" + id})
	}

	assert.Equal(t, 2, f.bot.cache.prune([]string{"g2"}))

	assert.Empty(t, f.bot.cache.load("g1"))
	assert.Equal(t, map[string]string{"ping": "h-g2"}, f.bot.cache.load("g2"))
	assert.Empty(t, f.bot.cache.load("g3"))
	assert.Zero(t, f.bot.cache.prune([]string{"g2"}))
}

func TestMemberRemoved(t *testing.T) {
	f := setupBot(t)
	ctx := context.Background()
	key := record.UserKey{UserID: "u1", GuildID: "g1"}
	f.bot.records.AddUser(ctx, "u1", "g1", nil)
	f.bot.records.AddUser(ctx, "u1", "g1", nil)

	f.bot.memberRemoved(ctx, "g1", "u1")

	assert.Empty(t, f.store.UserRecords(key))
}

func interaction(name, guildID string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:      discordgo.InteractionApplicationCommand,
		GuildID:   guildID,
		ChannelID: "c1",
		Member:    &discordgo.Member{User: &discordgo.User{ID: "u1", Username: "tester", Discriminator: "0"}},
		Data:      discordgo.ApplicationCommandInteractionData{Name: name},
	}}
}

func TestDispatchUsesGuildLanguage(t *testing.T) {
	f := setupBot(t)
	ctx := context.Background()
	f.bot.records.UpdateGuild(ctx, "g1", record.Fields{settings.LanguageField: "ru"})

	var seen string
	f.bot.commands.Register(&cmd.Func{CmdName: "echo", RunFunc: func(_ context.Context, inv *cmd.Invocation) error {
		sc := inv.Data.(*command.SlashInteractionContext)
		seen = sc.Language
		return nil
	}})

	f.bot.dispatch(ctx, &bottest.Responder{}, interaction("echo", "g1"))
	assert.Equal(t, "ru", seen)

	f.bot.dispatch(ctx, &bottest.Responder{}, interaction("echo", "g2"))
	assert.Equal(t, "en-US", seen)
	assert.Len(t, f.store.GuildRecords("g2"), 1)
}

func TestDispatchReportsFailures(t *testing.T) {
	f := setupBot(t)
	ctx := context.Background()
	f.bot.commands.Register(&cmd.Func{CmdName: "broken", RunFunc: func(context.Context, *cmd.Invocation) error {
		return assert.AnError
	}})

	r := &bottest.Responder{}
	f.bot.dispatch(ctx, r, interaction("broken", "g1"))
	last, ok := r.Last()
	require.True(t, ok)
	assert.True(t, last.Ephemeral)
	assert.Equal(t, ":x: | Something went wrong while running this command.", last.Text())

	r = &bottest.Responder{}
	f.bot.dispatch(ctx, r, interaction("unknown", "g1"))
	last, ok = r.Last()
	require.True(t, ok)
	assert.Contains(t, last.Content, "Something went wrong")
}

func TestHashCommandIgnoresOptionOrder(t *testing.T) {
	a := &discordgo.ApplicationCommand{Name: "x", Options: []*discordgo.ApplicationCommandOption{{Name: "a"}, {Name: "b"}}}
	b := &discordgo.ApplicationCommand{ID: "123", Name: "x", Options: []*discordgo.ApplicationCommandOption{{Name: "b"}, {Name: "a"}}}
	c := &discordgo.ApplicationCommand{Name: "x", Description: "changed"}

	assert.Equal(t, hashCommand(a), hashCommand(b))
	assert.NotEqual(t, hashCommand(a), hashCommand(c))
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify(nil))
	assert.Equal(t, assert.AnError, classify(assert.AnError))

	var httpErr interface{ StatusCode() int }
	require.ErrorAs(t, classify(restErr(http.StatusTooManyRequests)), &httpErr)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.StatusCode())
}
