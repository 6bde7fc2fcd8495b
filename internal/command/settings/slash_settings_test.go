package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aurora/internal/command/commandtest"
	"aurora/internal/locale"
	"aurora/internal/logging"
	"aurora/internal/record/recordtest"
	"aurora/internal/recordsync"
)

func TestLanguage(t *testing.T) {
	store := recordtest.New()
	records := recordsync.New(store, logging.Discard())
	locales, err := locale.Load("en-US")
	require.NoError(t, err)
	c := &SettingsCommand{Locales: locales}

	run := func(code string) string {
		sc, r := commandtest.Context(t, commandtest.Invocation{
			Command: "settings",
			GuildID: "g1",
			Records: records,
			Options: []*commandtest.Option{commandtest.Sub("language", commandtest.String("code", code))},
		})
		require.NoError(t, c.Run(context.Background(), sc))
		last, ok := r.Last()
		require.True(t, ok)
		return last.Content
	}

	assert.Contains(t, run("xx"), "Unknown language `xx`. Available: en-US, ru.")
	assert.Empty(t, store.GuildRecords("g1"))

	assert.Equal(t, "✅ | Язык изменён на **Русский**.", run("ru"))
	guilds := store.GuildRecords("g1")
	require.Len(t, guilds, 1)
	assert.Equal(t, "ru", guilds[0].Data.String(LanguageField))
}

func TestDefinitionListsLanguages(t *testing.T) {
	locales, err := locale.Load("en-US")
	require.NoError(t, err)

	def := (&SettingsCommand{Locales: locales}).SlashDefinition()

	require.NotNil(t, def.DefaultMemberPermissions)
	choices := def.Options[0].Options[0].Choices
	require.Len(t, choices, 2)
	assert.Equal(t, "en-US", choices[0].Value)
}
