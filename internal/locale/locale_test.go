package locale

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedLocalesLoad(t *testing.T) {
	m, err := Load("en-US")
	require.NoError(t, err)

	assert.Equal(t, []string{"en-US", "ru"}, m.Languages())
	assert.True(t, m.Has("ru"))
	assert.False(t, m.Has("de"))
	assert.Equal(t, "Manage Server", m.Translate("en-US", "permissions.ManageGuild"))
}

func TestTranslateFallsBack(t *testing.T) {
	m, err := Load("en-US")
	require.NoError(t, err)

	ru := m.For("ru")
	assert.Equal(t, "Управление сервером", ru("permissions.ManageGuild"))
	assert.Equal(t, "Send Polls", ru("permissions.SendPolls"), "falls back to the default language")
	assert.Equal(t, "Send Polls", m.Translate("de", "permissions.SendPolls"))
	assert.Equal(t, "no.such.key", ru("no.such.key"))
}

func TestInterpolation(t *testing.T) {
	m, err := Load("en-US")
	require.NoError(t, err)

	got := m.For("en-US")("misc.voice.last_song", Vars{"cmd": "`/music stop`"})

	assert.Equal(t, "This is the last song in the queue, use `/music stop` instead.", got)
}

func TestLoadFSRequiresFallback(t *testing.T) {
	fsys := fstest.MapFS{
		"l/fr.yaml":   {Data: []byte("greeting: bonjour\ncount: 3\n")},
		"l/notes.txt": {Data: []byte("ignored")},
	}

	_, err := LoadFS(fsys, "l", "en-US")
	assert.ErrorContains(t, err, "fallback locale")

	m, err := LoadFS(fsys, "l", "fr")
	require.NoError(t, err)
	assert.Equal(t, "bonjour", m.Translate("fr", "greeting"))
	assert.Equal(t, "3", m.Translate("fr", "count"))
}

func TestLoadFSRejectsBadYAML(t *testing.T) {
	fsys := fstest.MapFS{"l/en.yaml": {Data: []byte("a: [unterminated")}}

	_, err := LoadFS(fsys, "l", "en")
	assert.ErrorContains(t, err, "parse en.yaml")
}
