package voicegate

import (
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aurora/internal/locale"
)

type fakeRegistry struct {
	conns  map[string]bool
	queues map[string]int
	looked int
}

func (f *fakeRegistry) HasConnection(guildID string) bool {
	f.looked++
	return f.conns[guildID]
}

func (f *fakeRegistry) QueueLength(guildID string) (int, bool) {
	f.looked++
	n, ok := f.queues[guildID]
	return n, ok
}

func setupGate(t *testing.T, reg *fakeRegistry) (*Gate, locale.Localize) {
	t.Helper()
	m, err := locale.Load("en-US")
	require.NoError(t, err)
	return New(reg, reg), m.For("en-US")
}

func inVoice(channel string) Context {
	return Context{GuildID: "g1", Member: &VoiceState{ChannelID: channel}, AFKChannelID: "afk"}
}

func TestMemberChecksInOrder(t *testing.T) {
	cases := []struct {
		name string
		vc   Context
		want Reason
	}{
		{"not in voice", Context{GuildID: "g1"}, NotInVoice},
		{"empty channel", Context{GuildID: "g1", Member: &VoiceState{}}, NotInVoice},
		{"afk", inVoice("afk"), InAFK},
		{"afk wins over deaf", Context{GuildID: "g1", AFKChannelID: "afk", Member: &VoiceState{ChannelID: "afk", SelfDeaf: true}}, InAFK},
		{"self deaf", Context{GuildID: "g1", Member: &VoiceState{ChannelID: "v1", SelfDeaf: true, ServerDeaf: true}}, SelfDeaf},
		{"server deaf", Context{GuildID: "g1", Member: &VoiceState{ChannelID: "v1", ServerDeaf: true}}, ServerDeaf},
		{"other channel", Context{GuildID: "g1", Member: &VoiceState{ChannelID: "v1"}, BotChannelID: "v2"}, NotSameChannel},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg := &fakeRegistry{}
			g, localize := setupGate(t, reg)

			v := g.Check(tc.vc, localize, Options{CheckConnection: true, CheckQueue: true, CheckLast: true})

			assert.True(t, v.Blocked)
			assert.False(t, v.Proceed())
			assert.Equal(t, tc.want, v.Reason)
			assert.Zero(t, reg.looked, "registries must not be consulted before member checks pass")
		})
	}
}

func TestMessageIsLocalizedReply(t *testing.T) {
	g, localize := setupGate(t, &fakeRegistry{})

	v := g.Check(Context{GuildID: "g1"}, localize, Options{})

	assert.Equal(t, ":x: | You need to be in a voice channel to use this command.", v.Message)
}

func TestProceedsWithoutOptionalChecks(t *testing.T) {
	reg := &fakeRegistry{}
	g, localize := setupGate(t, reg)

	v := g.Check(inVoice("v1"), localize, Options{})

	assert.True(t, v.Proceed())
	assert.Empty(t, v.Message)
	assert.Zero(t, reg.looked)
}

func TestSameChannelAsBotPasses(t *testing.T) {
	g, localize := setupGate(t, &fakeRegistry{})
	vc := inVoice("v1")
	vc.BotChannelID = "v1"

	assert.True(t, g.Check(vc, localize, Options{CheckConnection: true}).Proceed())
}

func TestConnectionCheck(t *testing.T) {
	reg := &fakeRegistry{conns: map[string]bool{}}
	g, localize := setupGate(t, reg)

	v := g.Check(inVoice("v1"), localize, Options{CheckConnection: true})
	assert.Equal(t, NoConnection, v.Reason)

	reg.conns["g1"] = true
	assert.True(t, g.Check(inVoice("v1"), localize, Options{CheckConnection: true}).Proceed())
}

func TestQueueChecks(t *testing.T) {
	reg := &fakeRegistry{queues: map[string]int{}}
	g, localize := setupGate(t, reg)
	opts := Options{CheckQueue: true, CheckLast: true}

	assert.Equal(t, NoQueue, g.Check(inVoice("v1"), localize, opts).Reason)

	reg.queues["g1"] = 1
	v := g.Check(inVoice("v1"), localize, opts)
	assert.Equal(t, LastSong, v.Reason)
	assert.Equal(t, ":x: | This is the last song in the queue, use `/music stop` instead.", v.Message)

	assert.True(t, g.Check(inVoice("v1"), localize, Options{CheckQueue: true}).Proceed())

	reg.queues["g1"] = 2
	assert.True(t, g.Check(inVoice("v1"), localize, opts).Proceed())
}

func TestCheckLastAloneIsIgnored(t *testing.T) {
	reg := &fakeRegistry{queues: map[string]int{"g1": 1}}
	g, localize := setupGate(t, reg)

	assert.True(t, g.Check(inVoice("v1"), localize, Options{CheckLast: true}).Proceed())
	assert.Zero(t, reg.looked)
}

func TestNilRegistries(t *testing.T) {
	m, err := locale.Load("en-US")
	require.NoError(t, err)
	g := New(nil, nil)

	assert.Equal(t, NoConnection, g.Check(inVoice("v1"), m.For("en-US"), Options{CheckConnection: true}).Reason)
	assert.Equal(t, NoQueue, g.Check(inVoice("v1"), m.For("en-US"), Options{CheckQueue: true}).Reason)
}

type fakeState struct {
	guild  *discordgo.Guild
	voices map[string]*discordgo.VoiceState
}

func (f fakeState) Guild(string) (*discordgo.Guild, error) {
	if f.guild == nil {
		return nil, discordgo.ErrStateNotFound
	}
	return f.guild, nil
}

func (f fakeState) VoiceState(_, userID string) (*discordgo.VoiceState, error) {
	vs, ok := f.voices[userID]
	if !ok {
		return nil, errors.New("not found")
	}
	return vs, nil
}

func TestContextFromState(t *testing.T) {
	state := fakeState{
		guild: &discordgo.Guild{ID: "g1", AfkChannelID: "afk"},
		voices: map[string]*discordgo.VoiceState{
			"u1":  {UserID: "u1", ChannelID: "v1", SelfDeaf: true, Deaf: false},
			"bot": {UserID: "bot", ChannelID: "v2"},
		},
	}

	vc := ContextFromState(state, "g1", "u1", "bot")

	assert.Equal(t, "afk", vc.AFKChannelID)
	require.NotNil(t, vc.Member)
	assert.Equal(t, VoiceState{ChannelID: "v1", SelfDeaf: true}, *vc.Member)
	assert.Equal(t, "v2", vc.BotChannelID)

	empty := ContextFromState(fakeState{}, "g1", "u1", "")
	assert.Nil(t, empty.Member)
	assert.Empty(t, empty.AFKChannelID)
}
