package perms

import (
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aurora/internal/locale"
)

type fakeResolver map[string]int64

func (f fakeResolver) UserChannelPermissions(userID, channelID string) (int64, error) {
	p, ok := f[userID+"@"+channelID]
	if !ok {
		return 0, errors.New("state cache miss")
	}
	return p, nil
}

func setupEvaluator(t *testing.T, grants fakeResolver) (*Evaluator, locale.Localize) {
	t.Helper()
	m, err := locale.Load("en-US")
	require.NoError(t, err)
	return NewEvaluator(grants, func() string { return "bot" }), m.For("en-US")
}

func TestReverseLookupCoversRegistry(t *testing.T) {
	assert.Len(t, names, len(Flags))
	assert.Equal(t, "ManageGuild", Name(discordgo.PermissionManageGuild))
	assert.Equal(t, "Connect", Name(discordgo.PermissionVoiceConnect))
	assert.Equal(t, "0x8000000000000", Name(1<<51))
}

func TestEveryFlagHasEnglishName(t *testing.T) {
	m, err := locale.Load("en-US")
	require.NoError(t, err)

	for name := range Flags {
		assert.NotEqual(t, "permissions."+name, m.Translate("en-US", "permissions."+name), name)
	}
}

func TestMissingKeepsOrder(t *testing.T) {
	granted := int64(discordgo.PermissionViewChannel | discordgo.PermissionSendMessages)
	required := []int64{discordgo.PermissionVoiceSpeak, discordgo.PermissionSendMessages, discordgo.PermissionVoiceConnect}

	assert.Equal(t, []int64{discordgo.PermissionVoiceSpeak, discordgo.PermissionVoiceConnect}, Missing(granted, required))
	assert.Empty(t, Missing(discordgo.PermissionAdministrator, required))
	assert.Empty(t, Missing(granted, nil))
}

func TestBotPermissionsListsMissing(t *testing.T) {
	e, localize := setupEvaluator(t, fakeResolver{"bot@c1": discordgo.PermissionViewChannel})

	msg, err := e.BotPermissions([]int64{discordgo.PermissionVoiceConnect, discordgo.PermissionViewChannel, discordgo.PermissionVoiceSpeak}, Target{ChannelID: "c1", UserID: "u1"}, localize)

	require.NoError(t, err)
	assert.Equal(t, "I'm missing the following permissions in this channel:\n* Connect to Voice Channel\n* Speak", msg)
}

func TestMemberPermissionsEmptyWhenGranted(t *testing.T) {
	e, localize := setupEvaluator(t, fakeResolver{"u1@c1": discordgo.PermissionManageGuild | discordgo.PermissionViewChannel})

	msg, err := e.MemberPermissions([]int64{discordgo.PermissionManageGuild}, Target{ChannelID: "c1", UserID: "u1"}, localize)

	require.NoError(t, err)
	assert.Empty(t, msg)
}

func TestMemberPermissionsUsesMemberMessage(t *testing.T) {
	e, localize := setupEvaluator(t, fakeResolver{"u1@c1": 0})

	msg, err := e.MemberPermissions([]int64{discordgo.PermissionManageGuild}, Target{ChannelID: "c1", UserID: "u1"}, localize)

	require.NoError(t, err)
	assert.Equal(t, "You need the following permissions to use this command:\n* Manage Server", msg)
}

func TestResolverFailureIsReturned(t *testing.T) {
	e, localize := setupEvaluator(t, fakeResolver{})

	_, err := e.BotPermissions([]int64{discordgo.PermissionSendMessages}, Target{ChannelID: "c9"}, localize)

	assert.ErrorContains(t, err, "state cache miss")
}

func TestTargetOf(t *testing.T) {
	guild := &discordgo.Interaction{ChannelID: "c1", Member: &discordgo.Member{User: &discordgo.User{ID: "m1"}}}
	dm := &discordgo.Interaction{ChannelID: "c2", User: &discordgo.User{ID: "u2"}}

	assert.Equal(t, Target{ChannelID: "c1", UserID: "m1"}, TargetOf(guild))
	assert.Equal(t, Target{ChannelID: "c2", UserID: "u2"}, TargetOf(dm))
}
