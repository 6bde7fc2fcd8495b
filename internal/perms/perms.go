// Package perms maps Discord permission flags to symbolic names and reports
// which required permissions an actor lacks in a channel.
package perms

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"aurora/internal/format"
	"aurora/internal/locale"
)

// Flags is the symbolic name registry. Names double as locale keys under "permissions.".
var Flags = map[string]int64{
	"CreateInstantInvite":              discordgo.PermissionCreateInstantInvite,
	"KickMembers":                      discordgo.PermissionKickMembers,
	"BanMembers":                       discordgo.PermissionBanMembers,
	"Administrator":                    discordgo.PermissionAdministrator,
	"ManageChannels":                   discordgo.PermissionManageChannels,
	"ManageGuild":                      discordgo.PermissionManageGuild,
	"AddReactions":                     discordgo.PermissionAddReactions,
	"ViewAuditLog":                     discordgo.PermissionViewAuditLogs,
	"PrioritySpeaker":                  discordgo.PermissionVoicePrioritySpeaker,
	"Stream":                           discordgo.PermissionVoiceStreamVideo,
	"ViewChannel":                      discordgo.PermissionViewChannel,
	"SendMessages":                     discordgo.PermissionSendMessages,
	"SendTTSMessages":                  discordgo.PermissionSendTTSMessages,
	"ManageMessages":                   discordgo.PermissionManageMessages,
	"EmbedLinks":                       discordgo.PermissionEmbedLinks,
	"AttachFiles":                      discordgo.PermissionAttachFiles,
	"ReadMessageHistory":               discordgo.PermissionReadMessageHistory,
	"MentionEveryone":                  discordgo.PermissionMentionEveryone,
	"UseExternalEmojis":                discordgo.PermissionUseExternalEmojis,
	"ViewGuildInsights":                discordgo.PermissionViewGuildInsights,
	"Connect":                          discordgo.PermissionVoiceConnect,
	"Speak":                            discordgo.PermissionVoiceSpeak,
	"MuteMembers":                      discordgo.PermissionVoiceMuteMembers,
	"DeafenMembers":                    discordgo.PermissionVoiceDeafenMembers,
	"MoveMembers":                      discordgo.PermissionVoiceMoveMembers,
	"UseVAD":                           discordgo.PermissionVoiceUseVAD,
	"ChangeNickname":                   discordgo.PermissionChangeNickname,
	"ManageNicknames":                  discordgo.PermissionManageNicknames,
	"ManageRoles":                      discordgo.PermissionManageRoles,
	"ManageWebhooks":                   discordgo.PermissionManageWebhooks,
	"ManageGuildExpressions":           discordgo.PermissionManageGuildExpressions,
	"UseApplicationCommands":           discordgo.PermissionUseApplicationCommands,
	"RequestToSpeak":                   discordgo.PermissionVoiceRequestToSpeak,
	"ManageEvents":                     discordgo.PermissionManageEvents,
	"ManageThreads":                    discordgo.PermissionManageThreads,
	"CreatePublicThreads":              discordgo.PermissionCreatePublicThreads,
	"CreatePrivateThreads":             discordgo.PermissionCreatePrivateThreads,
	"UseExternalStickers":              discordgo.PermissionUseExternalStickers,
	"SendMessagesInThreads":            discordgo.PermissionSendMessagesInThreads,
	"UseEmbeddedActivities":            discordgo.PermissionUseEmbeddedActivities,
	"ModerateMembers":                  discordgo.PermissionModerateMembers,
	"ViewCreatorMonetizationAnalytics": discordgo.PermissionViewCreatorMonetizationAnalytics,
	"UseSoundboard":                    discordgo.PermissionUseSoundboard,
	"CreateGuildExpressions":           discordgo.PermissionCreateGuildExpressions,
	"CreateEvents":                     discordgo.PermissionCreateEvents,
	"UseExternalSounds":                discordgo.PermissionUseExternalSounds,
	"SendVoiceMessages":                discordgo.PermissionSendVoiceMessages,
	"SendPolls":                        discordgo.PermissionSendPolls,
	"UseExternalApps":                  discordgo.PermissionUseExternalApps,
}

var names = make(map[int64]string, len(Flags))

func init() {
	for name, flag := range Flags {
		if prev, dup := names[flag]; dup {
			panic(fmt.Sprintf("perms: %s and %s share flag 0x%x", prev, name, flag))
		}
		names[flag] = name
	}
}

// Name returns the symbolic name of flag, or its hex form when unknown.
func Name(flag int64) string {
	if n, ok := names[flag]; ok {
		return n
	}
	return fmt.Sprintf("0x%x", flag)
}

// Missing returns the flags of required not present in granted, in input order.
// Administrator implies every permission.
func Missing(granted int64, required []int64) []int64 {
	if granted&discordgo.PermissionAdministrator != 0 {
		return nil
	}
	var out []int64
	for _, flag := range required {
		if granted&flag != flag {
			out = append(out, flag)
		}
	}
	return out
}

// Resolver computes effective channel permissions; *discordgo.State satisfies it.
type Resolver interface {
	UserChannelPermissions(userID, channelID string) (int64, error)
}

// Target identifies where a command runs and who ran it.
type Target struct {
	ChannelID string
	UserID    string
}

// TargetOf extracts the channel and invoking user from an interaction.
func TargetOf(i *discordgo.Interaction) Target {
	t := Target{ChannelID: i.ChannelID}
	switch {
	case i.Member != nil && i.Member.User != nil:
		t.UserID = i.Member.User.ID
	case i.User != nil:
		t.UserID = i.User.ID
	}
	return t
}

type Evaluator struct {
	resolver Resolver
	botID    func() string
}

// NewEvaluator checks permissions through resolver. botID is read lazily
// because the bot user is only known after the gateway READY event.
func NewEvaluator(resolver Resolver, botID func() string) *Evaluator {
	return &Evaluator{resolver: resolver, botID: botID}
}

// BotPermissions returns a localized message listing what the bot lacks in
// the target channel, or "" when nothing is missing.
func (e *Evaluator) BotPermissions(required []int64, t Target, localize locale.Localize) (string, error) {
	return e.check(e.botID(), t.ChannelID, required, "misc.bot_need_perms", localize)
}

// MemberPermissions is BotPermissions for the invoking member.
func (e *Evaluator) MemberPermissions(required []int64, t Target, localize locale.Localize) (string, error) {
	return e.check(t.UserID, t.ChannelID, required, "misc.user_need_perms", localize)
}

func (e *Evaluator) check(userID, channelID string, required []int64, key string, localize locale.Localize) (string, error) {
	if len(required) == 0 {
		return "", nil
	}
	granted, err := e.resolver.UserChannelPermissions(userID, channelID)
	if err != nil {
		return "", fmt.Errorf("resolve permissions of %s in %s: %w", userID, channelID, err)
	}

	missing := Missing(granted, required)
	if len(missing) == 0 {
		return "", nil
	}

	lines := make([]string, len(missing))
	for n, flag := range missing {
		if name, ok := names[flag]; ok {
			lines[n] = localize("permissions." + name)
		} else {
			lines[n] = Name(flag)
		}
	}
	return localize(key, locale.Vars{"perms": format.BulletList(lines)}), nil
}
