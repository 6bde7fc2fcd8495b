package voicegate

import "github.com/bwmarrin/discordgo"

// VoiceStates is the part of *discordgo.State the snapshot needs.
type VoiceStates interface {
	VoiceState(guildID, userID string) (*discordgo.VoiceState, error)
	Guild(guildID string) (*discordgo.Guild, error)
}

// ContextFromState snapshots the member's and the bot's voice presence from
// the gateway cache. Cache misses read as "not connected".
func ContextFromState(state VoiceStates, guildID, userID, botID string) Context {
	vc := Context{GuildID: guildID}

	if g, err := state.Guild(guildID); err == nil && g != nil {
		vc.AFKChannelID = g.AfkChannelID
	}
	if vs, err := state.VoiceState(guildID, userID); err == nil && vs != nil && vs.ChannelID != "" {
		vc.Member = &VoiceState{ChannelID: vs.ChannelID, SelfDeaf: vs.SelfDeaf, ServerDeaf: vs.Deaf}
	}
	if botID != "" {
		if vs, err := state.VoiceState(guildID, botID); err == nil && vs != nil {
			vc.BotChannelID = vs.ChannelID
		}
	}
	return vc
}
