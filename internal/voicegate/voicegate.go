// Package voicegate decides whether a voice-dependent command may run. Each
// call recomputes everything from its inputs; nothing is retained.
package voicegate

import (
	"aurora/internal/format"
	"aurora/internal/locale"
)

// Reason names the check that blocked a command. It is also the locale key suffix.
type Reason string

const (
	NotInVoice     Reason = "not_in_voice"
	InAFK          Reason = "in_afk"
	SelfDeaf       Reason = "self_deaf"
	ServerDeaf     Reason = "server_deaf"
	NotSameChannel Reason = "not_same_channel"
	NoConnection   Reason = "no_connection"
	NoQueue        Reason = "no_queue"
	LastSong       Reason = "last_song"
)

// StopCommand is suggested when the last queued item would be skipped.
const StopCommand = "`/music stop`"

// Verdict is the outcome of Check. The zero value lets the command proceed.
type Verdict struct {
	Blocked bool
	Reason  Reason
	// Message is the localized ":x: | ..." reply for the invoking member.
	Message string
}

func (v Verdict) Proceed() bool { return !v.Blocked }

// Options enables the checks on the bot's own playback state.
type Options struct {
	CheckConnection bool
	CheckQueue      bool
	// CheckLast refuses when one item is left; only evaluated with CheckQueue.
	CheckLast bool
}

// VoiceState is the member's current voice presence.
type VoiceState struct {
	ChannelID  string
	SelfDeaf   bool
	ServerDeaf bool
}

// Context is a snapshot of the guild around one invocation.
type Context struct {
	GuildID string
	// Member is nil when the member is not in a voice channel.
	Member       *VoiceState
	AFKChannelID string
	// BotChannelID is the channel the bot's cached voice state points at.
	BotChannelID string
}

// Connections reports live voice connections per guild.
type Connections interface {
	HasConnection(guildID string) bool
}

// Queues reports playback queue sizes per guild; ok is false when no queue exists.
type Queues interface {
	QueueLength(guildID string) (n int, ok bool)
}

type Gate struct {
	connections Connections
	queues      Queues
}

func New(connections Connections, queues Queues) *Gate {
	return &Gate{connections: connections, queues: queues}
}

// Check runs the checks in order and stops at the first failure.
func (g *Gate) Check(vc Context, localize locale.Localize, opts Options) Verdict {
	member := vc.Member
	switch {
	case member == nil || member.ChannelID == "":
		return block(NotInVoice, localize)
	case vc.AFKChannelID != "" && member.ChannelID == vc.AFKChannelID:
		return block(InAFK, localize)
	case member.SelfDeaf:
		return block(SelfDeaf, localize)
	case member.ServerDeaf:
		return block(ServerDeaf, localize)
	case vc.BotChannelID != "" && vc.BotChannelID != member.ChannelID:
		return block(NotSameChannel, localize)
	}

	if opts.CheckConnection && !g.connected(vc) {
		return block(NoConnection, localize)
	}

	if opts.CheckQueue {
		n, ok := g.queueLength(vc.GuildID)
		if !ok {
			return block(NoQueue, localize)
		}
		if opts.CheckLast && n == 1 {
			return block(LastSong, localize, locale.Vars{"cmd": StopCommand})
		}
	}

	return Verdict{}
}

func (g *Gate) connected(vc Context) bool {
	if vc.BotChannelID != "" {
		return true
	}
	return g.connections != nil && g.connections.HasConnection(vc.GuildID)
}

func (g *Gate) queueLength(guildID string) (int, bool) {
	if g.queues == nil {
		return 0, false
	}
	return g.queues.QueueLength(guildID)
}

func block(r Reason, localize locale.Localize, vars ...locale.Vars) Verdict {
	return Verdict{
		Blocked: true,
		Reason:  r,
		Message: format.Reply(localize("misc.voice."+string(r), vars...), ":x:"),
	}
}
