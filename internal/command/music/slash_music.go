package music

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"

	"aurora/internal/bot"
	"aurora/internal/command"
	"aurora/internal/format"
	"aurora/internal/locale"
	"aurora/internal/music/player"
	"aurora/internal/voicegate"
)

// queuePreview caps how many upcoming tracks /music queue lists.
const queuePreview = 10

type MusicCommand struct {
	Players *player.Registry
	Gate    *voicegate.Gate
	// Voice snapshots the voice presence of a member and of the bot.
	Voice func(guildID, userID string) voicegate.Context
}

func (c *MusicCommand) Name() string             { return "music" }
func (c *MusicCommand) Description() string      { return "Control music playback" }
func (c *MusicCommand) Group() string            { return "music" }
func (c *MusicCommand) Category() string         { return "🎵 Music" }
func (c *MusicCommand) UserPermissions() []int64 { return nil }
func (c *MusicCommand) BotPermissions() []int64 {
	return []int64{
		discordgo.PermissionSendMessages,
		discordgo.PermissionEmbedLinks,
		discordgo.PermissionVoiceConnect,
		discordgo.PermissionVoiceSpeak,
	}
}

func (c *MusicCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "play",
				Description: "Add a track to the queue",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "query",
						Description: "Track title or URL",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "skip",
				Description: "Skip the current track",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "stop",
				Description: "Stop playback and clear the queue",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "queue",
				Description: "Show the queue",
			},
		},
	}
}

func (c *MusicCommand) Run(_ context.Context, sc *command.SlashInteractionContext) error {
	sub, ok := command.Subcommand(sc.Event)
	if !ok {
		return bot.RespondEphemeral(sc.Session, sc.Event, format.Reply(sc.Localize("misc.error"), ":x:"))
	}

	switch sub.Name {
	case "play":
		var query string
		if opt, ok := command.Option(sub.Options, "query"); ok {
			query = opt.StringValue()
		}
		return c.runPlay(sc, query)
	case "skip":
		return c.runSkip(sc)
	case "stop":
		return c.runStop(sc)
	case "queue":
		return c.runQueue(sc)
	default:
		return fmt.Errorf("unknown subcommand: %s", sub.Name)
	}
}

// gate answers the member and returns false when the command must not run.
func (c *MusicCommand) gate(sc *command.SlashInteractionContext, opts voicegate.Options) (voicegate.Context, bool, error) {
	vc := c.Voice(sc.Event.GuildID, sc.UserID())
	verdict := c.Gate.Check(vc, sc.Localize, opts)
	if verdict.Proceed() {
		return vc, true, nil
	}
	return vc, false, bot.RespondEphemeral(sc.Session, sc.Event, verdict.Message)
}

func (c *MusicCommand) runPlay(sc *command.SlashInteractionContext, query string) error {
	vc, ok, err := c.gate(sc, voicegate.Options{})
	if !ok {
		return err
	}

	if err := bot.RespondDeferred(sc.Session, sc.Event); err != nil {
		return fmt.Errorf("failed to send deferred response: %w", err)
	}

	track := player.Track{Title: query, RequestedBy: sc.UserID(), AddedAt: time.Now()}
	if u, err := url.ParseRequestURI(query); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		track.URL = query
	}

	pos, err := c.Players.GetOrCreate(sc.Event.GuildID).Enqueue(vc.Member.ChannelID, track)
	if err != nil {
		sc.Log.WithError(err).WithField("guild_id", sc.Event.GuildID).Warn("enqueue failed")
		return bot.FollowupEphemeral(sc.Session, sc.Event, format.Reply(sc.Localize("commands.music.join_failed"), ":x:"))
	}

	e, err := format.Embed(sc.Event, sc.Embed)
	if err != nil {
		return err
	}
	e.SetDescription(format.Reply(sc.Localize("commands.music.added", locale.Vars{
		"title":    track.Title,
		"position": strconv.Itoa(pos),
	}), player.StatusAdded.StringEmoji()))
	return bot.FollowupEmbed(sc.Session, sc.Event, e.MessageEmbed)
}

func (c *MusicCommand) runSkip(sc *command.SlashInteractionContext) error {
	_, ok, err := c.gate(sc, voicegate.Options{CheckConnection: true, CheckQueue: true, CheckLast: true})
	if !ok {
		return err
	}

	p, found := c.Players.Get(sc.Event.GuildID)
	if !found {
		return bot.RespondEphemeral(sc.Session, sc.Event, format.Reply(sc.Localize("misc.voice.no_queue"), ":x:"))
	}
	skipped, next, err := p.Skip()
	if err != nil {
		return fmt.Errorf("failed to skip: %w", err)
	}

	return c.respondEmbed(sc, format.Reply(skipMessage(sc.Localize, skipped, next), player.StatusSkipped.StringEmoji()))
}

// skipMessage names the next track, or says the queue ran out when another
// skip emptied it first.
func skipMessage(localize locale.Localize, skipped player.Track, next *player.Track) string {
	if next == nil {
		return localize("commands.music.skipped_last", locale.Vars{"title": skipped.Title})
	}
	return localize("commands.music.skipped", locale.Vars{"title": skipped.Title, "next": next.Title})
}

func (c *MusicCommand) runStop(sc *command.SlashInteractionContext) error {
	_, ok, err := c.gate(sc, voicegate.Options{CheckConnection: true, CheckQueue: true})
	if !ok {
		return err
	}

	if err := c.Players.Remove(sc.Event.GuildID); err != nil {
		sc.Log.WithError(err).WithField("guild_id", sc.Event.GuildID).Warn("failed to leave voice cleanly")
	}
	return c.respondEmbed(sc, format.Reply(sc.Localize("commands.music.stopped"), player.StatusStopped.StringEmoji()))
}

func (c *MusicCommand) runQueue(sc *command.SlashInteractionContext) error {
	_, ok, err := c.gate(sc, voicegate.Options{CheckQueue: true})
	if !ok {
		return err
	}

	p, found := c.Players.Get(sc.Event.GuildID)
	if !found {
		return bot.RespondEphemeral(sc.Session, sc.Event, format.Reply(sc.Localize("misc.voice.no_queue"), ":x:"))
	}
	queue := p.Queue()

	e, err := format.Embed(sc.Event, sc.Embed)
	if err != nil {
		return err
	}
	e.SetTitle("🎶 " + sc.Localize("commands.music.queue_title"))
	if len(queue) > 0 {
		e.AddField(player.StatusPlaying.StringEmoji()+" "+sc.Localize("commands.music.now_playing"), trackLine(queue[0]))
	}
	if rest := queue[min(1, len(queue)):]; len(rest) > 0 {
		lines := make([]string, 0, queuePreview+1)
		for n, t := range rest {
			if n == queuePreview {
				lines = append(lines, sc.Localize("commands.music.more", locale.Vars{"count": strconv.Itoa(len(rest) - n)}))
				break
			}
			lines = append(lines, fmt.Sprintf("%d. %s", n+1, trackLine(t)))
		}
		e.AddField(sc.Localize("commands.music.up_next"), format.BulletList(lines))
	}
	if history := p.History(); len(history) > 0 {
		e.AddField(sc.Localize("commands.music.last_played"), trackLine(history[len(history)-1]))
	}
	return bot.RespondEmbed(sc.Session, sc.Event, e.MessageEmbed)
}

func (c *MusicCommand) respondEmbed(sc *command.SlashInteractionContext, description string) error {
	e, err := format.Embed(sc.Event, sc.Embed)
	if err != nil {
		return err
	}
	e.SetDescription(description)
	return bot.RespondEmbed(sc.Session, sc.Event, e.MessageEmbed)
}

func trackLine(t player.Track) string {
	if t.URL != "" && t.URL != t.Title {
		return fmt.Sprintf("[%s](%s)", t.Title, t.URL)
	}
	return t.Title
}
