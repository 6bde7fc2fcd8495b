package profile

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"aurora/internal/bot"
	"aurora/internal/command"
	"aurora/internal/format"
	"aurora/internal/locale"
	"aurora/internal/record"
)

// MaxBio is the longest bio accepted, in characters.
const MaxBio = 190

// BioField is the user record field holding the bio.
const BioField = "bio"

type ProfileCommand struct{}

func (c *ProfileCommand) Name() string             { return "profile" }
func (c *ProfileCommand) Description() string      { return "Your profile in this server" }
func (c *ProfileCommand) Group() string            { return "profile" }
func (c *ProfileCommand) Category() string         { return "👤 Profile" }
func (c *ProfileCommand) UserPermissions() []int64 { return nil }
func (c *ProfileCommand) BotPermissions() []int64 {
	return []int64{discordgo.PermissionSendMessages, discordgo.PermissionEmbedLinks}
}

func (c *ProfileCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "view",
				Description: "Show a profile",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionUser,
						Name:        "user",
						Description: "Whose profile to show",
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "bio",
				Description: "Set your bio",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "text",
						Description: "New bio text",
						Required:    true,
						MaxLength:   MaxBio,
					},
				},
			},
		},
	}
}

func (c *ProfileCommand) Run(ctx context.Context, sc *command.SlashInteractionContext) error {
	sub, ok := command.Subcommand(sc.Event)
	if !ok {
		return bot.RespondEphemeral(sc.Session, sc.Event, format.Reply(sc.Localize("misc.error"), ":x:"))
	}

	switch sub.Name {
	case "view":
		target := invoker(sc.Event)
		if opt, ok := command.Option(sub.Options, "user"); ok {
			target = resolveUser(sc.Event, opt.Value)
		}
		return c.runView(ctx, sc, target)
	case "bio":
		var text string
		if opt, ok := command.Option(sub.Options, "text"); ok {
			text = strings.TrimSpace(opt.StringValue())
		}
		return c.runBio(ctx, sc, text)
	default:
		return fmt.Errorf("unknown subcommand: %s", sub.Name)
	}
}

func (c *ProfileCommand) runView(ctx context.Context, sc *command.SlashInteractionContext, target *discordgo.User) error {
	u := sc.Records.GetUser(ctx, target.ID, sc.Event.GuildID)
	if u == nil {
		return bot.RespondEphemeral(sc.Session, sc.Event, format.Reply(sc.Localize("commands.profile.unavailable"), ":x:"))
	}

	e, err := format.Embed(sc.Event, sc.Embed)
	if err != nil {
		return err
	}
	e.SetTitle(sc.Localize("commands.profile.title", locale.Vars{"user": target.String()}))
	if avatar := target.AvatarURL("128"); avatar != "" {
		e.SetThumbnail(avatar)
	}

	bio := u.Data.String(BioField)
	if bio == "" {
		bio = sc.Localize("commands.profile.no_bio")
	}
	e.AddField(sc.Localize("commands.profile.bio"), bio)

	if since, err := format.FormatTime(u.CreatedAt, format.LongDate); err == nil {
		e.AddField(sc.Localize("commands.profile.member_since"), since)
	}
	if updated, err := format.FormatTime(u.UpdatedAt, format.Relative); err == nil {
		e.AddField(sc.Localize("commands.profile.updated"), updated)
	}
	e.InlineAllFields()

	return bot.RespondEmbed(sc.Session, sc.Event, e.MessageEmbed)
}

func (c *ProfileCommand) runBio(ctx context.Context, sc *command.SlashInteractionContext, text string) error {
	if utf8.RuneCountInString(text) > MaxBio {
		return bot.RespondEphemeral(sc.Session, sc.Event, format.Reply(
			sc.Localize("commands.profile.bio_too_long", locale.Vars{"max": strconv.Itoa(MaxBio)}), ":x:"))
	}

	sc.Records.UpdateUser(ctx, sc.UserID(), sc.Event.GuildID, record.Fields{BioField: text})
	return bot.RespondEphemeral(sc.Session, sc.Event, format.Reply(sc.Localize("commands.profile.bio_saved"), "✅"))
}

func invoker(e *discordgo.InteractionCreate) *discordgo.User {
	if e.Member != nil && e.Member.User != nil {
		return e.Member.User
	}
	if e.User != nil {
		return e.User
	}
	return &discordgo.User{}
}

// resolveUser looks the option's user up in the interaction's resolved data.
func resolveUser(e *discordgo.InteractionCreate, value any) *discordgo.User {
	id, _ := value.(string)
	if r := e.ApplicationCommandData().Resolved; r != nil {
		if u, ok := r.Users[id]; ok {
			return u
		}
	}
	return &discordgo.User{ID: id}
}
