package settings

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"aurora/internal/bot"
	"aurora/internal/command"
	"aurora/internal/format"
	"aurora/internal/locale"
	"aurora/internal/record"
)

// LanguageField is the guild record field holding the guild's language.
const LanguageField = "language"

type SettingsCommand struct {
	Locales *locale.Manager
}

func (c *SettingsCommand) Name() string        { return "settings" }
func (c *SettingsCommand) Description() string { return "Server settings" }
func (c *SettingsCommand) Group() string       { return "settings" }
func (c *SettingsCommand) Category() string    { return "⚙️ Settings" }
func (c *SettingsCommand) UserPermissions() []int64 {
	return []int64{discordgo.PermissionManageGuild}
}
func (c *SettingsCommand) BotPermissions() []int64 {
	return []int64{discordgo.PermissionSendMessages}
}

func (c *SettingsCommand) SlashDefinition() *discordgo.ApplicationCommand {
	perm := int64(discordgo.PermissionManageGuild)

	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0)
	for _, lang := range c.Locales.Languages() {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: lang, Value: lang})
	}

	return &discordgo.ApplicationCommand{
		Name:                     c.Name(),
		Description:              c.Description(),
		DefaultMemberPermissions: &perm,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "language",
				Description: "Change the bot language for this server",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "code",
						Description: "Language code",
						Required:    true,
						Choices:     choices,
					},
				},
			},
		},
	}
}

func (c *SettingsCommand) Run(ctx context.Context, sc *command.SlashInteractionContext) error {
	sub, ok := command.Subcommand(sc.Event)
	if !ok || sub.Name != "language" {
		return fmt.Errorf("unknown subcommand")
	}

	var code string
	if opt, ok := command.Option(sub.Options, "code"); ok {
		code = strings.TrimSpace(opt.StringValue())
	}

	if !c.Locales.Has(code) {
		return bot.RespondEphemeral(sc.Session, sc.Event, format.Reply(sc.Localize("commands.settings.unknown_language", locale.Vars{
			"code":      code,
			"available": strings.Join(c.Locales.Languages(), ", "),
		}), ":x:"))
	}

	sc.Records.UpdateGuild(ctx, sc.Event.GuildID, record.Fields{LanguageField: code})

	// Answer in the language just chosen.
	localize := c.Locales.For(code)
	return bot.RespondEphemeral(sc.Session, sc.Event, format.Reply(localize("commands.settings.language_set", locale.Vars{
		"language": localize("name"),
	}), "✅"))
}
