// Package format renders the bot's replies, embeds and Discord timestamps.
package format

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	embed "github.com/clinet/discordgo-embed"

	"aurora/internal/config"
)

var (
	ErrNoInteraction = errors.New("format: interaction is required to build an embed")
	ErrNoTime        = errors.New("format: time is required")
	ErrTimeStyle     = errors.New("format: unknown timestamp style")
)

// TimeStyle is one of Discord's timestamp markdown styles.
type TimeStyle string

const (
	ShortTime     TimeStyle = "t"
	LongTime      TimeStyle = "T"
	ShortDate     TimeStyle = "d"
	LongDate      TimeStyle = "D"
	ShortDateTime TimeStyle = "f"
	LongDateTime  TimeStyle = "F"
	Relative      TimeStyle = "R"
)

// Reply prefixes content with emoji: "emoji | content".
func Reply(content, emoji string) string {
	return emoji + " | " + content
}

// FormatTime renders t as <t:unix:style>; an empty style means LongDateTime.
func FormatTime(t time.Time, style TimeStyle) (string, error) {
	if t.IsZero() {
		return "", ErrNoTime
	}
	switch style {
	case "":
		style = LongDateTime
	case ShortTime, LongTime, ShortDate, LongDate, ShortDateTime, LongDateTime, Relative:
	default:
		return "", fmt.Errorf("%w: %q", ErrTimeStyle, style)
	}
	return fmt.Sprintf("<t:%d:%s>", t.Unix(), style), nil
}

// Embed starts an embed carrying the configured colour, the invoking user in
// the footer and the current timestamp.
func Embed(i *discordgo.InteractionCreate, cfg config.EmbedConfig) (*embed.Embed, error) {
	if i == nil || i.Interaction == nil {
		return nil, ErrNoInteraction
	}

	e := embed.NewEmbed().SetColor(cfg.Color())

	if cfg.ShowAuthor {
		if u := invoker(i.Interaction); u != nil {
			e.SetFooter(u.String(), u.AvatarURL(""))
		}
	}
	if cfg.SetTimestamp {
		e.Timestamp = time.Now().Format(time.RFC3339)
	}
	return e, nil
}

func invoker(i *discordgo.Interaction) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

// BulletList renders items as "* item" lines.
func BulletList(items []string) string {
	var b strings.Builder
	for n, item := range items {
		if n > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("* ")
		b.WriteString(item)
	}
	return b.String()
}
