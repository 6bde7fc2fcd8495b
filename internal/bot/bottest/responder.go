// Package bottest records interaction replies for command tests.
package bottest

import (
	"sync"

	"github.com/bwmarrin/discordgo"
)

// Reply is one recorded response or followup.
type Reply struct {
	Followup  bool
	Type      discordgo.InteractionResponseType
	Content   string
	Embeds    []*discordgo.MessageEmbed
	Ephemeral bool
}

// Text returns the content, or the first embed's description when there is no content.
func (r Reply) Text() string {
	if r.Content != "" || len(r.Embeds) == 0 {
		return r.Content
	}
	return r.Embeds[0].Description
}

// Responder implements bot.Responder by recording every call.
type Responder struct {
	mu      sync.Mutex
	replies []Reply
	Err     error
}

func (r *Responder) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	rep := Reply{Type: resp.Type}
	if resp.Data != nil {
		rep.Content = resp.Data.Content
		rep.Embeds = resp.Data.Embeds
		rep.Ephemeral = resp.Data.Flags&discordgo.MessageFlagsEphemeral != 0
	}
	return r.record(rep)
}

func (r *Responder) FollowupMessageCreate(_ *discordgo.Interaction, _ bool, data *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	rep := Reply{
		Followup:  true,
		Content:   data.Content,
		Embeds:    data.Embeds,
		Ephemeral: data.Flags&discordgo.MessageFlagsEphemeral != 0,
	}
	if err := r.record(rep); err != nil {
		return nil, err
	}
	return &discordgo.Message{Content: data.Content, Embeds: data.Embeds}, nil
}

func (r *Responder) record(rep Reply) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.replies = append(r.replies, rep)
	return nil
}

// Replies returns everything recorded so far.
func (r *Responder) Replies() []Reply {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Reply(nil), r.replies...)
}

// Last returns the most recent reply.
func (r *Responder) Last() (Reply, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.replies) == 0 {
		return Reply{}, false
	}
	return r.replies[len(r.replies)-1], true
}
