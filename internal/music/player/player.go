// Package player keeps the per-guild playback queue and voice connection.
// Audio itself is produced by a Streamer; the default one plays nothing.
package player

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

type Status string

const (
	StatusPlaying Status = "Playing"
	StatusAdded   Status = "Track(s) Added"
	StatusSkipped Status = "Track Skipped"
	StatusStopped Status = "Playback Stopped"
	StatusError   Status = "Error"
)

func (s Status) StringEmoji() string {
	m := map[Status]string{
		StatusPlaying: "▶️",
		StatusAdded:   "🎶",
		StatusSkipped: "⏭",
		StatusStopped: "⏹",
		StatusError:   "❌",
	}
	return m[s]
}

var (
	ErrNoTracksInQueue = errors.New("no tracks in queue")
	ErrNoChannel       = errors.New("voice channel ID is not set")
)

type Track struct {
	Title       string
	URL         string
	RequestedBy string
	AddedAt     time.Time
}

// VoiceConn is a live voice connection; *discordgo.VoiceConnection satisfies it.
type VoiceConn interface {
	Disconnect() error
}

// Joiner opens voice connections.
type Joiner interface {
	JoinVoice(guildID, channelID string) (VoiceConn, error)
}

// SessionJoiner joins through a discordgo session, self-deafened.
type SessionJoiner struct {
	Session *discordgo.Session
}

func (j SessionJoiner) JoinVoice(guildID, channelID string) (VoiceConn, error) {
	vc, err := j.Session.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, err
	}
	return vc, nil
}

// Streamer turns the head of the queue into audio on conn.
type Streamer interface {
	Play(guildID string, t Track, conn VoiceConn) error
	Halt(guildID string)
}

// Silent is the Streamer used when no audio engine is configured.
type Silent struct{}

func (Silent) Play(string, Track, VoiceConn) error { return nil }
func (Silent) Halt(string)                         {}

// Player owns one guild's queue. The head of the queue is the current track.
type Player struct {
	mu        sync.Mutex
	guildID   string
	channelID string
	queue     []Track
	history   []Track
	conn      VoiceConn

	joiner   Joiner
	streamer Streamer
	log      *logrus.Entry
}

func New(guildID string, joiner Joiner, streamer Streamer, log *logrus.Entry) *Player {
	if streamer == nil {
		streamer = Silent{}
	}
	return &Player{
		guildID:  guildID,
		joiner:   joiner,
		streamer: streamer,
		log:      log.WithField("guild_id", guildID),
	}
}

// Enqueue appends t, joining channelID first when not connected. It returns
// the 1-based queue position of t.
func (p *Player) Enqueue(channelID string, t Track) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureConnection(channelID); err != nil {
		return 0, err
	}

	if t.AddedAt.IsZero() {
		t.AddedAt = time.Now()
	}
	p.queue = append(p.queue, t)
	p.log.WithFields(logrus.Fields{"title": t.Title, "queue_len": len(p.queue)}).Info("track enqueued")

	if len(p.queue) == 1 {
		p.startHead()
	}
	return len(p.queue), nil
}

// Skip drops the current track and starts the next one, if any.
func (p *Player) Skip() (skipped Track, next *Track, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.queue) == 0 {
		return Track{}, nil, ErrNoTracksInQueue
	}

	p.streamer.Halt(p.guildID)
	skipped = p.queue[0]
	p.history = append(p.history, skipped)
	p.queue = p.queue[1:]

	if len(p.queue) > 0 {
		head := p.queue[0]
		next = &head
		p.startHead()
	}
	return skipped, next, nil
}

// Stop clears the queue and leaves the voice channel.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.streamer.Halt(p.guildID)
	if len(p.queue) > 0 {
		p.history = append(p.history, p.queue[0])
	}
	p.queue = nil
	p.channelID = ""

	if p.conn == nil {
		return nil
	}
	err := p.conn.Disconnect()
	p.conn = nil
	if err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	p.log.Info("left voice channel")
	return nil
}

// Current returns the track at the head of the queue.
func (p *Player) Current() (Track, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return Track{}, false
	}
	return p.queue[0], true
}

// Queue returns a copy of the queue, current track first.
func (p *Player) Queue() []Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.queue)
}

// History returns a copy of finished or skipped tracks.
func (p *Player) History() []Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.history)
}

func (p *Player) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Connected reports whether the player holds a voice connection.
func (p *Player) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn != nil
}

func (p *Player) ChannelID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channelID
}

// ensureConnection joins or reuses the voice connection. Caller holds p.mu.
func (p *Player) ensureConnection(channelID string) error {
	if channelID == "" {
		return ErrNoChannel
	}
	if p.conn != nil && p.channelID == channelID {
		return nil
	}
	if p.conn != nil {
		_ = p.conn.Disconnect()
		p.conn = nil
	}

	conn, err := p.joiner.JoinVoice(p.guildID, channelID)
	if err != nil {
		return fmt.Errorf("failed to join voice channel: %w", err)
	}
	p.conn = conn
	p.channelID = channelID
	p.log.WithField("channel_id", channelID).Info("joined voice channel")
	return nil
}

// startHead hands the head of the queue to the streamer. Caller holds p.mu.
func (p *Player) startHead() {
	head := p.queue[0]
	if err := p.streamer.Play(p.guildID, head, p.conn); err != nil {
		p.log.WithError(err).WithField("title", head.Title).Error("playback failed")
	}
}
