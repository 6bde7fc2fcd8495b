package player

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Registry holds one Player per guild. It answers the voice gate's
// connection and queue lookups.
type Registry struct {
	mu       sync.Mutex
	players  map[string]*Player
	joiner   Joiner
	streamer Streamer
	log      *logrus.Entry
}

func NewRegistry(joiner Joiner, streamer Streamer, log *logrus.Entry) *Registry {
	return &Registry{
		players:  map[string]*Player{},
		joiner:   joiner,
		streamer: streamer,
		log:      log.WithField("component", "player"),
	}
}

func (r *Registry) GetOrCreate(guildID string) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.players[guildID]; ok {
		return p
	}
	p := New(guildID, r.joiner, r.streamer, r.log)
	r.players[guildID] = p
	return p
}

func (r *Registry) Get(guildID string) (*Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[guildID]
	return p, ok
}

// Remove stops and forgets the guild's player.
func (r *Registry) Remove(guildID string) error {
	r.mu.Lock()
	p, ok := r.players[guildID]
	delete(r.players, guildID)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return p.Stop()
}

// HasConnection reports whether the guild's player holds a voice connection.
func (r *Registry) HasConnection(guildID string) bool {
	p, ok := r.Get(guildID)
	return ok && p.Connected()
}

// QueueLength reports the guild's queue size; ok is false when nothing is queued.
func (r *Registry) QueueLength(guildID string) (int, bool) {
	p, ok := r.Get(guildID)
	if !ok {
		return 0, false
	}
	n := p.Len()
	return n, n > 0
}

// Shutdown stops every player.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	players := r.players
	r.players = map[string]*Player{}
	r.mu.Unlock()

	for id, p := range players {
		if err := p.Stop(); err != nil {
			r.log.WithError(err).WithField("guild_id", id).Warn("failed to stop player")
		}
	}
}
