package player

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aurora/internal/logging"
)

type fakeConn struct {
	channelID    string
	disconnected bool
}

func (c *fakeConn) Disconnect() error {
	c.disconnected = true
	return nil
}

type fakeJoiner struct {
	mu    sync.Mutex
	joins []string
	conns []*fakeConn
	err   error
}

func (j *fakeJoiner) JoinVoice(guildID, channelID string) (VoiceConn, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return nil, j.err
	}
	j.joins = append(j.joins, guildID+"/"+channelID)
	c := &fakeConn{channelID: channelID}
	j.conns = append(j.conns, c)
	return c, nil
}

type recordingStreamer struct {
	played []string
	halts  int
}

func (s *recordingStreamer) Play(_ string, t Track, _ VoiceConn) error {
	s.played = append(s.played, t.Title)
	return nil
}

func (s *recordingStreamer) Halt(string) { s.halts++ }

func setupPlayer(t *testing.T) (*Player, *fakeJoiner, *recordingStreamer) {
	t.Helper()
	j := &fakeJoiner{}
	s := &recordingStreamer{}
	return New("g1", j, s, logging.Discard()), j, s
}

func TestEnqueueJoinsOnceAndStartsHead(t *testing.T) {
	p, j, s := setupPlayer(t)

	pos, err := p.Enqueue("v1", Track{Title: "one"})
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	pos, err = p.Enqueue("v1", Track{Title: "two"})
	require.NoError(t, err)
	assert.Equal(t, 2, pos)

	assert.Equal(t, []string{"g1/v1"}, j.joins)
	assert.Equal(t, []string{"one"}, s.played)
	assert.True(t, p.Connected())
	assert.Equal(t, "v1", p.ChannelID())

	cur, ok := p.Current()
	require.True(t, ok)
	assert.Equal(t, "one", cur.Title)
	assert.False(t, cur.AddedAt.IsZero())
}

func TestEnqueueRequiresChannel(t *testing.T) {
	p, _, _ := setupPlayer(t)

	_, err := p.Enqueue("", Track{Title: "x"})

	assert.ErrorIs(t, err, ErrNoChannel)
}

func TestEnqueueJoinFailure(t *testing.T) {
	p, j, _ := setupPlayer(t)
	j.err = errors.New("missing access")

	_, err := p.Enqueue("v1", Track{Title: "x"})

	assert.ErrorContains(t, err, "failed to join voice channel")
	assert.Zero(t, p.Len())
}

func TestSkipAdvancesQueue(t *testing.T) {
	p, _, s := setupPlayer(t)
	_, _ = p.Enqueue("v1", Track{Title: "one"})
	_, _ = p.Enqueue("v1", Track{Title: "two"})

	skipped, next, err := p.Skip()
	require.NoError(t, err)
	assert.Equal(t, "one", skipped.Title)
	require.NotNil(t, next)
	assert.Equal(t, "two", next.Title)
	assert.Equal(t, []string{"one", "two"}, s.played)

	_, next, err = p.Skip()
	require.NoError(t, err)
	assert.Nil(t, next)
	assert.Len(t, p.History(), 2)

	_, _, err = p.Skip()
	assert.ErrorIs(t, err, ErrNoTracksInQueue)
}

func TestStopClearsAndDisconnects(t *testing.T) {
	p, j, s := setupPlayer(t)
	_, _ = p.Enqueue("v1", Track{Title: "one"})
	_, _ = p.Enqueue("v1", Track{Title: "two"})

	require.NoError(t, p.Stop())

	assert.Zero(t, p.Len())
	assert.False(t, p.Connected())
	assert.True(t, j.conns[0].disconnected)
	assert.Equal(t, 1, s.halts)
	assert.NoError(t, p.Stop())
}

func TestRegistryAnswersGateLookups(t *testing.T) {
	j := &fakeJoiner{}
	r := NewRegistry(j, nil, logging.Discard())

	assert.False(t, r.HasConnection("g1"))
	_, ok := r.QueueLength("g1")
	assert.False(t, ok)

	p := r.GetOrCreate("g1")
	assert.Same(t, p, r.GetOrCreate("g1"))
	_, ok = r.QueueLength("g1")
	assert.False(t, ok, "an empty queue counts as no queue")

	_, err := p.Enqueue("v1", Track{Title: "one"})
	require.NoError(t, err)
	assert.True(t, r.HasConnection("g1"))
	n, ok := r.QueueLength("g1")
	assert.True(t, ok)
	assert.Equal(t, 1, n)

	require.NoError(t, r.Remove("g1"))
	assert.False(t, r.HasConnection("g1"))
	assert.True(t, j.conns[0].disconnected)
	assert.NoError(t, r.Remove("g1"))
}

func TestRegistryShutdown(t *testing.T) {
	j := &fakeJoiner{}
	r := NewRegistry(j, Silent{}, logging.Discard())
	_, _ = r.GetOrCreate("g1").Enqueue("v1", Track{Title: "a"})
	_, _ = r.GetOrCreate("g2").Enqueue("v9", Track{Title: "b"})

	r.Shutdown()

	for _, c := range j.conns {
		assert.True(t, c.disconnected)
	}
	_, ok := r.Get("g1")
	assert.False(t, ok)
}

func TestStatusEmoji(t *testing.T) {
	assert.Equal(t, "🎶", StatusAdded.StringEmoji())
	assert.Equal(t, "", Status("unknown").StringEmoji())
}
