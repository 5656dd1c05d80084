package discord

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/playcord/internal/errs"
	"github.com/keshon/playcord/internal/music/player"
)

type fakeLink struct {
	channel     string
	frames      chan []byte
	disconnects atomic.Int32

	mu       sync.Mutex
	speaking []bool
}

func newFakeLink(channel string) *fakeLink {
	return &fakeLink{channel: channel, frames: make(chan []byte)}
}

func (l *fakeLink) Speaking(b bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.speaking = append(l.speaking, b)
	return nil
}

func (l *fakeLink) Frames() chan<- []byte { return l.frames }
func (l *fakeLink) Channel() string       { return l.channel }

func (l *fakeLink) Disconnect() error {
	l.disconnects.Add(1)
	return nil
}

func (l *fakeLink) Speakings() []bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]bool(nil), l.speaking...)
}

// fakeResource serves frames from a channel and returns end once it is closed.
type fakeResource struct {
	frames chan []byte
	end    error
}

func newFakeResource(end error) *fakeResource {
	return &fakeResource{frames: make(chan []byte, 16), end: end}
}

func (r *fakeResource) ReadFrame() ([]byte, error) {
	f, ok := <-r.frames
	if !ok {
		return nil, r.end
	}
	return f, nil
}

func (r *fakeResource) SetVolumeLogarithmic(float64)     {}
func (r *fakeResource) SetBitrate(int) error             { return nil }
func (r *fakeResource) PlaybackDuration() time.Duration { return 0 }
func (r *fakeResource) Close() error                     { return nil }

// endlessResource always has a frame ready.
type endlessResource struct{ fakeResource }

func (r *endlessResource) ReadFrame() ([]byte, error) { return []byte{0xf8}, nil }

type transition struct{ from, to player.Status }

type stateLog struct {
	mu   sync.Mutex
	seen []transition
	errs []error
}

func (s *stateLog) record(from, to player.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, transition{from, to})
}

func (s *stateLog) recordErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func (s *stateLog) transitions() []transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]transition(nil), s.seen...)
}

func (s *stateLog) errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errs...)
}

func newTestAudioPlayer() (*AudioPlayer, *stateLog) {
	ap := NewAudioPlayer(zerolog.Nop())
	log := &stateLog{}
	ap.OnStateChange(log.record)
	ap.OnError(log.recordErr)
	return ap, log
}

func receive(t *testing.T, l *fakeLink) []byte {
	t.Helper()
	select {
	case f := <-l.frames:
		return f
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
		return nil
	}
}

func assertNoFrame(t *testing.T, l *fakeLink, wait time.Duration) {
	t.Helper()
	select {
	case f := <-l.frames:
		t.Fatalf("unexpected frame %v", f)
	case <-time.After(wait):
	}
}

func TestAudioPlayer_PlaysUntilEOF(t *testing.T) {
	ap, log := newTestAudioPlayer()
	link := newFakeLink("voice")
	ap.attach(link)

	res := newFakeResource(io.EOF)
	res.frames <- []byte{1}
	res.frames <- []byte{2}
	close(res.frames)

	ap.Play(res)
	assert.Equal(t, []byte{1}, receive(t, link))
	assert.Equal(t, []byte{2}, receive(t, link))

	require.Eventually(t, func() bool { return ap.Status() == player.StatusIdle }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []transition{
		{player.StatusIdle, player.StatusPlaying},
		{player.StatusPlaying, player.StatusIdle},
	}, log.transitions())
	assert.Empty(t, log.errors())
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]bool{true, false}, link.Speakings())
	}, time.Second, 5*time.Millisecond)
}

func TestAudioPlayer_WaitsForConnection(t *testing.T) {
	ap, log := newTestAudioPlayer()
	res := newFakeResource(io.EOF)
	res.frames <- []byte{7}

	ap.Play(res)
	assert.Equal(t, player.StatusAutoPaused, ap.Status())

	link := newFakeLink("voice")
	ap.attach(link)
	assert.Equal(t, player.StatusPlaying, ap.Status())
	assert.Equal(t, []byte{7}, receive(t, link))

	assert.Equal(t, []transition{
		{player.StatusIdle, player.StatusAutoPaused},
		{player.StatusAutoPaused, player.StatusPlaying},
	}, log.transitions())

	ap.Stop()
}

func TestAudioPlayer_PauseAndResume(t *testing.T) {
	ap, log := newTestAudioPlayer()
	link := newFakeLink("voice")
	ap.attach(link)

	ap.Play(&endlessResource{})
	receive(t, link)

	require.True(t, ap.Pause())
	assert.False(t, ap.Pause(), "already paused")
	assert.Equal(t, player.StatusPaused, ap.Status())

	// at most one frame was already in flight
	select {
	case <-link.frames:
	case <-time.After(50 * time.Millisecond):
	}
	assertNoFrame(t, link, 50*time.Millisecond)

	require.True(t, ap.Unpause())
	assert.False(t, ap.Unpause())
	receive(t, link)

	require.True(t, ap.Stop())
	assert.Equal(t, []transition{
		{player.StatusIdle, player.StatusPlaying},
		{player.StatusPlaying, player.StatusPaused},
		{player.StatusPaused, player.StatusPlaying},
		{player.StatusPlaying, player.StatusIdle},
	}, log.transitions())
}

func TestAudioPlayer_Stop(t *testing.T) {
	ap, log := newTestAudioPlayer()
	assert.False(t, ap.Stop(), "idle player has nothing to stop")
	assert.False(t, ap.Pause())

	link := newFakeLink("voice")
	ap.attach(link)
	ap.Play(&endlessResource{})
	receive(t, link)

	require.True(t, ap.Stop())
	assert.Equal(t, player.StatusIdle, ap.Status())

	select {
	case <-link.frames:
	case <-time.After(50 * time.Millisecond):
	}
	assertNoFrame(t, link, 50*time.Millisecond)

	trs := log.transitions()
	require.Len(t, trs, 2)
	assert.Equal(t, transition{player.StatusPlaying, player.StatusIdle}, trs[1])
}

func TestAudioPlayer_ResourceErrorReportsThenIdles(t *testing.T) {
	ap, log := newTestAudioPlayer()
	ap.attach(newFakeLink("voice"))

	res := newFakeResource(errors.New("ffmpeg exited with status 1"))
	close(res.frames)
	ap.Play(res)

	require.Eventually(t, func() bool { return ap.Status() == player.StatusIdle }, time.Second, 5*time.Millisecond)
	errList := log.errors()
	require.Len(t, errList, 1)
	assert.ErrorIs(t, errList[0], errs.ErrStream)
	assert.Contains(t, errList[0].Error(), "ffmpeg exited")
}

func TestAudioPlayer_DetachAutoPauses(t *testing.T) {
	ap, _ := newTestAudioPlayer()
	link := newFakeLink("voice")
	ap.attach(link)
	ap.Play(&endlessResource{})
	receive(t, link)

	ap.detach(newFakeLink("other"))
	assert.Equal(t, player.StatusPlaying, ap.Status(), "unknown link is ignored")

	ap.detach(link)
	assert.Equal(t, player.StatusAutoPaused, ap.Status())

	next := newFakeLink("voice-2")
	ap.attach(next)
	assert.Equal(t, player.StatusPlaying, ap.Status())
	receive(t, next)
	ap.Stop()
}

func TestAudioPlayer_CallbackMayStartNextTrack(t *testing.T) {
	ap := NewAudioPlayer(zerolog.Nop())
	link := newFakeLink("voice")
	ap.attach(link)

	second := newFakeResource(io.EOF)
	second.frames <- []byte{2}

	var advanced atomic.Bool
	ap.OnStateChange(func(from, to player.Status) {
		if to == player.StatusIdle && advanced.CompareAndSwap(false, true) {
			ap.Play(second)
		}
	})

	first := newFakeResource(io.EOF)
	first.frames <- []byte{1}
	close(first.frames)
	ap.Play(first)

	assert.Equal(t, []byte{1}, receive(t, link))
	assert.Equal(t, []byte{2}, receive(t, link))
	assert.True(t, advanced.Load())
	assert.Equal(t, player.StatusPlaying, ap.Status())
	ap.Stop()
}

func TestVoiceTransport_Join(t *testing.T) {
	link := newFakeLink("voice")
	tr := &VoiceTransport{
		join: func(guildID, channelID string) (voiceLink, error) {
			assert.Equal(t, "guild", guildID)
			assert.Equal(t, "voice", channelID)
			return link, nil
		},
		log: zerolog.Nop(),
	}

	conn, err := tr.Join(context.Background(), "guild", "voice")
	require.NoError(t, err)
	assert.Equal(t, "voice", conn.ChannelID())

	unit := tr.NewPlaybackUnit()
	require.NoError(t, conn.Subscribe(unit))

	res := newFakeResource(io.EOF)
	res.frames <- []byte{9}
	unit.Play(res)
	assert.Equal(t, []byte{9}, receive(t, link))

	require.NoError(t, conn.Destroy())
	require.NoError(t, conn.Destroy())
	assert.Equal(t, int32(1), link.disconnects.Load())
	assert.Error(t, conn.Subscribe(unit), "destroyed connections refuse subscribers")
}

func TestVoiceTransport_DestroyAutoPausesUnit(t *testing.T) {
	link := newFakeLink("voice")
	tr := &VoiceTransport{join: func(string, string) (voiceLink, error) { return link, nil }, log: zerolog.Nop()}

	conn, err := tr.Join(context.Background(), "g", "voice")
	require.NoError(t, err)
	unit := tr.NewPlaybackUnit()
	require.NoError(t, conn.Subscribe(unit))

	unit.Play(&endlessResource{})
	receive(t, link)

	require.NoError(t, conn.Destroy())
	assert.Equal(t, player.StatusAutoPaused, unit.Status())
	unit.Stop()
}

func TestVoiceTransport_JoinErrors(t *testing.T) {
	tr := &VoiceTransport{
		join: func(string, string) (voiceLink, error) { return nil, errors.New("timeout waiting for voice") },
		log:  zerolog.Nop(),
	}
	_, err := tr.Join(context.Background(), "g", "c")
	assert.ErrorContains(t, err, "timeout waiting for voice")

	link := newFakeLink("late")
	release := make(chan struct{})
	tr.join = func(string, string) (voiceLink, error) {
		<-release
		return link, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tr.Join(ctx, "g", "c")
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	require.Eventually(t, func() bool { return link.disconnects.Load() == 1 }, time.Second, 5*time.Millisecond)
}

type otherUnit struct{ player.PlaybackUnit }

func TestVoiceConn_RejectsForeignUnits(t *testing.T) {
	c := &voiceConn{link: newFakeLink("v"), log: zerolog.Nop()}
	assert.Error(t, c.Subscribe(otherUnit{}))
}
