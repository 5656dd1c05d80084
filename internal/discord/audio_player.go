package discord

import (
	"errors"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/keshon/playcord/internal/errs"
	"github.com/keshon/playcord/internal/music/player"
)

// AudioPlayer plays one resource at a time into the voice connection it is
// attached to. A goroutine per resource reads Opus frames and hands them to
// the connection's send channel. Callbacks run on the goroutine that caused
// the transition, with no lock held.
type AudioPlayer struct {
	log zerolog.Logger

	mu      sync.Mutex
	status  player.Status
	link    voiceLink
	stop    chan struct{}
	wake    chan struct{}
	onState func(from, to player.Status)
	onError func(err error)
}

var _ player.PlaybackUnit = (*AudioPlayer)(nil)

func NewAudioPlayer(log zerolog.Logger) *AudioPlayer {
	return &AudioPlayer{log: log, wake: make(chan struct{})}
}

func (a *AudioPlayer) OnStateChange(fn func(from, to player.Status)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onState = fn
}

func (a *AudioPlayer) OnError(fn func(err error)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onError = fn
}

func (a *AudioPlayer) Status() player.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Play replaces whatever is playing with res. Without an attached
// connection the player waits in AutoPaused.
func (a *AudioPlayer) Play(res player.Resource) {
	stop := make(chan struct{})

	a.mu.Lock()
	if a.stop != nil {
		close(a.stop)
	}
	a.stop = stop
	to := player.StatusPlaying
	if a.link == nil {
		to = player.StatusAutoPaused
	}
	from := a.setStatusLocked(to)
	a.mu.Unlock()

	a.emit(from, to)
	go a.pump(res, stop)
}

func (a *AudioPlayer) Pause() bool {
	a.mu.Lock()
	if a.status != player.StatusPlaying && a.status != player.StatusAutoPaused {
		a.mu.Unlock()
		return false
	}
	from := a.setStatusLocked(player.StatusPaused)
	a.mu.Unlock()

	a.emit(from, player.StatusPaused)
	return true
}

func (a *AudioPlayer) Unpause() bool {
	a.mu.Lock()
	if a.status != player.StatusPaused {
		a.mu.Unlock()
		return false
	}
	to := player.StatusPlaying
	if a.link == nil {
		to = player.StatusAutoPaused
	}
	from := a.setStatusLocked(to)
	a.mu.Unlock()

	a.emit(from, to)
	return true
}

// Stop drops the current resource without closing it.
func (a *AudioPlayer) Stop() bool {
	a.mu.Lock()
	if a.status == player.StatusIdle {
		a.mu.Unlock()
		return false
	}
	if a.stop != nil {
		close(a.stop)
		a.stop = nil
	}
	from := a.setStatusLocked(player.StatusIdle)
	a.mu.Unlock()

	a.emit(from, player.StatusIdle)
	return true
}

func (a *AudioPlayer) attach(link voiceLink) {
	a.mu.Lock()
	a.link = link
	if a.status != player.StatusAutoPaused {
		a.wakeLocked()
		a.mu.Unlock()
		return
	}
	from := a.setStatusLocked(player.StatusPlaying)
	a.mu.Unlock()

	a.emit(from, player.StatusPlaying)
}

func (a *AudioPlayer) detach(link voiceLink) {
	a.mu.Lock()
	if a.link != link {
		a.mu.Unlock()
		return
	}
	a.link = nil
	if a.status != player.StatusPlaying {
		a.wakeLocked()
		a.mu.Unlock()
		return
	}
	from := a.setStatusLocked(player.StatusAutoPaused)
	a.mu.Unlock()

	a.emit(from, player.StatusAutoPaused)
}

func (a *AudioPlayer) setStatusLocked(to player.Status) player.Status {
	from := a.status
	a.status = to
	a.wakeLocked()
	return from
}

// wakeLocked releases every pump waiting for a state change.
func (a *AudioPlayer) wakeLocked() {
	close(a.wake)
	a.wake = make(chan struct{})
}

func (a *AudioPlayer) emit(from, to player.Status) {
	a.mu.Lock()
	fn := a.onState
	a.mu.Unlock()

	a.log.Debug().Stringer("from", from).Stringer("to", to).Msg("audio player state")
	if fn != nil {
		fn(from, to)
	}
}

// waitPlayable blocks until the player is playing into a connection. It
// returns false once stop is closed.
func (a *AudioPlayer) waitPlayable(stop chan struct{}) (voiceLink, bool) {
	for {
		a.mu.Lock()
		if a.stop != stop {
			a.mu.Unlock()
			return nil, false
		}
		if a.status == player.StatusPlaying && a.link != nil {
			link := a.link
			a.mu.Unlock()
			return link, true
		}
		wake := a.wake
		a.mu.Unlock()

		select {
		case <-stop:
			return nil, false
		case <-wake:
		}
	}
}

func (a *AudioPlayer) pump(res player.Resource, stop chan struct{}) {
	var speaking voiceLink
	defer func() {
		if speaking != nil {
			_ = speaking.Speaking(false)
		}
	}()

	for {
		link, ok := a.waitPlayable(stop)
		if !ok {
			return
		}
		if speaking != link {
			if speaking != nil {
				_ = speaking.Speaking(false)
			}
			if err := link.Speaking(true); err != nil {
				a.log.Debug().Err(err).Msg("speaking update failed")
			}
			speaking = link
		}

		frame, err := res.ReadFrame()
		if err != nil {
			a.finish(stop, err)
			return
		}

		select {
		case link.Frames() <- frame:
		case <-stop:
			return
		}
	}
}

// finish moves to Idle once the resource is exhausted or broken.
func (a *AudioPlayer) finish(stop chan struct{}, err error) {
	a.mu.Lock()
	if a.stop != stop {
		a.mu.Unlock()
		return
	}
	a.stop = nil
	from := a.setStatusLocked(player.StatusIdle)
	onErr := a.onError
	a.mu.Unlock()

	if !errors.Is(err, io.EOF) {
		a.log.Warn().Err(err).Msg("audio resource failed")
		if !errors.Is(err, errs.ErrStream) {
			err = errs.Stream("playback", err)
		}
		if onErr != nil {
			onErr(err)
		}
	}
	a.emit(from, player.StatusIdle)
}
