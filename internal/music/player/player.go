// Package player drives per-guild playback: it owns the queue state machine,
// talks to the voice transport and advances the queue when a track ends.
package player

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/keshon/playcord/internal/errs"
	"github.com/keshon/playcord/internal/music/queue"
	"github.com/keshon/playcord/internal/music/stream"
)

var (
	ErrNoQueue         = errs.NotFoundf("queue is not initialised for this guild")
	ErrNoTrackPlaying  = errs.NotFoundf("no track is currently playing")
	ErrNoTracksInQueue = errs.NotFoundf("no tracks in queue")
)

// Player is the playback state machine of one guild. Its mutex guards the
// guild's queue record; it is never held across blocking calls.
type Player struct {
	guildID string
	m       *Manager
	log     zerolog.Logger

	mu       sync.Mutex
	unit     PlaybackUnit
	starting bool
	started  chan struct{}
	bitrate  int
}

func newPlayer(m *Manager, guildID string) *Player {
	return &Player{
		guildID: guildID,
		m:       m,
		log:     m.log.With().Str("guild", guildID).Logger(),
		bitrate: m.cfg.Bitrate,
	}
}

func (p *Player) GuildID() string { return p.guildID }

// AddSong resolves ref and appends it to the queue. Video links go through
// the searcher, direct audio links are queued as they are.
func (p *Player) AddSong(ctx context.Context, ref string) (queue.Song, error) {
	ref = strings.TrimSpace(ref)

	var song queue.Song
	switch {
	case ref == "":
		return queue.Song{}, errs.InvalidInputf("song reference is empty")
	case isVideoURL(ref):
		resolved, err := p.m.searcher.Resolve(ctx, ref)
		if err != nil {
			return queue.Song{}, fmt.Errorf("resolve %q: %w", ref, err)
		}
		song = resolved
	case isAudioURL(ref):
		song = queue.Song{
			ID:        uuid.NewString(),
			URL:       ref,
			Title:     path.Base(strings.SplitN(ref, "?", 2)[0]),
			StreamURL: ref,
		}
	default:
		return queue.Song{}, errs.InvalidInputf("%q is neither a video nor an audio link", ref)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	q, ok := p.m.store.Get(p.guildID)
	if !ok {
		// stopped while resolving
		return queue.Song{}, ErrNoQueue
	}
	q.Append(song)
	p.log.Debug().Str("title", song.Title).Int("queue_len", len(q.Songs)).Msg("song added")
	return song, nil
}

// AddPlaylist expands a playlist link and queues up to MaxPlaylistSongs
// entries. It returns how many were added.
func (p *Player) AddPlaylist(ctx context.Context, url string) (int, error) {
	if !isPlaylistURL(url) {
		return 0, errs.InvalidInputf("%q is not a playlist link", url)
	}

	entries, err := p.m.searcher.ResolvePlaylist(ctx, url)
	if err != nil {
		return 0, fmt.Errorf("resolve playlist %q: %w", url, err)
	}
	if len(entries) > MaxPlaylistSongs {
		entries = entries[:MaxPlaylistSongs]
	}

	added := 0
	for _, entry := range entries {
		if _, err := p.AddSong(ctx, entry.URL); err != nil {
			if errors.Is(err, ErrNoQueue) || ctx.Err() != nil {
				return added, err
			}
			p.log.Warn().Err(err).Str("url", entry.URL).Msg("skipping playlist entry")
			continue
		}
		added++
	}
	p.log.Info().Int("added", added).Int("entries", len(entries)).Msg("playlist queued")
	return added, nil
}

func (p *Player) enqueue(ctx context.Context, ref string) error {
	if isPlaylistURL(ref) {
		_, err := p.AddPlaylist(ctx, ref)
		return err
	}
	_, err := p.AddSong(ctx, ref)
	return err
}

// Play starts ref on the guild's connection, joining channel (or the
// queue's voice channel) first when needed. While a track is playing, or
// another Play is starting one, ref is only queued.
func (p *Player) Play(ctx context.Context, ref, channel string) error {
	p.mu.Lock()
	q, ok := p.m.store.Get(p.guildID)
	if !ok {
		p.mu.Unlock()
		return ErrNoQueue
	}
	// a paused or auto-paused track keeps its resource, so it only queues too
	if q.Resource != nil || p.starting {
		p.mu.Unlock()
		p.log.Debug().Str("ref", ref).Msg("track in progress, queueing only")
		if ref == "" {
			return nil
		}
		return p.enqueue(ctx, ref)
	}
	p.starting = true
	needsJoin := !q.HasLiveConnection()
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.starting = false
		p.mu.Unlock()
	}()

	if needsJoin {
		if err := p.connect(ctx, channel); err != nil {
			return err
		}
	}

	if ref != "" {
		p.mu.Lock()
		q, ok = p.m.store.Get(p.guildID)
		if !ok {
			p.mu.Unlock()
			return ErrNoQueue
		}
		head, hasHead := q.Head()
		p.mu.Unlock()
		if !hasHead || head.URL != ref {
			if err := p.enqueue(ctx, ref); err != nil {
				return err
			}
		}
	}

	return p.startHead(ctx)
}

// startHead builds the pipeline for the queue head and waits for the unit
// to report playing.
func (p *Player) startHead(ctx context.Context) error {
	p.mu.Lock()
	q, ok := p.m.store.Get(p.guildID)
	if !ok {
		p.mu.Unlock()
		return ErrNoQueue
	}
	head, ok := q.Head()
	if !ok {
		p.mu.Unlock()
		p.log.Debug().Msg("queue is empty, nothing to play")
		return nil
	}
	fragments := slices.Clone(q.Filters)
	volume := q.Fraction()
	bitrate := p.bitrate
	unit := p.ensureUnitLocked()
	p.mu.Unlock()

	source := head.StreamURL
	if source == "" {
		source = head.URL
	}

	p.log.Info().Str("title", head.Title).Strs("filters", fragments).Msg("preparing playback")
	res, err := p.m.builder.Build(ctx, source, fragments)
	if err != nil {
		err = fmt.Errorf("build pipeline for %q: %w", head.Title, err)
		p.m.events.Error(err)
		return err
	}
	res.SetVolumeLogarithmic(volume)
	if bitrate > 0 {
		if err := res.SetBitrate(bitrate); err != nil {
			p.log.Warn().Err(err).Int("bitrate", bitrate).Msg("keeping encoder bitrate")
		}
	}

	started := make(chan struct{})
	p.mu.Lock()
	if q, ok = p.m.store.Get(p.guildID); !ok {
		p.mu.Unlock()
		_ = res.Close()
		return ErrNoQueue
	}
	prev := q.Resource
	q.Resource = res
	p.started = started
	p.mu.Unlock()

	unit.Play(res)
	if prev != nil && prev != res {
		_ = prev.Close()
	}

	timer := time.NewTimer(p.m.cfg.StartTimeout)
	defer timer.Stop()

	var waitErr error
	select {
	case <-started:
	case <-timer.C:
		waitErr = errs.ErrPlaybackStartTimeout
	case <-ctx.Done():
		waitErr = ctx.Err()
	}

	if waitErr != nil {
		p.mu.Lock()
		if p.started == started {
			p.started = nil
			if q.Resource == res {
				q.Resource = nil
				q.Playing = false
			}
			p.mu.Unlock()
			// the resource is detached, so the idle transition is ignored
			unit.Stop()
			_ = res.Close()
			p.log.Warn().Err(waitErr).Str("title", head.Title).Msg("playback did not start")
			return waitErr
		}
		// started raced with the deadline
		p.mu.Unlock()
	}

	p.mu.Lock()
	text := q.TextChannel
	p.mu.Unlock()

	p.log.Info().Str("title", head.Title).Msg("now playing")
	p.m.events.TrackStart(text, head)
	return nil
}

// Join connects to channel without starting playback.
func (p *Player) Join(ctx context.Context, channel string) error {
	p.mu.Lock()
	q, ok := p.m.store.Get(p.guildID)
	if !ok {
		p.mu.Unlock()
		return ErrNoQueue
	}
	live := q.HasLiveConnection()
	p.mu.Unlock()
	if live {
		return nil
	}
	return p.connect(ctx, channel)
}

func (p *Player) connect(ctx context.Context, channel string) error {
	p.mu.Lock()
	q, ok := p.m.store.Get(p.guildID)
	if !ok {
		p.mu.Unlock()
		return ErrNoQueue
	}
	dest := channel
	if dest == "" {
		dest = q.VoiceChannel
	}
	unit := p.ensureUnitLocked()
	p.mu.Unlock()

	if dest == "" {
		return errs.ErrNoChannel
	}

	p.log.Debug().Str("channel", dest).Msg("joining voice channel")
	conn, err := p.m.transport.Join(ctx, p.guildID, dest)
	if err != nil {
		err = errs.Connection("join", err)
		p.m.events.Error(err)
		return err
	}
	if err := conn.Subscribe(unit); err != nil {
		_ = conn.Destroy()
		err = errs.Connection("subscribe", err)
		p.m.events.Error(err)
		return err
	}

	p.mu.Lock()
	q, ok = p.m.store.Get(p.guildID)
	if !ok {
		p.mu.Unlock()
		_ = conn.Destroy()
		return ErrNoQueue
	}
	q.Connection = conn
	q.VoiceChannel = dest
	text := q.TextChannel
	p.mu.Unlock()

	p.log.Info().Str("channel", dest).Msg("joined voice channel")
	p.m.events.Connected(p.guildID, text, dest)
	return nil
}

// AssignConnection adopts a connection created elsewhere, replacing the
// current one.
func (p *Player) AssignConnection(conn Connection) error {
	if conn == nil {
		return errs.InvalidInputf("connection is nil")
	}

	p.mu.Lock()
	q, ok := p.m.store.Get(p.guildID)
	if !ok {
		p.mu.Unlock()
		return ErrNoQueue
	}
	unit := p.ensureUnitLocked()
	p.mu.Unlock()

	if err := conn.Subscribe(unit); err != nil {
		return errs.Connection("subscribe", err)
	}

	p.mu.Lock()
	q, ok = p.m.store.Get(p.guildID)
	if !ok {
		p.mu.Unlock()
		_ = conn.Destroy()
		return ErrNoQueue
	}
	old := q.Connection
	q.Connection = conn
	q.VoiceChannel = conn.ChannelID()
	text := q.TextChannel
	p.mu.Unlock()

	if old != nil && old != conn {
		if err := old.Destroy(); err != nil {
			p.m.events.Error(errs.Connection("destroy", err))
		}
	}
	p.m.events.Connected(p.guildID, text, conn.ChannelID())
	return nil
}

// Pause pauses the current track. It reports whether anything changed.
func (p *Player) Pause() bool {
	p.mu.Lock()
	unit := p.unit
	q, ok := p.m.store.Get(p.guildID)
	p.mu.Unlock()
	if !ok || unit == nil || unit.Status() != StatusPlaying {
		return false
	}
	if !unit.Pause() {
		return false
	}

	p.mu.Lock()
	q.Playing = false
	text := q.TextChannel
	p.mu.Unlock()

	p.m.events.Pause(p.guildID, text)
	return true
}

// Resume continues a paused track. It reports whether anything changed.
func (p *Player) Resume() bool {
	p.mu.Lock()
	unit := p.unit
	q, ok := p.m.store.Get(p.guildID)
	p.mu.Unlock()
	if !ok || unit == nil {
		return false
	}
	if st := unit.Status(); st != StatusPaused && st != StatusAutoPaused {
		return false
	}
	if !unit.Unpause() {
		return false
	}

	p.mu.Lock()
	if q.Resource != nil {
		q.Playing = true
	}
	text := q.TextChannel
	p.mu.Unlock()

	p.m.events.Resume(p.guildID, text)
	return true
}

// Skip stops the current resource. The queue then advances exactly as
// when a track ends on its own.
func (p *Player) Skip() error {
	p.mu.Lock()
	unit := p.unit
	q, ok := p.m.store.Get(p.guildID)
	active := ok && q.Resource != nil
	p.mu.Unlock()
	if !ok {
		return ErrNoQueue
	}
	if !active || unit == nil {
		return ErrNoTrackPlaying
	}
	unit.Stop()
	return nil
}

// Stop tears the session down and forgets the guild's queue.
func (p *Player) Stop() error {
	text, err := p.teardown()
	if err != nil && errors.Is(err, ErrNoQueue) {
		return err
	}
	p.m.events.Stop(p.guildID, text)
	return err
}

// teardown destroys connection and resource and deletes the queue record.
func (p *Player) teardown() (string, error) {
	p.mu.Lock()
	q, ok := p.m.store.Get(p.guildID)
	if !ok {
		p.mu.Unlock()
		return "", ErrNoQueue
	}
	conn, res, text := q.Connection, q.Resource, q.TextChannel
	q.Connection = nil
	q.Resource = nil
	q.Playing = false
	q.Songs = nil
	p.m.store.Delete(p.guildID)
	p.started = nil
	unit := p.unit
	p.mu.Unlock()

	if unit != nil {
		unit.Stop()
	}
	if res != nil {
		_ = res.Close()
	}
	if conn != nil {
		if err := conn.Destroy(); err != nil {
			err = errs.Connection("destroy", err)
			p.m.events.Error(err)
			return text, err
		}
	}
	p.log.Info().Msg("queue stopped")
	return text, nil
}

// SetVolume stores v (0-100) for following tracks and applies it to the
// current one.
func (p *Player) SetVolume(v int) error {
	if v < 0 || v > 100 {
		return errs.InvalidParameterf("volume must be between 0 and 100, got %d", v)
	}

	p.mu.Lock()
	q, ok := p.m.store.Get(p.guildID)
	if !ok {
		p.mu.Unlock()
		return ErrNoQueue
	}
	q.Volume = v
	res := q.Resource
	p.mu.Unlock()

	if res != nil {
		res.SetVolumeLogarithmic(float64(v) / 100)
	}
	return nil
}

// SetBitrate changes the encoder bitrate of the current and following tracks.
func (p *Player) SetBitrate(bps int) error {
	if !stream.ValidBitrate(bps) {
		return errs.InvalidParameterf("bitrate must be between %d and %d, got %d", stream.MinBitrate, stream.MaxBitrate, bps)
	}

	p.mu.Lock()
	p.bitrate = bps
	var res queue.Resource
	if q, ok := p.m.store.Get(p.guildID); ok {
		res = q.Resource
	}
	p.mu.Unlock()

	if res != nil {
		return res.SetBitrate(bps)
	}
	return nil
}

// SetFilter adds (applied) or removes a filter fragment. The change takes
// effect from the next track.
func (p *Player) SetFilter(fragment string, applied bool) error {
	if strings.TrimSpace(fragment) == "" {
		return errs.InvalidParameterf("filter fragment is empty")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	q, ok := p.m.store.Get(p.guildID)
	if !ok {
		return ErrNoQueue
	}
	idx := slices.Index(q.Filters, fragment)
	switch {
	case applied && idx < 0:
		q.Filters = append(q.Filters, fragment)
	case !applied && idx >= 0:
		q.Filters = slices.Delete(q.Filters, idx, idx+1)
	}
	return nil
}

func (p *Player) ResetFilters() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	q, ok := p.m.store.Get(p.guildID)
	if !ok {
		return ErrNoQueue
	}
	q.Filters = q.Filters[:0]
	return nil
}

// ShuffleQueue shuffles every song after the current one.
func (p *Player) ShuffleQueue() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	q, ok := p.m.store.Get(p.guildID)
	if !ok {
		return ErrNoQueue
	}
	q.Shuffle(p.m.rand)
	return nil
}

// ProgressBar renders the position in the current track.
func (p *Player) ProgressBar(size int) (string, error) {
	p.mu.Lock()
	q, ok := p.m.store.Get(p.guildID)
	if !ok {
		p.mu.Unlock()
		return "", ErrNoQueue
	}
	res := q.Resource
	head, hasHead := q.Head()
	p.mu.Unlock()

	if res == nil || !hasHead {
		return "", ErrNoTrackPlaying
	}
	return RenderProgressBar(size, res.PlaybackDuration(), head.DurationMs), nil
}

// NextSong returns the URL at the head of the queue.
func (p *Player) NextSong() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	q, ok := p.m.store.Get(p.guildID)
	if !ok {
		return "", ErrNoQueue
	}
	head, ok := q.Head()
	if !ok {
		return "", ErrNoTracksInQueue
	}
	return head.URL, nil
}

func (p *Player) Songs() []queue.Song {
	p.mu.Lock()
	defer p.mu.Unlock()

	q, ok := p.m.store.Get(p.guildID)
	if !ok {
		return nil
	}
	return slices.Clone(q.Songs)
}

// Snapshot copies the guild's queue record.
func (p *Player) Snapshot() (queue.Queue, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	q, ok := p.m.store.Get(p.guildID)
	if !ok {
		return queue.Queue{}, false
	}
	return q.Clone(), true
}

// Active reports whether a track is attached (playing or paused) or being
// started, i.e. whether Play would only queue.
func (p *Player) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	q, ok := p.m.store.Get(p.guildID)
	return p.starting || (ok && q.Resource != nil)
}

func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	q, ok := p.m.store.Get(p.guildID)
	return ok && q.Playing
}

func (p *Player) ensureUnitLocked() PlaybackUnit {
	if p.unit != nil {
		return p.unit
	}
	unit := p.m.transport.NewPlaybackUnit()
	unit.OnStateChange(p.onStateChange)
	unit.OnError(p.onUnitError)
	p.unit = unit
	return unit
}

func (p *Player) onStateChange(from, to Status) {
	p.m.events.Debug(fmt.Sprintf("guild %s: %s -> %s", p.guildID, from, to))

	switch to {
	case StatusPlaying:
		p.mu.Lock()
		if q, ok := p.m.store.Get(p.guildID); ok && q.Resource != nil {
			q.Playing = true
		}
		if p.started != nil {
			close(p.started)
			p.started = nil
		}
		p.mu.Unlock()
	case StatusPaused, StatusAutoPaused:
		p.mu.Lock()
		if q, ok := p.m.store.Get(p.guildID); ok {
			q.Playing = false
		}
		p.mu.Unlock()
	case StatusIdle:
		if from != StatusIdle {
			p.handleTrackEnd()
		}
	}
}

func (p *Player) onUnitError(err error) {
	p.log.Error().Err(err).Msg("playback unit error")
	p.m.events.Error(err)
}

// handleTrackEnd runs when the unit goes idle after playing a resource.
// Transitions for detached resources (stop, start timeout) are ignored.
func (p *Player) handleTrackEnd() {
	p.mu.Lock()
	q, ok := p.m.store.Get(p.guildID)
	if !ok || q.Resource == nil {
		p.mu.Unlock()
		return
	}
	res := q.Resource
	q.Resource = nil
	q.Playing = false
	finished, _ := q.Shift()
	text := q.TextChannel

	var conn queue.Connection
	next, hasNext := q.Head()
	if !hasNext {
		conn = q.Connection
		q.Connection = nil
	}
	p.mu.Unlock()

	_ = res.Close()
	p.log.Info().Str("title", finished.Title).Msg("track finished")
	p.m.events.TrackFinished(text, finished)

	if !hasNext {
		if conn != nil {
			if err := conn.Destroy(); err != nil {
				p.m.events.Error(errs.Connection("destroy", err))
			}
		}
		p.log.Info().Msg("queue drained, disconnected")
		p.m.events.Disconnected(p.guildID, text)
		return
	}

	if !p.m.cfg.AutoNextSong {
		return
	}
	if err := p.Play(context.Background(), next.URL, ""); err != nil {
		p.log.Warn().Err(err).Str("title", next.Title).Msg("auto-advance failed")
	}
}
