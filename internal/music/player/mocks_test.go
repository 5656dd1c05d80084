package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/keshon/playcord/internal/music/queue"
)

type mockResource struct {
	mu       sync.Mutex
	url      string
	filters  []string
	volume   float64
	bitrate  int
	duration time.Duration
	closes   atomic.Int32
}

func (r *mockResource) ReadFrame() ([]byte, error) { return nil, io.EOF }

func (r *mockResource) SetVolumeLogarithmic(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.volume = v
}

func (r *mockResource) SetBitrate(bps int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bitrate = bps
	return nil
}

func (r *mockResource) PlaybackDuration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.duration
}

func (r *mockResource) Close() error {
	r.closes.Add(1)
	return nil
}

func (r *mockResource) Volume() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.volume
}

type mockBuilder struct {
	mu        sync.Mutex
	resources []*mockResource
	err       error
}

func (b *mockBuilder) Build(_ context.Context, url string, filters []string) (Resource, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	res := &mockResource{url: url, filters: filters}
	b.resources = append(b.resources, res)
	return res, nil
}

func (b *mockBuilder) Builds() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.resources)
}

func (b *mockBuilder) Last() *mockResource {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resources[len(b.resources)-1]
}

// mockUnit reports state changes synchronously, like a unit whose callbacks
// run on the caller's goroutine.
type mockUnit struct {
	mu        sync.Mutex
	status    Status
	holdStart bool
	current   Resource
	onState   []func(from, to Status)
	onErr     []func(err error)
}

func (u *mockUnit) transition(to Status) {
	u.mu.Lock()
	from := u.status
	u.status = to
	fns := append([]func(from, to Status){}, u.onState...)
	u.mu.Unlock()

	for _, fn := range fns {
		fn(from, to)
	}
}

func (u *mockUnit) Play(res Resource) {
	u.mu.Lock()
	u.current = res
	hold := u.holdStart
	u.mu.Unlock()
	if !hold {
		u.transition(StatusPlaying)
	}
}

func (u *mockUnit) Pause() bool {
	if u.Status() != StatusPlaying {
		return false
	}
	u.transition(StatusPaused)
	return true
}

func (u *mockUnit) Unpause() bool {
	if st := u.Status(); st != StatusPaused && st != StatusAutoPaused {
		return false
	}
	u.transition(StatusPlaying)
	return true
}

func (u *mockUnit) Stop() bool {
	if u.Status() == StatusIdle {
		return false
	}
	u.transition(StatusIdle)
	return true
}

// finish simulates the resource running out.
func (u *mockUnit) finish() { u.Stop() }

func (u *mockUnit) fail(err error) {
	u.mu.Lock()
	fns := append([]func(error){}, u.onErr...)
	u.mu.Unlock()
	for _, fn := range fns {
		fn(err)
	}
}

func (u *mockUnit) Status() Status {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.status
}

func (u *mockUnit) OnStateChange(fn func(from, to Status)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.onState = append(u.onState, fn)
}

func (u *mockUnit) OnError(fn func(err error)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.onErr = append(u.onErr, fn)
}

type mockConn struct {
	channel     string
	destroys    atomic.Int32
	subscribed  PlaybackUnit
	onSubscribe func()
}

func (c *mockConn) ChannelID() string { return c.channel }

func (c *mockConn) Subscribe(unit PlaybackUnit) error {
	c.subscribed = unit
	if c.onSubscribe != nil {
		c.onSubscribe()
	}
	return nil
}

func (c *mockConn) Destroy() error {
	c.destroys.Add(1)
	return nil
}

type mockTransport struct {
	mu      sync.Mutex
	unit    *mockUnit
	conns   []*mockConn
	joinErr error
}

func (t *mockTransport) Join(_ context.Context, guildID, channelID string) (Connection, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.joinErr != nil {
		return nil, t.joinErr
	}
	c := &mockConn{channel: channelID}
	t.conns = append(t.conns, c)
	return c, nil
}

func (t *mockTransport) NewPlaybackUnit() PlaybackUnit { return t.unit }

func (t *mockTransport) Joins() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

type mockSearcher struct {
	playlist  []queue.Song
	err       error
	onResolve func()
}

func (s *mockSearcher) Resolve(_ context.Context, url string) (queue.Song, error) {
	if s.onResolve != nil {
		s.onResolve()
	}
	if s.err != nil {
		return queue.Song{}, s.err
	}
	return queue.Song{
		ID:         url,
		URL:        url,
		Title:      "title of " + url,
		DurationMs: 60000,
		StreamURL:  url + "#stream",
	}, nil
}

func (s *mockSearcher) ResolvePlaylist(_ context.Context, url string) ([]queue.Song, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.playlist, nil
}

type recorder struct {
	mu     sync.Mutex
	events []string
	errs   []error
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) TrackStart(text string, s queue.Song)    { r.add("trackStart %s %s", text, s.URL) }
func (r *recorder) TrackFinished(text string, s queue.Song) { r.add("trackFinished %s %s", text, s.URL) }
func (r *recorder) Pause(g, text string)                    { r.add("pause %s %s", g, text) }
func (r *recorder) Resume(g, text string)                   { r.add("resume %s %s", g, text) }
func (r *recorder) Stop(g, text string)                     { r.add("stop %s %s", g, text) }
func (r *recorder) Connected(g, text, voice string)         { r.add("connected %s %s %s", g, text, voice) }
func (r *recorder) Disconnected(g, text string)             { r.add("disconnected %s %s", g, text) }
func (r *recorder) Debug(string)                            {}

func (r *recorder) Error(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
	r.events = append(r.events, "error")
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

type env struct {
	m         *Manager
	store     *queue.Store
	unit      *mockUnit
	transport *mockTransport
	builder   *mockBuilder
	searcher  *mockSearcher
	events    *recorder
}

func newEnv(t *testing.T, mutate ...func(*Config)) *env {
	t.Helper()

	cfg := DefaultConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}

	e := &env{
		store:    queue.NewStore(),
		unit:     &mockUnit{},
		builder:  &mockBuilder{},
		searcher: &mockSearcher{},
		events:   &recorder{},
	}
	e.transport = &mockTransport{unit: e.unit}

	m, err := NewManager(cfg, Deps{
		Store:     e.store,
		Transport: e.transport,
		Builder:   e.builder,
		Searcher:  e.searcher,
		Listener:  e.events,
		Log:       zerolog.Nop(),
	})
	require.NoError(t, err)
	e.m = m
	return e
}

var errBoom = errors.New("boom")
