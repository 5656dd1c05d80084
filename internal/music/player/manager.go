package player

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"

	"github.com/rs/zerolog"

	"github.com/keshon/playcord/internal/errs"
	"github.com/keshon/playcord/internal/music/queue"
	"github.com/keshon/playcord/internal/music/search"
)

// Deps are the collaborators shared by every guild's player.
type Deps struct {
	Store     *queue.Store
	Transport Transport
	Builder   PipelineBuilder
	Searcher  Searcher
	Listener  Listener
	Log       zerolog.Logger
	// Rand drives queue shuffling; nil uses the global source.
	Rand *rand.Rand
}

// Manager hands out one Player per guild and owns the shared queue store.
type Manager struct {
	cfg       Config
	store     *queue.Store
	transport Transport
	builder   PipelineBuilder
	searcher  Searcher
	events    Listener
	log       zerolog.Logger
	rand      *rand.Rand

	mu      sync.Mutex
	players map[string]*Player
}

func NewManager(cfg Config, deps Deps) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Store == nil || deps.Transport == nil || deps.Builder == nil || deps.Searcher == nil {
		return nil, errors.New("player manager needs a store, transport, builder and searcher")
	}

	events := deps.Listener
	if events == nil {
		events = Hooks{}
	}

	return &Manager{
		cfg:       cfg,
		store:     deps.Store,
		transport: deps.Transport,
		builder:   deps.Builder,
		searcher:  deps.Searcher,
		events:    events,
		log:       deps.Log.With().Str("component", "player").Logger(),
		rand:      deps.Rand,
		players:   make(map[string]*Player),
	}, nil
}

func (m *Manager) Config() Config { return m.cfg }

// Player returns the guild's player, creating it on first use.
func (m *Manager) Player(guildID string) *Player {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.players[guildID]; ok {
		return p
	}
	p := newPlayer(m, guildID)
	m.players[guildID] = p
	return p
}

// InitQueue creates the guild's queue or updates its channels, and joins
// voiceChannel right away when AutoJoin is set.
func (m *Manager) InitQueue(ctx context.Context, guildID, textChannel, voiceChannel string) (queue.Queue, error) {
	volume := m.cfg.Volume
	p := m.Player(guildID)

	p.mu.Lock()
	q := m.store.Init(guildID, queue.InitOptions{
		TextChannel:  textChannel,
		VoiceChannel: voiceChannel,
		Volume:       &volume,
	})
	snapshot := q.Clone()
	p.mu.Unlock()

	if m.cfg.AutoJoin && voiceChannel != "" && !snapshot.HasLiveConnection() {
		if err := p.Join(ctx, voiceChannel); err != nil {
			return snapshot, err
		}
		if s, ok := p.Snapshot(); ok {
			snapshot = s
		}
	}
	return snapshot, nil
}

// DeleteQueue destroys the guild's connection and drops its queue without
// emitting a stop event.
func (m *Manager) DeleteQueue(guildID string) error {
	_, err := m.Player(guildID).teardown()
	return err
}

// Queue returns a copy of the guild's queue.
func (m *Manager) Queue(guildID string) (queue.Queue, bool) {
	return m.Player(guildID).Snapshot()
}

// Search runs a free-text query against the searcher. maxResults <= 0
// means search.DefaultMaxResults.
func (m *Manager) Search(ctx context.Context, query string, maxResults int) ([]search.Result, error) {
	c, ok := m.searcher.(Catalog)
	if !ok {
		return nil, errs.NotFoundf("text search is not available")
	}
	return c.SearchByText(ctx, query, maxResults)
}

// PlaylistInfo returns the title and description of a playlist link.
func (m *Manager) PlaylistInfo(ctx context.Context, url string) (search.PlaylistInfo, error) {
	if !isPlaylistURL(url) {
		return search.PlaylistInfo{}, errs.InvalidInputf("%q is not a playlist link", url)
	}
	c, ok := m.searcher.(Catalog)
	if !ok {
		return search.PlaylistInfo{}, errs.NotFoundf("playlist lookup is not available")
	}
	return c.PlaylistInfo(ctx, url)
}

// Close stops every guild.
func (m *Manager) Close() error {
	m.mu.Lock()
	players := make([]*Player, 0, len(m.players))
	for _, p := range m.players {
		players = append(players, p)
	}
	m.mu.Unlock()

	var errs []error
	for _, p := range players {
		if _, err := p.teardown(); err != nil && !errors.Is(err, ErrNoQueue) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
