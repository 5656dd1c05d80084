package queue

import "sync"

const DefaultVolume = 50

type InitOptions struct {
	TextChannel  string
	VoiceChannel string
	// Volume is used only when the queue is created. Nil means DefaultVolume.
	Volume *int
}

// Store maps guild IDs to queues. At most one queue exists per guild.
type Store struct {
	mu     sync.RWMutex
	queues map[string]*Queue
}

func NewStore() *Store {
	return &Store{queues: make(map[string]*Queue)}
}

// Init returns the guild's queue, creating it when absent. An existing
// queue keeps its songs, volume, filters and playing state; only the
// channel references are updated.
func (s *Store) Init(guildID string, opts InitOptions) *Queue {
	s.mu.Lock()
	defer s.mu.Unlock()

	if q, ok := s.queues[guildID]; ok {
		if opts.TextChannel != "" && q.TextChannel != opts.TextChannel {
			q.TextChannel = opts.TextChannel
		}
		if opts.VoiceChannel != "" && q.VoiceChannel != opts.VoiceChannel {
			q.VoiceChannel = opts.VoiceChannel
		}
		return q
	}

	volume := DefaultVolume
	if opts.Volume != nil {
		volume = clampVolume(*opts.Volume)
	}

	q := &Queue{
		GuildID:      guildID,
		TextChannel:  opts.TextChannel,
		VoiceChannel: opts.VoiceChannel,
		Songs:        make([]Song, 0),
		Volume:       volume,
		Filters:      make([]string, 0),
	}
	s.queues[guildID] = q
	return q
}

func (s *Store) Get(guildID string) (*Queue, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.queues[guildID]
	return q, ok
}

// Delete removes the guild's queue. Destroy the owned connection first.
func (s *Store) Delete(guildID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.queues, guildID)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.queues)
}

func clampVolume(v int) int {
	return min(max(v, 0), 100)
}
