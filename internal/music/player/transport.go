package player

import (
	"context"

	"github.com/keshon/playcord/internal/music/queue"
	"github.com/keshon/playcord/internal/music/search"
)

// Status is the state reported by a playback unit.
type Status int

const (
	StatusIdle Status = iota
	StatusPlaying
	StatusPaused
	// StatusAutoPaused means the unit lost its subscribed connection mid-track.
	StatusAutoPaused
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusAutoPaused:
		return "autopaused"
	default:
		return "unknown"
	}
}

// Resource is one track's encoded audio as consumed by a playback unit.
type Resource interface {
	queue.Resource
	ReadFrame() ([]byte, error)
}

// PlaybackUnit plays one resource at a time into the connection it is
// subscribed to. State change and error callbacks must not be invoked
// while the unit holds its own locks.
type PlaybackUnit interface {
	Play(res Resource)
	Pause() bool
	Unpause() bool
	Stop() bool
	Status() Status
	OnStateChange(fn func(from, to Status))
	OnError(fn func(err error))
}

// Connection is a live voice session.
type Connection interface {
	queue.Connection
	Subscribe(unit PlaybackUnit) error
}

// Transport joins voice channels and creates playback units.
type Transport interface {
	Join(ctx context.Context, guildID, channelID string) (Connection, error)
	NewPlaybackUnit() PlaybackUnit
}

// PipelineBuilder builds the audio resource for a stream URL and filter chain.
type PipelineBuilder interface {
	Build(ctx context.Context, url string, filters []string) (Resource, error)
}

type PipelineBuilderFunc func(ctx context.Context, url string, filters []string) (Resource, error)

func (f PipelineBuilderFunc) Build(ctx context.Context, url string, filters []string) (Resource, error) {
	return f(ctx, url, filters)
}

// Searcher resolves references into songs.
type Searcher interface {
	Resolve(ctx context.Context, url string) (queue.Song, error)
	ResolvePlaylist(ctx context.Context, url string) ([]queue.Song, error)
}

// Catalog is implemented by searchers that also answer free-text queries
// and playlist lookups.
type Catalog interface {
	SearchByText(ctx context.Context, query string, maxResults int) ([]search.Result, error)
	PlaylistInfo(ctx context.Context, url string) (search.PlaylistInfo, error)
}
