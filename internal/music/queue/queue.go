// Package queue holds per-guild playback state and the registry keyed by guild.
package queue

import (
	"math/rand/v2"
	"slices"
	"time"
)

// Connection is the owned voice session of a queue.
type Connection interface {
	ChannelID() string
	Destroy() error
}

// Resource is the audio attached to the guild's playback unit.
type Resource interface {
	SetVolumeLogarithmic(v float64)
	SetBitrate(bps int) error
	PlaybackDuration() time.Duration
	Close() error
}

// Queue is the playback state of one guild. Fields are mutated only by the
// player owning the guild.
type Queue struct {
	GuildID      string
	TextChannel  string
	VoiceChannel string

	Connection Connection
	Songs      []Song
	// Volume is a percentage in [0,100].
	Volume   int
	Playing  bool
	Filters  []string
	Resource Resource
}

func (q *Queue) Head() (Song, bool) {
	if len(q.Songs) == 0 {
		return Song{}, false
	}
	return q.Songs[0], true
}

// Shift removes and returns the head.
func (q *Queue) Shift() (Song, bool) {
	if len(q.Songs) == 0 {
		return Song{}, false
	}
	head := q.Songs[0]
	q.Songs = slices.Delete(q.Songs, 0, 1)
	return head, true
}

func (q *Queue) Append(songs ...Song) {
	q.Songs = append(q.Songs, songs...)
}

// Shuffle permutes every song after the head in place.
func (q *Queue) Shuffle(r *rand.Rand) {
	if len(q.Songs) < 3 {
		return
	}
	rest := q.Songs[1:]
	shuffle := rand.Shuffle
	if r != nil {
		shuffle = r.Shuffle
	}
	shuffle(len(rest), func(i, j int) {
		rest[i], rest[j] = rest[j], rest[i]
	})
}

func (q *Queue) HasLiveConnection() bool {
	return q.Connection != nil
}

// Fraction converts the stored percentage into the [0,1] range used by resources.
func (q *Queue) Fraction() float64 {
	return float64(q.Volume) / 100
}

// Clone returns a copy that shares no slices with q.
func (q *Queue) Clone() Queue {
	c := *q
	c.Songs = slices.Clone(q.Songs)
	c.Filters = slices.Clone(q.Filters)
	return c
}
