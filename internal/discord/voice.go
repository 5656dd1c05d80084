package discord

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/keshon/playcord/internal/music/player"
)

// voiceLink is the part of a discordgo voice connection the player needs.
type voiceLink interface {
	Speaking(b bool) error
	Frames() chan<- []byte
	Channel() string
	Disconnect() error
}

type discordLink struct {
	vc *discordgo.VoiceConnection
}

func (l discordLink) Speaking(b bool) error { return l.vc.Speaking(b) }

func (l discordLink) Frames() chan<- []byte { return l.vc.OpusSend }

func (l discordLink) Channel() string {
	l.vc.RLock()
	defer l.vc.RUnlock()
	return l.vc.ChannelID
}

func (l discordLink) Disconnect() error { return l.vc.Disconnect() }

type joinFunc func(guildID, channelID string) (voiceLink, error)

// VoiceTransport joins Discord voice channels for the player.
type VoiceTransport struct {
	join joinFunc
	log  zerolog.Logger
}

var _ player.Transport = (*VoiceTransport)(nil)

func NewVoiceTransport(s *discordgo.Session, log zerolog.Logger) *VoiceTransport {
	return &VoiceTransport{
		join: func(guildID, channelID string) (voiceLink, error) {
			// deafened: the bot never listens
			vc, err := s.ChannelVoiceJoin(guildID, channelID, false, true)
			if err != nil {
				return nil, err
			}
			return discordLink{vc: vc}, nil
		},
		log: log.With().Str("component", "discord").Logger(),
	}
}

// Join blocks until the voice connection is ready or ctx is done. A join
// that completes after ctx is done is disconnected right away.
func (t *VoiceTransport) Join(ctx context.Context, guildID, channelID string) (player.Connection, error) {
	type result struct {
		link voiceLink
		err  error
	}
	done := make(chan result, 1)
	go func() {
		link, err := t.join(guildID, channelID)
		done <- result{link, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("voice join %s/%s: %w", guildID, channelID, r.err)
		}
		t.log.Debug().Str("guild", guildID).Str("channel", channelID).Msg("voice connection ready")
		return &voiceConn{link: r.link, log: t.log}, nil
	case <-ctx.Done():
		go func() {
			if r := <-done; r.err == nil {
				_ = r.link.Disconnect()
			}
		}()
		return nil, ctx.Err()
	}
}

func (t *VoiceTransport) NewPlaybackUnit() player.PlaybackUnit {
	return NewAudioPlayer(t.log)
}

type voiceConn struct {
	link voiceLink
	log  zerolog.Logger

	mu        sync.Mutex
	unit      *AudioPlayer
	destroyed bool
}

func (c *voiceConn) ChannelID() string { return c.link.Channel() }

// Subscribe routes unit's audio into this connection.
func (c *voiceConn) Subscribe(unit player.PlaybackUnit) error {
	ap, ok := unit.(*AudioPlayer)
	if !ok {
		return fmt.Errorf("unsupported playback unit %T", unit)
	}

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return fmt.Errorf("voice connection is destroyed")
	}
	prev := c.unit
	c.unit = ap
	c.mu.Unlock()

	if prev != nil && prev != ap {
		prev.detach(c.link)
	}
	ap.attach(c.link)
	return nil
}

func (c *voiceConn) Destroy() error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil
	}
	c.destroyed = true
	unit := c.unit
	c.unit = nil
	c.mu.Unlock()

	if unit != nil {
		unit.detach(c.link)
	}
	if err := c.link.Disconnect(); err != nil {
		return fmt.Errorf("voice disconnect: %w", err)
	}
	c.log.Debug().Str("channel", c.link.Channel()).Msg("voice connection closed")
	return nil
}
