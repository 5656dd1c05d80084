package discord

import (
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/playcord/internal/music/queue"
)

type sentEmbed struct {
	channel string
	embed   *discordgo.MessageEmbed
}

type fakeMessenger struct {
	sent []sentEmbed
	err  error
}

func (m *fakeMessenger) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.sent = append(m.sent, sentEmbed{channelID, embed})
	return &discordgo.Message{ChannelID: channelID}, m.err
}

func TestNotifier_TrackStart(t *testing.T) {
	out := &fakeMessenger{}
	n := NewNotifier(out, zerolog.Nop())

	n.TrackStart("text", queue.Song{
		Title:      "Song",
		URL:        "https://youtu.be/x",
		Duration:   "3:33",
		Channel:    queue.Channel{Title: "Artist"},
		Thumbnails: []queue.Thumbnail{{URL: "small"}, {URL: "large"}},
	})

	require.Len(t, out.sent, 1)
	e := out.sent[0].embed
	assert.Equal(t, "text", out.sent[0].channel)
	assert.Equal(t, "[Song](https://youtu.be/x)", e.Description)
	require.Len(t, e.Fields, 2)
	assert.Equal(t, "3:33", e.Fields[0].Value)
	assert.Equal(t, "Artist", e.Fields[1].Value)
	assert.Equal(t, "large", e.Thumbnail.URL)
}

func TestNotifier_ChannelMessages(t *testing.T) {
	out := &fakeMessenger{err: errors.New("missing access")}
	n := NewNotifier(out, zerolog.Nop())

	n.Pause("g", "text")
	n.Resume("g", "text")
	n.Stop("g", "text")
	n.Disconnected("g", "text")
	n.Stop("g", "")
	n.TrackFinished("text", queue.Song{Title: "quiet"})
	n.Connected("g", "text", "voice")
	n.Error(errors.New("logged only"))
	n.Debug("logged only")

	require.Len(t, out.sent, 4, "send failures are logged, empty channels skipped")
	assert.Equal(t, "⏸️ Paused", out.sent[0].embed.Description)
	assert.Equal(t, "▶️ Resumed", out.sent[1].embed.Description)
}
