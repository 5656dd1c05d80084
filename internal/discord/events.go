package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/keshon/playcord/internal/music/player"
	"github.com/keshon/playcord/internal/music/queue"
)

const (
	colorInfo  = 0x5865F2
	colorError = 0xED4245
)

// messenger is the part of the discordgo session used to post replies.
type messenger interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier posts player events to the guild's text channel.
type Notifier struct {
	out messenger
	log zerolog.Logger
}

var _ player.Listener = (*Notifier)(nil)

func NewNotifier(out messenger, log zerolog.Logger) *Notifier {
	return &Notifier{out: out, log: log.With().Str("component", "discord").Logger()}
}

func (n *Notifier) TrackStart(textChannel string, song queue.Song) {
	embed := &discordgo.MessageEmbed{
		Title:       "🎵 Now playing",
		Description: fmt.Sprintf("[%s](%s)", song.Title, song.URL),
		Color:       colorInfo,
	}
	if song.Duration != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Duration", Value: song.Duration, Inline: true})
	}
	if song.Channel.Title != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Channel", Value: song.Channel.Title, Inline: true})
	}
	if len(song.Thumbnails) > 0 {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: song.Thumbnails[len(song.Thumbnails)-1].URL}
	}
	n.send(textChannel, embed)
}

func (n *Notifier) TrackFinished(textChannel string, song queue.Song) {
	n.log.Debug().Str("channel", textChannel).Str("title", song.Title).Msg("track finished")
}

func (n *Notifier) Pause(_, textChannel string) {
	n.info(textChannel, "⏸️ Paused")
}

func (n *Notifier) Resume(_, textChannel string) {
	n.info(textChannel, "▶️ Resumed")
}

func (n *Notifier) Stop(_, textChannel string) {
	n.info(textChannel, "⏹️ Stopped and cleared the queue")
}

func (n *Notifier) Connected(guildID, _, voiceChannel string) {
	n.log.Info().Str("guild", guildID).Str("voice", voiceChannel).Msg("connected to voice")
}

func (n *Notifier) Disconnected(guildID, textChannel string) {
	n.log.Info().Str("guild", guildID).Msg("disconnected from voice")
	n.info(textChannel, "📭 Queue finished, leaving the voice channel")
}

func (n *Notifier) Error(err error) {
	n.log.Error().Err(err).Msg("player error")
}

func (n *Notifier) Debug(msg string) {
	n.log.Debug().Msg(msg)
}

func (n *Notifier) info(channelID, text string) {
	n.send(channelID, &discordgo.MessageEmbed{Description: text, Color: colorInfo})
}

func (n *Notifier) send(channelID string, embed *discordgo.MessageEmbed) {
	if channelID == "" {
		return
	}
	if _, err := n.out.ChannelMessageSendEmbed(channelID, embed); err != nil {
		n.log.Warn().Err(err).Str("channel", channelID).Msg("failed to post message")
	}
}
