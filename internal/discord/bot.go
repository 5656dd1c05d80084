// Package discord connects the music player to Discord: voice transport,
// the audio player that feeds it, and a prefix text-command host.
package discord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/keshon/playcord/internal/errs"
)

const commandTimeout = 2 * time.Minute

// NewSession creates a gateway session with the intents the bot needs.
// discordgo logging is routed through log at its level.
func NewSession(token string, log zerolog.Logger) (*discordgo.Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentMessageContent
	dg.LogLevel = sessionLogLevel(log.GetLevel())
	routeSessionLogs(log)
	return dg, nil
}

// VoiceChannelOf finds a member's voice channel from the session state.
func VoiceChannelOf(s *discordgo.Session) voiceLocator {
	return func(guildID, userID string) (string, error) {
		vs, err := s.State.VoiceState(guildID, userID)
		if err != nil {
			return "", fmt.Errorf("error retrieving voice state: %w", err)
		}
		if vs.ChannelID == "" {
			return "", errs.ErrNoChannel
		}
		return vs.ChannelID, nil
	}
}

// Bot owns the gateway session and dispatches messages to the command host.
type Bot struct {
	dg   *discordgo.Session
	host *Host
	out  messenger
	log  zerolog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	removes []func()
}

func NewBot(dg *discordgo.Session, host *Host, log zerolog.Logger) *Bot {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bot{
		dg:     dg,
		host:   host,
		out:    dg,
		log:    log.With().Str("component", "discord").Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Open registers the handlers and connects to the gateway.
func (b *Bot) Open() error {
	b.removes = append(b.removes,
		b.dg.AddHandler(b.onReady),
		b.dg.AddHandler(b.onMessageCreate),
	)

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	return nil
}

// Shutdown stops taking commands and cancels the running ones. The session
// itself stays open so voice connections can still be closed.
func (b *Bot) Shutdown() error {
	for _, remove := range b.removes {
		remove()
	}
	b.removes = nil
	b.cancel()
	b.log.Info().Msg("command handlers removed")
	return nil
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	b.log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("✅ discord bot is running")
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	if s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}
	b.dispatch(m.GuildID, m.ChannelID, m.Author.ID, m.Content)
}

func (b *Bot) dispatch(guildID, channelID, userID, content string) {
	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	reply, handled, err := b.host.Handle(ctx, guildID, channelID, userID, content)
	if !handled {
		return
	}
	if err != nil {
		b.reply(channelID, &discordgo.MessageEmbed{Description: "❌ " + userMessage(err), Color: colorError})
		return
	}
	if reply != "" {
		b.reply(channelID, &discordgo.MessageEmbed{Description: reply, Color: colorInfo})
	}
}

func (b *Bot) reply(channelID string, embed *discordgo.MessageEmbed) {
	if _, err := b.out.ChannelMessageSendEmbed(channelID, embed); err != nil {
		b.log.Warn().Err(err).Str("channel", channelID).Msg("failed to reply")
	}
}

// userMessage keeps domain errors readable and hides internal detail.
func userMessage(err error) string {
	var de *errs.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "That took too long, try again"
	case errors.As(err, &de):
		return err.Error()
	default:
		return "Something went wrong: " + err.Error()
	}
}
