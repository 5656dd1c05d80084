package providers

import (
	"github.com/bwmarrin/discordgo"
	"github.com/samber/do/v2"

	"github.com/keshon/playcord/internal/config"
	"github.com/keshon/playcord/internal/discord"
	"github.com/keshon/playcord/internal/logger"
	"github.com/keshon/playcord/internal/music/search"
)

// SessionHandle owns the gateway session. It is shut down after everything
// that uses it.
type SessionHandle struct {
	*discordgo.Session
}

func (h *SessionHandle) Shutdown() error {
	return h.Close()
}

func ProvideSession(i do.Injector) (*SessionHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	dg, err := discord.NewSession(cfg.DiscordToken, log.Logger)
	if err != nil {
		return nil, err
	}
	return &SessionHandle{Session: dg}, nil
}

func ProvideVoiceTransport(i do.Injector) (*discord.VoiceTransport, error) {
	session := do.MustInvoke[*SessionHandle](i)
	log := do.MustInvoke[*logger.Logger](i)
	return discord.NewVoiceTransport(session.Session, log.Logger), nil
}

func ProvideNotifier(i do.Injector) (*discord.Notifier, error) {
	session := do.MustInvoke[*SessionHandle](i)
	log := do.MustInvoke[*logger.Logger](i)
	return discord.NewNotifier(session.Session, log.Logger), nil
}

func ProvideBot(i do.Injector) (*discord.Bot, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	session := do.MustInvoke[*SessionHandle](i)
	music := do.MustInvoke[*MusicHandle](i)
	searcher := do.MustInvoke[*search.Searcher](i)

	host := discord.NewHost(cfg.CommandPrefix, music.Manager, searcher, discord.VoiceChannelOf(session.Session), log.Logger)
	return discord.NewBot(session.Session, host, log.Logger), nil
}
