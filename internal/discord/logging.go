package discord

import (
	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

// routeSessionLogs sends discordgo's package logging through log.
func routeSessionLogs(log zerolog.Logger) {
	log = log.With().Str("component", "discordgo").Logger()
	discordgo.Logger = func(msgL, _ int, format string, a ...interface{}) {
		var ev *zerolog.Event
		switch msgL {
		case discordgo.LogError:
			ev = log.Error()
		case discordgo.LogWarning:
			ev = log.Warn()
		case discordgo.LogInformational:
			ev = log.Info()
		default:
			ev = log.Debug()
		}
		ev.Msgf(format, a...)
	}
}

// sessionLogLevel maps a zerolog level onto discordgo's verbosity.
func sessionLogLevel(l zerolog.Level) int {
	switch {
	case l <= zerolog.DebugLevel:
		return discordgo.LogDebug
	case l == zerolog.InfoLevel:
		return discordgo.LogInformational
	case l == zerolog.WarnLevel:
		return discordgo.LogWarning
	default:
		return discordgo.LogError
	}
}
