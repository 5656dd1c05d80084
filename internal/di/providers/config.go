// Package providers holds the constructors registered in the container.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/keshon/playcord/internal/config"
	"github.com/keshon/playcord/internal/logger"
)

func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.Load()
}

// ProvideLogger builds the logger; the container closes its file on shutdown.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log, err := logger.New(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("log_level", cfg.LogLevel).
		Str("prefix", cfg.CommandPrefix).
		Bool("auto_join", cfg.Player.AutoJoin).
		Bool("proxy", cfg.YouTubeProxy != "").
		Msg("starting playcord")

	return log, nil
}
