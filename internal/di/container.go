// Package di wires the bot's components together.
package di

import (
	"github.com/samber/do/v2"

	"github.com/keshon/playcord/internal/config"
	"github.com/keshon/playcord/internal/di/providers"
	"github.com/keshon/playcord/internal/discord"
	"github.com/keshon/playcord/internal/logger"
)

// NewContainer creates the container with every provider registered.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Discord gateway
	do.Provide(injector, providers.ProvideSession)
	do.Provide(injector, providers.ProvideVoiceTransport)
	do.Provide(injector, providers.ProvideNotifier)

	// Music
	do.Provide(injector, providers.ProvideSearcher)
	do.Provide(injector, providers.ProvidePipelineBuilder)
	do.Provide(injector, providers.ProvideQueueStore)
	do.Provide(injector, providers.ProvideMusic)

	// Command host
	do.Provide(injector, providers.ProvideBot)

	return injector
}

// Bootstrap builds every service and connects the bot to the gateway.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.MusicHandle](injector)

	bot, err := do.Invoke[*discord.Bot](injector)
	if err != nil {
		return err
	}
	return bot.Open()
}
