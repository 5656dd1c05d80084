package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/keshon/playcord/internal/config"
	"github.com/keshon/playcord/internal/discord"
	"github.com/keshon/playcord/internal/logger"
	"github.com/keshon/playcord/internal/music/player"
	"github.com/keshon/playcord/internal/music/queue"
	"github.com/keshon/playcord/internal/music/search"
	"github.com/keshon/playcord/internal/music/stream"
)

// MusicHandle wraps the player manager for lifecycle management.
type MusicHandle struct {
	*player.Manager
	log *logger.Logger
}

// Shutdown stops every guild and leaves voice.
func (h *MusicHandle) Shutdown() error {
	h.log.Info().Msg("stopping all guilds")
	return h.Close()
}

func ProvideSearcher(i do.Injector) (*search.Searcher, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return search.New(search.Options{
		Proxy: cfg.YouTubeProxy,
		Rate:  cfg.SearchRate,
		Log:   log.Logger,
	})
}

func ProvidePipelineBuilder(i do.Injector) (*stream.Builder, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	return stream.NewBuilder(cfg.FFmpegPath, cfg.Player.Bitrate, log.Logger), nil
}

func ProvideQueueStore(i do.Injector) (*queue.Store, error) {
	return queue.NewStore(), nil
}

// PlayerConfig maps the environment settings onto the player's.
func PlayerConfig(cfg *config.Config) player.Config {
	return player.Config{
		AutoJoin:     cfg.Player.AutoJoin,
		Volume:       cfg.Player.Volume,
		AutoNextSong: cfg.Player.AutoNextSong,
		Bitrate:      cfg.Player.Bitrate,
		StartTimeout: cfg.Player.StartTimeout,
	}
}

func ProvideMusic(i do.Injector) (*MusicHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	builder := do.MustInvoke[*stream.Builder](i)

	m, err := player.NewManager(PlayerConfig(cfg), player.Deps{
		Store:     do.MustInvoke[*queue.Store](i),
		Transport: do.MustInvoke[*discord.VoiceTransport](i),
		Builder: player.PipelineBuilderFunc(func(ctx context.Context, url string, filters []string) (player.Resource, error) {
			p, err := builder.Build(ctx, url, filters)
			if err != nil {
				return nil, err
			}
			return p, nil
		}),
		Searcher: do.MustInvoke[*search.Searcher](i),
		Listener: do.MustInvoke[*discord.Notifier](i),
		Log:      log.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &MusicHandle{Manager: m, log: log}, nil
}
