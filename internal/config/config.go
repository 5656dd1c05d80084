// Package config loads the bot settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/keshon/playcord/internal/music/player"
)

type Config struct {
	DiscordToken  string `env:"DISCORD_TOKEN" validate:"required"`
	CommandPrefix string `env:"COMMAND_PREFIX" envDefault:"!" validate:"required"`

	Player PlayerConfig `envPrefix:"PLAYER_"`

	FFmpegPath string `env:"FFMPEG_PATH" envDefault:"ffmpeg" validate:"required"`
	// YouTubeProxy is an optional http, https or socks5 proxy URL for lookups.
	YouTubeProxy string  `env:"YOUTUBE_PROXY" validate:"omitempty,url"`
	SearchRate   float64 `env:"SEARCH_RATE" envDefault:"5" validate:"gt=0"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=trace debug info warn error"`
	LogFile  string `env:"LOG_FILE"`
}

type PlayerConfig struct {
	AutoJoin     bool          `env:"AUTO_JOIN" envDefault:"false"`
	Volume       int           `env:"VOLUME" envDefault:"50" validate:"min=0,max=100"`
	AutoNextSong bool          `env:"AUTO_NEXT_SONG" envDefault:"true"`
	Bitrate      int           `env:"BITRATE" envDefault:"64000" validate:"bitrate"`
	StartTimeout time.Duration `env:"START_TIMEOUT" envDefault:"5s" validate:"gt=0"`
}

// Load reads .env (when present) into the process environment and parses it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return parse(env.Options{})
}

func parse(opts env.Options) (*Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := player.NewValidator().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
