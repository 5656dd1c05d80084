package player

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/keshon/playcord/internal/music/stream"
)

const (
	DefaultBitrate      = stream.DefaultBitrate
	DefaultStartTimeout = 5 * time.Second
	MaxPlaylistSongs    = 100
)

type Config struct {
	// AutoJoin connects to the voice channel as soon as a queue is initialised.
	AutoJoin bool
	// Volume is the initial percentage for new queues.
	Volume       int `validate:"min=0,max=100"`
	AutoNextSong bool
	Bitrate      int           `validate:"bitrate"`
	StartTimeout time.Duration `validate:"gt=0"`
}

func DefaultConfig() Config {
	return Config{
		Volume:       50,
		AutoNextSong: true,
		Bitrate:      DefaultBitrate,
		StartTimeout: DefaultStartTimeout,
	}
}

func (c Config) Validate() error {
	if err := NewValidator().Struct(c); err != nil {
		return fmt.Errorf("invalid player config: %w", err)
	}
	return nil
}

// NewValidator returns a validator that understands the "bitrate" tag.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("bitrate", func(fl validator.FieldLevel) bool {
		return stream.ValidBitrate(int(fl.Field().Int()))
	})
	return v
}
