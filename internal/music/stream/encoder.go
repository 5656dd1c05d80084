package stream

import (
	"fmt"

	"layeh.com/gopus"
)

// Encoder packs one PCM frame into a transport codec packet.
type Encoder interface {
	Encode(pcm []int16, frameSize, maxDataBytes int) ([]byte, error)
	SetBitrate(bitrate int)
}

// NewOpusEncoder returns a 48kHz stereo Opus encoder tuned for music.
func NewOpusEncoder() (Encoder, error) {
	enc, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("encoder error: %w", err)
	}
	return enc, nil
}
