// Package stream turns a source URL and a filter chain into Opus frames:
// an ffmpeg decoder writes raw PCM, an in-process Opus encoder packs it.
package stream

import (
	"strconv"

	"github.com/keshon/playcord/internal/music/filters"
)

const (
	channels   = 2
	sampleRate = 48000
	frameSize  = 960 // 20ms at 48kHz

	// pcmFrameBytes is one frame of interleaved s16le stereo.
	pcmFrameBytes = frameSize * channels * 2

	DefaultBitrate = 64000
	MinBitrate     = 500
	MaxBitrate     = 512000
)

// ValidBitrate reports whether bps is an encoder bitrate Opus accepts.
func ValidBitrate(bps int) bool {
	return bps >= MinBitrate && bps <= MaxBitrate
}

// DecodeArgs builds the ffmpeg argument vector for url with the given
// filter fragments. The filter flag is omitted when fragments is empty.
func DecodeArgs(url string, fragments []string) []string {
	args := []string{
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
		"-i", url,
		"-analyzeduration", "0",
		"-loglevel", "0",
	}
	args = append(args, filters.Args(fragments)...)
	args = append(args,
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"pipe:1",
	)
	return args
}
