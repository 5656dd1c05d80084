package player

import (
	"math"
	"strings"
	"time"
)

const (
	DefaultProgressSize = 20
	progressLine        = "▬"
	progressSlider      = "🔘"
)

// RenderProgressBar draws size cells with the slider at the played fraction.
func RenderProgressBar(size int, played time.Duration, durationMs int64) string {
	if size <= 0 {
		size = DefaultProgressSize
	}

	filled := 0
	if durationMs > 0 {
		ratio := float64(played.Milliseconds()) / float64(durationMs)
		filled = int(math.Round(float64(size) * ratio))
	}
	filled = min(max(filled, 0), size)

	if filled == 0 {
		return progressSlider + strings.Repeat(progressLine, size-1)
	}
	return strings.Repeat(progressLine, filled-1) + progressSlider + strings.Repeat(progressLine, size-filled)
}
