// Package filters builds ffmpeg audio filter-graph fragments and composes
// them into the single -af argument passed to the decoder.
package filters

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/keshon/playcord/internal/errs"
)

// Separator joins fragments inside one -af token.
const Separator = ","

const (
	fragRotatingAudio = "apulsator=hz=0.09"
	fragMono          = "pan=1c|c0=0.9*c0+0.1*c1"
	fragExtraStereo   = "extrastereo"
	fragVibrato       = "vibrato"
	fragReverse       = "areverse"
	fragFlanger       = "flanger"
	fragChorus        = "chorus=0.5:0.9:50|60|40:0.4|0.32|0.3:0.25|0.4|0.3:2|2.3|1.3"
)

// Equalizer band limits.
const (
	MinBand = 1
	MaxBand = 10
)

func RotatingAudio() string { return fragRotatingAudio }
func Mono() string          { return fragMono }
func ExtraStereo() string   { return fragExtraStereo }
func Vibrato() string       { return fragVibrato }
func Reverse() string       { return fragReverse }
func Flanger() string       { return fragFlanger }
func Chorus() string        { return fragChorus }

// Speed changes tempo. v is a percentage in [50,1000]; 150 plays at 1.5x.
func Speed(v float64) (string, error) {
	if math.IsNaN(v) || v < 50 || v > 1000 {
		return "", errs.InvalidParameterf("speed must be between 50 and 1000, got %v", v)
	}
	return "atempo=" + formatFloat(v/100), nil
}

// Tremolo modulates volume at frequency v Hz, v in [0.1,20000].
func Tremolo(v float64) (string, error) {
	if math.IsNaN(v) || v < 0.1 || v > 20000 {
		return "", errs.InvalidParameterf("tremolo must be between 0.1 and 20000, got %v", v)
	}
	return "tremolo=f=" + formatFloat(v), nil
}

// PingPongDelay delays the left channel by v*100 ms and the second channel by a third of that.
func PingPongDelay(v float64) (string, error) {
	if math.IsNaN(v) || v <= 0 {
		return "", errs.InvalidParameterf("delay must be a positive number, got %v", v)
	}
	left := math.Round(v * 100)
	right := math.Round(v * 100 / 3)
	return "adelay=" + formatFloat(left) + "|0|" + formatFloat(right), nil
}

// BassBoost raises (or cuts) frequencies around 110 Hz by gain dB, gain in [-20,20].
func BassBoost(gain float64) (string, error) {
	if math.IsNaN(gain) || gain < -20 || gain > 20 {
		return "", errs.InvalidParameterf("bass boost must be between -20 and 20, got %v", gain)
	}
	return "bass=g=" + formatFloat(gain) + ":f=110:w=0.3", nil
}

// Volume scales the decoded signal by v, v in [0,10].
func Volume(v float64) (string, error) {
	if math.IsNaN(v) || v < 0 || v > 10 {
		return "", errs.InvalidParameterf("volume must be between 0 and 10, got %v", v)
	}
	return "volume=" + formatFloat(v), nil
}

// CustomEqualizer turns a sparse band -> gain percentage map into one
// superequalizer fragment per band, in ascending band order. 100% is unit gain.
func CustomEqualizer(bands map[int]float64) ([]string, error) {
	if len(bands) == 0 {
		return nil, errs.InvalidParameterf("equalizer needs at least one band")
	}

	keys := make([]int, 0, len(bands))
	for band, gain := range bands {
		if band < MinBand || band > MaxBand {
			return nil, errs.InvalidParameterf("equalizer band %d out of range %d-%d", band, MinBand, MaxBand)
		}
		// superequalizer accepts gains in [0,20]
		if math.IsNaN(gain) || gain < 0 || gain > 2000 {
			return nil, errs.InvalidParameterf("equalizer gain for band %d must be between 0 and 2000, got %v", band, gain)
		}
		keys = append(keys, band)
	}
	sort.Ints(keys)

	out := make([]string, 0, len(keys))
	for _, band := range keys {
		out = append(out, "superequalizer="+strconv.Itoa(band)+"b="+formatFloat(bands[band]/100))
	}
	return out, nil
}

// Custom passes an arbitrary fragment through untouched.
func Custom(fragment string) (string, error) {
	if strings.TrimSpace(fragment) == "" {
		return "", errs.InvalidParameterf("custom filter must not be empty")
	}
	return fragment, nil
}

// Chain joins fragments into a single filter-graph string.
func Chain(fragments []string) string {
	return strings.Join(fragments, Separator)
}

// Args returns the decoder arguments for fragments: nothing for an empty
// list, otherwise exactly one -af flag.
func Args(fragments []string) []string {
	if len(fragments) == 0 {
		return nil
	}
	return []string{"-af", Chain(fragments)}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
