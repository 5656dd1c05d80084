package filters

import (
	"slices"
	"strings"

	"github.com/keshon/playcord/internal/errs"
)

type effect struct {
	fixed func() string
	param func(float64) (string, error)
}

var catalog = map[string]effect{
	"8d":          {fixed: RotatingAudio},
	"rotating":    {fixed: RotatingAudio},
	"mono":        {fixed: Mono},
	"extrastereo": {fixed: ExtraStereo},
	"vibrato":     {fixed: Vibrato},
	"reverse":     {fixed: Reverse},
	"flanger":     {fixed: Flanger},
	"chorus":      {fixed: Chorus},
	"pingpong":    {param: PingPongDelay},
	"speed":       {param: Speed},
	"tremolo":     {param: Tremolo},
	"bassboost":   {param: BassBoost},
	"volume":      {param: Volume},
}

// Lookup resolves an effect by name. Parametrized effects need exactly one
// argument; fixed effects take none.
func Lookup(name string, args ...float64) (string, error) {
	e, ok := catalog[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", errs.InvalidParameterf("unknown filter %q", name)
	}

	if e.fixed != nil {
		if len(args) != 0 {
			return "", errs.InvalidParameterf("filter %q takes no value", name)
		}
		return e.fixed(), nil
	}

	if len(args) != 1 {
		return "", errs.InvalidParameterf("filter %q needs one value", name)
	}
	return e.param(args[0])
}

// Names lists the catalog names in sorted order.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Parametrized reports whether the named effect takes a value.
func Parametrized(name string) bool {
	e, ok := catalog[strings.ToLower(strings.TrimSpace(name))]
	return ok && e.param != nil
}
