// Package filter implements the per-subscriber spot matching engine.
package filter

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"rda_bot/internal/model"
)

// Modes lists the mode filters a subscriber may choose besides ANY.
var Modes = []string{"DIGI", "CW", "SSB"}

// Allowed reports whether a spot passes the subscriber filter.
// The RDA allow-list is checked first, then the mode, then the band.
// An empty allow-list, an empty or ANY mode and nil band bounds match
// everything.
func Allowed(f model.SubscriberFilter, s model.Spot) bool {
	if !matchesRDA(f.RDAs, s.RDA) {
		return false
	}
	if !matchesMode(f.Mode, s.Mode) {
		return false
	}
	return matchesBand(f.BandLow, f.BandHigh, s.Freq)
}

func matchesRDA(allow []string, zones string) bool {
	if len(allow) == 0 {
		return true
	}
	for _, z := range strings.Fields(zones) {
		if slices.Contains(allow, z) {
			return true
		}
	}
	return false
}

func matchesMode(want, got string) bool {
	if want == "" || want == model.ModeAny {
		return true
	}
	return strings.ToUpper(strings.TrimSpace(got)) == want
}

func matchesBand(low, high *float64, freq float64) bool {
	if low != nil && freq < *low {
		return false
	}
	if high != nil && freq > *high {
		return false
	}
	return true
}

// ParseMode validates a /set_mode argument. It returns an empty string when
// the argument clears the mode filter (ANY, OFF or nothing).
func ParseMode(arg string) (string, error) {
	m := strings.ToUpper(strings.TrimSpace(arg))
	switch {
	case m == "" || m == model.ModeAny || m == "OFF":
		return "", nil
	case slices.Contains(Modes, m):
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q, use: %s, ANY", arg, strings.Join(Modes, ", "))
}

var (
	bandSep = regexp.MustCompile(`[ ,]+`)
	bandNum = regexp.MustCompile(`^\d+(\.\d+)?$`)
)

// ParseBand validates a /set_band argument of the form "14 14.35" or
// "14,14.35". The bounds are returned sorted. Nil bounds mean the argument
// clears the band filter (OFF or nothing).
func ParseBand(arg string) (low, high *float64, err error) {
	a := strings.TrimSpace(arg)
	if a == "" || strings.EqualFold(a, "OFF") {
		return nil, nil, nil
	}
	parts := bandSep.Split(a, -1)
	if len(parts) != 2 || !bandNum.MatchString(parts[0]) || !bandNum.MatchString(parts[1]) {
		return nil, nil, fmt.Errorf("band must be two frequencies in MHz, e.g. 14 14.35")
	}
	lo, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return nil, nil, fmt.Errorf("parse low bound: %w", err)
	}
	hi, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return nil, nil, fmt.Errorf("parse high bound: %w", err)
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	return &lo, &hi, nil
}
