// Package timecode converts between seconds, milliseconds, HH:MM:SS strings and
// ISO-8601 durations. HH:MM:SS carries no sub-second precision.
package timecode

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/forPelevin/adscribe/internal/types"
)

var reISODuration = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?$`)

// SecondsFromTimecode accepts a bare number or H:M:S / M:S and returns seconds
// rounded to one decimal.
func SecondsFromTimecode(s string) (float64, error) {
	total, err := parseSeconds(s)
	if err != nil {
		return 0, err
	}
	return math.Round(total*10) / 10, nil
}

// parseSeconds sums the colon fields without rounding. Every field must be a
// finite, non-negative number.
func parseSeconds(s string) (float64, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return 0, &types.ParseError{Kind: types.KindParse, Input: s, Err: errors.New("empty timecode")}
	}
	parts := strings.Split(t, ":")
	if len(parts) > 3 {
		return 0, &types.ParseError{Kind: types.KindParse, Input: s, Err: fmt.Errorf("%d fields", len(parts))}
	}
	var total float64
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		switch {
		case err != nil:
		case math.IsNaN(v) || math.IsInf(v, 0):
			err = fmt.Errorf("field %q is not finite", p)
		case v < 0:
			err = errors.New("negative field")
		}
		if err != nil {
			return 0, &types.ParseError{Kind: types.KindParse, Input: s, Err: err}
		}
		total = total*60 + v
	}
	return total, nil
}

// TimecodeFromSeconds formats whole seconds as zero-padded HH:MM:SS.
func TimecodeFromSeconds(sec int) string {
	if sec < 0 {
		sec = 0
	}
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func MillisFromTimecode(s string) (int64, error) {
	sec, err := parseSeconds(s)
	if err != nil {
		return 0, err
	}
	return int64(math.Round(sec * 1000)), nil
}

// TimecodeFromMillis floors to whole seconds before formatting.
func TimecodeFromMillis(ms int64) string {
	return TimecodeFromSeconds(int(ms / 1000))
}

// SecondsFromISO8601Duration parses PT[nH][nM][n.nS]. Missing components are 0.
func SecondsFromISO8601Duration(s string) (float64, error) {
	m := reISODuration.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, &types.ParseError{Kind: types.KindFormat, Input: s}
	}
	var h, mi, sec float64
	if m[1] != "" {
		h, _ = strconv.ParseFloat(m[1], 64)
	}
	if m[2] != "" {
		mi, _ = strconv.ParseFloat(m[2], 64)
	}
	if m[3] != "" {
		sec, _ = strconv.ParseFloat(m[3], 64)
	}
	return h*3600 + mi*60 + sec, nil
}

func FromDuration(d time.Duration) string {
	return TimecodeFromSeconds(int(d / time.Second))
}

func ToDuration(s string) (time.Duration, error) {
	sec, err := SecondsFromTimecode(s)
	if err != nil {
		return 0, err
	}
	return Seconds(sec), nil
}

func Seconds(sec float64) time.Duration { return time.Duration(sec * float64(time.Second)) }
