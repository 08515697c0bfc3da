// Package gaps derives the silent intervals where narration may be placed and
// gives each one a word budget.
package gaps

import (
	"math"
	"strings"
	"time"

	"github.com/forPelevin/adscribe/internal/types"
)

const (
	DefaultMinDuration    = time.Second
	DefaultWordsPerSecond = 3.0
)

// TotalDuration is the latest end time across all segments.
func TotalDuration(segs []types.RawSegment) time.Duration {
	var total time.Duration
	for _, s := range segs {
		if s.Span.End > total {
			total = s.Span.End
		}
	}
	return total
}

// Extract returns the complement of occupied over [0, total). occupied must be
// sorted by start; overlapping spans are allowed.
func Extract(occupied []types.TimeSpan, total time.Duration) []types.SilentInterval {
	var out []types.SilentInterval
	var cursor time.Duration
	for _, o := range occupied {
		if cursor < o.Start {
			out = append(out, types.SilentInterval{Span: types.TimeSpan{Start: cursor, End: o.Start}})
		}
		if o.End > cursor {
			cursor = o.End
		}
	}
	if cursor < total {
		out = append(out, types.SilentInterval{Span: types.TimeSpan{Start: cursor, End: total}})
	}
	return out
}

// AssignNearest appends each scene's text to the interval whose start is closest
// to the scene's start. Ties go to the earliest interval.
func AssignNearest(intervals []types.SilentInterval, scenes []types.RawSegment) {
	if len(intervals) == 0 {
		return
	}
	for _, sc := range scenes {
		best := 0
		bestDist := absDur(intervals[0].Span.Start - sc.Span.Start)
		for i := 1; i < len(intervals); i++ {
			d := absDur(intervals[i].Span.Start - sc.Span.Start)
			if d < bestDist {
				best, bestDist = i, d
			}
		}
		intervals[best].Description = joinText(intervals[best].Description, sc.Text)
	}
}

// MergeAdjacent coalesces runs of consecutive non-speech segments. A speech segment
// closes the open interval.
func MergeAdjacent(segs []types.RawSegment) []types.SilentInterval {
	var out []types.SilentInterval
	var open *types.SilentInterval
	for _, s := range segs {
		if s.Speech {
			if open != nil {
				out = append(out, *open)
				open = nil
			}
			continue
		}
		if open == nil {
			open = &types.SilentInterval{Span: s.Span, Description: s.Text}
			continue
		}
		open.Span.End = s.Span.End
		open.Description = joinText(open.Description, s.Text)
	}
	if open != nil {
		out = append(out, *open)
	}
	return out
}

// Filter drops intervals lasting min or less.
func Filter(intervals []types.SilentInterval, min time.Duration) []types.SilentInterval {
	out := make([]types.SilentInterval, 0, len(intervals))
	for _, iv := range intervals {
		if iv.Span.Duration() > min {
			out = append(out, iv)
		}
	}
	return out
}

// Allocate sets WordBudget = floor(seconds * wordsPerSecond).
func Allocate(intervals []types.SilentInterval, wordsPerSecond float64) {
	for i := range intervals {
		intervals[i].WordBudget = Budget(intervals[i].Span, wordsPerSecond)
	}
}

func Budget(span types.TimeSpan, wordsPerSecond float64) int {
	if wordsPerSecond <= 0 {
		wordsPerSecond = DefaultWordsPerSecond
	}
	// millisecond precision before flooring
	sec := math.Round(span.Duration().Seconds()*1000) / 1000
	return int(math.Floor(sec * wordsPerSecond))
}

func joinText(a, b string) string {
	b = strings.TrimSpace(b)
	switch {
	case b == "":
		return a
	case a == "":
		return b
	default:
		return a + " " + b
	}
}

func absDur(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
