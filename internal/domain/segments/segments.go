// Package segments adapts analysis service results into time-ordered RawSegments.
package segments

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/forPelevin/adscribe/internal/domain/timecode"
	"github.com/forPelevin/adscribe/internal/types"
)

type Source int

const (
	SourceUnknown Source = iota
	// SourceVideoAnalysis carries videoSegments/speechSegments with ISO-8601 times.
	SourceVideoAnalysis
	// SourceContentUnderstanding carries fixed content blocks with millisecond times.
	SourceContentUnderstanding
)

func (s Source) String() string {
	switch s {
	case SourceVideoAnalysis:
		return "video-analysis"
	case SourceContentUnderstanding:
		return "content-understanding"
	default:
		return "unknown"
	}
}

// Result envelopes seen in saved task responses: the bare result, a video
// analysis task ("taskResult") and a content understanding task ("result").
var envelopes = []string{"", "taskResult", "result"}

// Detect picks the adapter by the fields present and returns the located payload.
func Detect(raw []byte) (Source, []byte, error) {
	if !gjson.ValidBytes(raw) {
		return SourceUnknown, nil, &types.ShapeError{Reason: "not valid JSON"}
	}
	for _, env := range envelopes {
		obj := gjson.ParseBytes(raw)
		if env != "" {
			obj = obj.Get(env)
		}
		if !obj.IsObject() {
			continue
		}
		if obj.Get("videoSegments").IsArray() {
			return SourceVideoAnalysis, []byte(obj.Raw), nil
		}
		if obj.Get("contents").IsArray() {
			return SourceContentUnderstanding, []byte(obj.Raw), nil
		}
	}
	return SourceUnknown, nil, &types.ShapeError{Reason: "expected videoSegments[] or contents[]"}
}

// Normalize detects the shape of raw and converts it into sorted segments.
func Normalize(raw []byte) (Source, []types.RawSegment, error) {
	src, payload, err := Detect(raw)
	if err != nil {
		return src, nil, err
	}
	switch src {
	case SourceVideoAnalysis:
		var res types.VideoAnalysisResult
		if err := json.Unmarshal(payload, &res); err != nil {
			return src, nil, &types.ShapeError{Reason: fmt.Sprintf("decode %s: %v", src, err)}
		}
		segs, err := FromVideoAnalysis(res)
		return src, segs, err
	default:
		var res types.ContentResult
		if err := json.Unmarshal(payload, &res); err != nil {
			return src, nil, &types.ShapeError{Reason: fmt.Sprintf("decode %s: %v", src, err)}
		}
		segs, err := FromContent(res)
		return src, segs, err
	}
}

// FromVideoAnalysis tags scene segments as non-speech and transcript segments as
// speech. Boundaries are rounded to whole seconds.
func FromVideoAnalysis(res types.VideoAnalysisResult) ([]types.RawSegment, error) {
	out := make([]types.RawSegment, 0, len(res.VideoSegments)+len(res.SpeechSegments))
	for i, vs := range res.VideoSegments {
		span, err := isoSpan(vs.Offset, vs.Duration)
		if err != nil {
			return nil, fmt.Errorf("videoSegments[%d]: %w", i, err)
		}
		out = append(out, types.RawSegment{Span: span, Text: strings.TrimSpace(vs.Properties.Description)})
	}
	for i, ss := range res.SpeechSegments {
		span, err := isoSpan(ss.Offset, ss.Duration)
		if err != nil {
			return nil, fmt.Errorf("speechSegments[%d]: %w", i, err)
		}
		text := ""
		if len(ss.NBest) > 0 {
			text = strings.TrimSpace(ss.NBest[0].Display)
		}
		out = append(out, types.RawSegment{Span: span, Text: text, Speech: true})
	}
	sortByStart(out)
	return out, nil
}

// FromContent marks a block as speech iff it has transcript phrases.
func FromContent(res types.ContentResult) ([]types.RawSegment, error) {
	out := make([]types.RawSegment, 0, len(res.Contents))
	for i, c := range res.Contents {
		if c.EndTimeMs < c.StartTimeMs || c.StartTimeMs < 0 {
			return nil, &types.ShapeError{Reason: fmt.Sprintf("contents[%d]: invalid range %d..%dms", i, c.StartTimeMs, c.EndTimeMs)}
		}
		out = append(out, types.RawSegment{
			Span: types.TimeSpan{
				Start: time.Duration(c.StartTimeMs) * time.Millisecond,
				End:   time.Duration(c.EndTimeMs) * time.Millisecond,
			},
			Text:   strings.TrimSpace(c.Fields.Description.ValueString),
			Speech: len(c.TranscriptPhrases) > 0,
		})
	}
	sortByStart(out)
	return out, nil
}

func isoSpan(offset, duration string) (types.TimeSpan, error) {
	off, err := timecode.SecondsFromISO8601Duration(offset)
	if err != nil {
		return types.TimeSpan{}, err
	}
	d, err := timecode.SecondsFromISO8601Duration(duration)
	if err != nil {
		return types.TimeSpan{}, err
	}
	return types.TimeSpan{
		Start: timecode.Seconds(math.Round(off)),
		End:   timecode.Seconds(math.Round(off + d)),
	}, nil
}

func sortByStart(segs []types.RawSegment) {
	sort.SliceStable(segs, func(i, j int) bool { return segs[i].Span.Start < segs[j].Span.Start })
}

// Split separates speech from non-speech segments, preserving order.
func Split(segs []types.RawSegment) (scenes, speech []types.RawSegment) {
	for _, s := range segs {
		if s.Speech {
			speech = append(speech, s)
		} else {
			scenes = append(scenes, s)
		}
	}
	return scenes, speech
}
