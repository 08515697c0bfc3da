package types

import "time"

type TimeSpan struct {
	Start time.Duration
	End   time.Duration
}

func (s TimeSpan) Duration() time.Duration { return s.End - s.Start }

// RawSegment is one timed item of an analysis result: a scene description or a
// transcript line.
type RawSegment struct {
	Span   TimeSpan
	Text   string
	Speech bool
}

type SilentInterval struct {
	Span        TimeSpan
	Description string
	WordBudget  int
}

// NarrationSegment is the persisted audio-description record. Field names and the
// HH:MM:SS time format are read back by the playback and editing surfaces.
type NarrationSegment struct {
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Description string `json:"description"`
}

// VideoAnalysisResult is the older video-analysis service shape.
type VideoAnalysisResult struct {
	VideoSegments  []VideoSegment  `json:"videoSegments"`
	SpeechSegments []SpeechSegment `json:"speechSegments"`
}

type VideoSegment struct {
	Offset     string `json:"offset"`
	Duration   string `json:"duration"`
	Properties struct {
		Description string `json:"description"`
	} `json:"properties"`
}

type SpeechSegment struct {
	Offset   string `json:"offset"`
	Duration string `json:"duration"`
	NBest    []struct {
		Display string `json:"display"`
	} `json:"nBest"`
}

// ContentResult is the newer content-understanding service shape.
type ContentResult struct {
	Contents []Content `json:"contents"`
}

type Content struct {
	Kind        string `json:"kind"`
	StartTimeMs int64  `json:"startTimeMs"`
	EndTimeMs   int64  `json:"endTimeMs"`
	Fields      struct {
		Description struct {
			Type        string `json:"type"`
			ValueString string `json:"valueString"`
		} `json:"description"`
	} `json:"fields"`
	TranscriptPhrases []TranscriptPhrase `json:"transcriptPhrases"`
}

type TranscriptPhrase struct {
	Speaker     string `json:"speaker"`
	StartTimeMs int64  `json:"startTimeMs"`
	EndTimeMs   int64  `json:"endTimeMs"`
	Text        string `json:"text"`
}

// Details is stored next to the narration record so a video can be reprocessed
// with the same metadata.
type Details struct {
	Title          string `json:"title"`
	Metadata       string `json:"metadata"`
	NarrationStyle string `json:"narrationStyle"`
}
