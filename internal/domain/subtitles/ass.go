// Package subtitles renders narration segments as an ASS description track.
package subtitles

import (
	"fmt"
	"strings"
	"time"

	"github.com/forPelevin/adscribe/internal/domain/timecode"
	"github.com/forPelevin/adscribe/internal/types"
)

const lineCharBudget = 48

// RenderDescriptionASS emits one dialogue event per segment. Segments with an
// empty description are skipped.
func RenderDescriptionASS(segs []types.NarrationSegment) (string, error) {
	var b strings.Builder
	b.WriteString(assHeader())
	b.WriteString("\n\n[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for i, s := range segs {
		text := strings.TrimSpace(s.Description)
		if text == "" {
			continue
		}
		start, err := timecode.ToDuration(s.StartTime)
		if err != nil {
			return "", fmt.Errorf("segment %d start: %w", i, err)
		}
		end, err := timecode.ToDuration(s.EndTime)
		if err != nil {
			return "", fmt.Errorf("segment %d end: %w", i, err)
		}
		if end <= start {
			continue
		}
		b.WriteString("Dialogue: 0,")
		b.WriteString(assTime(start))
		b.WriteString(",")
		b.WriteString(assTime(end))
		b.WriteString(",Description,AD,0,0,0,,")
		b.WriteString(strings.Join(wrapWords(sanitizeASS(text), lineCharBudget), `\N`))
		b.WriteString("\n")
	}
	return b.String(), nil
}

// wrapWords packs words greedily into lines of at most budget runes. A single
// longer word gets its own line.
func wrapWords(text string, budget int) []string {
	var out []string
	var cur strings.Builder
	curLen := 0
	for _, w := range strings.Fields(text) {
		wl := len([]rune(w))
		if curLen > 0 && curLen+1+wl > budget {
			out = append(out, cur.String())
			cur.Reset()
			curLen = 0
		}
		if curLen > 0 {
			cur.WriteByte(' ')
			curLen++
		}
		cur.WriteString(w)
		curLen += wl
	}
	if curLen > 0 {
		out = append(out, cur.String())
	}
	return out
}

func assHeader() string {
	return strings.TrimSpace(`
[Script Info]
Title: Audio description
ScriptType: v4.00+
PlayResX: 1920
PlayResY: 1080
ScaledBorderAndShadow: yes

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Description, Inter, 52, &H00FFFFFF, &H00FFFFFF, &H00000000, &H80000000, 0,1,0,0,100,100,0,0,3,2,0,8, 120,120,60,1
`)
}

func assTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hs := int(d / time.Hour)
	d -= time.Duration(hs) * time.Hour
	ms := int(d / time.Minute)
	d -= time.Duration(ms) * time.Minute
	s := int(d / time.Second)
	d -= time.Duration(s) * time.Second
	cs := int(d / (10 * time.Millisecond))
	return fmt.Sprintf("%d:%02d:%02d.%02d", hs, ms, s, cs)
}

func sanitizeASS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "{", "(")
	s = strings.ReplaceAll(s, "}", ")")
	return strings.TrimSpace(s)
}
