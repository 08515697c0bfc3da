package gaps

import (
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/forPelevin/adscribe/internal/types"
)

func span(start, end float64) types.TimeSpan {
	return types.TimeSpan{
		Start: time.Duration(start * float64(time.Second)),
		End:   time.Duration(end * float64(time.Second)),
	}
}

func TestExtract_SingleSpeechSegment(t *testing.T) {
	got := Extract([]types.TimeSpan{span(2, 4)}, 10*time.Second)
	want := []types.TimeSpan{span(0, 2), span(4, 10)}
	if len(got) != len(want) {
		t.Fatalf("expected %d gaps, got %+v", len(want), got)
	}
	for i := range want {
		if got[i].Span != want[i] {
			t.Fatalf("gap %d = %+v, want %+v", i, got[i].Span, want[i])
		}
	}
}

func TestExtract_EmptyOccupied(t *testing.T) {
	got := Extract(nil, 7*time.Second)
	if len(got) != 1 || got[0].Span != span(0, 7) {
		t.Fatalf("expected one full gap, got %+v", got)
	}
}

func TestExtract_OverlapAndTouching(t *testing.T) {
	got := Extract([]types.TimeSpan{span(0, 3), span(1, 5), span(5, 6), span(8, 9)}, 9*time.Second)
	if len(got) != 1 || got[0].Span != span(6, 8) {
		t.Fatalf("unexpected gaps: %+v", got)
	}
}

func TestExtract_PartitionsTimeline(t *testing.T) {
	occupied := []types.TimeSpan{span(1, 2), span(3, 3.5), span(6, 9)}
	total := 12 * time.Second
	gaps := Extract(occupied, total)

	all := append([]types.TimeSpan(nil), occupied...)
	for _, g := range gaps {
		if g.Span.Duration() <= 0 {
			t.Fatalf("empty gap emitted: %+v", g)
		}
		all = append(all, g.Span)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Start < all[j].Start })

	var cursor time.Duration
	for _, s := range all {
		if s.Start != cursor {
			t.Fatalf("hole or overlap at %v: %+v", cursor, all)
		}
		cursor = s.End
	}
	if cursor != total {
		t.Fatalf("partition ends at %v, want %v", cursor, total)
	}
}

func TestAssignNearest_EachSceneOnce(t *testing.T) {
	intervals := []types.SilentInterval{
		{Span: span(0, 2)},
		{Span: span(4, 10)},
		{Span: span(12, 20)},
	}
	scenes := []types.RawSegment{
		{Span: span(0, 4), Text: "s0"},
		{Span: span(5, 8), Text: "s1"},
		{Span: span(8, 12), Text: "s2"},
		{Span: span(15, 20), Text: "s3"},
	}
	AssignNearest(intervals, scenes)

	want := []string{"s0", "s1 s2", "s3"}
	for i, w := range want {
		if intervals[i].Description != w {
			t.Fatalf("interval %d description = %q, want %q", i, intervals[i].Description, w)
		}
	}

	seen := map[string]int{}
	for _, iv := range intervals {
		for _, w := range strings.Fields(iv.Description) {
			seen[w]++
		}
	}
	for _, sc := range scenes {
		if seen[sc.Text] != 1 {
			t.Fatalf("scene %q assigned %d times", sc.Text, seen[sc.Text])
		}
	}
}

func TestAssignNearest_TieGoesToFirst(t *testing.T) {
	intervals := []types.SilentInterval{{Span: span(0, 2)}, {Span: span(4, 6)}}
	AssignNearest(intervals, []types.RawSegment{{Span: span(2, 3), Text: "tie"}})
	if intervals[0].Description != "tie" || intervals[1].Description != "" {
		t.Fatalf("unexpected tie-break: %+v", intervals)
	}
}

func TestMergeAdjacent(t *testing.T) {
	segs := []types.RawSegment{
		{Span: span(0, 3), Text: "A kitchen."},
		{Span: span(3, 6), Text: "A woman cooks."},
		{Span: span(6, 9), Text: "talk", Speech: true},
		{Span: span(9, 12), Text: "Night falls."},
	}
	got := MergeAdjacent(segs)
	if len(got) != 2 {
		t.Fatalf("expected 2 intervals, got %+v", got)
	}
	if got[0].Span != span(0, 6) || got[0].Description != "A kitchen. A woman cooks." {
		t.Fatalf("unexpected merged interval: %+v", got[0])
	}
	if got[1].Span != span(9, 12) {
		t.Fatalf("trailing interval not flushed: %+v", got[1])
	}
}

func TestFilter_DropsShortOnly(t *testing.T) {
	in := []types.SilentInterval{
		{Span: span(0, 1)},
		{Span: span(1, 2.001)},
		{Span: span(3, 3.5)},
		{Span: span(4, 9)},
	}
	got := Filter(in, DefaultMinDuration)
	if len(got) != 2 || got[0].Span != span(1, 2.001) || got[1].Span != span(4, 9) {
		t.Fatalf("unexpected filter result: %+v", got)
	}
}

func TestAllocate(t *testing.T) {
	in := []types.SilentInterval{{Span: span(0, 2)}, {Span: span(4, 10)}, {Span: span(0, 1.5)}}
	Allocate(in, DefaultWordsPerSecond)
	for i, want := range []int{6, 18, 4} {
		if in[i].WordBudget != want {
			t.Fatalf("interval %d budget = %d, want %d", i, in[i].WordBudget, want)
		}
	}
}

func TestTotalDuration(t *testing.T) {
	got := TotalDuration([]types.RawSegment{{Span: span(0, 8)}, {Span: span(2, 10), Speech: true}, {Span: span(9, 9.5)}})
	if got != 10*time.Second {
		t.Fatalf("unexpected total: %v", got)
	}
}
