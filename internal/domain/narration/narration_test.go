package narration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/forPelevin/adscribe/internal/types"
)

// tokenRewriter answers with an incrementing token and the length of the
// previous description it was given.
type tokenRewriter struct {
	calls []jsonPromptBody
}

func (r *tokenRewriter) Rewrite(_ context.Context, _, user string) (string, error) {
	var body jsonPromptBody
	if err := json.Unmarshal([]byte(user), &body); err != nil {
		return "", err
	}
	r.calls = append(r.calls, body)
	return fmt.Sprintf("tok%d-%d", len(r.calls), len(body.PreviousDescription)), nil
}

type scriptedRewriter struct {
	results []error
	texts   []string
	calls   int
}

func (r *scriptedRewriter) Rewrite(_ context.Context, _, _ string) (string, error) {
	i := r.calls
	r.calls++
	if i < len(r.results) && r.results[i] != nil {
		return "", r.results[i]
	}
	if i < len(r.texts) {
		return r.texts[i], nil
	}
	return "ok", nil
}

func intervals(n int) []types.SilentInterval {
	out := make([]types.SilentInterval, n)
	for i := range out {
		out[i] = types.SilentInterval{
			Span:        types.TimeSpan{Start: time.Duration(i*10) * time.Second, End: time.Duration(i*10+5) * time.Second},
			Description: fmt.Sprintf("raw %d", i),
			WordBudget:  15,
		}
	}
	return out
}

func fastRetry(max int) RetryPolicy {
	return RetryPolicy{MaxAttempts: max, BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond}
}

func TestRun_ThreadsPreviousOutput(t *testing.T) {
	rw := &tokenRewriter{}
	p := New(rw, Options{Prompt: JSONPrompt{}, Retry: fastRetry(3)})

	out, err := p.Run(context.Background(), intervals(4), Metadata{Title: "T"}, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rw.calls) != 4 {
		t.Fatalf("expected 4 calls, got %d", len(rw.calls))
	}
	if rw.calls[0].PreviousDescription != "" {
		t.Fatalf("first interval got previous %q", rw.calls[0].PreviousDescription)
	}
	for i := 1; i < len(out); i++ {
		if rw.calls[i].PreviousDescription != out[i-1].Description {
			t.Fatalf("interval %d previous = %q, want output %q", i, rw.calls[i].PreviousDescription, out[i-1].Description)
		}
		if rw.calls[i].PreviousDescription == rw.calls[i-1].Description {
			t.Fatalf("interval %d received the raw input of the previous interval", i)
		}
	}
	if rw.calls[2].MaxWords != 15 || rw.calls[2].Metadata.Title != "T" {
		t.Fatalf("unexpected request body: %+v", rw.calls[2])
	}
}

func TestRun_RetriesAfterRateLimit(t *testing.T) {
	rw := &scriptedRewriter{
		results: []error{fmt.Errorf("status 429: %w", types.ErrRateLimited)},
		texts:   []string{"", "A man opens the door."},
	}
	p := New(rw, Options{Retry: fastRetry(3)})

	out, err := p.Run(context.Background(), intervals(1), Metadata{}, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rw.calls != 2 {
		t.Fatalf("expected one retry, got %d calls", rw.calls)
	}
	if out[0].Description != "A man opens the door." {
		t.Fatalf("unexpected description %q", out[0].Description)
	}
}

func TestRun_RateLimitExhaustionIsTerminal(t *testing.T) {
	limited := fmt.Errorf("status 429: %w", types.ErrRateLimited)
	rw := &scriptedRewriter{results: []error{limited, limited, limited, limited}}
	p := New(rw, Options{Retry: fastRetry(3)})

	_, err := p.Run(context.Background(), intervals(2), Metadata{}, nil)
	var te *types.RewriteTransientError
	if !errors.As(err, &te) {
		t.Fatalf("expected RewriteTransientError, got %v", err)
	}
	if te.Attempts != 3 || rw.calls != 3 {
		t.Fatalf("unexpected attempts: err=%d calls=%d", te.Attempts, rw.calls)
	}
	if !errors.Is(err, types.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited in chain")
	}
}

func TestRun_FailureIsIntervalLocal(t *testing.T) {
	rw := &scriptedRewriter{
		results: []error{nil, errors.New("status 500")},
		texts:   []string{"first", "", "third"},
	}
	var progress []int
	p := New(rw, Options{
		Retry:    fastRetry(3),
		Progress: progressRecorder(&progress),
	})

	out, err := p.Run(context.Background(), intervals(3), Metadata{}, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	got := []string{out[0].Description, out[1].Description, out[2].Description}
	if strings.Join(got, "|") != "first||third" {
		t.Fatalf("unexpected descriptions: %q", got)
	}
	if fmt.Sprint(progress) != "[1 2 3]" {
		t.Fatalf("unexpected progress: %v", progress)
	}
}

func TestRun_CarryRawOnFailure(t *testing.T) {
	rw := &failThenRecord{}
	p := New(rw, Options{Prompt: JSONPrompt{}, Retry: fastRetry(1), CarryRawOnFailure: true})

	if _, err := p.Run(context.Background(), intervals(2), Metadata{}, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if rw.secondPrev != "raw 0" {
		t.Fatalf("expected raw fallback, got %q", rw.secondPrev)
	}
}

type failThenRecord struct {
	calls      int
	secondPrev string
}

func (r *failThenRecord) Rewrite(_ context.Context, _, user string) (string, error) {
	r.calls++
	if r.calls == 1 {
		return "", errors.New("boom")
	}
	var body jsonPromptBody
	_ = json.Unmarshal([]byte(user), &body)
	r.secondPrev = body.PreviousDescription
	return "ok", nil
}

func TestRun_CancelledBetweenIntervals(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rw := &scriptedRewriter{}
	var progress []int
	p := New(rw, Options{
		Retry: fastRetry(3),
		Progress: progressFunc(func(done, _ int) {
			progress = append(progress, done)
			if done == 1 {
				cancel()
			}
		}),
	})

	_, err := p.Run(ctx, intervals(3), Metadata{}, nil)
	var ce *types.CancelledError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CancelledError, got %v", err)
	}
	if ce.Completed != 1 || ce.Total != 3 || rw.calls != 1 {
		t.Fatalf("unexpected cancel state: %+v calls=%d", ce, rw.calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled in chain")
	}
}

func TestRetryPolicyDelay(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: 20 * time.Second, MaxDelay: time.Minute}
	want := []time.Duration{20 * time.Second, 40 * time.Second, time.Minute, time.Minute}
	for i, w := range want {
		if got := p.Delay(i + 1); got != w {
			t.Fatalf("Delay(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestSceneListPrompt(t *testing.T) {
	_, user, err := SceneListPrompt{}.Build(Request{
		Description:         "A dog runs.",
		WordBudget:          18,
		PreviousDescription: "A street.",
		Meta:                Metadata{Title: "Dogs", Context: "Rex is the dog"},
		Scenes: []types.RawSegment{
			{Span: types.TimeSpan{Start: 4 * time.Second, End: 10 * time.Second}, Text: "A dog runs."},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"**Title:** Dogs",
		"**Metadata:** Rex is the dog",
		" - 00:00:04 -> 00:00:10: A dog runs.",
		"must not repeat this information - A street.",
		"Describe the following in 18 words: A dog runs.",
	} {
		if !strings.Contains(user, want) {
			t.Fatalf("prompt missing %q:\n%s", want, user)
		}
	}
	if strings.Contains(user, "Writing style") {
		t.Fatalf("empty style should be omitted:\n%s", user)
	}
}

func TestFinalizeAndSortSegments(t *testing.T) {
	segs := Finalize([]types.SilentInterval{
		{Span: types.TimeSpan{Start: 4 * time.Second, End: 10 * time.Second}, Description: "b"},
		{Span: types.TimeSpan{Start: 0, End: 2*time.Second + 500*time.Millisecond}, Description: "a"},
	})
	if segs[0].StartTime != "00:00:00" || segs[0].EndTime != "00:00:02" || segs[1].StartTime != "00:00:04" {
		t.Fatalf("unexpected segments: %+v", segs)
	}

	edited := []types.NarrationSegment{
		{StartTime: "00:01:00", Description: "late"},
		{StartTime: "00:00:05", Description: "early"},
	}
	if err := SortSegments(edited); err != nil {
		t.Fatal(err)
	}
	if edited[0].Description != "early" {
		t.Fatalf("unexpected order: %+v", edited)
	}
	if err := SortSegments([]types.NarrationSegment{{StartTime: "xx"}}); err == nil {
		t.Fatalf("expected parse error")
	}
}

type progressFunc func(done, total int)

func (f progressFunc) IntervalDone(done, total int) { f(done, total) }

func progressRecorder(dst *[]int) progressFunc {
	return func(done, _ int) { *dst = append(*dst, done) }
}
