// Package narration rewrites silent-interval descriptions to fit their word budget.
//
// Intervals are processed strictly in order: each request carries the previous
// interval's final text so the model can avoid repeating it.
package narration

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/forPelevin/adscribe/internal/domain/timecode"
	"github.com/forPelevin/adscribe/internal/ports"
	"github.com/forPelevin/adscribe/internal/types"
)

type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseDelay: 20 * time.Second, MaxDelay: 2 * time.Minute}
}

// Delay returns the wait after the given failed attempt (1-based): BaseDelay
// doubled per attempt, capped at MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

type Options struct {
	Prompt   PromptBuilder
	Retry    RetryPolicy
	Progress ports.Progress
	Logger   *slog.Logger
	// CarryRawOnFailure makes a failed interval pass its raw description forward as
	// the previous description instead of an empty string.
	CarryRawOnFailure bool
}

type Pipeline struct {
	rw       ports.Rewriter
	prompt   PromptBuilder
	retry    RetryPolicy
	progress ports.Progress
	log      *slog.Logger
	carryRaw bool
}

func New(rw ports.Rewriter, opts Options) *Pipeline {
	p := &Pipeline{
		rw:       rw,
		prompt:   opts.Prompt,
		retry:    opts.Retry,
		progress: opts.Progress,
		log:      opts.Logger,
		carryRaw: opts.CarryRawOnFailure,
	}
	if p.prompt == nil {
		p.prompt = JSONPrompt{}
	}
	if p.retry.MaxAttempts <= 0 {
		p.retry = DefaultRetryPolicy()
	}
	if p.log == nil {
		p.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p
}

// carry is the state threaded from one interval to the next.
type carry struct {
	previous string
}

// Run rewrites every interval in order and returns a new slice. Interval-local
// failures leave an empty description; rate-limit exhaustion and cancellation
// abort the run.
func (p *Pipeline) Run(ctx context.Context, intervals []types.SilentInterval, meta Metadata, scenes []types.RawSegment) ([]types.SilentInterval, error) {
	out := append([]types.SilentInterval(nil), intervals...)
	total := len(out)
	acc := carry{}
	for i := range out {
		if err := ctx.Err(); err != nil {
			return nil, &types.CancelledError{Completed: i, Total: total, Err: err}
		}
		req := Request{
			Index:               i,
			Description:         out[i].Description,
			WordBudget:          out[i].WordBudget,
			PreviousDescription: acc.previous,
			Meta:                meta,
			Scenes:              scenes,
		}
		next, text, err := p.step(ctx, acc, req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, &types.CancelledError{Completed: i, Total: total, Err: ctxErr}
			}
			return nil, err
		}
		out[i].Description = text
		acc = next
		if p.progress != nil {
			p.progress.IntervalDone(i+1, total)
		}
	}
	return out, nil
}

func (p *Pipeline) step(ctx context.Context, acc carry, req Request) (carry, string, error) {
	text, err := p.rewrite(ctx, req)
	if err == nil {
		p.log.Debug("interval rewritten", "index", req.Index, "budget", req.WordBudget, "words", len(strings.Fields(text)))
		return carry{previous: text}, text, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return acc, "", ctxErr
	}
	var transient *types.RewriteTransientError
	if errors.As(err, &transient) {
		return acc, "", err
	}

	p.log.Warn("interval rewrite failed", "index", req.Index, "err", err)
	if p.carryRaw {
		return carry{previous: req.Description}, "", nil
	}
	return carry{}, "", nil
}

func (p *Pipeline) rewrite(ctx context.Context, req Request) (string, error) {
	system, user, err := p.prompt.Build(req)
	if err != nil {
		return "", &types.RewriteFailure{Index: req.Index, Err: err}
	}
	for attempt := 1; ; attempt++ {
		text, err := p.rw.Rewrite(ctx, system, user)
		if err == nil {
			return strings.TrimSpace(text), nil
		}
		if !errors.Is(err, types.ErrRateLimited) {
			return "", &types.RewriteFailure{Index: req.Index, Err: err}
		}
		if attempt >= p.retry.MaxAttempts {
			return "", &types.RewriteTransientError{Index: req.Index, Attempts: attempt, Err: err}
		}
		wait := p.retry.Delay(attempt)
		p.log.Info("rate limited, backing off", "index", req.Index, "attempt", attempt, "wait", wait)
		if err := sleep(ctx, wait); err != nil {
			return "", err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Finalize converts rewritten intervals into narration segments sorted by start.
func Finalize(intervals []types.SilentInterval) []types.NarrationSegment {
	sorted := append([]types.SilentInterval(nil), intervals...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Span.Start < sorted[j].Span.Start })

	out := make([]types.NarrationSegment, 0, len(sorted))
	for _, iv := range sorted {
		out = append(out, types.NarrationSegment{
			StartTime:   timecode.FromDuration(iv.Span.Start),
			EndTime:     timecode.FromDuration(iv.Span.End),
			Description: iv.Description,
		})
	}
	return out
}

// SortSegments re-sorts caller-edited segments by start time.
func SortSegments(segs []types.NarrationSegment) error {
	starts := make(map[string]float64, len(segs))
	for _, s := range segs {
		if _, ok := starts[s.StartTime]; ok {
			continue
		}
		sec, err := timecode.SecondsFromTimecode(s.StartTime)
		if err != nil {
			return err
		}
		starts[s.StartTime] = sec
	}
	sort.SliceStable(segs, func(i, j int) bool { return starts[segs[i].StartTime] < starts[segs[j].StartTime] })
	return nil
}
