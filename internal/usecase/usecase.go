package usecase

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/forPelevin/adscribe/internal/domain/gaps"
	"github.com/forPelevin/adscribe/internal/domain/narration"
	"github.com/forPelevin/adscribe/internal/domain/segments"
	"github.com/forPelevin/adscribe/internal/ports"
	"github.com/forPelevin/adscribe/internal/types"
)

type Deps struct {
	Rewriter ports.Rewriter
	Progress ports.Progress
	Logger   *slog.Logger
	Retry    narration.RetryPolicy

	CarryRawOnFailure bool
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase {
	if d.Logger == nil {
		d.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return Usecase{d: d}
}

type Input struct {
	Raw            []byte
	Title          string
	Context        string
	NarrationStyle string

	// MinDuration drops silent intervals lasting this long or less. Nil means
	// gaps.DefaultMinDuration; zero keeps every interval.
	MinDuration    *time.Duration
	WordsPerSecond float64
	// MediaDuration extends the trailing gap of a video-analysis result when the
	// media runs past its last segment. Zero means unknown.
	MediaDuration time.Duration
}

func (in Input) meta() narration.Metadata {
	return narration.Metadata{Title: in.Title, Context: in.Context, Style: in.NarrationStyle}
}

// Plan is the budgeted set of intervals before any rewrite call.
type Plan struct {
	Source    segments.Source
	Intervals []types.SilentInterval
	// Scenes is only set for video-analysis results.
	Scenes []types.RawSegment
}

type Result struct {
	Plan      Plan
	Intervals []types.SilentInterval
	Segments  []types.NarrationSegment
}

// Plan normalizes the raw analysis result and derives budgeted silent intervals.
func (u Usecase) Plan(in Input) (Plan, error) {
	src, segs, err := segments.Normalize(in.Raw)
	if err != nil {
		return Plan{}, err
	}

	minDur := gaps.DefaultMinDuration
	if in.MinDuration != nil {
		minDur = max(*in.MinDuration, 0)
	}

	plan := Plan{Source: src}
	switch src {
	case segments.SourceVideoAnalysis:
		scenes, speech := segments.Split(segs)
		occupied := make([]types.TimeSpan, 0, len(speech))
		for _, s := range speech {
			occupied = append(occupied, s.Span)
		}
		total := gaps.TotalDuration(segs)
		if in.MediaDuration > total {
			total = in.MediaDuration
		}
		// filter before assignment so every scene lands in a surviving interval
		intervals := gaps.Filter(gaps.Extract(occupied, total), minDur)
		gaps.AssignNearest(intervals, scenes)
		plan.Intervals = intervals
		plan.Scenes = scenes
	default:
		plan.Intervals = gaps.Filter(gaps.MergeAdjacent(segs), minDur)
	}
	gaps.Allocate(plan.Intervals, in.WordsPerSecond)

	u.d.Logger.Info("analysis planned",
		"source", src.String(),
		"segments", len(segs),
		"intervals", len(plan.Intervals),
	)
	return plan, nil
}

// Process plans the intervals and rewrites each one in order. Parse and shape
// errors are returned before any rewrite call.
func (u Usecase) Process(ctx context.Context, in Input) (Result, error) {
	plan, err := u.Plan(in)
	if err != nil {
		return Result{}, err
	}

	var prompt narration.PromptBuilder = narration.JSONPrompt{}
	if plan.Source == segments.SourceVideoAnalysis {
		prompt = narration.SceneListPrompt{}
	}
	p := narration.New(u.d.Rewriter, narration.Options{
		Prompt:            prompt,
		Retry:             u.d.Retry,
		Progress:          u.d.Progress,
		Logger:            u.d.Logger,
		CarryRawOnFailure: u.d.CarryRawOnFailure,
	})

	start := time.Now()
	rewritten, err := p.Run(ctx, plan.Intervals, in.meta(), plan.Scenes)
	if err != nil {
		return Result{}, err
	}
	u.d.Logger.Info("narration complete", "intervals", len(rewritten), "elapsed", time.Since(start).Round(time.Millisecond))

	return Result{
		Plan:      plan,
		Intervals: rewritten,
		Segments:  narration.Finalize(rewritten),
	}, nil
}
