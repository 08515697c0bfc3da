package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/forPelevin/adscribe/internal/domain/narration"
	"github.com/forPelevin/adscribe/internal/domain/subtitles"
	"github.com/forPelevin/adscribe/internal/ports"
	"github.com/forPelevin/adscribe/internal/ports/adapters/blobstore"
	"github.com/forPelevin/adscribe/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/adscribe/internal/types"
	"github.com/forPelevin/adscribe/internal/usecase"
)

// Blob names under a video prefix. The narration record is named after the
// prefix itself, see NarrationBlob.
const (
	AnalysisBlob = "analysis-result.json"
	DetailsBlob  = "details.json"
)

func NarrationBlob(prefix string) string { return prefix + ".json" }

type Config struct {
	AnalysisPath string
	// OutDir is the root of the blob store. If empty, defaults to "out".
	OutDir string

	Title          string
	Context        string
	NarrationStyle string

	// MinGap overrides gaps.DefaultMinDuration when set.
	MinGap         *time.Duration
	WordsPerSecond float64
	Retry          narration.RetryPolicy
	CarryRaw       bool

	// VideoPath enables the ffprobe duration check.
	VideoPath string
	ASSPath   string

	FFprobePath string

	LLM LLMConfig

	Logger *slog.Logger

	// Rewriter, Store and Video replace the adapters built from the fields above.
	Rewriter ports.Rewriter
	Store    ports.BlobStore
	Video    ports.VideoTool
}

func (c Config) Validate() error {
	if c.AnalysisPath == "" {
		return errors.New("analysis result path is empty")
	}
	if _, err := os.Stat(c.AnalysisPath); err != nil {
		return fmt.Errorf("stat analysis result: %w", err)
	}
	if c.MinGap != nil && *c.MinGap < 0 {
		return errors.New("min gap must be >= 0")
	}
	if c.WordsPerSecond < 0 {
		return errors.New("words per second must not be negative")
	}
	if c.Retry.MaxAttempts < 0 || c.Retry.BaseDelay < 0 {
		return errors.New("retry settings must be >= 0")
	}
	if c.VideoPath != "" {
		if _, err := os.Stat(c.VideoPath); err != nil {
			return fmt.Errorf("stat video: %w", err)
		}
	}
	if c.Rewriter != nil {
		return nil
	}
	return c.LLM.Validate()
}

// Output is what one run produced.
type Output struct {
	Prefix   string
	Segments []types.NarrationSegment
}

// Run narrates one analysis result file and stores the artifacts under
// OutDir/<prefix>/.
func Run(ctx context.Context, cfg Config) (Output, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	// adapters
	rw := cfg.Rewriter
	if rw == nil {
		var provider string
		var err error
		rw, provider, err = NewRewriter(cfg.LLM)
		if err != nil {
			return Output{}, fmt.Errorf("config: %w", err)
		}
		log.Info("llm provider", "provider", provider)
	}
	outDir := cfg.OutDir
	if outDir == "" {
		outDir = "out"
	}
	store := cfg.Store
	if store == nil {
		store = blobstore.New(outDir)
	}
	video := cfg.Video
	if video == nil {
		video = ffmpeg.New(cfg.FFprobePath)
	}

	raw, err := os.ReadFile(cfg.AnalysisPath)
	if err != nil {
		return Output{}, fmt.Errorf("read analysis result: %w", err)
	}

	var mediaDur time.Duration
	if cfg.VideoPath != "" {
		mediaDur, err = video.ProbeDuration(ctx, cfg.VideoPath)
		if err != nil {
			return Output{}, err
		}
		log.Info("media probed", "duration", mediaDur)
	}

	uc := usecase.New(usecase.Deps{
		Rewriter:          rw,
		Progress:          progressLogger(log),
		Logger:            log,
		Retry:             cfg.Retry,
		CarryRawOnFailure: cfg.CarryRaw,
	})
	res, err := uc.Process(ctx, usecase.Input{
		Raw:            raw,
		Title:          cfg.Title,
		Context:        cfg.Context,
		NarrationStyle: cfg.NarrationStyle,
		MinDuration:    cfg.MinGap,
		WordsPerSecond: cfg.WordsPerSecond,
		MediaDuration:  mediaDur,
	})
	if err != nil {
		return Output{}, err
	}

	prefix := videoPrefix(cfg.Title, cfg.AnalysisPath)
	details := types.Details{Title: cfg.Title, Metadata: cfg.Context, NarrationStyle: cfg.NarrationStyle}
	if err := storeRun(ctx, store, prefix, raw, res.Segments, details); err != nil {
		return Output{}, err
	}
	log.Info("narration stored", "prefix", prefix, "segments", len(res.Segments), "dir", filepath.Join(outDir, prefix))

	if cfg.ASSPath != "" {
		ass, err := subtitles.RenderDescriptionASS(res.Segments)
		if err != nil {
			return Output{}, err
		}
		if err := WriteTrack(cfg.ASSPath, ass); err != nil {
			return Output{}, err
		}
		log.Info("description track written", "path", cfg.ASSPath)
	}

	return Output{Prefix: prefix, Segments: res.Segments}, nil
}

// storeRun writes the raw analysis, the narration record and the details blob.
func storeRun(ctx context.Context, store ports.BlobStore, prefix string, raw []byte, segs []types.NarrationSegment, details types.Details) error {
	if segs == nil {
		segs = []types.NarrationSegment{}
	}
	if err := narration.SortSegments(segs); err != nil {
		return fmt.Errorf("sort narration: %w", err)
	}
	narrationJSON, err := json.MarshalIndent(segs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal narration: %w", err)
	}
	detailsJSON, err := json.MarshalIndent(details, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}
	blobs := []struct {
		name string
		data []byte
	}{
		{AnalysisBlob, raw},
		{NarrationBlob(prefix), narrationJSON},
		{DetailsBlob, detailsJSON},
	}
	for _, b := range blobs {
		if err := store.Put(ctx, prefix+"/"+b.name, b.data); err != nil {
			return fmt.Errorf("store %s: %w", b.name, err)
		}
	}
	return nil
}

func progressLogger(log *slog.Logger) ports.Progress {
	return ports.ProgressFunc(func(done, total int) {
		log.Info("interval done", "completed", done, "total", total)
	})
}

// videoPrefix names the blob prefix after the title, falling back to the
// analysis file name.
func videoPrefix(title, analysisPath string) string {
	if p := normalizePathSegment(title); p != "" {
		return p
	}
	name := strings.TrimSuffix(filepath.Base(analysisPath), filepath.Ext(analysisPath))
	if p := normalizePathSegment(name); p != "" {
		return p
	}
	return "video-" + hash(analysisPath)
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// WriteTrack writes a rendered description track, creating parent directories.
func WriteTrack(path, track string) error {
	return writeFile(path, []byte(track))
}

func writeFile(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// ensure adapters implement ports
var (
	_ ports.VideoTool = (*ffmpeg.Adapter)(nil)
	_ ports.BlobStore = (*blobstore.Dir)(nil)
)
