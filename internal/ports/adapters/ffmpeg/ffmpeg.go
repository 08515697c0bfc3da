package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Adapter shells out to the ffprobe binary shipped with ffmpeg.
type Adapter struct {
	ffprobe string
}

func New(ffprobePath string) *Adapter {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Adapter{ffprobe: ffprobePath}
}

// ProbeDuration returns the container duration reported by ffprobe.
func (a *Adapter) ProbeDuration(ctx context.Context, inMP4 string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inMP4,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w\n%s", err, string(b))
	}
	return parseDuration(string(b))
}

func parseDuration(out string) (time.Duration, error) {
	s := strings.TrimSpace(out)
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	if sec < 0 {
		return 0, fmt.Errorf("parse duration %q: negative", s)
	}
	return time.Duration(sec * float64(time.Second)), nil
}
