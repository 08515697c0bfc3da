package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/forPelevin/adscribe/internal/types"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Fatalf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestConfigureLogger_JSON(t *testing.T) {
	t.Setenv("ADSCRIBE_LOG_FORMAT", "json")
	t.Setenv("ADSCRIBE_LOG_LEVEL", "warn")
	var buf bytes.Buffer
	logger := configureLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "k", 1)
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.HasSuffix(strings.TrimSpace(out), "}") {
		t.Fatalf("expected json record, got %s", out)
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&types.CancelledError{Completed: 2, Total: 5, Err: errors.New("context canceled")}, "cancelled: 2 of 5"},
		{fmt.Errorf("run: %w", &types.RewriteTransientError{Index: 1, Attempts: 5, Err: types.ErrRateLimited}), "retry later"},
		{&types.ShapeError{Reason: "no known fields"}, "invalid analysis result"},
		{&types.ParseError{Kind: types.KindFormat, Input: "4s"}, "invalid analysis result"},
		{errors.New("boom"), "error: boom"},
	}
	for _, tt := range tests {
		if got := describe(tt.err); !strings.Contains(got, tt.want) {
			t.Fatalf("describe(%v) = %q, want substring %q", tt.err, got, tt.want)
		}
	}
}

func TestTuningFlags(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, cmd := range []*cobra.Command{newRunCmd(logger), newWorkerCmd(logger)} {
		t.Run(cmd.Name(), func(t *testing.T) {
			for _, name := range []string{"retry-max", "retry-delay", "carry-raw"} {
				fl := cmd.Flags().Lookup(name)
				if fl == nil || !fl.Hidden {
					t.Fatalf("flag %q missing or visible", name)
				}
			}
			if err := cmd.Flags().Parse([]string{"--carry-raw", "--retry-max", "2", "--retry-delay", "5s"}); err != nil {
				t.Fatal(err)
			}
			retry, carryRaw := tuningFromFlags(cmd.Flags())
			if !carryRaw || retry.MaxAttempts != 2 || retry.BaseDelay != 5*time.Second {
				t.Fatalf("unexpected tuning: %+v carryRaw=%v", retry, carryRaw)
			}
		})
	}
}

func TestListAndResave(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "soup-day")
	if err := os.MkdirAll(prefix, 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"details.json":  `{"title":"Soup Day","metadata":"","narrationStyle":""}`,
		"soup-day.json": `[{"startTime":"00:00:09","endTime":"00:00:12","description":"b"},{"startTime":"00:00:00","endTime":"00:00:06","description":"a"}]`,
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(prefix, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	var out bytes.Buffer
	list := newListCmd()
	list.SetOut(&out)
	list.SetArgs([]string{"--out", dir})
	if err := list.Execute(); err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.TrimSpace(out.String()) != "soup-day" {
		t.Fatalf("unexpected list output %q", out.String())
	}

	assPath := filepath.Join(dir, "tracks", "soup-day.ass")
	resaveCmd := newResaveCmd(slog.New(slog.NewTextHandler(io.Discard, nil)))
	resaveCmd.SetArgs([]string{"soup-day", "--out", dir, "--ass", assPath})
	if err := resaveCmd.Execute(); err != nil {
		t.Fatalf("resave: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(prefix, "soup-day.json"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Index(string(b), `"a"`) > strings.Index(string(b), `"b"`) {
		t.Fatalf("record not sorted: %s", b)
	}
	if _, err := os.Stat(assPath); err != nil {
		t.Fatalf("description track not written: %v", err)
	}
}
