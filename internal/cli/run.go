package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/forPelevin/adscribe/internal/domain/gaps"
	"github.com/forPelevin/adscribe/internal/domain/narration"
	"github.com/forPelevin/adscribe/internal/pipeline"
)

func newRunCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <analysis.json>",
		Short: "Narrate one video analysis result and store the narration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, logger, args[0])
		},
	}

	// Visible flags
	cmd.Flags().String("out", "out", "Output directory (blob store root)")
	cmd.Flags().String("title", "", "Video title")
	cmd.Flags().String("context", "", "Extra metadata about the video (names, setting)")
	cmd.Flags().String("style", "", "Narration writing style")
	cmd.Flags().String("video", "", "Source video; its duration extends the trailing silent gap")
	cmd.Flags().String("ass", "", "Also write the narration as an ASS description track")
	cmd.Flags().Duration("min-gap", gaps.DefaultMinDuration, "Drop silent intervals this long or shorter")
	cmd.Flags().Float64("wps", gaps.DefaultWordsPerSecond, "Narration words per second")

	addTuningFlags(cmd)
	return cmd
}

// addTuningFlags registers the hidden rewrite tuning flags shared by run and worker.
func addTuningFlags(cmd *cobra.Command) {
	def := narration.DefaultRetryPolicy()
	cmd.Flags().Int("retry-max", def.MaxAttempts, "Attempts per interval while rate limited")
	cmd.Flags().Duration("retry-delay", def.BaseDelay, "First back-off delay after a rate limit")
	cmd.Flags().Bool("carry-raw", false, "Pass a failed interval's raw text on as previous description")
	for _, name := range []string{"retry-max", "retry-delay", "carry-raw"} {
		_ = cmd.Flags().MarkHidden(name)
	}
}

func tuningFromFlags(f *pflag.FlagSet) (retry narration.RetryPolicy, carryRaw bool) {
	retry = narration.DefaultRetryPolicy()
	retry.MaxAttempts, _ = f.GetInt("retry-max")
	retry.BaseDelay, _ = f.GetDuration("retry-delay")
	carryRaw, _ = f.GetBool("carry-raw")
	return retry, carryRaw
}

func run(cmd *cobra.Command, logger *slog.Logger, input string) error {
	f := cmd.Flags()
	outDir, _ := f.GetString("out")
	title, _ := f.GetString("title")
	meta, _ := f.GetString("context")
	style, _ := f.GetString("style")
	video, _ := f.GetString("video")
	assPath, _ := f.GetString("ass")
	minGap, _ := f.GetDuration("min-gap")
	wps, _ := f.GetFloat64("wps")
	retry, carryRaw := tuningFromFlags(f)

	absIn, err := filepath.Abs(input)
	if err != nil {
		return err
	}
	if video != "" {
		if video, err = filepath.Abs(video); err != nil {
			return err
		}
	}

	cfg := pipeline.Config{
		AnalysisPath:   absIn,
		OutDir:         outDir,
		Title:          title,
		Context:        meta,
		NarrationStyle: style,
		MinGap:         &minGap,
		WordsPerSecond: wps,
		Retry:          retry,
		CarryRaw:       carryRaw,
		VideoPath:      video,
		ASSPath:        assPath,

		FFprobePath: getenvDefault("FFPROBE_PATH", "ffprobe"),

		LLM:    llmConfigFromEnv(),
		Logger: logger,
	}
	if wps <= 0 {
		return fmt.Errorf("config: --wps must be > 0")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 3*time.Hour)
	defer cancel()

	out, err := pipeline.Run(ctx, cfg)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out.Segments)
}

func llmConfigFromEnv() pipeline.LLMConfig {
	return pipeline.LLMConfig{
		Provider: getenvDefault("ADSCRIBE_LLM_PROVIDER", pipeline.ProviderAuto),

		OpenRouterAPIKey:       os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:        os.Getenv("OPENROUTER_MODEL"),
		OpenRouterBaseURL:      getenvDefault("OPENROUTER_BASE_URL", "https://openrouter.ai"),
		OpenRouterAllowedHosts: splitList(os.Getenv("OPENROUTER_ALLOWED_HOSTS")),

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:   os.Getenv("OPENAI_MODEL"),

		AzureEndpoint:   os.Getenv("AZURE_OPENAI_ENDPOINT"),
		AzureAPIKey:     os.Getenv("AZURE_OPENAI_API_KEY"),
		AzureDeployment: os.Getenv("AZURE_OPENAI_DEPLOYMENT"),
		AzureAPIVersion: os.Getenv("AZURE_OPENAI_API_VERSION"),
	}
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
