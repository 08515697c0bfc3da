package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/forPelevin/adscribe/internal/types"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present
	logger := configureLogger(os.Stderr)

	root := &cobra.Command{
		Use:          "adscribe",
		Short:        "Write audio-description narration for the silent parts of a video",
		SilenceUsage: true,
	}
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	root.AddCommand(newRunCmd(logger), newWorkerCmd(logger), newListCmd(), newResaveCmd(logger))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, describe(err))
		os.Exit(1)
	}
}

// describe adds a short hint to the errors a user can act on.
func describe(err error) string {
	var (
		pe *types.ParseError
		se *types.ShapeError
		te *types.RewriteTransientError
		ce *types.CancelledError
	)
	switch {
	case errors.As(err, &ce):
		return fmt.Sprintf("cancelled: %d of %d intervals were narrated", ce.Completed, ce.Total)
	case errors.As(err, &te):
		return fmt.Sprintf("error: %v (the provider kept rate limiting; retry later)", err)
	case errors.As(err, &pe), errors.As(err, &se):
		return fmt.Sprintf("error: invalid analysis result: %v", err)
	default:
		return "error: " + err.Error()
	}
}
