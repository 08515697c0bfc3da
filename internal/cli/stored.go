package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/forPelevin/adscribe/internal/domain/subtitles"
	"github.com/forPelevin/adscribe/internal/pipeline"
	"github.com/forPelevin/adscribe/internal/ports/adapters/blobstore"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the videos with a stored narration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			outDir, _ := cmd.Flags().GetString("out")
			prefixes, err := pipeline.StoredVideos(cmd.Context(), blobstore.New(outDir))
			if err != nil {
				return err
			}
			for _, p := range prefixes {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
	cmd.Flags().String("out", "out", "Output directory (blob store root)")
	return cmd
}

func newResaveCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resave <prefix>",
		Short: "Re-sort a hand-edited narration record and store it again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outDir, _ := cmd.Flags().GetString("out")
			assPath, _ := cmd.Flags().GetString("ass")
			return resave(cmd.Context(), logger, outDir, args[0], assPath)
		},
	}
	cmd.Flags().String("out", "out", "Output directory (blob store root)")
	cmd.Flags().String("ass", "", "Also rewrite the ASS description track")
	return cmd
}

func resave(ctx context.Context, logger *slog.Logger, outDir, prefix, assPath string) error {
	st, err := pipeline.Resave(ctx, blobstore.New(outDir), prefix)
	if err != nil {
		return err
	}
	logger.Info("narration resaved", "prefix", prefix, "title", st.Details.Title, "segments", len(st.Segments))
	if assPath == "" {
		return nil
	}
	ass, err := subtitles.RenderDescriptionASS(st.Segments)
	if err != nil {
		return err
	}
	return pipeline.WriteTrack(assPath, ass)
}
