package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forPelevin/adscribe/internal/domain/gaps"
	"github.com/forPelevin/adscribe/internal/pipeline"
	"github.com/forPelevin/adscribe/internal/ports/adapters/blobstore"
	"github.com/forPelevin/adscribe/internal/ports/adapters/rabbitmq"
)

func newWorkerCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume narration jobs from RabbitMQ and publish results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return worker(cmd, logger)
		},
	}
	cmd.Flags().String("jobs", pipeline.DefaultJobQueue, "Queue to consume jobs from")
	cmd.Flags().String("results", pipeline.DefaultResultQueue, "Queue to publish results to")
	cmd.Flags().String("out", "", "Also store each job's blobs under this directory")
	cmd.Flags().Duration("min-gap", gaps.DefaultMinDuration, "Drop silent intervals this long or shorter")
	cmd.Flags().Float64("wps", gaps.DefaultWordsPerSecond, "Narration words per second")
	addTuningFlags(cmd)
	return cmd
}

func worker(cmd *cobra.Command, logger *slog.Logger) error {
	f := cmd.Flags()
	jobsQueue, _ := f.GetString("jobs")
	resultsQueue, _ := f.GetString("results")
	outDir, _ := f.GetString("out")
	minGap, _ := f.GetDuration("min-gap")
	wps, _ := f.GetFloat64("wps")
	retry, carryRaw := tuningFromFlags(f)

	amqpURL := os.Getenv("RABBITMQ_URL")
	if amqpURL == "" {
		return errors.New("RABBITMQ_URL is required (set it in .env)")
	}
	if minGap < 0 || wps <= 0 {
		return errors.New("config: --min-gap must be >= 0 and --wps > 0")
	}
	if retry.MaxAttempts < 0 || retry.BaseDelay < 0 {
		return errors.New("config: retry settings must be >= 0")
	}
	rw, provider, err := pipeline.NewRewriter(llmConfigFromEnv())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Info("llm provider", "provider", provider)

	consumer, err := rabbitmq.NewConsumer(amqpURL, jobsQueue)
	if err != nil {
		return err
	}
	defer consumer.Close()
	producer, err := rabbitmq.NewProducer(amqpURL)
	if err != nil {
		return err
	}
	defer producer.Close()

	cfg := pipeline.WorkerConfig{
		Consumer:       consumer,
		Publisher:      producer,
		ResultQueue:    resultsQueue,
		Rewriter:       rw,
		Retry:          retry,
		CarryRaw:       carryRaw,
		MinGap:         &minGap,
		WordsPerSecond: wps,
		Logger:         logger.With("queue", jobsQueue),
	}
	if outDir != "" {
		cfg.Store = blobstore.New(outDir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return pipeline.NewWorker(cfg).Run(ctx)
}
