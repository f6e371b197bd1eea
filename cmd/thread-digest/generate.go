package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/theimaginaryfoundation/thread-digest/digest"
	"github.com/theimaginaryfoundation/thread-digest/internal/logging"
)

func (a *app) generateCmd() *cobra.Command {
	def := defaultConfig()
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate articles and classification stats for a batch of threads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if cfg.APIKey == "" {
				return errors.New("missing --api-key (or OPENAI_API_KEY)")
			}
			opts, err := cfg.Options()
			if err != nil {
				return err
			}
			logger := logging.New("generate")

			threads, err := a.loadThreads(cmd.Context())
			if err != nil {
				return err
			}
			if len(threads) == 0 {
				logger.Warn("no threads to analyze", "threads", cfg.Threads, "archive", cfg.ArchivePath())
			}

			completer, err := a.newCompleter(cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			done := 0
			batch, err := digest.GenerateArticles(cmd.Context(), digest.JobConfig{
				DataDir:   cfg.DataDir,
				Completer: completer,
				Options:   opts,
				Logger:    logger,
				Pretty:    cfg.Pretty,
				Lock:      cfg.Lock,
			}, threads, func(threadID int64) {
				done++
				fmt.Fprintf(out, "analyzed thread %d (%d new this run)\n", threadID, done)
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "wrote %d articles to %s (average %.2f%% %s)\n",
				batch.Stats.ThreadCount, filepath.Join(cfg.DataDir, digest.OutputFileName), batch.Stats.AverageFlaggedPercentage, opts.Criterion.Name)
			return nil
		},
	}

	f := cmd.Flags()
	addThreadSourceFlags(cmd)
	f.String("model", def.Model, "completion model")
	f.String("api-key", "", "completion API key (default: $OPENAI_API_KEY)")
	f.String("base-url", "", "completion API base URL (default: OpenAI)")
	f.Float64("analysis-percentage", def.AnalysisPercentage, "percent of each thread's posts to sample, in (0,100]")
	f.Float64("temperature", def.Temperature, "summary temperature, in [0,2]")
	f.Int("classification-batch-size", def.ClassificationBatchSize, "posts per classification request")
	f.String("criterion", def.Criterion, "content criterion to count")
	f.String("criterion-definition", "", "definition the model applies for a custom criterion")
	f.Bool("lock", def.Lock, "hold <data-dir>/progress.lock while running")
	return cmd
}
