package digest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ThreadAnalyzer turns one thread into one record. *Analyzer is the production implementation.
type ThreadAnalyzer interface {
	Analyze(ctx context.Context, thread Thread) (AnalysisRecord, error)
}

// ProgressFunc is called after each newly analyzed and checkpointed thread.
type ProgressFunc func(threadID int64)

// Runner processes threads sequentially, checkpointing after each one, and commits the batch at the end.
// One Runner per data directory at a time.
type Runner struct {
	analyzer ThreadAnalyzer
	store    *Store
	logger   *slog.Logger
	now      func() time.Time
	runID    string
	lock     bool
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithRunnerLogger sets the runner's logger.
func WithRunnerLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// WithRunnerClock overrides time.Now for batch timestamps.
func WithRunnerClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// WithRunID sets the run id used in logs and the lock file. Defaults to a random UUID.
func WithRunID(id string) RunnerOption {
	return func(r *Runner) { r.runID = id }
}

// WithJobLock makes Run hold progress.lock for its duration.
func WithJobLock(enabled bool) RunnerOption {
	return func(r *Runner) { r.lock = enabled }
}

func NewRunner(a ThreadAnalyzer, s *Store, options ...RunnerOption) (*Runner, error) {
	if a == nil {
		return nil, errors.New("NewRunner: analyzer is nil")
	}
	if s == nil {
		return nil, errors.New("NewRunner: store is nil")
	}
	r := &Runner{analyzer: a, store: s, now: time.Now}
	for _, o := range options {
		o(r)
	}
	if r.runID == "" {
		r.runID = uuid.NewString()
	}
	r.logger = loggerOrDefault(r.logger).With("run_id", r.runID)
	return r, nil
}

func (r *Runner) RunID() string { return r.runID }

// Run analyzes every thread not already in the checkpoint and commits the full batch.
//
// Thread failures are logged and skipped. Cancelling ctx stops the job between threads: the
// checkpoint is kept, nothing is committed and ctx.Err() is returned. A commit failure is returned
// wrapped in ErrCommitOutput.
func (r *Runner) Run(ctx context.Context, threads []Thread, onProgress ProgressFunc) (BatchResult, error) {
	if r.lock {
		release, err := r.store.AcquireLock(r.runID)
		if err != nil {
			return BatchResult{}, err
		}
		defer release()
	}

	records := r.store.LoadCheckpoint()
	pending := pendingThreads(threads, records)
	r.logger.Info("analysis job starting",
		"threads", len(threads), "completed", len(records), "remaining", len(pending))

	start := time.Now()
	failed := 0
	for i, thread := range pending {
		if err := ctx.Err(); err != nil {
			r.logger.Warn("analysis job interrupted; checkpoint kept",
				"completed", len(records), "remaining", len(pending)-i)
			return BatchResult{}, err
		}

		rec, err := r.analyzer.Analyze(ctx, thread)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				r.logger.Warn("analysis job interrupted; checkpoint kept",
					"completed", len(records), "remaining", len(pending)-i)
				return BatchResult{}, ctxErr
			}
			failed++
			r.logger.Error("thread analysis failed; skipping", "thread_id", thread.No, "error", err)
			continue
		}

		records = append(records, rec)
		if err := r.store.SaveCheckpoint(records); err != nil {
			r.logger.Warn("checkpoint not saved", "thread_id", thread.No, "error", err)
		}
		if onProgress != nil {
			onProgress(thread.No)
		}
		r.logger.Info("thread analyzed",
			"thread_id", thread.No, "done", i+1, "of", len(pending),
			"percentage", rec.Stats.Percentage, "elapsed", time.Since(start).Round(time.Second))
	}

	batch := BatchResult{
		Records:   records,
		Stats:     ComputeBatchStats(records, r.now()),
		Timestamp: epochMillis(r.now()),
	}

	if err := r.store.CommitOutput(batch); err != nil {
		r.logger.Error("output commit failed; checkpoint kept", "path", r.store.OutputPath(), "error", err)
		return BatchResult{}, err
	}
	if err := r.store.DeleteCheckpoint(); err != nil {
		r.logger.Warn("checkpoint not deleted", "path", r.store.CheckpointPath(), "error", err)
	}

	r.logger.Info("analysis job complete",
		"records", batch.Stats.ThreadCount, "failed", failed,
		"analyzed_posts", batch.Stats.TotalAnalyzedPosts,
		"average_percentage", batch.Stats.AverageFlaggedPercentage,
		"output", r.store.OutputPath())
	return batch, nil
}

// pendingThreads drops threads already recorded and repeated thread ids, keeping input order.
func pendingThreads(threads []Thread, done []AnalysisRecord) []Thread {
	seen := make(map[int64]struct{}, len(done)+len(threads))
	for _, rec := range done {
		seen[rec.ThreadID] = struct{}{}
	}
	out := make([]Thread, 0, len(threads))
	for _, t := range threads {
		if _, ok := seen[t.No]; ok {
			continue
		}
		seen[t.No] = struct{}{}
		out = append(out, t)
	}
	return out
}

// ComputeBatchStats aggregates records. Threads with no analyzed comments are left out of the average.
func ComputeBatchStats(records []AnalysisRecord, now time.Time) BatchStats {
	stats := BatchStats{
		ThreadCount: len(records),
		GeneratedAt: epochMillis(now),
	}
	sum := 0.0
	counted := 0
	for _, rec := range records {
		stats.TotalAnalyzedPosts += rec.Metadata.SampledPosts
		if rec.Stats.AnalyzedComments > 0 {
			sum += rec.Stats.Percentage
			counted++
		}
	}
	if counted > 0 {
		stats.AverageFlaggedPercentage = round2(sum / float64(counted))
	}
	return stats
}

// JobConfig wires a complete analysis job.
type JobConfig struct {
	DataDir   string
	Completer Completer
	Options   Options
	Logger    *slog.Logger
	Pretty    bool
	Lock      bool
}

// GenerateArticles analyzes threads into articles.json under cfg.DataDir, resuming from any
// checkpoint left there by an interrupted run.
func GenerateArticles(ctx context.Context, cfg JobConfig, threads []Thread, onProgress ProgressFunc) (BatchResult, error) {
	logger := loggerOrDefault(cfg.Logger)
	analyzer, err := NewAnalyzer(cfg.Completer, cfg.Options, WithLogger(logger))
	if err != nil {
		return BatchResult{}, err
	}
	store, err := NewStore(cfg.DataDir, WithPrettyOutput(cfg.Pretty), WithStoreLogger(logger))
	if err != nil {
		return BatchResult{}, err
	}
	runner, err := NewRunner(analyzer, store, WithRunnerLogger(logger), WithJobLock(cfg.Lock))
	if err != nil {
		return BatchResult{}, fmt.Errorf("GenerateArticles: %w", err)
	}
	return runner.Run(ctx, threads, onProgress)
}
