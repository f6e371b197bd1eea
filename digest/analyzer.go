package digest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Stage is a step of the per-thread state machine. Threads move forward only.
type Stage string

const (
	StageSampled    Stage = "sampled"
	StageSummarized Stage = "summarized"
	StageClassified Stage = "classified"
	StageComplete   Stage = "complete"
)

// ThreadError is a thread-level failure. The job runner logs it and moves on.
type ThreadError struct {
	ThreadID int64
	Stage    Stage
	Err      error
}

func (e *ThreadError) Error() string {
	return fmt.Sprintf("thread %d: %s: %v", e.ThreadID, e.Stage, e.Err)
}

func (e *ThreadError) Unwrap() error { return e.Err }

// Analyzer produces one AnalysisRecord per thread: sample, summarize, classify.
type Analyzer struct {
	completer Completer
	opts      Options
	rng       *rand.Rand
	logger    *slog.Logger
	now       func() time.Time
}

// AnalyzerOption customizes an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithRand makes sampling use rng instead of the global source.
func WithRand(rng *rand.Rand) AnalyzerOption {
	return func(a *Analyzer) { a.rng = rng }
}

// WithLogger sets the analyzer's logger.
func WithLogger(l *slog.Logger) AnalyzerOption {
	return func(a *Analyzer) { a.logger = l }
}

// WithClock overrides time.Now for record timestamps.
func WithClock(now func() time.Time) AnalyzerOption {
	return func(a *Analyzer) { a.now = now }
}

func NewAnalyzer(c Completer, opts Options, options ...AnalyzerOption) (*Analyzer, error) {
	if c == nil {
		return nil, errors.New("NewAnalyzer: completer is nil")
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("NewAnalyzer: %w", err)
	}
	a := &Analyzer{completer: c, opts: opts, now: time.Now}
	for _, o := range options {
		o(a)
	}
	a.logger = loggerOrDefault(a.logger)
	return a, nil
}

// Analyze runs the pipeline for a single thread. A failed summary call fails the thread; classification
// failures are absorbed per chunk.
func (a *Analyzer) Analyze(ctx context.Context, thread Thread) (AnalysisRecord, error) {
	logger := a.logger.With("thread_id", thread.No)

	sampled := SamplePosts(thread.Posts, a.opts.AnalysisPercentage, a.rng)
	texts := PostTexts(sampled)
	logger.Debug("thread stage", "stage", StageSampled, "total_posts", len(thread.Posts), "sampled_posts", len(sampled), "texts", len(texts))

	summary, err := a.summarize(ctx, texts)
	if err != nil {
		return AnalysisRecord{}, &ThreadError{ThreadID: thread.No, Stage: StageSummarized, Err: err}
	}
	if summary.Fallback {
		logger.Warn("summary response incomplete; using placeholders", "headline", summary.Headline)
	}
	logger.Debug("thread stage", "stage", StageSummarized)

	classifier := Classifier{
		Completer: a.completer,
		Model:     a.opts.Model,
		BatchSize: a.opts.ClassificationBatchSize,
		Criterion: a.opts.Criterion,
		Logger:    logger,
	}
	tally, err := classifier.Classify(ctx, thread.No, texts)
	if err != nil {
		return AnalysisRecord{}, &ThreadError{ThreadID: thread.No, Stage: StageClassified, Err: err}
	}
	logger.Debug("thread stage", "stage", StageClassified, "chunks", len(tally.Chunks), "skipped_chunks", tally.Skipped())

	rec := AnalysisRecord{
		ThreadID: thread.No,
		Headline: summary.Headline,
		Article:  summary.Article,
		Stats:    tally.Stats(),
		Metadata: RecordMetadata{
			TotalPosts:   len(thread.Posts),
			SampledPosts: len(sampled),
			GeneratedAt:  epochMillis(a.now()),
		},
	}
	logger.Debug("thread stage", "stage", StageComplete)
	return rec, nil
}

// summarize skips the call when nothing in the sample has text.
func (a *Analyzer) summarize(ctx context.Context, texts []string) (Summary, error) {
	if len(texts) == 0 {
		return summaryWithFallback(DecodedSummary{}), nil
	}
	prompt := BuildSummaryPrompt(texts, a.opts.Temperature)
	text, err := a.completer.Complete(ctx, prompt.Request(a.opts.Model))
	if err != nil {
		return Summary{}, err
	}
	return ParseSummary(text), nil
}
