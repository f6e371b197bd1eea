// Package digest turns discussion threads into generated articles and content classification
// statistics, delegating language understanding to a text-completion service. Batch jobs checkpoint
// after every thread and commit their final output atomically.
package digest

import "time"

// Post is a single message within a thread.
type Post struct {
	No          int64  `json:"no" yaml:"no"`
	Com         string `json:"com,omitempty" yaml:"com,omitempty"`
	Country     string `json:"country,omitempty" yaml:"country,omitempty"`
	CountryName string `json:"country_name,omitempty" yaml:"country_name,omitempty"`
}

// Thread is a root post plus its replies. Read-only to the pipeline.
type Thread struct {
	No    int64  `json:"no" yaml:"no"`
	Com   string `json:"com,omitempty" yaml:"com,omitempty"`
	Posts []Post `json:"posts" yaml:"posts"`
}

// ClassificationStats holds the per-thread classification counts.
type ClassificationStats struct {
	AnalyzedComments int `json:"analyzedComments"`
	FlaggedComments  int `json:"antisemiticComments"`

	// Percentage is 100*Flagged/Analyzed rounded to two decimals, and 0 when nothing was analyzed.
	Percentage float64 `json:"percentage"`
}

// RecordMetadata describes how a record was produced.
type RecordMetadata struct {
	TotalPosts   int   `json:"totalPosts"`
	SampledPosts int   `json:"sampledPosts"`
	GeneratedAt  int64 `json:"generatedAt"` // epoch millis
}

// AnalysisRecord is the immutable per-thread result.
type AnalysisRecord struct {
	ThreadID int64               `json:"threadId"`
	Headline string              `json:"headline"`
	Article  string              `json:"article"`
	Stats    ClassificationStats `json:"stats"`
	Metadata RecordMetadata      `json:"metadata"`
}

// Checkpoint is the on-disk progress snapshot (progress.json).
type Checkpoint struct {
	Records   []AnalysisRecord `json:"articles"`
	Timestamp int64            `json:"timestamp"` // epoch millis
}

// BatchStats aggregates a finished batch.
type BatchStats struct {
	ThreadCount        int `json:"threadCount"`
	TotalAnalyzedPosts int `json:"totalAnalyzedPosts"`

	// AverageFlaggedPercentage is the mean of per-thread percentages over threads that had at least one
	// analyzed comment.
	AverageFlaggedPercentage float64 `json:"averageAntisemiticPercentage"`
	GeneratedAt              int64   `json:"generatedAt"` // epoch millis
}

// BatchResult is the final artifact (articles.json), written exactly once per job.
type BatchResult struct {
	Records   []AnalysisRecord `json:"articles"`
	Stats     BatchStats       `json:"batchStats"`
	Timestamp int64            `json:"timestamp"` // epoch millis
}

// NewClassificationStats derives the percentage from the counts.
func NewClassificationStats(flagged, analyzed int) ClassificationStats {
	s := ClassificationStats{AnalyzedComments: analyzed, FlaggedComments: flagged}
	if analyzed > 0 {
		s.Percentage = round2(100 * float64(flagged) / float64(analyzed))
	}
	return s
}

func epochMillis(t time.Time) int64 {
	return t.UnixMilli()
}
