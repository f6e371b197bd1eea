package digest

import (
	"context"
	"log/slog"
)

// DefaultClassificationBatchSize is the number of comments per classification request.
const DefaultClassificationBatchSize = 20

// ChunkStatus is the outcome of one classification chunk.
type ChunkStatus string

const (
	// ChunkOK: the model's pair matched the chunk size.
	ChunkOK ChunkStatus = "ok"
	// ChunkCorrected: the model reported a different total; the real chunk size was used.
	ChunkCorrected ChunkStatus = "corrected"
	// ChunkInconclusive: no X/Y pair in the response; counted as zero flagged over the chunk size.
	ChunkInconclusive ChunkStatus = "inconclusive"
	// ChunkSkipped: the completion call failed; the chunk contributes nothing.
	ChunkSkipped ChunkStatus = "skipped"
)

// ChunkResult records what one chunk contributed to the thread tally.
type ChunkResult struct {
	Index    int
	Size     int
	Reported ClassificationCount
	Flagged  int
	Analyzed int
	Status   ChunkStatus
	Err      error
}

// ClassificationTally is the sum over all chunks of a thread.
type ClassificationTally struct {
	Flagged  int
	Analyzed int
	Chunks   []ChunkResult
}

// Stats converts the tally into record stats.
func (t ClassificationTally) Stats() ClassificationStats {
	return NewClassificationStats(t.Flagged, t.Analyzed)
}

// Skipped counts chunks that failed outright.
func (t ClassificationTally) Skipped() int {
	n := 0
	for _, c := range t.Chunks {
		if c.Status == ChunkSkipped {
			n++
		}
	}
	return n
}

// SplitChunks partitions texts sequentially into chunks of at most size items.
func SplitChunks(texts []string, size int) [][]string {
	if size <= 0 {
		size = DefaultClassificationBatchSize
	}
	var out [][]string
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		out = append(out, texts[start:end])
	}
	return out
}

// Classifier counts flagged comments one chunk at a time.
type Classifier struct {
	Completer Completer
	Model     string
	BatchSize int
	Criterion Criterion
	Logger    *slog.Logger
}

// Classify issues one request per chunk, strictly in order. A failed chunk is skipped and never
// aborts the thread. The error is non-nil only when ctx was cancelled, in which case the tally is
// incomplete and must not be recorded.
func (c Classifier) Classify(ctx context.Context, threadID int64, texts []string) (ClassificationTally, error) {
	logger := loggerOrDefault(c.Logger)
	var tally ClassificationTally

	for i, chunk := range SplitChunks(texts, c.BatchSize) {
		if err := ctx.Err(); err != nil {
			return tally, err
		}

		res := ChunkResult{Index: i, Size: len(chunk)}
		prompt := BuildClassificationPrompt(chunk, c.Criterion)
		text, err := c.Completer.Complete(ctx, prompt.Request(c.Model))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return tally, ctxErr
			}
			res.Status = ChunkSkipped
			res.Err = err
			logger.Error("classification chunk failed; skipping",
				"thread_id", threadID, "chunk_index", i, "chunk_size", len(chunk), "error", err)
			tally.Chunks = append(tally.Chunks, res)
			continue
		}

		applyChunkCount(&res, text)
		if res.Status == ChunkCorrected {
			logger.Warn("classification count mismatch; using actual chunk size",
				"thread_id", threadID, "chunk_index", i,
				"reported_total", res.Reported.Analyzed, "actual_total", res.Size)
		}
		if res.Status == ChunkInconclusive {
			logger.Warn("classification response had no count; treating chunk as unflagged",
				"thread_id", threadID, "chunk_index", i, "chunk_size", res.Size)
		}

		tally.Flagged += res.Flagged
		tally.Analyzed += res.Analyzed
		tally.Chunks = append(tally.Chunks, res)
	}
	return tally, nil
}

// applyChunkCount trusts the chunk size over the model's self-reported total.
func applyChunkCount(res *ChunkResult, text string) {
	count, ok := DecodeClassification(text)
	if !ok {
		res.Reported = InconclusiveCount
		res.Status = ChunkInconclusive
		res.Analyzed = res.Size
		res.Flagged = 0
		return
	}

	res.Reported = count
	res.Status = ChunkOK
	if count.Analyzed != res.Size {
		res.Status = ChunkCorrected
	}
	res.Analyzed = res.Size
	res.Flagged = min(max(count.Flagged, 0), res.Size)
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
