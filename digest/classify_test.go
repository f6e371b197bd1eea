package digest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitChunks(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		n, size int
		want    []int
	}{
		{n: 0, size: 20, want: nil},
		{n: 3, size: 20, want: []int{3}},
		{n: 20, size: 20, want: []int{20}},
		{n: 45, size: 20, want: []int{20, 20, 5}},
		{n: 5, size: 0, want: []int{5}},
	} {
		var got []int
		for _, c := range SplitChunks(textsN(tt.n), tt.size) {
			got = append(got, len(c))
		}
		require.Equal(t, tt.want, got, "n=%d size=%d", tt.n, tt.size)
	}
}

func TestClassify_OneCallPerChunkAndFullCount(t *testing.T) {
	t.Parallel()

	for _, n := range []int{1, 19, 20, 21, 40, 87} {
		stub := &stubCompleter{}
		c := Classifier{Completer: stub, Model: "m", BatchSize: 20, Criterion: DefaultCriterion()}

		tally, err := c.Classify(context.Background(), 1, textsN(n))
		require.NoError(t, err)
		require.Len(t, stub.classificationCalls(), (n+19)/20, "n=%d", n)
		require.Equal(t, n, tally.Analyzed, "n=%d", n)
		require.Zero(t, tally.Flagged)
	}
}

func TestClassify_CountMismatchTrustsChunkSize(t *testing.T) {
	t.Parallel()

	stub := &stubCompleter{classify: func(req CompletionRequest, n int) (string, error) {
		return "4/25", nil
	}}
	c := Classifier{Completer: stub, Model: "m", BatchSize: 20, Criterion: DefaultCriterion()}

	tally, err := c.Classify(context.Background(), 9, textsN(30))
	require.NoError(t, err)
	require.Equal(t, 30, tally.Analyzed)
	require.Equal(t, 8, tally.Flagged)
	require.Len(t, tally.Chunks, 2)
	for _, ch := range tally.Chunks {
		require.Equal(t, ChunkCorrected, ch.Status)
		require.Equal(t, 25, ch.Reported.Analyzed)
		require.Equal(t, ch.Size, ch.Analyzed)
	}
	// Second chunk has 10 comments; 4 flagged stays within bounds.
	require.Equal(t, 10, tally.Chunks[1].Analyzed)
}

func TestClassify_FlaggedClampedToChunkSize(t *testing.T) {
	t.Parallel()

	stub := &stubCompleter{classify: func(CompletionRequest, int) (string, error) { return "9/9", nil }}
	c := Classifier{Completer: stub, Model: "m", BatchSize: 20, Criterion: DefaultCriterion()}

	tally, err := c.Classify(context.Background(), 1, textsN(3))
	require.NoError(t, err)
	require.Equal(t, 3, tally.Flagged)
	require.Equal(t, 3, tally.Analyzed)
}

func TestClassify_FailedChunkIsSkippedNotFatal(t *testing.T) {
	t.Parallel()

	calls := 0
	stub := &stubCompleter{classify: func(req CompletionRequest, n int) (string, error) {
		calls++
		if calls == 2 {
			return "", errStubUnavailable
		}
		return "1/" + itoa(n), nil
	}}
	c := Classifier{Completer: stub, Model: "m", BatchSize: 20, Criterion: DefaultCriterion()}

	tally, err := c.Classify(context.Background(), 1, textsN(50))
	require.NoError(t, err)
	require.Len(t, stub.classificationCalls(), 3)
	require.Equal(t, 30, tally.Analyzed) // 20 + 10, middle chunk skipped
	require.Equal(t, 2, tally.Flagged)
	require.Equal(t, 1, tally.Skipped())
	require.Equal(t, ChunkSkipped, tally.Chunks[1].Status)
	require.ErrorIs(t, tally.Chunks[1].Err, errStubUnavailable)
}

func TestClassify_InconclusiveResponseCountsChunkAsUnflagged(t *testing.T) {
	t.Parallel()

	stub := &stubCompleter{classify: func(CompletionRequest, int) (string, error) { return "I can't count these.", nil }}
	c := Classifier{Completer: stub, Model: "m", BatchSize: 20, Criterion: DefaultCriterion()}

	tally, err := c.Classify(context.Background(), 1, textsN(4))
	require.NoError(t, err)
	require.Equal(t, 4, tally.Analyzed)
	require.Zero(t, tally.Flagged)
	require.Equal(t, ChunkInconclusive, tally.Chunks[0].Status)
	require.Equal(t, InconclusiveCount, tally.Chunks[0].Reported)
}

func TestClassify_CancelledContextStops(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	stub := &stubCompleter{classify: func(req CompletionRequest, n int) (string, error) {
		cancel()
		return "", context.Canceled
	}}
	c := Classifier{Completer: stub, Model: "m", BatchSize: 20, Criterion: DefaultCriterion()}

	_, err := c.Classify(ctx, 1, textsN(60))
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, stub.classificationCalls(), 1)
}

func TestTallyStats(t *testing.T) {
	t.Parallel()

	require.Equal(t, ClassificationStats{AnalyzedComments: 3, FlaggedComments: 2, Percentage: 66.67},
		ClassificationTally{Flagged: 2, Analyzed: 3}.Stats())
	require.Equal(t, ClassificationStats{}, ClassificationTally{}.Stats())
}
