package digest

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func threadWithPosts(no int64, n int) Thread {
	posts := make([]Post, n)
	for i := range posts {
		posts[i] = Post{No: no*1000 + int64(i), Com: "reply text"}
	}
	return Thread{No: no, Com: "op", Posts: posts}
}

func TestAnalyze_SampledThreadScenario(t *testing.T) {
	t.Parallel()

	stub := &stubCompleter{
		summary: func(CompletionRequest) (string, error) {
			return "HEADLINE: Board Argues About Nothing\nARTICLE: A poster wrote \"reply text\".", nil
		},
		classify: func(CompletionRequest, int) (string, error) { return "2/3", nil },
	}
	opts := DefaultOptions()
	a, err := NewAnalyzer(stub, opts, WithRand(rand.New(rand.NewPCG(1, 1))), WithClock(fixedClock))
	require.NoError(t, err)

	rec, err := a.Analyze(context.Background(), threadWithPosts(42, 10))
	require.NoError(t, err)

	require.Equal(t, int64(42), rec.ThreadID)
	require.Equal(t, "Board Argues About Nothing", rec.Headline)
	require.Equal(t, `A poster wrote "reply text".`, rec.Article)
	require.Equal(t, ClassificationStats{AnalyzedComments: 3, FlaggedComments: 2, Percentage: 66.67}, rec.Stats)
	require.Equal(t, RecordMetadata{TotalPosts: 10, SampledPosts: 3, GeneratedAt: fixedNow.UnixMilli()}, rec.Metadata)

	require.Len(t, stub.classificationCalls(), 1)
	summaries := stub.summaryCalls()
	require.Len(t, summaries, 1)
	require.Equal(t, opts.Temperature, summaries[0].Temperature)
	require.Equal(t, ClassificationTemperature, stub.classificationCalls()[0].Temperature)
}

func TestAnalyze_SummaryFailureFailsThread(t *testing.T) {
	t.Parallel()

	stub := &stubCompleter{summary: func(CompletionRequest) (string, error) { return "", errStubUnavailable }}
	a, err := NewAnalyzer(stub, DefaultOptions())
	require.NoError(t, err)

	_, err = a.Analyze(context.Background(), threadWithPosts(7, 5))
	require.ErrorIs(t, err, errStubUnavailable)

	var te *ThreadError
	require.True(t, errors.As(err, &te))
	require.Equal(t, int64(7), te.ThreadID)
	require.Equal(t, StageSummarized, te.Stage)
	require.Empty(t, stub.classificationCalls())
}

func TestAnalyze_MalformedSummaryUsesSentinels(t *testing.T) {
	t.Parallel()

	stub := &stubCompleter{summary: func(CompletionRequest) (string, error) { return "Sorry, no.", nil }}
	a, err := NewAnalyzer(stub, DefaultOptions())
	require.NoError(t, err)

	rec, err := a.Analyze(context.Background(), threadWithPosts(8, 4))
	require.NoError(t, err)
	require.Equal(t, UntitledHeadline, rec.Headline)
	require.Equal(t, EmptyArticle, rec.Article)
}

func TestAnalyze_ClassificationFailuresNeverEscalate(t *testing.T) {
	t.Parallel()

	stub := &stubCompleter{classify: func(CompletionRequest, int) (string, error) { return "", errStubUnavailable }}
	opts := DefaultOptions()
	opts.AnalysisPercentage = 100
	a, err := NewAnalyzer(stub, opts)
	require.NoError(t, err)

	rec, err := a.Analyze(context.Background(), threadWithPosts(9, 25))
	require.NoError(t, err)
	require.Len(t, stub.classificationCalls(), 2)
	require.Equal(t, ClassificationStats{}, rec.Stats)
	require.Equal(t, 25, rec.Metadata.SampledPosts)
}

func TestAnalyze_EmptyThread(t *testing.T) {
	t.Parallel()

	stub := &stubCompleter{}
	a, err := NewAnalyzer(stub, DefaultOptions())
	require.NoError(t, err)

	rec, err := a.Analyze(context.Background(), Thread{No: 1})
	require.NoError(t, err)
	require.Empty(t, stub.calls)
	require.Equal(t, UntitledHeadline, rec.Headline)
	require.Equal(t, EmptyArticle, rec.Article)
	require.Zero(t, rec.Stats.Percentage)
	require.Zero(t, rec.Metadata.SampledPosts)
}

func TestOptionsValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultOptions().Validate())

	for name, mutate := range map[string]func(*Options){
		"no model":         func(o *Options) { o.Model = " " },
		"zero percentage":  func(o *Options) { o.AnalysisPercentage = 0 },
		"over 100":         func(o *Options) { o.AnalysisPercentage = 101 },
		"negative temp":    func(o *Options) { o.Temperature = -0.1 },
		"zero batch":       func(o *Options) { o.ClassificationBatchSize = 0 },
		"missing criteria": func(o *Options) { o.Criterion = Criterion{} },
	} {
		o := DefaultOptions()
		mutate(&o)
		require.Error(t, o.Validate(), name)
	}
}
