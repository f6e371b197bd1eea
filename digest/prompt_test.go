package digest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanPostText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "plain", in: "  hello  ", want: "hello"},
		{name: "breaks", in: "line one<br>line two<br/>three", want: "line one\nline two\nthree"},
		{name: "quote link", in: `<a href="#p123" class="quotelink">&gt;&gt;123</a><br>reply`, want: ">>123\nreply"},
		{name: "entities", in: "it&#039;s &quot;fine&quot; &amp; ok", want: `it's "fine" & ok`},
		{name: "only markup", in: "<span></span><br>", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, CleanPostText(tt.in))
		})
	}
}

func TestPostTexts_DropsEmptyPosts(t *testing.T) {
	t.Parallel()

	posts := []Post{
		{No: 1, Com: "first"},
		{No: 2},
		{No: 3, Com: "   "},
		{No: 4, Com: "<br>"},
		{No: 5, Com: "second"},
	}
	require.Equal(t, []string{"first", "second"}, PostTexts(posts))
}

func TestBuildSummaryPrompt(t *testing.T) {
	t.Parallel()

	p := BuildSummaryPrompt([]string{"alpha", "multi\nline"}, 0.7)
	require.Equal(t, 0.7, p.Temperature)
	require.Contains(t, p.System, "HEADLINE:")
	require.Contains(t, p.System, "ARTICLE:")
	require.Contains(t, p.System, "verbatim")
	require.Contains(t, p.User, "1. alpha\n")
	require.Contains(t, p.User, `2. multi\nline`)

	req := p.Request("gpt-4o-mini")
	require.Equal(t, "gpt-4o-mini", req.Model)
	require.Len(t, req.Messages, 2)
	require.Equal(t, RoleSystem, req.Messages[0].Role)
	require.Equal(t, RoleUser, req.Messages[1].Role)
	require.Equal(t, 0.7, req.Temperature)
}

func TestBuildClassificationPrompt(t *testing.T) {
	t.Parallel()

	texts := []string{"a", "b", "c"}
	p := BuildClassificationPrompt(texts, DefaultCriterion())
	require.Equal(t, ClassificationTemperature, p.Temperature)
	require.Contains(t, p.System, "exactly 3 comments")
	require.Contains(t, p.System, "IHRA")
	require.True(t, strings.HasSuffix(p.User, "Answer in the form X/3."), p.User)
	require.Contains(t, p.User, "3. c\n")
}
