package digest

import (
	"regexp"
	"strconv"
	"strings"
)

// Sentinels substituted when a summary response is missing a field.
const (
	UntitledHeadline = "Untitled Thread"
	EmptyArticle     = "No content available"
)

// Summary is the generated headline/article pair.
type Summary struct {
	Headline string `json:"headline"`
	Article  string `json:"article"`

	// Fallback reports that at least one field is a sentinel.
	Fallback bool `json:"-"`
}

// DecodedSummary is what could be recovered from a model response. Empty fields were not found.
type DecodedSummary struct {
	Headline string
	Article  string
}

var (
	// A label at line start, optionally inside markdown emphasis or after heading/quote marks:
	// "HEADLINE:", "**ARTICLE:**", "## Headline:", "__Article__:".
	lineLabelRe = regexp.MustCompile(`(?im)^[ \t>#*_-]*(headline|article)[ \t]*[*_]*[ \t]*:(?:\*\*|__)?[ \t]*`)
	// An article label sharing the headline's line: "HEADLINE: X ARTICLE: Y".
	inlineArticleRe = regexp.MustCompile(`(?i)[ \t]+[*_]*article[ \t]*[*_]*[ \t]*:(?:\*\*|__)?[ \t]*`)
	countPairRe     = regexp.MustCompile(`(\d+)\s*/\s*(\d+)`)
)

// DecodeSummary extracts the HEADLINE:/ARTICLE: labeled fields. It never fails; missing fields come
// back empty. Emphasis is only removed around labels and around the headline; the article body is
// kept as written apart from surrounding whitespace.
func DecodeSummary(text string) DecodedSummary {
	s := strings.ReplaceAll(text, "\r\n", "\n")

	headlineAt, articleAt := -1, -1
	for _, m := range lineLabelRe.FindAllStringSubmatchIndex(s, -1) {
		switch strings.ToLower(s[m[2]:m[3]]) {
		case "headline":
			if headlineAt < 0 {
				headlineAt = m[1]
			}
		case "article":
			if articleAt < 0 {
				articleAt = m[1]
			}
		}
	}

	var out DecodedSummary
	if headlineAt >= 0 {
		line := s[headlineAt:]
		if nl := strings.IndexByte(line, '\n'); nl >= 0 {
			line = line[:nl]
		}
		if m := inlineArticleRe.FindStringIndex(line); m != nil {
			if inline := headlineAt + m[1]; articleAt < 0 || inline < articleAt {
				articleAt = inline
			}
			line = line[:m[0]]
		}
		out.Headline = cleanHeadline(line)
	}
	if articleAt >= 0 {
		body := s[articleAt:]
		// A headline printed after the article is not part of it.
		for _, m := range lineLabelRe.FindAllStringSubmatchIndex(body, -1) {
			if strings.EqualFold(body[m[2]:m[3]], "headline") {
				body = body[:m[0]]
				break
			}
		}
		out.Article = strings.TrimSpace(body)
	}
	return out
}

// ParseSummary decodes a summary response and substitutes sentinels for missing fields.
func ParseSummary(text string) Summary {
	return summaryWithFallback(DecodeSummary(text))
}

func summaryWithFallback(d DecodedSummary) Summary {
	out := Summary{Headline: d.Headline, Article: d.Article}
	if out.Headline == "" {
		out.Headline = UntitledHeadline
		out.Fallback = true
	}
	if out.Article == "" {
		out.Article = EmptyArticle
		out.Fallback = true
	}
	return out
}

// cleanHeadline trims whitespace, emphasis markers at either end and one pair of wrapping quotes.
func cleanHeadline(s string) string {
	s = strings.Trim(s, " \t*_~`")
	r := []rune(s)
	if len(r) >= 2 && isQuote(r[0]) && isQuote(r[len(r)-1]) {
		s = strings.TrimSpace(string(r[1 : len(r)-1]))
	}
	return s
}

func isQuote(r rune) bool {
	switch r {
	case '"', '\'', '“', '”':
		return true
	}
	return false
}

// ClassificationCount is a flagged/analyzed pair reported by the model.
type ClassificationCount struct {
	Flagged  int
	Analyzed int
}

// InconclusiveCount is used when a classification response has no X/Y pair: one item, not flagged.
var InconclusiveCount = ClassificationCount{Flagged: 0, Analyzed: 1}

// DecodeClassification extracts the first X/Y integer pair from text.
func DecodeClassification(text string) (ClassificationCount, bool) {
	m := countPairRe.FindStringSubmatch(text)
	if m == nil {
		return ClassificationCount{}, false
	}
	flagged, err1 := strconv.Atoi(m[1])
	analyzed, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil {
		return ClassificationCount{}, false
	}
	return ClassificationCount{Flagged: flagged, Analyzed: analyzed}, true
}

// ParseClassification decodes a classification response, falling back to InconclusiveCount.
func ParseClassification(text string) ClassificationCount {
	c, ok := DecodeClassification(text)
	if !ok {
		return InconclusiveCount
	}
	return c
}
