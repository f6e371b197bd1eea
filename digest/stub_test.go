package digest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var errStubUnavailable = errors.New("stub: service unavailable")

// stubCompleter routes requests by prompt kind and records every call.
type stubCompleter struct {
	mu       sync.Mutex
	calls    []CompletionRequest
	summary  func(req CompletionRequest) (string, error)
	classify func(req CompletionRequest, n int) (string, error)
}

func isClassificationRequest(req CompletionRequest) bool {
	return len(req.Messages) > 0 && strings.Contains(req.Messages[0].Content, "content classification assistant")
}

// commentCount recovers N from the "Answer in the form X/N." trailer.
func commentCount(req CompletionRequest) int {
	user := req.Messages[len(req.Messages)-1].Content
	var n int
	idx := strings.LastIndex(user, "X/")
	if idx >= 0 {
		_, _ = fmt.Sscanf(user[idx:], "X/%d.", &n)
	}
	return n
}

func (s *stubCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()

	if isClassificationRequest(req) {
		if s.classify == nil {
			return "0/" + fmt.Sprint(commentCount(req)), nil
		}
		return s.classify(req, commentCount(req))
	}
	if s.summary == nil {
		return "HEADLINE: Stub Headline\nARTICLE: Stub article.", nil
	}
	return s.summary(req)
}

func (s *stubCompleter) classificationCalls() []CompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []CompletionRequest
	for _, c := range s.calls {
		if isClassificationRequest(c) {
			out = append(out, c)
		}
	}
	return out
}

func (s *stubCompleter) summaryCalls() []CompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []CompletionRequest
	for _, c := range s.calls {
		if !isClassificationRequest(c) {
			out = append(out, c)
		}
	}
	return out
}

func textsN(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("comment %d", i)
	}
	return out
}

func itoa(n int) string { return fmt.Sprint(n) }
