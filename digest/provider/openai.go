// Package provider adapts hosted language model APIs to digest.Completer.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/theimaginaryfoundation/thread-digest/digest"
)

// Error kinds reported by ClassifyError.
const (
	ErrorKindRateLimit = "rate_limit"
	ErrorKindServer    = "server"
	ErrorKindOther     = "other"
)

// OpenAIConfig configures an OpenAI chat completions client. BaseURL may point at any compatible endpoint.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
}

// OpenAI implements digest.Completer over the chat completions API. Requests are never retried.
type OpenAI struct {
	client openai.Client
}

var _ digest.Completer = (*OpenAI)(nil)

func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("NewOpenAI: api key is empty")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{client: openai.NewClient(opts...)}, nil
}

func (o *OpenAI) Complete(ctx context.Context, req digest.CompletionRequest) (string, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case digest.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case digest.RoleUser:
			msgs = append(msgs, openai.UserMessage(m.Content))
		case digest.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			return "", fmt.Errorf("complete: unsupported message role %q", m.Role)
		}
	}

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    msgs,
		Temperature: openai.Float(req.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("complete (%s): %w", ClassifyError(err), err)
	}
	if len(resp.Choices) == 0 {
		return "", digest.ErrNoCompletion
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", digest.ErrNoCompletion
	}
	return content, nil
}

// ClassifyError buckets a completion error for logging.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429:
			return ErrorKindRateLimit
		case apiErr.StatusCode >= 500:
			return ErrorKindServer
		}
	}
	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "429"),
		strings.Contains(errStr, "rate limit"),
		strings.Contains(errStr, "too many requests"):
		return ErrorKindRateLimit
	case strings.Contains(errStr, "internal server error"),
		strings.Contains(errStr, "server_error"):
		return ErrorKindServer
	}
	return ErrorKindOther
}
