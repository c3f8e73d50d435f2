// Package prettify optionally rewrites a rendered report into smoother prose
// through an OpenAI-compatible endpoint. The service works without it; callers
// fall back to the plain rendering whenever the polisher is absent or fails.
package prettify

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = "You rewrite back-office operations reports into concise, friendly prose. " +
	"Keep every identifier, amount, currency, status and date exactly as given. " +
	"Never invent, drop or round any fact. Plain text only."

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

type Polisher struct {
	client *openai.Client
	model  string
}

// New returns nil when no API key is configured; a nil Polisher is a valid
// "feature off" value.
func New(cfg Config) *Polisher {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil
	}
	cc := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if strings.TrimSpace(model) == "" {
		model = openai.GPT4oMini
	}
	return &Polisher{client: openai.NewClientWithConfig(cc), model: model}
}

func (p *Polisher) Polish(ctx context.Context, rendered string) (string, error) {
	if p == nil {
		return rendered, nil
	}
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: rendered},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion")
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", errors.New("blank completion")
	}
	return out, nil
}
