package openai

import (
	"context"
	"errors"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/contexor/contexor/pkg/ai"
)

const (
	NAME = "openai"
)

type Driver struct {
	client *openai.Client
	model  string
}

func NewClient(token, proxy string) *openai.Client {
	cfg := openai.DefaultConfig(token)
	if proxy != "" {
		cfg.BaseURL = proxy
	}

	return openai.NewClientWithConfig(cfg)
}

func New(token, proxy, model string) *Driver {
	if model == "" {
		model = openai.GPT4oMini
	}

	return &Driver{
		client: NewClient(token, proxy),
		model:  model,
	}
}

func (s *Driver) Name() string {
	return NAME
}

func (s *Driver) Complete(ctx context.Context, req ai.Request) (ai.Result, error) {
	req.ApplyDefaults(s.model)
	slog.Debug("Complete", slog.String("driver", NAME), slog.String("model", req.Model))

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return ai.Result{}, ai.NewProviderError(NAME, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return ai.Result{}, ai.NewProviderError(NAME, errors.New("empty response content"))
	}

	if resp.Choices[0].FinishReason != openai.FinishReasonStop {
		slog.Warn("Complete, ai finished without stop", slog.String("driver", NAME), slog.String("reason", string(resp.Choices[0].FinishReason)))
	}

	return ai.Result{
		Text:             resp.Choices[0].Message.Content,
		Model:            req.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}
