package gemini

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/contexor/contexor/pkg/ai"
)

const (
	NAME = "gemini"

	DEFAULT_MODEL = "gemini-1.5-flash"
)

type Driver struct {
	client *genai.Client
	model  string
}

func New(token, model string) *Driver {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(token))
	if err != nil {
		panic(err)
	}
	if model == "" {
		model = DEFAULT_MODEL
	}

	return &Driver{
		client: client,
		model:  model,
	}
}

func (s *Driver) Name() string {
	return NAME
}

func (s *Driver) Complete(ctx context.Context, req ai.Request) (ai.Result, error) {
	req.ApplyDefaults(s.model)

	model := s.client.GenerativeModel(req.Model)
	model.SystemInstruction = genai.NewUserContent(genai.Text(req.System))
	model.SetTemperature(req.Temperature)
	model.SetTopP(req.TopP)
	model.SetMaxOutputTokens(int32(req.MaxTokens))

	slog.Debug("Complete", slog.String("driver", NAME), slog.String("model", req.Model))

	resp, err := model.GenerateContent(ctx, genai.Text(req.User))
	if err != nil {
		return ai.Result{}, ai.NewProviderError(NAME, err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ai.Result{}, ai.NewProviderError(NAME, errors.New("empty response content"))
	}

	if resp.Candidates[0].FinishReason != genai.FinishReasonStop {
		slog.Warn("Complete, ai finished without stop", slog.String("driver", NAME), slog.String("reason", resp.Candidates[0].FinishReason.String()))
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	if b.Len() == 0 {
		return ai.Result{}, ai.NewProviderError(NAME, errors.New("response without text part"))
	}

	result := ai.Result{
		Text:  b.String(),
		Model: req.Model,
	}
	if resp.UsageMetadata != nil {
		result.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return result, nil
}
