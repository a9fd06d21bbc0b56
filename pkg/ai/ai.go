package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkoukk/tiktoken-go"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
)

const (
	DEFAULT_MODEL       = openai.GPT4oMini
	DEFAULT_TEMPERATURE = 0.7
	DEFAULT_TOP_P       = 0.9
	DEFAULT_MAX_TOKENS  = 2000
)

// Request 一次补全调用
type Request struct {
	System      string
	User        string
	Model       string
	Temperature float32
	TopP        float32
	MaxTokens   int
}

// Result 模型输出及 token 用量
type Result struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

func (r Result) TotalTokens() int {
	return r.PromptTokens + r.CompletionTokens
}

// Provider 外部模型的唯一调用形态
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (Result, error)
}

// ProviderError 模型不可用、限流、返回格式异常等
type ProviderError struct {
	Provider string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider error: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func NewProviderError(provider string, err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return &ProviderError{Provider: provider, Message: err.Error(), Err: err}
}

func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

func (r *Request) ApplyDefaults(model string) {
	if r.Model == "" {
		r.Model = model
	}
	if r.Model == "" {
		r.Model = DEFAULT_MODEL
	}
	if r.Temperature == 0 {
		r.Temperature = DEFAULT_TEMPERATURE
	}
	if r.TopP == 0 {
		r.TopP = DEFAULT_TOP_P
	}
	if r.MaxTokens == 0 {
		r.MaxTokens = DEFAULT_MAX_TOKENS
	}
}

type GuardOptions struct {
	Timeout    time.Duration
	MaxRetries uint
	RetryDelay time.Duration
	RateLimit  float64 // 每秒请求数，<=0 不限制
	Model      string
}

// Guard 为 Provider 加上超时、连接级重试与限速，与任务级重试相互独立
type Guard struct {
	next    Provider
	opts    GuardOptions
	limiter *rate.Limiter
}

func NewGuard(next Provider, opts GuardOptions) *Guard {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	g := &Guard{next: next, opts: opts}
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return g
}

func (g *Guard) Name() string {
	return g.next.Name()
}

func (g *Guard) Complete(ctx context.Context, req Request) (Result, error) {
	req.ApplyDefaults(g.opts.Model)

	var result Result
	err := retry.Do(func() error {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}
		}
		cctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()

		res, err := g.next.Complete(cctx, req)
		if err != nil {
			if !Retryable(err) {
				return retry.Unrecoverable(err)
			}
			return err
		}
		result = res
		return nil
	},
		retry.Context(ctx),
		retry.Attempts(g.opts.MaxRetries+1),
		retry.Delay(g.opts.RetryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("model call failed, retrying", slog.String("provider", g.next.Name()), slog.Uint64("attempt", uint64(n+1)), slog.String("error", err.Error()))
		}),
	)
	if err != nil {
		return Result{}, NewProviderError(g.next.Name(), err)
	}
	return result, nil
}

// Retryable 鉴权、参数错误等 4xx 重试也不会成功，429 与 408 除外
func Retryable(err error) bool {
	var (
		apiErr    *openai.APIError
		reqErr    *openai.RequestError
		googleErr *googleapi.Error
	)
	switch {
	case errors.As(err, &apiErr):
		return retryableStatus(apiErr.HTTPStatusCode)
	case errors.As(err, &reqErr):
		return retryableStatus(reqErr.HTTPStatusCode)
	case errors.As(err, &googleErr):
		return retryableStatus(googleErr.Code)
	}
	return true
}

func retryableStatus(code int) bool {
	switch {
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout:
		return true
	case code >= 400 && code < 500:
		return false
	}
	return true
}

func NumTokens(messages []openai.ChatCompletionMessage, model string) (numTokens int, err error) {
	var tokensPerMessage, tokensPerName int
	switch model {
	case "gpt-3.5-turbo-0613",
		"gpt-3.5-turbo-16k-0613",
		"gpt-4-0314",
		"gpt-4-32k-0314",
		"gpt-4-0613",
		"gpt-4-32k-0613":
		tokensPerMessage = 3
		tokensPerName = 1
	case "gpt-3.5-turbo-0301":
		tokensPerMessage = 4 // every message follows <|start|>{role/name}\n{content}<|end|>\n
		tokensPerName = -1   // if there's a name, the role is omitted
	default:
		if strings.Contains(model, "gpt-4") {
			return NumTokens(messages, "gpt-4-0613")
		} else {
			return NumTokens(messages, "gpt-3.5-turbo-0613")
		}
	}

	tkm, err := tiktoken.EncodingForModel(model)
	if err != nil {
		err = fmt.Errorf("encoding for model: %v", err)
		return
	}

	for _, message := range messages {
		numTokens += tokensPerMessage
		numTokens += len(tkm.Encode(message.Content, nil, nil))
		numTokens += len(tkm.Encode(message.Role, nil, nil))
		numTokens += len(tkm.Encode(message.Name, nil, nil))
		if message.Name != "" {
			numTokens += tokensPerName
		}
	}
	numTokens += 3 // every reply is primed with <|start|>assistant<|message|>
	return numTokens, nil
}
