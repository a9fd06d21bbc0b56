package pricing

import (
	"log/slog"

	"github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"

	"github.com/contexor/contexor/pkg/ai"
	"github.com/contexor/contexor/pkg/types"
)

// Price 每百万 token 的美元单价
type Price struct {
	Input  decimal.Decimal
	Output decimal.Decimal
}

var million = decimal.NewFromInt(1_000_000)

var table = map[string]Price{
	"gpt-4o":           {decimal.RequireFromString("5.00"), decimal.RequireFromString("15.00")},
	"gpt-4o-mini":      {decimal.RequireFromString("0.150"), decimal.RequireFromString("0.600")},
	"gpt-4-turbo":      {decimal.RequireFromString("10.00"), decimal.RequireFromString("30.00")},
	"gpt-4":            {decimal.RequireFromString("30.00"), decimal.RequireFromString("60.00")},
	"gpt-3.5-turbo":    {decimal.RequireFromString("0.50"), decimal.RequireFromString("1.50")},
	"gemini-1.5-flash": {decimal.RequireFromString("0.075"), decimal.RequireFromString("0.30")},
	"gemini-1.5-pro":   {decimal.RequireFromString("1.25"), decimal.RequireFromString("5.00")},
}

// Lookup 未收录的模型返回零价格
func Lookup(model string) (Price, bool) {
	p, ok := table[model]
	return p, ok
}

func Known(model string) bool {
	_, ok := table[model]
	return ok
}

// Cost = in/1e6*inputPrice + out/1e6*outputPrice。
// 未收录的模型成本为 0，账本会少计，调用方可用 Known 记录告警。
func Cost(model string, inputTokens, outputTokens int64) decimal.Decimal {
	p, ok := Lookup(model)
	if !ok {
		return decimal.Zero
	}
	in := decimal.NewFromInt(inputTokens).Mul(p.Input).Div(million)
	out := decimal.NewFromInt(outputTokens).Mul(p.Output).Div(million)
	return in.Add(out)
}

func CostMoney(model string, inputTokens, outputTokens int64) types.Money {
	return types.NewMoney(Cost(model, inputTokens, outputTokens))
}

// EstimatePromptTokens 调用前估算 prompt token 数，tiktoken 失败时按 4 字节/token 估算
func EstimatePromptTokens(model, system, user string) int {
	n, err := ai.NumTokens([]openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
		{Role: openai.ChatMessageRoleUser, Content: user},
	}, model)
	if err != nil {
		slog.Debug("failed to count tokens with tiktoken, fallback to length", slog.String("model", model), slog.String("error", err.Error()))
		return (len(system) + len(user)) / 4
	}
	return n
}

// EstimateCost 以 maxOutput 作为输出上界的预估成本
func EstimateCost(model, system, user string, maxOutput int) decimal.Decimal {
	return Cost(model, int64(EstimatePromptTokens(model, system, user)), int64(maxOutput))
}
