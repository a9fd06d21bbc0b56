package srv

import (
	"fmt"
	"time"

	"github.com/contexor/contexor/pkg/ai"
	"github.com/contexor/contexor/pkg/ai/gemini"
	"github.com/contexor/contexor/pkg/ai/openai"
)

const (
	PROVIDER_OPENAI = "openai"
	PROVIDER_GEMINI = "gemini"
)

type AIConfig struct {
	Provider   string
	Token      string
	Endpoint   string
	Model      string
	Timeout    time.Duration
	MaxRetries uint
	RateLimit  float64
}

// SetupAI 按配置创建模型驱动，并套上超时、重试与限速
func SetupAI(cfg AIConfig) (ai.Provider, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("ai provider %q: token is required", cfg.Provider)
	}

	var driver ai.Provider
	switch cfg.Provider {
	case PROVIDER_OPENAI, "":
		driver = openai.New(cfg.Token, cfg.Endpoint, cfg.Model)
	case PROVIDER_GEMINI:
		driver = gemini.New(cfg.Token, cfg.Model)
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", cfg.Provider)
	}

	return ai.NewGuard(driver, ai.GuardOptions{
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
		RateLimit:  cfg.RateLimit,
		Model:      cfg.Model,
	}), nil
}

type ApplyFunc func(s *Srv)

func ApplyAI(cfg AIConfig) ApplyFunc {
	return func(s *Srv) {
		provider, err := SetupAI(cfg)
		if err != nil {
			panic(err)
		}
		s.ai = provider
	}
}

// ApplyProvider 直接注入已构造好的 Provider
func ApplyProvider(p ai.Provider) ApplyFunc {
	return func(s *Srv) {
		s.ai = p
	}
}
