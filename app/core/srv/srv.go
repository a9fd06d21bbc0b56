package srv

import (
	"github.com/contexor/contexor/pkg/ai"
)

type Srv struct {
	ai ai.Provider
}

func SetupSrvs(opts ...ApplyFunc) *Srv {
	a := &Srv{}

	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AI 可能为 nil，调用方需在启动时检查
func (s *Srv) AI() ai.Provider {
	return s.ai
}

// GetAIStatus 获取AI系统状态
func (s *Srv) GetAIStatus() map[string]interface{} {
	if s.ai == nil {
		return map[string]interface{}{
			"status": "not_initialized",
		}
	}

	return map[string]interface{}{
		"status":   "running",
		"provider": s.ai.Name(),
	}
}
