package safe

import (
	"log/slog"
	"runtime/debug"
	"strings"
)

// maxStackLines 日志中保留的栈行数
const maxStackLines = 20

func Run(fn func()) {
	RunWithLog(fn, "safe.Run")
}

// RunWithLog 执行 fn，panic 时记录完整栈并吞掉
func RunWithLog(fn func(), component string) (recovered bool) {
	defer func() {
		if r := recover(); r != nil {
			recovered = true
			slog.Error("panic recovered",
				slog.Any("recover", r),
				slog.String("component", component),
				slog.String("stack", stackTrace()),
			)
		}
	}()

	fn()
	return false
}

// Go 在新的 goroutine 中执行 fn
func Go(component string, fn func()) {
	go RunWithLog(fn, component)
}

func stackTrace() string {
	lines := strings.Split(string(debug.Stack()), "\n")

	formatted := []string{"Stack trace:"}
	for i, line := range lines {
		if i >= maxStackLines {
			formatted = append(formatted, "  ... (truncated)")
			break
		}
		if line = strings.TrimSpace(line); line != "" {
			formatted = append(formatted, "  "+line)
		}
	}
	return strings.Join(formatted, "\n")
}
