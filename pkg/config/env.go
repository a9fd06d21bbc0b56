package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// 所有环境变量都带有统一前缀
const ENV_PREFIX = "CONTEXOR_"

func Key(name string) string {
	return ENV_PREFIX + strings.ToUpper(name)
}

// String 获取环境变量，如果不存在则返回默认值
func String(name, defaultValue string) string {
	if value := os.Getenv(Key(name)); value != "" {
		return value
	}
	return defaultValue
}

func Int(name string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(Key(name))); err == nil {
		return value
	}
	return defaultValue
}

func Float(name string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(os.Getenv(Key(name)), 64); err == nil {
		return value
	}
	return defaultValue
}

func Bool(name string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(os.Getenv(Key(name))); err == nil {
		return value
	}
	return defaultValue
}

// Duration 支持 "30s" 与纯秒数两种写法
func Duration(name string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(Key(name))
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
