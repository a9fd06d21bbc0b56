package testutils

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/joho/godotenv"
)

// LoadEnv loads the .env file from the project root directory
func LoadEnv() error {
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)

	// Navigate to project root (go up from pkg/testutils)
	envPath := filepath.Join(dir, "..", "..", ".env")
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		// .env file doesn't exist, continue without error
		return nil
	}

	return godotenv.Load(envPath)
}

// LoadEnvOrPanic loads the .env file and panics if there's an error
func LoadEnvOrPanic() {
	if err := LoadEnv(); err != nil {
		panic("Failed to load .env file: " + err.Error())
	}
}

// GetEnvOrDefault gets an environment variable with a default value
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// RequireEnv skips the test when key is not set
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	LoadEnvOrPanic()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

// DBConfig implements sqlstore.ConnectConfig for tests
type DBConfig struct {
	Driver string
	DSN    string
}

func (c DBConfig) DriverName() string {
	return c.Driver
}

func (c DBConfig) FormatDSN() string {
	return c.DSN
}

// SQLiteConfig 每个测试一个独立的 sqlite 文件
func SQLiteConfig(t testing.TB) DBConfig {
	t.Helper()
	return DBConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "contexor.db") + "?_pragma=busy_timeout(5000)",
	}
}
