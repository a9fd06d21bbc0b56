package core

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/contexor/contexor/pkg/config"
	"github.com/contexor/contexor/pkg/sqlstore"
	"github.com/contexor/contexor/pkg/types"
)

func MustLoadBaseConfig(path string) CoreConfig {
	if path == "" {
		return LoadBaseConfigFromENV()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	conf := &CoreConfig{}
	if err = toml.Unmarshal(raw, conf); err != nil {
		panic(err)
	}

	return *conf
}

func LoadBaseConfigFromENV() CoreConfig {
	var c CoreConfig
	c.FromENV()
	return c
}

type CoreConfig struct {
	Addr          string              `toml:"addr"`
	Log           Log                 `toml:"log"`
	Database      DatabaseConfig      `toml:"database"`
	Redis         RedisConfig         `toml:"redis"`
	AI            AIConfig            `toml:"ai"`
	Budget        BudgetConfig        `toml:"budget"`
	Generation    GenerationConfig    `toml:"generation"`
	Retention     RetentionConfig     `toml:"retention"`
	ObjectStorage ObjectStorageDriver `toml:"object_storage"`
}

func (c *CoreConfig) FromENV() {
	c.Addr = config.String("service_address", "")
	c.Log.FromENV()
	c.Database.FromENV()
	c.Redis.FromENV()
	c.AI.FromENV()
	c.Budget.FromENV()
	c.Generation.FromENV()
	c.Retention.FromENV()
	c.ObjectStorage.FromENV()
}

// DatabaseConfig 实现 sqlstore.ConnectConfig
type DatabaseConfig struct {
	Driver string `toml:"driver"` // postgres | sqlite
	DSN    string `toml:"dsn"`
}

func (d *DatabaseConfig) FromENV() {
	d.Driver = config.String("database_driver", sqlstore.DRIVER_POSTGRES)
	d.DSN = config.String("database_dsn", "")
}

func (d DatabaseConfig) DriverName() string {
	if d.Driver == "" {
		return sqlstore.DRIVER_POSTGRES
	}
	return d.Driver
}

func (d DatabaseConfig) FormatDSN() string {
	return d.DSN
}

type RedisConfig struct {
	// 单机模式配置
	Addr     string `toml:"addr"`     // Redis地址，格式: host:port
	Password string `toml:"password"` // Redis密码
	DB       int    `toml:"db"`       // Redis数据库索引 (0-15)

	// 集群模式配置
	Cluster      bool     `toml:"cluster"`       // 是否启用集群模式
	ClusterAddrs []string `toml:"cluster_addrs"` // 集群节点地址列表

	PoolSize  int    `toml:"pool_size"`  // 连接池大小，默认10
	KeyPrefix string `toml:"key_prefix"` // Redis键前缀，用于隔离不同环境/应用
}

func (r *RedisConfig) FromENV() {
	r.Addr = config.String("redis_addr", "")
	r.Password = config.String("redis_password", "")
	r.DB = config.Int("redis_db", 0)
	r.KeyPrefix = config.String("redis_key_prefix", "")
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != "" || (r.Cluster && len(r.ClusterAddrs) > 0)
}

func (r RedisConfig) Prefix() string {
	if r.KeyPrefix == "" {
		return "contexor"
	}
	return r.KeyPrefix
}

const (
	AI_PROVIDER_OPENAI = "openai"
	AI_PROVIDER_GEMINI = "gemini"
)

type AIConfig struct {
	Provider   string  `toml:"provider"` // openai | gemini
	Token      string  `toml:"token"`
	Endpoint   string  `toml:"endpoint"` // 兼容 OpenAI 协议的自定义地址
	Model      string  `toml:"model"`
	Timeout    int     `toml:"timeout"`     // 单次调用超时(秒)，默认60
	MaxRetries int     `toml:"max_retries"` // 连接级重试次数，默认2，负数为不重试
	RateLimit  float64 `toml:"rate_limit"`  // 每秒调用次数，0 为不限制
}

func (a *AIConfig) FromENV() {
	a.Provider = config.String("ai_provider", AI_PROVIDER_OPENAI)
	a.Token = config.String("ai_token", "")
	a.Endpoint = config.String("ai_endpoint", "")
	a.Model = config.String("ai_model", "")
	a.Timeout = config.Int("ai_timeout", 0)
	a.MaxRetries = config.Int("ai_max_retries", 0)
	a.RateLimit = config.Float("ai_rate_limit", 0)
}

func (a AIConfig) TimeoutDuration() time.Duration {
	if a.Timeout <= 0 {
		return 60 * time.Second
	}
	return time.Duration(a.Timeout) * time.Second
}

func (a AIConfig) Retries() uint {
	switch {
	case a.MaxRetries == 0:
		return 2
	case a.MaxRetries < 0:
		return 0
	}
	return uint(a.MaxRetries)
}

// BudgetConfig 没有配置 UsageLimit 时使用的默认额度（美元/月）
type BudgetConfig struct {
	User         float64 `toml:"user"`
	Workspace    float64 `toml:"workspace"`
	Organization float64 `toml:"organization"`
	Timezone     string  `toml:"timezone"`
	Lang         string  `toml:"lang"`
}

func (b *BudgetConfig) FromENV() {
	b.User = config.Float("budget_user", 0)
	b.Workspace = config.Float("budget_workspace", 0)
	b.Organization = config.Float("budget_organization", 0)
	b.Timezone = config.String("budget_timezone", "")
	b.Lang = config.String("budget_lang", "")
}

// DefaultLimit 各层级的默认月度额度
func (b BudgetConfig) DefaultLimit(kind types.ScopeKind) types.Money {
	var v float64
	switch kind {
	case types.SCOPE_USER:
		v = b.User
		if v <= 0 {
			v = 50
		}
	case types.SCOPE_WORKSPACE:
		v = b.Workspace
		if v <= 0 {
			v = 100
		}
	default:
		v = b.Organization
		if v <= 0 {
			v = 500
		}
	}
	return types.MoneyFromFloat(v)
}

type GenerationConfig struct {
	RetryDelay       int `toml:"retry_delay"`       // 重试基础间隔(秒)，实际间隔 = base * retry_count，默认60
	MaxConcurrency   int `toml:"max_concurrency"`   // 全局同时进行的模型调用数，默认10
	QueueConcurrency int `toml:"queue_concurrency"` // 单进程 worker 数，默认5
}

func (g *GenerationConfig) FromENV() {
	g.RetryDelay = config.Int("generation_retry_delay", 0)
	g.MaxConcurrency = config.Int("generation_max_concurrency", 0)
	g.QueueConcurrency = config.Int("generation_queue_concurrency", 0)
}

func (g GenerationConfig) RetryDelayDuration() time.Duration {
	if g.RetryDelay <= 0 {
		return time.Minute
	}
	return time.Duration(g.RetryDelay) * time.Second
}

func (g GenerationConfig) Concurrency() int {
	if g.MaxConcurrency <= 0 {
		return 10
	}
	return g.MaxConcurrency
}

func (g GenerationConfig) Workers() int {
	if g.QueueConcurrency <= 0 {
		return 5
	}
	return g.QueueConcurrency
}

// RetentionConfig 0 表示永久保留
type RetentionConfig struct {
	UsageDays int `toml:"usage_days"`
	JobDays   int `toml:"job_days"`
}

func (r *RetentionConfig) FromENV() {
	r.UsageDays = config.Int("retention_usage_days", 0)
	r.JobDays = config.Int("retention_job_days", 0)
}

type ObjectStorageDriver struct {
	Driver string    `toml:"driver"` // 为空时不归档
	Prefix string    `toml:"prefix"`
	S3     *S3Config `toml:"s3"`
}

func (o *ObjectStorageDriver) FromENV() {
	o.Driver = config.String("object_storage_driver", "")
	o.Prefix = config.String("object_storage_prefix", "")
	if o.Driver == "s3" {
		o.S3 = &S3Config{
			Bucket:       config.String("s3_bucket", ""),
			Region:       config.String("s3_region", ""),
			Endpoint:     config.String("s3_endpoint", ""),
			AccessKey:    config.String("s3_access_key", ""),
			SecretKey:    config.String("s3_secret_key", ""),
			UsePathStyle: config.Bool("s3_use_path_style", false),
		}
	}
}

type S3Config struct {
	Bucket       string `toml:"bucket"`
	Region       string `toml:"region"`
	Endpoint     string `toml:"endpoint"`
	AccessKey    string `toml:"access_key"`
	SecretKey    string `toml:"secret_key"`
	UsePathStyle bool   `toml:"use_path_style"`
}

type Log struct {
	Level string `toml:"level"`
	Path  string `toml:"path"`
}

func (l *Log) FromENV() {
	l.Level = config.String("log_level", "")
	l.Path = config.String("log_path", "")
}

func (l *Log) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "info":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}

// AsynqOpt 队列与信号量共用同一套 Redis 配置
func (r RedisConfig) AsynqOpt() asynq.RedisConnOpt {
	if r.Cluster {
		return asynq.RedisClusterClientOpt{
			Addrs:    r.ClusterAddrs,
			Password: r.Password,
		}
	}
	return asynq.RedisClientOpt{
		Network:  "tcp",
		Addr:     r.Addr,
		Password: r.Password,
		DB:       r.DB,
		PoolSize: r.PoolSize,
	}
}

func (r RedisConfig) UniversalOptions() *redis.UniversalOptions {
	addrs := []string{r.Addr}
	if r.Cluster {
		addrs = r.ClusterAddrs
	}
	return &redis.UniversalOptions{
		Addrs:    addrs,
		Password: r.Password,
		DB:       r.DB,
		PoolSize: r.PoolSize,
	}
}
