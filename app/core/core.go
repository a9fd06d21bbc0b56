package core

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/contexor/contexor/app/core/srv"
	"github.com/contexor/contexor/app/store/sqlstore"
	"github.com/contexor/contexor/pkg/ai"
	"github.com/contexor/contexor/pkg/i18n"
	"github.com/contexor/contexor/pkg/object-storage/s3"
	"github.com/contexor/contexor/pkg/queue"
)

// GenerationQueue 生成任务的投递端
type GenerationQueue interface {
	EnqueueGeneration(ctx context.Context, jobID string) error
	EnqueueDelayedGeneration(ctx context.Context, jobID string, attempt int, delay time.Duration) error
}

// Archiver 生成结果的归档存储
type Archiver interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
}

type Core struct {
	cfg CoreConfig
	srv *srv.Srv

	stores      func() *sqlstore.Provider
	redis       redis.UniversalClient
	asynqClient *asynq.Client
	queue       GenerationQueue
	archiver    Archiver
	httpEngine  *gin.Engine

	aiProvider ai.Provider
	withoutAI  bool

	metrics    *Metrics
	semaphores *SemaphoreManager
	localizer  i18n.Localizer
	location   *time.Location
}

type Option func(c *Core)

// WithAIProvider 注入模型驱动，不再按配置创建
func WithAIProvider(p ai.Provider) Option {
	return func(c *Core) {
		c.aiProvider = p
	}
}

// WithoutAI 只做管理操作的命令不需要模型
func WithoutAI() Option {
	return func(c *Core) {
		c.withoutAI = true
	}
}

func WithStore(p *sqlstore.Provider) Option {
	return func(c *Core) {
		c.stores = func() *sqlstore.Provider { return p }
	}
}

func WithQueue(q GenerationQueue) Option {
	return func(c *Core) {
		c.queue = q
	}
}

func WithArchiver(a Archiver) Option {
	return func(c *Core) {
		c.archiver = a
	}
}

func WithRedis(client redis.UniversalClient) Option {
	return func(c *Core) {
		c.redis = client
	}
}

func setupLogger(cfg Log) {
	var writer io.Writer = os.Stdout
	if cfg.Path != "" {
		writer = &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    500, // megabytes
			MaxBackups: 3,
			MaxAge:     28,   //days
			Compress:   true, // disabled by default
		}
	}
	l := slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(l)
}

func MustSetupCore(cfg CoreConfig, opts ...Option) *Core {
	setupLogger(cfg.Log)

	core := &Core{
		cfg:        cfg,
		metrics:    NewMetrics("contexor", "core"),
		httpEngine: gin.New(),
		localizer:  i18n.Default(),
		location:   time.Local,
	}
	for _, opt := range opts {
		opt(core)
	}

	if cfg.Budget.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Budget.Timezone)
		if err != nil {
			panic(err)
		}
		core.location = loc
	}

	// setup store
	if core.stores == nil {
		setupSqlStore(core)
	}

	if core.redis == nil && cfg.Redis.Enabled() {
		core.redis = redis.NewUniversalClient(cfg.Redis.UniversalOptions())
	}
	if core.queue == nil && cfg.Redis.Enabled() {
		core.asynqClient = asynq.NewClient(cfg.Redis.AsynqOpt())
		core.queue = queue.NewGenerationQueueWithClient(core.asynqClient)
	}

	if core.archiver == nil && cfg.ObjectStorage.Driver == "s3" && cfg.ObjectStorage.S3 != nil {
		s := cfg.ObjectStorage.S3
		core.archiver = s3.NewS3Client(s.Endpoint, s.Region, s.Bucket, s.AccessKey, s.SecretKey, s3.WithPathStyle(s.UsePathStyle))
	}

	core.semaphores = NewSemaphoreManager(core)
	core.srv = srv.SetupSrvs(core.aiApplyFunc())

	return core
}

func (s *Core) aiApplyFunc() srv.ApplyFunc {
	switch {
	case s.aiProvider != nil:
		return srv.ApplyProvider(s.aiProvider)
	case s.withoutAI:
		return func(*srv.Srv) {}
	}
	return srv.ApplyAI(srv.AIConfig{
		Provider:   s.cfg.AI.Provider,
		Token:      s.cfg.AI.Token,
		Endpoint:   s.cfg.AI.Endpoint,
		Model:      s.cfg.AI.Model,
		Timeout:    s.cfg.AI.TimeoutDuration(),
		MaxRetries: s.cfg.AI.Retries(),
		RateLimit:  s.cfg.AI.RateLimit,
	})
}

func setupSqlStore(core *Core) {
	core.stores = sqlstore.MustSetup(core.cfg.Database)
	// 执行数据库表初始化
	if err := core.stores().Install(); err != nil {
		panic(err)
	}
	slog.Info("setupSqlStore done", slog.String("driver", core.cfg.Database.DriverName()))
}

func (s *Core) Cfg() CoreConfig {
	return s.cfg
}

func (s *Core) Store() *sqlstore.Provider {
	return s.stores()
}

func (s *Core) Srv() *srv.Srv {
	return s.srv
}

// Redis 未配置时为 nil
func (s *Core) Redis() redis.UniversalClient {
	return s.redis
}

// Queue 未配置 Redis 时为 nil
func (s *Core) Queue() GenerationQueue {
	return s.queue
}

// Archiver 未配置对象存储时为 nil
func (s *Core) Archiver() Archiver {
	return s.archiver
}

func (s *Core) HttpEngine() *gin.Engine {
	return s.httpEngine
}

func (s *Core) Metrics() *Metrics {
	return s.metrics
}

func (s *Core) Semaphores() *SemaphoreManager {
	return s.semaphores
}

func (s *Core) Localizer() i18n.Localizer {
	return s.localizer
}

// Location 统计周期按该时区切分
func (s *Core) Location() *time.Location {
	return s.location
}

// Shutdown 释放外部连接
func (s *Core) Shutdown() {
	if s.asynqClient != nil {
		if err := s.asynqClient.Close(); err != nil {
			slog.Error("Failed to close asynq client", slog.String("error", err.Error()))
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			slog.Error("Failed to close redis client", slog.String("error", err.Error()))
		}
	}
	if s.stores != nil {
		if err := s.stores().Close(); err != nil {
			slog.Error("Failed to close sql store", slog.String("error", err.Error()))
		}
	}
}
