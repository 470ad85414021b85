package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 存储驱动
const (
	StoreDriverPostgres = "postgres"
	StoreDriverRedis    = "redis"
	StoreDriverMemory   = "memory"
)

// Config 应用配置（启动时构建一次，显式传递给各组件）
type Config struct {
	HTTP         HTTPConfig
	Redis        RedisConfig
	Postgres     PostgresConfig
	DBPool       DBPoolConfig
	Store        StoreConfig
	Orchestrator OrchestratorConfig
	Trigger      TriggerConfig
	XAPI         XAPIConfig
	Gemini       GeminiConfig
	Crawl        CrawlConfig
	Feed         FeedConfig
	Log          LogConfig
	Monitoring   MonitoringConfig
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Addr         string
	MaxBodyBytes int64
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// URL 返回 redis:// 形式的地址
func (r RedisConfig) URL() string {
	if strings.HasPrefix(r.Addr, "redis://") || strings.HasPrefix(r.Addr, "rediss://") {
		return r.Addr
	}
	if r.Password != "" {
		return fmt.Sprintf("redis://:%s@%s/%d", r.Password, r.Addr, r.DB)
	}
	return fmt.Sprintf("redis://%s/%d", r.Addr, r.DB)
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	DSN string
}

// DBPoolConfig 数据库连接池配置
type DBPoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// StoreConfig 任务存储配置
type StoreConfig struct {
	Driver        string
	AutoMigrate   bool
	MigrationsDir string
}

// OrchestratorConfig 编排器配置
type OrchestratorConfig struct {
	Cron            string
	DefaultCooldown time.Duration
	SourcesFile     string
}

// TriggerConfig 定时触发配置
type TriggerConfig struct {
	AgentCron   string
	Concurrency int
	Queue       string
	// RunTimeout 触发去重窗口，也是关闭时等待进行中代理调用的时长
	RunTimeout time.Duration
}

// XAPIConfig X 热门话题接口配置
type XAPIConfig struct {
	BearerToken string
	WOEID       int64
	BaseURL     string
	Timeout     time.Duration
}

// GeminiConfig 洞察生成模型配置
type GeminiConfig struct {
	APIKey    string
	Model     string
	MaxTokens int32
}

// CrawlConfig 网页抓取服务配置
type CrawlConfig struct {
	ServerURL    string
	APIKey       string
	ContentLimit int
	Timeout      time.Duration
}

// FeedConfig RSS 抓取配置
type FeedConfig struct {
	MaxHeadlines int
	Timeout      time.Duration
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string
	Production bool
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Enabled bool
	Port    int
}

// Load 加载配置
func Load() (*Config, error) {
	v := viper.New()

	// 设置配置文件名和路径
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	v.AddConfigPath("../..")

	// 允许从环境变量读取（优先级最高）
	v.AutomaticEnv()

	// 读取配置文件（如果存在）
	_ = v.ReadInConfig() // 忽略错误，因为可能只使用环境变量

	return FromViper(v), nil
}

// FromViper 从 viper 实例构建配置并填充默认值
func FromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	// HTTP 配置
	cfg.HTTP.Addr = v.GetString("HTTP_ADDR")
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":28080"
	}
	cfg.HTTP.MaxBodyBytes = v.GetInt64("HTTP_MAX_BODY_BYTES")
	if cfg.HTTP.MaxBodyBytes == 0 {
		cfg.HTTP.MaxBodyBytes = 1 << 20
	}

	// Redis 配置
	cfg.Redis.Addr = v.GetString("REDIS_ADDR")
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")

	// PostgreSQL 配置
	cfg.Postgres.DSN = v.GetString("POSTGRES_DSN")

	// 数据库连接池配置
	cfg.DBPool.MaxConns = int32(v.GetInt("DB_MAX_CONNS"))
	if cfg.DBPool.MaxConns == 0 {
		cfg.DBPool.MaxConns = 20
	}

	cfg.DBPool.MinConns = int32(v.GetInt("DB_MIN_CONNS"))
	if cfg.DBPool.MinConns == 0 {
		cfg.DBPool.MinConns = 5
	}

	cfg.DBPool.MaxConnLifetime = v.GetDuration("DB_MAX_CONN_LIFETIME")
	if cfg.DBPool.MaxConnLifetime == 0 {
		cfg.DBPool.MaxConnLifetime = 30 * time.Minute
	}

	cfg.DBPool.MaxConnIdleTime = v.GetDuration("DB_MAX_CONN_IDLE_TIME")
	if cfg.DBPool.MaxConnIdleTime == 0 {
		cfg.DBPool.MaxConnIdleTime = 5 * time.Minute
	}

	cfg.DBPool.HealthCheckPeriod = v.GetDuration("DB_HEALTH_CHECK_PERIOD")
	if cfg.DBPool.HealthCheckPeriod == 0 {
		cfg.DBPool.HealthCheckPeriod = 1 * time.Minute
	}

	// 存储配置
	cfg.Store.Driver = strings.ToLower(v.GetString("STORE_DRIVER"))
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = StoreDriverPostgres
	}
	cfg.Store.AutoMigrate = true
	if v.IsSet("STORE_AUTO_MIGRATE") {
		cfg.Store.AutoMigrate = v.GetBool("STORE_AUTO_MIGRATE")
	}
	cfg.Store.MigrationsDir = v.GetString("STORE_MIGRATIONS_DIR")

	// 编排器配置
	cfg.Orchestrator.Cron = v.GetString("ORCHESTRATOR_CRON")
	if cfg.Orchestrator.Cron == "" {
		cfg.Orchestrator.Cron = "@every 1m"
	}
	cfg.Orchestrator.DefaultCooldown = v.GetDuration("ORCHESTRATOR_DEFAULT_COOLDOWN")
	if cfg.Orchestrator.DefaultCooldown == 0 {
		cfg.Orchestrator.DefaultCooldown = 15 * time.Minute
	}
	cfg.Orchestrator.SourcesFile = v.GetString("SOURCES_FILE")

	// 定时触发配置
	cfg.Trigger.AgentCron = v.GetString("AGENT_CRON")
	if cfg.Trigger.AgentCron == "" {
		cfg.Trigger.AgentCron = "@every 1m"
	}
	cfg.Trigger.Concurrency = v.GetInt("TRIGGER_CONCURRENCY")
	if cfg.Trigger.Concurrency == 0 {
		cfg.Trigger.Concurrency = 4
	}
	cfg.Trigger.Queue = v.GetString("TRIGGER_QUEUE")
	if cfg.Trigger.Queue == "" {
		cfg.Trigger.Queue = "pipeline"
	}
	cfg.Trigger.RunTimeout = v.GetDuration("TRIGGER_RUN_TIMEOUT")
	if cfg.Trigger.RunTimeout == 0 {
		cfg.Trigger.RunTimeout = 5 * time.Minute
	}

	// X API 配置
	cfg.XAPI.BearerToken = v.GetString("X_API_BEARER_TOKEN")
	cfg.XAPI.WOEID = v.GetInt64("X_API_WOEID")
	if cfg.XAPI.WOEID == 0 {
		cfg.XAPI.WOEID = 23424908 // Nigeria
	}
	cfg.XAPI.BaseURL = v.GetString("X_API_BASE_URL")
	if cfg.XAPI.BaseURL == "" {
		cfg.XAPI.BaseURL = "https://api.twitter.com"
	}
	cfg.XAPI.Timeout = v.GetDuration("X_API_TIMEOUT")
	if cfg.XAPI.Timeout == 0 {
		cfg.XAPI.Timeout = 15 * time.Second
	}

	// Gemini 配置
	cfg.Gemini.APIKey = v.GetString("GEMINI_API_KEY")
	cfg.Gemini.Model = v.GetString("GEMINI_MODEL")
	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = "gemini-1.5-flash"
	}
	cfg.Gemini.MaxTokens = int32(v.GetInt("GEMINI_MAX_TOKENS"))
	if cfg.Gemini.MaxTokens == 0 {
		cfg.Gemini.MaxTokens = 1024
	}

	// 网页抓取配置
	cfg.Crawl.ServerURL = strings.TrimRight(v.GetString("CRAWL_SERVER_URL"), "/")
	cfg.Crawl.APIKey = v.GetString("CRAWL_API_KEY")
	cfg.Crawl.ContentLimit = v.GetInt("CRAWL_CONTENT_LIMIT")
	if cfg.Crawl.ContentLimit == 0 {
		cfg.Crawl.ContentLimit = 1000
	}
	cfg.Crawl.Timeout = v.GetDuration("CRAWL_TIMEOUT")
	if cfg.Crawl.Timeout == 0 {
		cfg.Crawl.Timeout = 60 * time.Second
	}

	// RSS 配置
	cfg.Feed.MaxHeadlines = v.GetInt("FEED_MAX_HEADLINES")
	if cfg.Feed.MaxHeadlines == 0 {
		cfg.Feed.MaxHeadlines = 10
	}
	cfg.Feed.Timeout = v.GetDuration("FEED_TIMEOUT")
	if cfg.Feed.Timeout == 0 {
		cfg.Feed.Timeout = 15 * time.Second
	}

	// 日志配置
	cfg.Log.Level = v.GetString("LOG_LEVEL")
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	cfg.Log.Production = v.GetBool("LOG_PRODUCTION")

	// 监控配置
	cfg.Monitoring.Enabled = v.GetBool("MONITORING_ENABLED")
	cfg.Monitoring.Port = v.GetInt("MONITORING_PORT")
	if cfg.Monitoring.Port == 0 {
		cfg.Monitoring.Port = 29091
	}

	return cfg
}

// Validate 验证配置。动作相关的密钥不在这里校验，由各代理在认领前自行检查。
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreDriverPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required when STORE_DRIVER=postgres")
		}
	case StoreDriverRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required when STORE_DRIVER=redis")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Orchestrator.DefaultCooldown < 0 {
		return fmt.Errorf("ORCHESTRATOR_DEFAULT_COOLDOWN must not be negative")
	}
	if c.Feed.MaxHeadlines < 0 {
		return fmt.Errorf("FEED_MAX_HEADLINES must not be negative")
	}
	return nil
}
