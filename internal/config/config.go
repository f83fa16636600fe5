package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

const (
	ProviderSerpAPI  = "serpapi"
	ProviderTrends24 = "trends24"
)

// Config 汇总进程级配置，命令行参数优先，其次环境变量，最后默认值
type Config struct {
	AppPort string `long:"port" env:"APP_PORT" default:"9000" description:"HTTP 端口"`

	RedisAddr     string        `long:"redis-addr" env:"REDIS_ADDR" default:"localhost:6380" description:"Redis 地址"`
	RedisPassword string        `long:"redis-password" env:"REDIS_PASSWORD" description:"Redis 密码"`
	RedisDB       int           `long:"redis-db" env:"REDIS_DB" default:"0" description:"Redis DB 编号"`
	ArticleTTL    time.Duration `long:"article-ttl" env:"ARTICLE_TTL" default:"72h" description:"当前文章集合的过期时间"`

	// cmd/api 与 cmd/collect 共用的运行锁，需大于一轮采集的最长耗时
	RunLockTTL time.Duration `long:"run-lock-ttl" env:"RUN_LOCK_TTL" default:"30m" description:"跨进程运行锁的过期时间"`

	// 为空时不记录运行历史
	PostgresDSN string `long:"postgres-dsn" env:"POSTGRES_DSN" description:"运行历史使用的 PostgreSQL DSN"`

	CronSpec     string        `long:"cron" env:"CRON_SPEC" default:"0 */6 * * *" description:"定时采集的 cron 表达式"`
	StartupDelay time.Duration `long:"startup-delay" env:"STARTUP_DELAY" default:"15s" description:"启动后首轮采集的延迟，0 表示不在启动时采集"`

	TrendsProvider string        `long:"trends-provider" env:"TRENDS_PROVIDER" default:"serpapi" description:"热搜来源: serpapi | trends24"`
	SerpAPIKey     string        `long:"serpapi-key" env:"SERPAPI_KEY" description:"SerpApi key"`
	TrendsGeo      string        `long:"trends-geo" env:"TRENDS_GEO" default:"IN" description:"Google Trends 地区"`
	TopicsTimeout  time.Duration `long:"topics-timeout" env:"TOPICS_TIMEOUT" default:"20s" description:"拉取热搜的超时"`

	SourcesFile       string        `long:"sources" env:"SOURCES_FILE" default:"sources.yaml" description:"采集源配置文件"`
	ScrapeTimeout     time.Duration `long:"scrape-timeout" env:"SCRAPE_TIMEOUT" default:"30s" description:"单个采集源的超时"`
	ScrapeConcurrency int           `long:"scrape-concurrency" env:"SCRAPE_CONCURRENCY" default:"4" description:"同时运行的采集源数量"`

	ExportDir           string `long:"export-dir" env:"EXPORT_DIR" description:"CSV 导出目录，为空则不导出"`
	ExportRetentionDays int    `long:"export-retention-days" env:"EXPORT_RETENTION_DAYS" default:"3" description:"CSV 保留天数"`

	BasicAuthUser string `long:"basic-user" env:"APP_BASIC_USER" description:"Basic Auth 用户名"`
	BasicAuthPass string `long:"basic-pass" env:"APP_BASIC_PASS" description:"Basic Auth 密码"`

	LogLevel  string `long:"log-level" env:"LOG_LEVEL" default:"info" description:"日志级别"`
	LogFormat string `long:"log-format" env:"LOG_FORMAT" default:"text" description:"日志格式: text | json"`
}

// ErrHelp 表示用户请求了 --help，调用方应直接退出
var ErrHelp = errors.New("help requested")

// Load 解析 args（不含程序名）。会先尝试加载当前目录下的 .env，文件不存在时忽略
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, ErrHelp
		}
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.TrendsProvider = strings.ToLower(strings.TrimSpace(c.TrendsProvider))
	switch c.TrendsProvider {
	case ProviderSerpAPI:
		if c.SerpAPIKey == "" {
			return errors.New("config: SERPAPI_KEY is required for the serpapi trends provider")
		}
	case ProviderTrends24:
	default:
		return fmt.Errorf("config: unknown trends provider %q", c.TrendsProvider)
	}

	if c.TopicsTimeout <= 0 || c.ScrapeTimeout <= 0 {
		return errors.New("config: timeouts must be positive")
	}
	if c.ScrapeConcurrency <= 0 {
		c.ScrapeConcurrency = 1
	}
	if c.ExportRetentionDays < 0 {
		c.ExportRetentionDays = 0
	}
	return nil
}

// BasicAuthEnabled 仅当用户名和密码都配置时才启用
func (c *Config) BasicAuthEnabled() bool {
	return c.BasicAuthUser != "" && c.BasicAuthPass != ""
}
