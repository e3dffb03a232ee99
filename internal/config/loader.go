// Package config 提供配置加载功能
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// envPattern 匹配 ${VAR} 或 ${VAR:default}
// g1: 变量名, g2: 默认值部分（含冒号）, g3: 默认值内容
var envPattern = regexp.MustCompile(`\${(\w+)(:([^}]*))?}`)

// Load 加载配置文件
// 按优先级加载：默认配置 -> 环境配置 -> 环境变量
func Load() (*Config, error) {
	return LoadFrom("configs")
}

// LoadFrom 从指定目录加载配置
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if err := loadConfigFile(v, dir+"/config.yaml", true); err != nil {
		return nil, err
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	if err := loadConfigFile(v, fmt.Sprintf("%s/config.%s.yaml", dir, env), true); err != nil {
		return nil, err
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadConfigFile 读取文件，执行环境变量替换，并加载到 viper
func loadConfigFile(v *viper.Viper, path string, optional bool) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	reader := strings.NewReader(expandEnv(string(content)))
	if v.ConfigFileUsed() == "" {
		if err := v.ReadConfig(reader); err != nil {
			return fmt.Errorf("failed to read processed config %s: %w", path, err)
		}
		v.SetConfigFile(path)
		return nil
	}
	if err := v.MergeConfig(reader); err != nil {
		return fmt.Errorf("failed to merge processed config %s: %w", path, err)
	}
	return nil
}

// expandEnv 替换字符串中的 ${VAR:default} 占位符，未定义且无默认值的保留原样
func expandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		sub := envPattern.FindStringSubmatch(match)
		if val, ok := os.LookupEnv(sub[1]); ok {
			return val
		}
		if sub[2] != "" {
			return sub[3]
		}
		return match
	})
}

// Validate 校验关键配置
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverMongo, DriverSQLite:
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	switch c.Mail.Provider {
	case MailProviderSMTP, MailProviderSendGrid:
	default:
		return fmt.Errorf("unsupported mail.provider %q", c.Mail.Provider)
	}
	if c.Story.TotalTurns < 2 {
		return fmt.Errorf("story.total_turns must be at least 2, got %d", c.Story.TotalTurns)
	}
	if c.TTS.ChunkLimit <= 0 {
		return fmt.Errorf("tts.chunk_limit must be positive")
	}
	return nil
}

// MustLoad 加载配置，失败时 panic
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// setDefaults 设置配置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "horror-nobel-api")
	v.SetDefault("app.version", "v0.0.0")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.dev_mode", false)

	v.SetDefault("server.http.host", "0.0.0.0")
	v.SetDefault("server.http.port", 8000)
	v.SetDefault("server.http.read_timeout", "30s")
	v.SetDefault("server.http.write_timeout", "180s")
	v.SetDefault("server.http.idle_timeout", "120s")

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.database", "horror_nobel")
	v.SetDefault("database.postgres.ssl_mode", "disable")
	v.SetDefault("database.postgres.max_open_conns", 20)
	v.SetDefault("database.postgres.max_idle_conns", 5)
	v.SetDefault("database.postgres.conn_max_lifetime", "30m")
	v.SetDefault("database.postgres.conn_max_idle_time", "5m")
	v.SetDefault("database.postgres.auto_migrate", true)
	v.SetDefault("database.mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("database.mongo.database", "horror_nobel")
	v.SetDefault("database.mongo.connect_timeout", "10s")
	v.SetDefault("database.sqlite.path", "data/stories.db")

	v.SetDefault("cache.redis.enabled", true)
	v.SetDefault("cache.redis.host", "localhost")
	v.SetDefault("cache.redis.port", 6379)
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.pool_size", 20)
	v.SetDefault("cache.redis.min_idle_conns", 2)
	v.SetDefault("cache.redis.dial_timeout", "5s")
	v.SetDefault("cache.redis.read_timeout", "3s")
	v.SetDefault("cache.redis.write_timeout", "3s")
	v.SetDefault("cache.redis.audio_url_ttl", "24h")
	v.SetDefault("cache.redis.lock_ttl", "3m")

	v.SetDefault("storage.audio.backend", "os")
	v.SetDefault("storage.audio.dir", "static/audio")
	v.SetDefault("storage.audio.url_prefix", "/static/audio")

	v.SetDefault("llm.default_provider", "openai")

	v.SetDefault("tts.model", "gpt-4o-mini-tts")
	v.SetDefault("tts.fallback_model", "tts-1")
	v.SetDefault("tts.voice", "onyx")
	v.SetDefault("tts.speed", 0.8)
	v.SetDefault("tts.chunk_limit", 2300)
	v.SetDefault("tts.concurrency", 3)
	v.SetDefault("tts.timeout", "120s")

	v.SetDefault("mail.provider", MailProviderSMTP)
	v.SetDefault("mail.from", "noreply@your-horror-nobel.com")
	v.SetDefault("mail.treat_failure_as_success", false)
	v.SetDefault("mail.smtp.host", "smtp.gmail.com")
	v.SetDefault("mail.smtp.port", 587)
	v.SetDefault("mail.smtp.timeout", "30s")

	v.SetDefault("messaging.redis_stream.enabled", true)
	v.SetDefault("messaging.redis_stream.max_len", 10000)
	v.SetDefault("messaging.redis_stream.consumer_group_prefix", "horror-nobel:")
	v.SetDefault("messaging.redis_stream.block_timeout", "5s")
	v.SetDefault("messaging.redis_stream.claim_interval", "30s")
	v.SetDefault("messaging.redis_stream.retry_limit", 3)
	v.SetDefault("messaging.redis_stream.retry_backoff.initial", "2s")
	v.SetDefault("messaging.redis_stream.retry_backoff.max", "1m")
	v.SetDefault("messaging.redis_stream.retry_backoff.multiplier", 2.0)

	v.SetDefault("story.total_turns", 4)
	v.SetDefault("story.strict_turns", false)
	v.SetDefault("story.max_message_length", 1000)

	v.SetDefault("pdf.page_width", 1240)
	v.SetDefault("pdf.page_height", 1754)
	v.SetDefault("pdf.dpi", 150)
	v.SetDefault("pdf.top_margin", 160)
	v.SetDefault("pdf.bottom_margin", 160)
	v.SetDefault("pdf.side_margin", 130)
	v.SetDefault("pdf.background_paths", []string{"assets/background.png", "static/images/background.png"})
	v.SetDefault("pdf.font_paths", []string{
		"assets/fonts/NotoSerifJP-Regular.ttf",
		"/usr/share/fonts/truetype/noto/NotoSansCJK-Regular.ttc",
		"/usr/share/fonts/opentype/noto/NotoSansCJK-Regular.ttc",
	})

	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.tracing.enabled", false)
	v.SetDefault("observability.tracing.endpoint", "localhost:4317")
	v.SetDefault("observability.tracing.sample_rate", 1.0)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.path", "/metrics")

	v.SetDefault("security.cors.allowed_origins", []string{"*"})
	v.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("security.cors.allowed_headers", []string{"Origin", "Content-Type", "Accept", "X-Request-ID"})
}
