// Package config 提供配置加载和管理功能
package config

import (
	"fmt"
	"time"
)

// Config 应用配置根结构
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Database      DatabaseConfig      `yaml:"database" mapstructure:"database"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Storage       StorageConfig       `yaml:"storage" mapstructure:"storage"`
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	TTS           TTSConfig           `yaml:"tts" mapstructure:"tts"`
	Mail          MailConfig          `yaml:"mail" mapstructure:"mail"`
	Messaging     MessagingConfig     `yaml:"messaging" mapstructure:"messaging"`
	Story         StoryConfig         `yaml:"story" mapstructure:"story"`
	PDF           PDFConfig           `yaml:"pdf" mapstructure:"pdf"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Security      SecurityConfig      `yaml:"security" mapstructure:"security"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Version string `yaml:"version" mapstructure:"version"`
	Env     string `yaml:"env" mapstructure:"env"`
	// DevMode 开发模式：跳过邮箱重复校验
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// IsProduction 是否生产环境
func (c AppConfig) IsProduction() bool {
	return c.Env == "production"
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPServerConfig `yaml:"http" mapstructure:"http"`
}

// HTTPServerConfig HTTP 服务器配置
type HTTPServerConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// Addr 监听地址
func (c HTTPServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// 故事存储驱动
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// Driver 故事存储驱动: postgres/mongo/sqlite
	Driver   string         `yaml:"driver" mapstructure:"driver"`
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
	Mongo    MongoConfig    `yaml:"mongo" mapstructure:"mongo"`
	SQLite   SQLiteConfig   `yaml:"sqlite" mapstructure:"sqlite"`
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	User            string        `yaml:"user" mapstructure:"user"`
	Password        string        `yaml:"password" mapstructure:"password"`
	Database        string        `yaml:"database" mapstructure:"database"`
	SSLMode         string        `yaml:"ssl_mode" mapstructure:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
	AutoMigrate     bool          `yaml:"auto_migrate" mapstructure:"auto_migrate"`
}

// DSN 构造连接串
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// MongoConfig MongoDB 配置
type MongoConfig struct {
	URI            string        `yaml:"uri" mapstructure:"uri"`
	Database       string        `yaml:"database" mapstructure:"database"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`
}

// SQLiteConfig SQLite 配置
type SQLiteConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"`
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	// AudioURLTTL 音频 URL 缓存时长
	AudioURLTTL time.Duration `yaml:"audio_url_ttl" mapstructure:"audio_url_ttl"`
	// LockTTL 故事完成锁的过期时间
	LockTTL time.Duration `yaml:"lock_ttl" mapstructure:"lock_ttl"`
}

// Addr Redis 地址
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StorageConfig 文件存储配置
type StorageConfig struct {
	Audio AudioStorageConfig `yaml:"audio" mapstructure:"audio"`
}

// AudioStorageConfig 音频文件存储
type AudioStorageConfig struct {
	// Backend os 或 memory
	Backend string `yaml:"backend" mapstructure:"backend"`
	Dir     string `yaml:"dir" mapstructure:"dir"`
	// URLPrefix 对外暴露的静态路径前缀
	URLPrefix string `yaml:"url_prefix" mapstructure:"url_prefix"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider" mapstructure:"default_provider"`
	Providers       map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`
}

// ProviderConfig LLM 提供商配置
type ProviderConfig struct {
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Model       string        `yaml:"model" mapstructure:"model"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// TTSConfig 语音合成配置
type TTSConfig struct {
	APIKey        string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL       string        `yaml:"base_url" mapstructure:"base_url"`
	Model         string        `yaml:"model" mapstructure:"model"`
	FallbackModel string        `yaml:"fallback_model" mapstructure:"fallback_model"`
	Voice         string        `yaml:"voice" mapstructure:"voice"`
	Speed         float64       `yaml:"speed" mapstructure:"speed"`
	Instructions  string        `yaml:"instructions" mapstructure:"instructions"`
	ChunkLimit    int           `yaml:"chunk_limit" mapstructure:"chunk_limit"`
	Concurrency   int           `yaml:"concurrency" mapstructure:"concurrency"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// 邮件提供商
const (
	MailProviderSMTP     = "smtp"
	MailProviderSendGrid = "sendgrid"
)

// MailConfig 邮件配置
type MailConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"`
	From     string `yaml:"from" mapstructure:"from"`
	// TreatFailureAsSuccess 投递失败时仍按成功返回，仅用于本地开发
	TreatFailureAsSuccess bool           `yaml:"treat_failure_as_success" mapstructure:"treat_failure_as_success"`
	SMTP                  SMTPConfig     `yaml:"smtp" mapstructure:"smtp"`
	SendGrid              SendGridConfig `yaml:"sendgrid" mapstructure:"sendgrid"`
}

// SMTPConfig SMTP 配置
type SMTPConfig struct {
	Host     string        `yaml:"host" mapstructure:"host"`
	Port     int           `yaml:"port" mapstructure:"port"`
	Username string        `yaml:"username" mapstructure:"username"`
	Password string        `yaml:"password" mapstructure:"password"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// SendGridConfig SendGrid 配置
type SendGridConfig struct {
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

// MessagingConfig 消息队列配置
type MessagingConfig struct {
	RedisStream RedisStreamConfig `yaml:"redis_stream" mapstructure:"redis_stream"`
}

// RedisStreamConfig Redis Stream 配置
type RedisStreamConfig struct {
	Enabled             bool          `yaml:"enabled" mapstructure:"enabled"`
	MaxLen              int64         `yaml:"max_len" mapstructure:"max_len"`
	ConsumerGroupPrefix string        `yaml:"consumer_group_prefix" mapstructure:"consumer_group_prefix"`
	BlockTimeout        time.Duration `yaml:"block_timeout" mapstructure:"block_timeout"`
	ClaimInterval       time.Duration `yaml:"claim_interval" mapstructure:"claim_interval"`
	RetryLimit          int           `yaml:"retry_limit" mapstructure:"retry_limit"`
	RetryBackoff        BackoffConfig `yaml:"retry_backoff" mapstructure:"retry_backoff"`
}

// BackoffConfig 退避配置
type BackoffConfig struct {
	Initial    time.Duration `yaml:"initial" mapstructure:"initial"`
	Max        time.Duration `yaml:"max" mapstructure:"max"`
	Multiplier float64       `yaml:"multiplier" mapstructure:"multiplier"`
}

// StoryConfig 故事流程配置
type StoryConfig struct {
	// TotalTurns 用户发言轮数上限（起承转结中的承/转/结）
	TotalTurns int `yaml:"total_turns" mapstructure:"total_turns"`
	// StrictTurns 超出轮数时拒绝而不是回落到「承」
	StrictTurns bool `yaml:"strict_turns" mapstructure:"strict_turns"`
	// MaxMessageLength 单条用户消息的最大字符数
	MaxMessageLength int `yaml:"max_message_length" mapstructure:"max_message_length"`
}

// PDFConfig PDF 排版配置
type PDFConfig struct {
	// BackgroundPaths 背景模板候选路径，取第一个存在的
	BackgroundPaths []string `yaml:"background_paths" mapstructure:"background_paths"`
	// FontPaths 字体候选路径，取第一个存在的
	FontPaths []string `yaml:"font_paths" mapstructure:"font_paths"`
	// PageWidth/PageHeight 页面像素尺寸
	PageWidth    float64 `yaml:"page_width" mapstructure:"page_width"`
	PageHeight   float64 `yaml:"page_height" mapstructure:"page_height"`
	DPI          float64 `yaml:"dpi" mapstructure:"dpi"`
	TopMargin    float64 `yaml:"top_margin" mapstructure:"top_margin"`
	BottomMargin float64 `yaml:"bottom_margin" mapstructure:"bottom_margin"`
	SideMargin   float64 `yaml:"side_margin" mapstructure:"side_margin"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	CORS CORSConfig `yaml:"cors" mapstructure:"cors"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
}
