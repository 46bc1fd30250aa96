package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义本地 HTTP 服务的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "127.0.0.1"（本地代理只服务本机 UI）
	Port int    // 监听端口，默认 8025
}

// ProviderConfig 定义远端邮件提供商的访问配置
type ProviderConfig struct {
	BaseURLs       []string      // 候选提供商 API 地址列表，按顺序探测
	RequestTimeout time.Duration // 单次请求超时，默认 15s
	RateLimit      float64       // 每秒最大请求数（提供商限流），默认 4
	RateBurst      int           // 突发请求上限，默认 8
}

// SyncConfig 定义收件箱同步配置
type SyncConfig struct {
	PollInterval time.Duration // 轮询周期，默认 5s
}

// StorageConfig 定义邮箱集合的持久化配置
type StorageConfig struct {
	Backend string // 存储后端: "file" 或 "redis"，默认 "file"
	Path    string // file 后端的数据目录，默认 "./data"
}

// RedisConfig 定义 Redis 持久化后端配置
type RedisConfig struct {
	Address  string // Redis 服务地址，格式 "host:port"，默认 "localhost:6379"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	File        string // 日志文件路径，留空只输出到控制台
}

// Config 是代理程序核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server   ServerConfig   // 本地 HTTP 服务配置
	Provider ProviderConfig // 邮件提供商配置
	Sync     SyncConfig     // 收件箱同步配置
	Storage  StorageConfig  // 持久化配置
	Redis    RedisConfig    // Redis 配置
	CORS     CORSConfig     // 跨域配置
	Log      LogConfig      // 日志配置
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: NEXUS_
// 例如: NEXUS_SERVER_PORT, NEXUS_PROVIDER_BASE_URLS
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，因为 .env 文件是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("nexus")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 8025)
	viper.SetDefault("provider.base_urls", "https://api.mail.tm,https://api.mail.gw")
	viper.SetDefault("provider.request_timeout", "15s")
	viper.SetDefault("provider.rate_limit", 4.0)
	viper.SetDefault("provider.rate_burst", 8)
	viper.SetDefault("sync.poll_interval", "5s")
	viper.SetDefault("storage.backend", "file")
	viper.SetDefault("storage.path", "./data")
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("log.file", "")

	baseURLs := parseList(viper.GetString("provider.base_urls"))
	if len(baseURLs) == 0 {
		return nil, fmt.Errorf("provider.base_urls must not be empty")
	}
	for _, u := range baseURLs {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return nil, fmt.Errorf("invalid provider base url: %q", u)
		}
	}

	requestTimeout, err := time.ParseDuration(viper.GetString("provider.request_timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid provider.request_timeout: %w", err)
	}

	pollInterval, err := time.ParseDuration(viper.GetString("sync.poll_interval"))
	if err != nil {
		return nil, fmt.Errorf("invalid sync.poll_interval: %w", err)
	}
	if pollInterval < time.Second {
		return nil, fmt.Errorf("sync.poll_interval must be at least 1s")
	}

	backend := strings.ToLower(viper.GetString("storage.backend"))
	if backend != "file" && backend != "redis" {
		return nil, fmt.Errorf("storage.backend must be \"file\" or \"redis\", got %q", backend)
	}

	rateLimit := viper.GetFloat64("provider.rate_limit")
	if rateLimit <= 0 {
		rateLimit = 4.0
	}
	rateBurst := viper.GetInt("provider.rate_burst")
	if rateBurst <= 0 {
		rateBurst = 8
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Provider: ProviderConfig{
			BaseURLs:       baseURLs,
			RequestTimeout: requestTimeout,
			RateLimit:      rateLimit,
			RateBurst:      rateBurst,
		},
		Sync: SyncConfig{
			PollInterval: pollInterval,
		},
		Storage: StorageConfig{
			Backend: backend,
			Path:    viper.GetString("storage.path"),
		},
		Redis: RedisConfig{
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
			File:        viper.GetString("log.file"),
		},
	}

	return cfg, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env（从 cmd/ 子目录运行时）
//
// 注意：
//   - 如果文件不存在，静默失败（.env 是可选的）
//   - 环境变量不会被覆盖（已存在的环境变量优先级更高）
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
