package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 客户端同步层的全部可配项
type Config struct {
	APIBaseURL  string        `mapstructure:"api_base_url"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	// 每秒放行的 API 请求数，防止快速连点打爆后端
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
	RedisAddr string  `mapstructure:"redis_addr"`
	RedisDB   int     `mapstructure:"redis_db"`
	// 难度/目录缓存 TTL
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	LogLevel     string        `mapstructure:"log_level"`
	SentryDSN    string        `mapstructure:"sentry_dsn"`
	OTLPEndpoint string        `mapstructure:"otlp_endpoint"`
}

// Load 读取配置：默认值 < 配置文件(sidequest.yaml) < SIDEQUEST_* 环境变量
func Load() (*Config, error) {
	v := viper.New()
	v.SetDefault("api_base_url", "http://localhost:8000")
	v.SetDefault("http_timeout", 10*time.Second)
	v.SetDefault("rate_limit", 20.0)
	v.SetDefault("rate_burst", 40)
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("cache_ttl", 5*time.Minute)
	v.SetDefault("log_level", "info")
	v.SetDefault("sentry_dsn", "")
	v.SetDefault("otlp_endpoint", "")

	v.SetConfigName("sidequest")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/sidequest")
	if err := v.ReadInConfig(); err != nil {
		// 没有配置文件属正常情况，其余错误要暴露
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	v.SetEnvPrefix("SIDEQUEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
