// Package config 提供配置管理
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/paiban/pharmashift/pkg/model"
)

// Config 应用配置
type Config struct {
	App       AppConfig       `yaml:"app"`
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name      string `yaml:"name"`
	Env       string `yaml:"env"`
	Port      int    `yaml:"port"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// DatabaseConfig 数据库配置，Enabled 为 false 时不持久化排班结果
type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DSN 返回数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// APIConfig API配置
type APIConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	MaxRequestSize int64         `yaml:"max_request_size"` // 字节
	RateLimit      int           `yaml:"rate_limit"`       // 每秒请求数，0 表示不限流
}

// SchedulerConfig 排班引擎配置
type SchedulerConfig struct {
	DefaultsFile string                `yaml:"defaults_file"`
	Algorithm    model.AlgorithmConfig `yaml:"algorithm"` // 请求未提供算法配置时使用
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load 从环境变量加载配置。当前目录存在 .env 时先载入，已有的环境变量不会被覆盖。
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Name:      getEnv("APP_NAME", "pharmashift"),
			Env:       getEnv("APP_ENV", "development"),
			Port:      getEnvInt("APP_PORT", 7012),
			LogLevel:  getEnv("APP_LOG_LEVEL", "info"),
			LogFormat: getEnv("APP_LOG_FORMAT", "json"),
		},
		Database: DatabaseConfig{
			Enabled:         getEnvBool("DB_ENABLED", false),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "pharmashift"),
			User:            getEnv("DB_USER", "pharmashift"),
			Password:        getEnv("DB_PASSWORD", ""),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		API: APIConfig{
			Timeout:        getEnvDuration("API_TIMEOUT", 30*time.Second),
			MaxRequestSize: int64(getEnvInt("API_MAX_REQUEST_SIZE", 4<<20)),
			RateLimit:      getEnvInt("API_RATE_LIMIT", 100),
		},
		Scheduler: SchedulerConfig{
			DefaultsFile: getEnv("SCHEDULER_DEFAULTS_FILE", ""),
			Algorithm:    model.DefaultAlgorithmConfig(),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
	}

	if cfg.Scheduler.DefaultsFile != "" {
		algo, err := LoadAlgorithmDefaults(cfg.Scheduler.DefaultsFile)
		if err != nil {
			return nil, err
		}
		cfg.Scheduler.Algorithm = algo
	}
	cfg.Scheduler.Algorithm.MaxIterations = getEnvInt("SCHEDULER_MAX_ITERATIONS", cfg.Scheduler.Algorithm.MaxIterations)

	if err := cfg.Scheduler.Algorithm.Validate(); err != nil {
		return nil, fmt.Errorf("排班算法配置无效: %w", err)
	}
	return cfg, nil
}

// LoadAlgorithmDefaults 读取 YAML 格式的算法默认配置。文件中未出现的字段保留内置默认值。
func LoadAlgorithmDefaults(path string) (model.AlgorithmConfig, error) {
	algo := model.DefaultAlgorithmConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return algo, fmt.Errorf("读取算法配置文件失败: %w", err)
	}
	if err := yaml.Unmarshal(data, &algo); err != nil {
		return algo, fmt.Errorf("解析算法配置文件失败: %w", err)
	}
	if err := algo.Validate(); err != nil {
		return algo, fmt.Errorf("算法配置文件 %s 无效: %w", path, err)
	}
	return algo, nil
}

// loadDotEnv 载入 env 文件，文件不存在时忽略
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("加载 %s 失败: %w", path, err)
	}
	return nil
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// 辅助函数
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
