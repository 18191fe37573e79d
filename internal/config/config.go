// Package config 提供配置管理
package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/bpp/sloty/pkg/allocation/optimizer"
	"github.com/bpp/sloty/pkg/logger"
)

// Config 应用配置
type Config struct {
	App        AppConfig        `koanf:"app"`
	Log        logger.Config    `koanf:"log"`
	Database   DatabaseConfig   `koanf:"database"`
	Engine     EngineConfig     `koanf:"engine"`
	Checkpoint CheckpointConfig `koanf:"checkpoint"`
	Metrics    MetricsConfig    `koanf:"metrics"`
	API        APIConfig        `koanf:"api"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name string `koanf:"name" validate:"required"`
	Env  string `koanf:"env" validate:"oneof=development test staging production"`
	Port int    `koanf:"port" validate:"min=1,max=65535"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Host            string        `koanf:"host" validate:"required_if=Enabled true"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	Name            string        `koanf:"name" validate:"required_if=Enabled true"`
	User            string        `koanf:"user"`
	Password        string        `koanf:"password"`
	SSLMode         string        `koanf:"ssl_mode" validate:"oneof=disable require verify-ca verify-full"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"min=1"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"min=0,ltefield=MaxOpenConns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

// DSN 返回数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// EngineConfig 分配引擎配置
type EngineConfig struct {
	Strategy   string                  `koanf:"strategy" validate:"oneof=sequential greedy reorder genetic"`
	Seed       int64                   `koanf:"seed"` // 0 表示每次运行使用当前时间
	Workers    int                     `koanf:"workers" validate:"min=1"`
	MaxCells   int64                   `koanf:"max_cells" validate:"min=1"` // 背包动态规划表规模上限
	RunTimeout time.Duration           `koanf:"run_timeout"`                // 单个学科运行超时，0 表示不限
	Reorder    optimizer.ReorderConfig `koanf:"reorder"`
	Genetic    optimizer.GeneticConfig `koanf:"genetic"`
}

// CheckpointConfig 断点配置
type CheckpointConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Backend  string        `koanf:"backend" validate:"oneof=file postgres"`
	Dir      string        `koanf:"dir" validate:"required_if=Backend file"`
	Interval time.Duration `koanf:"interval"`              // 两次保存的最小间隔
	Resume   bool          `koanf:"resume"`                // 运行前从最近的断点恢复顺序
	Keep     int           `koanf:"keep" validate:"min=0"` // 每个学科与策略保留的断点数，0 表示不清理
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Path      string `koanf:"path" validate:"startswith=/"`
	Namespace string `koanf:"namespace" validate:"required"`
}

// APIConfig API配置
type APIConfig struct {
	RateLimit       float64       `koanf:"rate_limit" validate:"min=0"` // 每秒请求数，0 表示不限
	Burst           int           `koanf:"burst" validate:"min=0"`
	Timeout         time.Duration `koanf:"timeout"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes" validate:"min=1"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name: "sloty",
			Env:  "development",
			Port: 7012,
		},
		Log: logger.DefaultConfig(),
		Database: DatabaseConfig{
			Enabled:         false,
			Host:            "localhost",
			Port:            5432,
			Name:            "sloty",
			User:            "sloty",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Engine: EngineConfig{
			Strategy: "greedy",
			Workers:  runtime.NumCPU(),
			MaxCells: 1 << 26,
			Reorder:  optimizer.DefaultReorderConfig(),
			Genetic:  optimizer.DefaultGeneticConfig(),
		},
		Checkpoint: CheckpointConfig{
			Enabled:  false,
			Backend:  "file",
			Dir:      "./checkpoints",
			Interval: 10 * time.Second,
			Resume:   true,
			Keep:     5,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Path:      "/metrics",
			Namespace: "sloty",
		},
		API: APIConfig{
			RateLimit:       50,
			Burst:           100,
			Timeout:         5 * time.Minute,
			MaxBodyBytes:    32 << 20,
			ShutdownTimeout: 30 * time.Second,
		},
	}
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
