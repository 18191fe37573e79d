// Package logger 提供统一的日志框架
package logger

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once   sync.Once
	logger zerolog.Logger
)

// Level 日志级别
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

type contextKey string

// 上下文键
const (
	RequestIDKey  contextKey = "request_id"
	DisciplineKey contextKey = "discipline_id"
)

// Config 日志配置
type Config struct {
	Level      string `koanf:"level" yaml:"level" json:"level" validate:"omitempty,oneof=debug info warn warning error fatal"`
	Format     string `koanf:"format" yaml:"format" json:"format"` // json/console
	Output     string `koanf:"output" yaml:"output" json:"output"` // stdout/stderr/file
	FilePath   string `koanf:"file_path" yaml:"file_path,omitempty" json:"file_path,omitempty"`
	TimeFormat string `koanf:"time_format" yaml:"time_format,omitempty" json:"time_format,omitempty"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}
}

// Init 初始化日志器
func Init(cfg Config) {
	once.Do(func() {
		level := parseLevel(cfg.Level)
		zerolog.SetGlobalLevel(level)

		var output io.Writer
		switch cfg.Output {
		case "stderr":
			output = os.Stderr
		case "file":
			if cfg.FilePath != "" {
				f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
				if err == nil {
					output = f
				} else {
					output = os.Stdout
				}
			} else {
				output = os.Stdout
			}
		default:
			output = os.Stdout
		}

		if cfg.Format == "console" {
			output = zerolog.ConsoleWriter{
				Out:        output,
				TimeFormat: cfg.TimeFormat,
			}
		}

		logger = zerolog.New(output).With().Timestamp().Logger()
	})
}

// parseLevel 解析日志级别
func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get 获取日志器
func Get() *zerolog.Logger {
	if logger.GetLevel() == zerolog.Disabled {
		Init(DefaultConfig())
	}
	return &logger
}

// WithContext 从上下文创建日志器
func WithContext(ctx context.Context) *zerolog.Logger {
	l := Get().With().Logger()

	// 添加请求ID
	if reqID, ok := ctx.Value(RequestIDKey).(string); ok {
		l = l.With().Str("request_id", reqID).Logger()
	}

	// 添加学科ID
	if disciplineID, ok := ctx.Value(DisciplineKey).(int64); ok {
		l = l.With().Int64("discipline_id", disciplineID).Logger()
	}

	return &l
}

// Debug 记录调试日志
func Debug() *zerolog.Event {
	return Get().Debug()
}

// Info 记录信息日志
func Info() *zerolog.Event {
	return Get().Info()
}

// Warn 记录警告日志
func Warn() *zerolog.Event {
	return Get().Warn()
}

// Error 记录错误日志
func Error() *zerolog.Event {
	return Get().Error()
}

// Fatal 记录致命错误日志
func Fatal() *zerolog.Event {
	return Get().Fatal()
}

// WithError 添加错误信息
func WithError(err error) *zerolog.Event {
	return Get().Error().Err(err)
}

// WithField 添加字段
func WithField(key string, value interface{}) *zerolog.Logger {
	l := Get().With().Interface(key, value).Logger()
	return &l
}

// WithFields 添加多个字段
func WithFields(fields map[string]interface{}) *zerolog.Logger {
	ctx := Get().With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	l := ctx.Logger()
	return &l
}

// AllocationLogger 分配引擎专用日志器
type AllocationLogger struct {
	base *zerolog.Logger
}

// NewAllocationLogger 创建分配引擎日志器
func NewAllocationLogger(strategy string) *AllocationLogger {
	l := Get().With().Str("component", "allocation").Str("strategy", strategy).Logger()
	return &AllocationLogger{base: &l}
}

// StartRun 记录运行开始
func (l *AllocationLogger) StartRun(runID string, disciplineID int64, candidates, authors int) {
	l.base.Info().
		Str("run_id", runID).
		Int64("discipline_id", disciplineID).
		Int("candidates", candidates).
		Int("authors", authors).
		Msg("开始槽位分配")
}

// Rejected 记录候选被拒绝
func (l *AllocationLogger) Rejected(candidateID int64, rule string) {
	l.base.Debug().
		Int64("candidate_id", candidateID).
		Str("rule", rule).
		Msg("候选未准入")
}

// Improvement 记录搜索发现更优解
func (l *AllocationLogger) Improvement(step int, points float64) {
	l.base.Debug().
		Int("step", step).
		Float64("points", points).
		Msg("发现更优解")
}

// Stopped 记录搜索停止原因
func (l *AllocationLogger) Stopped(reason string, step int, best, ceiling float64) {
	l.base.Info().
		Str("reason", reason).
		Int("step", step).
		Float64("best", best).
		Float64("ceiling", ceiling).
		Msg("搜索停止")
}

// RunComplete 记录运行完成
func (l *AllocationLogger) RunComplete(runID string, duration time.Duration, points, slots float64, selected int) {
	l.base.Info().
		Str("run_id", runID).
		Dur("duration", duration).
		Float64("points", points).
		Float64("slots", slots).
		Int("selected", selected).
		Msg("槽位分配完成")
}

// RunFailed 记录运行失败
func (l *AllocationLogger) RunFailed(runID string, err error) {
	l.base.Error().
		Str("run_id", runID).
		Err(err).
		Msg("槽位分配失败")
}
