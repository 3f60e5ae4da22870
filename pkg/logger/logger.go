// Package logger 提供统一的日志框架
package logger

import (
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

// Config 日志配置
type Config struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"` // json/console
	Output     string `yaml:"output" json:"output"` // stdout/stderr/file
	FilePath   string `yaml:"file_path,omitempty" json:"file_path,omitempty"`
	TimeFormat string `yaml:"time_format,omitempty" json:"time_format,omitempty"`
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

// Init 初始化全局日志器，只有第一次调用生效
func Init(cfg Config) {
	once.Do(func() {
		logger = New(cfg)
	})
}

// New 按配置创建日志器
func New(cfg Config) zerolog.Logger {
	var output io.Writer
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "file":
		output = os.Stdout
		if cfg.FilePath != "" {
			if f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
				output = f
			}
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

	return zerolog.New(output).Level(parseLevel(cfg.Level)).With().Timestamp().Logger()
}

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
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Get 获取全局日志器，未初始化时使用默认配置
func Get() *zerolog.Logger {
	Init(DefaultConfig())
	return &logger
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

// WithComponent 创建带组件名的子日志器
func WithComponent(name string) zerolog.Logger {
	return Get().With().Str("component", name).Logger()
}

// SchedulerLogger 排班引擎专用日志器
type SchedulerLogger struct {
	base zerolog.Logger
}

// NewSchedulerLogger 基于全局日志器创建排班引擎日志器
func NewSchedulerLogger() *SchedulerLogger {
	return NewSchedulerLoggerFrom(*Get())
}

// NewSchedulerLoggerFrom 基于指定日志器创建，测试中可传入 zerolog.Nop()
func NewSchedulerLoggerFrom(l zerolog.Logger) *SchedulerLogger {
	return &SchedulerLogger{base: l.With().Str("component", "scheduler").Logger()}
}

// StartSchedule 记录排班开始
func (l *SchedulerLogger) StartSchedule(runID, siteID string, employees, days int) {
	l.base.Info().
		Str("run_id", runID).
		Str("site_id", siteID).
		Int("employees", employees).
		Int("days", days).
		Msg("开始生成排班")
}

// DemandBuilt 记录需求时段展开结果
func (l *SchedulerLogger) DemandBuilt(runID string, slots int) {
	l.base.Debug().
		Str("run_id", runID).
		Int("slots", slots).
		Msg("需求时段展开完成")
}

// SolverStart 记录求解器及其启用的约束
func (l *SchedulerLogger) SolverStart(runID, solver string, constraints []string) {
	l.base.Debug().
		Str("run_id", runID).
		Str("solver", solver).
		Strs("constraints", constraints).
		Msg("开始分配时段")
}

// SlotUnderstaffed 记录人手不足的时段
func (l *SchedulerLogger) SlotUnderstaffed(slotID string, required, assigned int) {
	l.base.Debug().
		Str("slot_id", slotID).
		Int("required", required).
		Int("assigned", assigned).
		Msg("时段人手不足")
}

// BudgetExhausted 记录迭代预算耗尽
func (l *SchedulerLogger) BudgetExhausted(runID string, processed, total int) {
	l.base.Warn().
		Str("run_id", runID).
		Int("processed", processed).
		Int("total", total).
		Msg("迭代次数已用尽，剩余时段未分配")
}

// ScheduleComplete 记录排班完成
func (l *SchedulerLogger) ScheduleComplete(runID string, duration time.Duration, shifts, conflicts int, score float64) {
	l.base.Info().
		Str("run_id", runID).
		Dur("duration", duration).
		Int("shifts", shifts).
		Int("conflicts", conflicts).
		Float64("score", score).
		Msg("排班生成完成")
}

// ValidationFailed 记录输入校验失败
func (l *SchedulerLogger) ValidationFailed(runID string, err error) {
	l.base.Warn().
		Str("run_id", runID).
		Err(err).
		Msg("排班输入校验失败")
}
