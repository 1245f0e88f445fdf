// Package log 提供全局 zerolog 日志器，输出到 stderr，可选写入 lumberjack 轮转文件.
// 每条日志带上节点角色，便于在副本与客户端混合部署时区分来源.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/natefinch/lumberjack"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yeisme/chest/pkg/configs"
)

var (
	logger   zerolog.Logger
	initOnce sync.Once
)

// Init 按全局配置初始化日志器，只生效一次.
func Init() {
	initOnce.Do(func() { logger = build(configs.GetConfig()) })
}

func build(cfg *configs.AppConfig) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level))
	if err != nil || lvl == zerolog.NoLevel {
		fmt.Fprintf(os.Stderr, "invalid log level %q, using info\n", cfg.Log.Level)

		lvl = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(lvl)

	var out io.Writer = os.Stderr
	if cfg.Log.Format != configs.LogFormatJSON {
		out = zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.Out = os.Stderr
			w.TimeFormat = time.TimeOnly
			w.PartsExclude = []string{"role"}
		})
	}

	if cfg.Log.EnableFile {
		out = zerolog.MultiLevelWriter(out, &lumberjack.Logger{
			Filename:   cfg.Log.FilePath,
			MaxSize:    cfg.Log.MaxSize,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAge,
			Compress:   cfg.Log.Compress,
		})
	}

	ctx := zerolog.New(out).With().Timestamp()
	if cfg.Chest.Role != "" {
		ctx = ctx.Str("role", string(cfg.Chest.Role))
	}

	if cfg.Server.Debug {
		ctx = ctx.Caller().Stack()
	}

	l := ctx.Logger()
	log.Logger = l

	return l
}

// Logger 返回全局日志器，未初始化时按当前配置初始化.
func Logger() *zerolog.Logger {
	Init()

	return &logger
}

// Component 返回带 component 字段的子日志器.
func Component(name string) zerolog.Logger {
	return Logger().With().Str("component", name).Logger()
}

// GinWriter 把 gin 自身打印的文本行转成指定级别的日志事件.
type GinWriter struct {
	logger *zerolog.Logger
	level  zerolog.Level
}

// NewGinWriter 创建 GinWriter.
func NewGinWriter(logger *zerolog.Logger, level zerolog.Level) *GinWriter {
	return &GinWriter{logger: logger, level: level}
}

func (w *GinWriter) Write(p []byte) (int, error) {
	if msg := strings.TrimSpace(string(p)); msg != "" {
		w.logger.WithLevel(w.level).Str("component", "gin").Msg(msg)
	}

	return len(p), nil
}
