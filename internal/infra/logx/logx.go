// Package logx 构造运行期的 zerolog 日志器。
//
// 日志只写 stderr：stdout 留给 RunReport JSON。
package logx

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// New 构造日志器：w 是终端时用 ConsoleWriter，否则输出 JSON 行。
// 未知 level 回退到 info（level 已由 config 校验，这里不再报错）。
func New(level string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	out := w
	if IsTerminal(w) {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// WithRun 给日志器附加本次运行的 run_id 与命令名，并放进 ctx。
func WithRun(ctx context.Context, l zerolog.Logger, command string) (context.Context, string) {
	id := uuid.NewString()
	l = l.With().Str("run_id", id).Str("command", command).Logger()
	return l.WithContext(ctx), id
}

// IsTerminal 判断 w 是否是交互终端（只识别 *os.File）。
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
