package diag

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// 日志默认目录与轮转阈值。
const (
	DefaultLogDir   = "logs"
	DefaultMaxBytes = 10 * 1024 * 1024
)

// Options 配置日志器。
type Options struct {
	// Level: debug|info|warn|error，默认 info。
	Level string
	// Format: json（默认）或 console。
	Format string
	// Dir: 轮转文件所在目录，默认 logs。
	Dir string
	// Writer 非空时替代轮转文件；写入经 zerolog.SyncWriter 串行化。
	Writer io.Writer
}

// Logger 为结构化事件日志器：每个事件一行，字段沿用 comp/stage/code/dur_ms/count/project。
// 底层为 zerolog，并发安全。
type Logger struct {
	zl   zerolog.Logger
	sink *RotatingFile
}

func init() {
	zerolog.TimestampFieldName = "ts"
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.DurationFieldUnit = time.Millisecond
	zerolog.DurationFieldInteger = true
}

// NewLogger 按 opt 初始化；未指定 Writer 时写入 <Dir>/capshuffle-current.txt，10MiB 轮转。
func NewLogger(corrID string, opt Options) *Logger {
	var sink *RotatingFile
	var w io.Writer
	if opt.Writer != nil {
		w = zerolog.SyncWriter(opt.Writer)
	} else {
		dir := strings.TrimSpace(opt.Dir)
		if dir == "" {
			dir = DefaultLogDir
		}
		sink = NewRotatingFile(filepath.Clean(dir), DefaultMaxBytes)
		w = fallbackWriter{sink}
	}
	l := newLogger(w, corrID, opt.Level, opt.Format)
	l.sink = sink
	return l
}

// NewLoggerTo 将日志写入 w（测试与嵌入场景）。w 无需自带锁。
func NewLoggerTo(w io.Writer, corrID, level string) *Logger {
	return newLogger(zerolog.SyncWriter(w), corrID, level, "json")
}

// Nop 返回丢弃一切的日志器。
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// newLogger 要求 w 可并发写：调用方传入 SyncWriter 或自带锁的轮转文件。
func newLogger(w io.Writer, corrID, level, format string) *Logger {
	if strings.EqualFold(strings.TrimSpace(format), "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}
	zl := zerolog.New(w).Level(parseLevel(level)).With().Timestamp().Str("corr_id", corrID).Logger()
	return &Logger{zl: zl}
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Close 关闭轮转文件（若有）。
func (l *Logger) Close() error {
	if l == nil || l.sink == nil {
		return nil
	}
	return l.sink.Close()
}

func (l *Logger) event(e *zerolog.Event, comp, stage, project string, kv map[string]string) *zerolog.Event {
	e = e.Str("comp", comp).Str("stage", stage)
	if project != "" {
		e = e.Str("project", project)
	}
	if len(kv) > 0 {
		d := zerolog.Dict()
		for k, v := range kv {
			d = d.Str(k, v)
		}
		e = e.Dict("kv", d)
	}
	return e
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	return l.StartWith(comp, msg, "", nil)
}

// StartWith 记录带 project 与键值的 start。
func (l *Logger) StartWith(comp, msg, project string, kv map[string]string) *Timer {
	if l == nil {
		return nil
	}
	l.event(l.zl.Info(), comp, "start", project, kv).Msg(msg)
	return &Timer{l: l, comp: comp, project: project, t0: time.Now()}
}

// ErrorWith 记录 error 事件。durSince 非空时附带耗时。
func (l *Logger) ErrorWith(comp string, code Code, msg string, durSince *time.Time, project string) {
	if l == nil {
		return
	}
	e := l.event(l.zl.Error(), comp, "error", project, nil).Str("code", string(code))
	if durSince != nil {
		e = e.Dur("dur_ms", time.Since(*durSince))
	}
	e.Msg(msg)
}

// Warn 记录 warn 级别的提示事件。
func (l *Logger) Warn(comp, msg, project string, kv map[string]string) {
	if l == nil {
		return
	}
	l.event(l.zl.Warn(), comp, "note", project, kv).Msg(msg)
}

// Debug 输出调试事件（仅在 level=debug 时生效）。
func (l *Logger) Debug(comp, msg, project string, kv map[string]string) {
	if l == nil {
		return
	}
	l.event(l.zl.Debug(), comp, "debug", project, kv).Msg(msg)
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l       *Logger
	comp    string
	project string
	t0      time.Time
}

// Finish 记录 finish；可选 count。
func (t *Timer) Finish(msg string, count int64) {
	t.FinishKV(msg, count, nil)
}

// FinishKV 记录带键值的 finish，并累计阶段耗时。
func (t *Timer) FinishKV(msg string, count int64, kv map[string]string) {
	if t == nil || t.l == nil {
		return
	}
	d := time.Since(t.t0)
	e := t.l.event(t.l.zl.Info(), t.comp, "finish", t.project, kv).Dur("dur_ms", d)
	if count != 0 {
		e = e.Int64("count", count)
	}
	e.Msg(msg)
	ObserveDuration(t.comp, "finish", d.Milliseconds())
}

// fallbackWriter 在轮转文件不可写时退回 stderr。
type fallbackWriter struct{ f *RotatingFile }

func (w fallbackWriter) Write(p []byte) (int, error) {
	if _, err := w.f.Write(p); err != nil {
		_, _ = os.Stderr.WriteString("logger sink error: " + err.Error() + "\n")
		return os.Stderr.Write(p)
	}
	return len(p), nil
}
