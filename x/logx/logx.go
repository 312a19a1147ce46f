// Package logx writes short tagged log lines:
//
//	[session] INFO interval changed from=5s to=1s
//
// It avoids fmt so MCU builds stay small. Output goes to a single sink which
// the platform may replace (UART on rp2040, stderr on host).
package logx

import (
	"io"
	"strconv"
	"sync"
	"time"
)

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

// ParseLevel maps "debug", "info", "warn", "error"; anything else is info.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	}
	return LevelInfo
}

var (
	mu    sync.Mutex
	out   io.Writer = defaultOutput()
	level           = LevelInfo
)

// SetOutput replaces the sink. A nil writer discards output.
func SetOutput(w io.Writer) {
	mu.Lock()
	out = w
	mu.Unlock()
}

func SetLevel(l Level) {
	mu.Lock()
	level = l
	mu.Unlock()
}

// Logger is a value type; copy it freely.
type Logger struct{ tag string }

func New(tag string) Logger { return Logger{tag: tag} }

func (l Logger) Debug(msg string, kv ...any) { l.log(LevelDebug, msg, kv) }
func (l Logger) Info(msg string, kv ...any)  { l.log(LevelInfo, msg, kv) }
func (l Logger) Warn(msg string, kv ...any)  { l.log(LevelWarn, msg, kv) }
func (l Logger) Error(msg string, kv ...any) { l.log(LevelError, msg, kv) }

func (l Logger) log(lv Level, msg string, kv []any) {
	mu.Lock()
	defer mu.Unlock()
	if lv < level || out == nil {
		return
	}
	buf := make([]byte, 0, 64)
	buf = append(buf, '[')
	buf = append(buf, l.tag...)
	buf = append(buf, "] "...)
	buf = append(buf, levelNames[lv]...)
	buf = append(buf, ' ')
	buf = append(buf, msg...)
	for i := 0; i+1 < len(kv); i += 2 {
		buf = append(buf, ' ')
		buf = appendValue(buf, kv[i])
		buf = append(buf, '=')
		buf = appendValue(buf, kv[i+1])
	}
	if len(kv)%2 == 1 {
		buf = append(buf, " !extra="...)
		buf = appendValue(buf, kv[len(kv)-1])
	}
	buf = append(buf, '\n')
	_, _ = out.Write(buf)
}

func appendValue(b []byte, v any) []byte {
	switch x := v.(type) {
	case string:
		return append(b, x...)
	case error:
		if x == nil {
			return append(b, "<nil>"...)
		}
		return append(b, x.Error()...)
	case int:
		return strconv.AppendInt(b, int64(x), 10)
	case int16:
		return strconv.AppendInt(b, int64(x), 10)
	case int32:
		return strconv.AppendInt(b, int64(x), 10)
	case int64:
		return strconv.AppendInt(b, x, 10)
	case uint8:
		return strconv.AppendUint(b, uint64(x), 10)
	case uint16:
		return strconv.AppendUint(b, uint64(x), 10)
	case uint32:
		return strconv.AppendUint(b, uint64(x), 10)
	case uint64:
		return strconv.AppendUint(b, x, 10)
	case bool:
		return strconv.AppendBool(b, x)
	case time.Duration:
		return append(b, x.String()...)
	case interface{ String() string }:
		return append(b, x.String()...)
	case nil:
		return append(b, "<nil>"...)
	}
	return append(b, '?')
}
