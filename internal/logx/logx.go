// Package logx provides the leveled, colorized logger shared by every
// fabric package. It follows the same shape as a typical CloudWeGo-style
// internal logger: cheap level checks, no allocation when the level is
// filtered out, one instance per concern.
package logx

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"
)

const (
	LevelTrace = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelNoPrint
)

var levelName = []string{"Trace", "Debug", "Info", "Warn", "Error"}

var (
	colorReset = "\x1b[0m"
	levelColor = []string{
		"\x1b[95m", // Trace: magenta
		"\x1b[92m", // Debug: green
		"\x1b[94m", // Info: blue
		"\x1b[93m", // Warn: yellow
		"\x1b[91m", // Error: red
	}
)

var level = LevelWarn

func init() {
	if v := os.Getenv("SHMDF_LOG_LEVEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n <= LevelNoPrint {
			level = n
		}
	}
}

// SetLevel changes the process-wide minimum log level. The default is
// Warn; it can also be set via the SHMDF_LOG_LEVEL environment variable.
func SetLevel(l int) {
	if l <= LevelNoPrint {
		level = l
	}
}

// Logger is a named, leveled writer. Each package that needs to log owns
// one instance rather than sharing a single global.
type Logger struct {
	name      string
	out       io.Writer
	callDepth int
}

// New creates a Logger that writes to out (os.Stdout if nil), tagging
// every line with name.
func New(name string, out io.Writer) *Logger {
	if out == nil {
		out = os.Stdout
	}
	return &Logger{name: name, out: out, callDepth: 3}
}

func (l *Logger) enabled(lvl int) bool { return level <= lvl }

func (l *Logger) logf(lvl int, format string, a ...interface{}) {
	if !l.enabled(lvl) {
		return
	}
	_, _ = fmt.Fprintf(l.out, l.prefix(lvl)+format+colorReset+"\n", a...)
}

func (l *Logger) Tracef(format string, a ...interface{}) { l.logf(LevelTrace, format, a...) }
func (l *Logger) Debugf(format string, a ...interface{}) { l.logf(LevelDebug, format, a...) }
func (l *Logger) Infof(format string, a ...interface{})  { l.logf(LevelInfo, format, a...) }
func (l *Logger) Warnf(format string, a ...interface{})  { l.logf(LevelWarn, format, a...) }
func (l *Logger) Errorf(format string, a ...interface{}) { l.logf(LevelError, format, a...) }

func (l *Logger) prefix(lvl int) string {
	var buf bytes.Buffer
	buf.WriteString(levelColor[lvl])
	buf.WriteString(levelName[lvl])
	buf.WriteByte(' ')
	buf.WriteString(time.Now().Format("2006-01-02 15:04:05.000000"))
	buf.WriteByte(' ')
	buf.WriteString(l.location())
	buf.WriteByte(' ')
	buf.WriteString(l.name)
	buf.WriteByte(' ')
	return buf.String()
}

func (l *Logger) location() string {
	_, file, line, ok := runtime.Caller(l.callDepth)
	if !ok {
		file, line = "???", 0
	}
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}
