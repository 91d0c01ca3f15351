package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

type Logger struct {
	fileLogger    *log.Logger
	stdout        io.Writer
	level         Level
	includeStdout bool
	tag           string
}

// New opens (or creates) filePath for appending. An empty filePath logs to
// stdout only, which is what container deployments want.
func New(filePath string, level Level, includeStdout bool) (*Logger, error) {
	var out io.Writer = io.Discard
	if filePath != "" {
		f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		out = f
	} else {
		includeStdout = true
	}

	return &Logger{
		fileLogger:    log.New(out, "", 0),
		stdout:        os.Stdout,
		level:         level,
		includeStdout: includeStdout,
	}, nil
}

// NewWriter logs everything at or above level to w. Used by tests and the CLI.
func NewWriter(w io.Writer, level Level) *Logger {
	return &Logger{
		fileLogger: log.New(w, "", 0),
		stdout:     io.Discard,
		level:      level,
	}
}

// Nop discards everything.
func Nop() *Logger {
	return NewWriter(io.Discard, LevelFatal+1)
}

// With returns a logger that prefixes every line with [tag].
func (l *Logger) With(tag string) *Logger {
	child := *l
	child.tag = tag
	return &child
}

func (l *Logger) log(lvl Level, prefix string, format string, v ...interface{}) {
	if lvl < l.level {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	msg := fmt.Sprintf(format, v...)
	if l.tag != "" {
		msg = "[" + l.tag + "] " + msg
	}
	fullMsg := fmt.Sprintf("%s [%s] %s", timestamp, prefix, msg)

	l.fileLogger.Println(fullMsg)

	// Debug stays in the file so the console is readable
	if l.includeStdout && lvl >= LevelInfo {
		fmt.Fprintln(l.stdout, fullMsg)
	}
}

func ParseLevel(lvl string) Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l *Logger) Debug(f string, v ...any) { l.log(LevelDebug, "DEBUG", f, v...) }
func (l *Logger) Info(f string, v ...any)  { l.log(LevelInfo, "INFO", f, v...) }
func (l *Logger) Warn(f string, v ...any)  { l.log(LevelWarn, "WARN", f, v...) }
func (l *Logger) Error(f string, v ...any) { l.log(LevelError, "ERROR", f, v...) }
func (l *Logger) Fatal(f string, v ...any) { l.log(LevelFatal, "FATAL", f, v...); os.Exit(1) }

// Write lets echo and the telegram client log through us.
func (l *Logger) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		l.Info("%s", msg)
	}
	return len(p), nil
}

// Printf and Println satisfy the telegram library's BotLogger interface.
func (l *Logger) Printf(format string, v ...interface{}) { l.Debug(format, v...) }
func (l *Logger) Println(v ...interface{})               { l.Debug("%s", strings.TrimSpace(fmt.Sprintln(v...))) }
