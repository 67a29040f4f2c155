package logger

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Logger is a thin leveled wrapper over the standard logger.
type Logger struct {
	l *log.Logger
}

func New(l *log.Logger) *Logger {
	return &Logger{l: l}
}

// Default writes to stderr with a tablebook prefix.
func Default() *Logger {
	return New(log.New(os.Stderr, "tablebook ", log.LstdFlags|log.LUTC))
}

// Discard drops everything. Handy in tests.
func Discard() *Logger {
	return New(log.New(io.Discard, "", 0))
}

func (l *Logger) LogErrorf(format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	l.l.Printf("[Error]: %s\n", msg)
}

func (l *Logger) LogInfo(format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	l.l.Printf("[Info]: %s\n", msg)
}

// Std exposes the underlying logger, e.g. for http.Server.ErrorLog.
func (l *Logger) Std() *log.Logger {
	return l.l
}
