// Package logger is the process-wide log sink. Every line carries a timestamp,
// the logger name, the level and the message.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Name is attached to every entry as the "logger" field.
const Name = "appui"

var (
	base    = newBase()
	entry   = base.WithField("logger", Name)
	logFile *os.File
	mu      sync.Mutex
)

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	return l
}

// Init routes log output to the specified file, appending to it.
// When tee is non-nil, entries are written there as well.
func Init(logPath string, tee io.Writer) error {
	mu.Lock()
	defer mu.Unlock()

	// Close previous log file if exists
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	logFile = f
	if tee != nil {
		base.SetOutput(io.MultiWriter(f, tee))
	} else {
		base.SetOutput(f)
	}
	return nil
}

// SetOutput routes log output to w (closing any log file opened by Init).
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	base.SetOutput(w)
}

// SetLevel sets the minimum level by name: debug, info, warn, error.
func SetLevel(name string) error {
	lvl, err := logrus.ParseLevel(name)
	if err != nil {
		return err
	}
	base.SetLevel(lvl)
	return nil
}

// Close closes the log file and falls back to stderr.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	base.SetOutput(os.Stderr)
}

// Info logs an info message.
func Info(format string, v ...interface{}) {
	entry.Infof(format, v...)
}

// Debug logs a debug message.
func Debug(format string, v ...interface{}) {
	entry.Debugf(format, v...)
}

// Error logs an error message.
func Error(format string, v ...interface{}) {
	entry.Errorf(format, v...)
}

// Warn logs a warning message.
func Warn(format string, v ...interface{}) {
	entry.Warnf(format, v...)
}

// With returns an entry carrying extra structured fields, e.g. the scenario name.
func With(fields map[string]interface{}) *logrus.Entry {
	return entry.WithFields(logrus.Fields(fields))
}
