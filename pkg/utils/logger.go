package utils

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log levels, lowest to highest.
const (
	LevelDebug = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Logger is the workspace logger. All records carry the session request id;
// level is controlled by DEVAGENT_LOG_LEVEL (default INFO).
type Logger struct {
	logger    *log.Logger
	level     int
	requestID string
	mu        sync.Mutex
}

var (
	globalLogger *Logger
	loggerOnce   sync.Once
)

// GetLogger returns the singleton logger, initializing it on first use with
// a rotating file handler under .devagent/.
func GetLogger() *Logger {
	loggerOnce.Do(func() {
		logFile := &lumberjack.Logger{
			Filename:   ".devagent/devagent.log",
			MaxSize:    15, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		globalLogger = &Logger{
			logger:    log.New(logFile, "", log.LstdFlags),
			level:     parseLevel(os.Getenv("DEVAGENT_LOG_LEVEL")),
			requestID: os.Getenv("DEVAGENT_REQ_ID"),
		}
		if globalLogger.requestID == "" {
			globalLogger.requestID = uuid.NewString()
		}
	})
	return globalLogger
}

func parseLevel(s string) int {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// RequestID returns the id injected into every record of this session.
func (l *Logger) RequestID() string {
	return l.requestID
}

func (l *Logger) logf(level int, tag, format string, args ...interface{}) {
	if level < l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Printf("[%s] [%s] %s", tag, l.requestID, fmt.Sprintf(format, args...))
}

// Debugf logs debug information to the log file.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logf(LevelDebug, "DEBUG", format, args...)
}

// Infof logs informational messages to the log file.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logf(LevelInfo, "INFO", format, args...)
}

// Warnf logs warnings to the log file.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logf(LevelWarn, "WARN", format, args...)
}

// Errorf logs errors to the log file.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logf(LevelError, "ERROR", format, args...)
}

// LogEvent writes a structured single-line JSON event, e.g. command_exec.
// Marshal failures degrade to a plain record rather than being raised.
func (l *Logger) LogEvent(event string, fields map[string]interface{}) {
	if LevelInfo < l.level {
		return
	}
	record := map[string]interface{}{
		"event": event,
		"req":   l.requestID,
		"ts":    time.Now().Format(time.RFC3339),
	}
	for k, v := range fields {
		record[k] = v
	}
	data, err := json.Marshal(record)
	if err != nil {
		l.Warnf("event %s not serializable: %v", event, err)
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Print(string(data))
}

// Close flushes and closes the underlying rotating file.
func (l *Logger) Close() error {
	if logFile, ok := l.logger.Writer().(*lumberjack.Logger); ok {
		return logFile.Close()
	}
	return nil
}
