// Package logger writes structured JSON log lines.
package logger

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

type Logger interface {
	Info(message string, fields map[string]interface{})
	Error(message string, fields map[string]interface{})
	Warn(message string, fields map[string]interface{})
	Debug(message string, fields map[string]interface{})
	Fatal(message string, fields map[string]interface{})
}

var levelRank = map[string]int{
	"debug": 0,
	"info":  1,
	"warn":  2,
	"error": 3,
	"fatal": 4,
}

type jsonLogger struct {
	serviceName string
	minRank     int
	base        map[string]interface{}
	mu          *sync.Mutex
	logger      *log.Logger
}

// New returns a logger writing to stdout. LOG_LEVEL sets the threshold (default info).
func New(serviceName string) Logger {
	return NewWithWriter(serviceName, os.Stdout, os.Getenv("LOG_LEVEL"))
}

// NewWithWriter returns a logger writing to w, dropping entries below level.
func NewWithWriter(serviceName string, w io.Writer, level string) Logger {
	rank, ok := levelRank[strings.ToLower(strings.TrimSpace(level))]
	if !ok {
		rank = levelRank["info"]
	}
	return &jsonLogger{
		serviceName: serviceName,
		minRank:     rank,
		mu:          &sync.Mutex{},
		logger:      log.New(w, "", 0),
	}
}

// With returns a logger that adds fields to every entry, e.g. a request id.
func With(l Logger, fields map[string]interface{}) Logger {
	jl, ok := l.(*jsonLogger)
	if !ok {
		return l
	}
	merged := make(map[string]interface{}, len(jl.base)+len(fields))
	for k, v := range jl.base {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &jsonLogger{
		serviceName: jl.serviceName,
		minRank:     jl.minRank,
		base:        merged,
		mu:          jl.mu,
		logger:      jl.logger,
	}
}

func (l *jsonLogger) log(level, message string, fields map[string]interface{}) {
	if levelRank[level] < l.minRank {
		return
	}
	entry := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"level":     level,
		"service":   l.serviceName,
		"message":   message,
	}
	for k, v := range l.base {
		entry[k] = v
	}
	for k, v := range fields {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		entry[k] = v
	}

	jsonData, err := json.Marshal(entry)
	if err != nil {
		jsonData, _ = json.Marshal(map[string]interface{}{
			"level":   level,
			"service": l.serviceName,
			"message": message,
			"error":   "unserializable log fields: " + err.Error(),
		})
	}
	l.mu.Lock()
	l.logger.Println(string(jsonData))
	l.mu.Unlock()
}

func (l *jsonLogger) Info(message string, fields map[string]interface{}) {
	l.log("info", message, fields)
}

func (l *jsonLogger) Error(message string, fields map[string]interface{}) {
	l.log("error", message, fields)
}

func (l *jsonLogger) Warn(message string, fields map[string]interface{}) {
	l.log("warn", message, fields)
}

func (l *jsonLogger) Debug(message string, fields map[string]interface{}) {
	l.log("debug", message, fields)
}

func (l *jsonLogger) Fatal(message string, fields map[string]interface{}) {
	l.log("fatal", message, fields)
	os.Exit(1)
}

func NewNop() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (l *nopLogger) Info(message string, fields map[string]interface{})  {}
func (l *nopLogger) Error(message string, fields map[string]interface{}) {}
func (l *nopLogger) Warn(message string, fields map[string]interface{})  {}
func (l *nopLogger) Debug(message string, fields map[string]interface{}) {}
func (l *nopLogger) Fatal(message string, fields map[string]interface{}) {}
