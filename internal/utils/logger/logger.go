package logger

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/dwarvesf/icy-funding-backend/internal/types/environments"
)

const redacted = "[redacted]"

// field keys that may carry key material; their values never reach the output
var sensitiveKeyParts = []string{"private_key", "privatekey", "seed", "mnemonic", "secret", "api_key", "admin_key", "password", "auth_token", "access_token", "vault_token"}

type Logger struct {
	wrappedLogger *zap.Logger
}

func New(env environments.Environment) *Logger {
	var cfg zap.Config

	switch env {
	case environments.Development:
		cfg = newDevelopmentLoggerConfig()
	case environments.Test:
		cfg = newTestLoggerConfig()
	case environments.Staging:
		cfg = newStagingLoggerConfig()
	default:
		cfg = newProductionLoggerConfig()
	}

	zapLogger, err := cfg.Build()
	if err != nil {
		panic(err)
	}

	return &Logger{
		wrappedLogger: zapLogger,
	}
}

// With returns a child logger that always carries the given fields.
func (l *Logger) With(fields map[string]string) *Logger {
	return &Logger{
		wrappedLogger: l.wrappedLogger.With(transformStrMapToFields(fields)...),
	}
}

func (l *Logger) Debug(msg string, inputFields ...map[string]string) {
	l.wrappedLogger.Debug(msg, fieldsOf(inputFields)...)
}

func (l *Logger) Info(msg string, inputFields ...map[string]string) {
	l.wrappedLogger.Info(msg, fieldsOf(inputFields)...)
}

func (l *Logger) Warn(msg string, inputFields ...map[string]string) {
	l.wrappedLogger.Warn(msg, fieldsOf(inputFields)...)
}

func (l *Logger) Error(msg string, inputFields ...map[string]string) {
	l.wrappedLogger.Error(msg, fieldsOf(inputFields)...)
}

func (l *Logger) Fatal(msg string, inputFields ...map[string]string) {
	l.wrappedLogger.Fatal(msg, fieldsOf(inputFields)...)
}

// Sync flushes buffered entries; call once on shutdown.
func (l *Logger) Sync() error {
	return l.wrappedLogger.Sync()
}

func fieldsOf(inputFields []map[string]string) []zap.Field {
	if len(inputFields) == 0 {
		return nil
	}
	return transformStrMapToFields(inputFields[0])
}

// transformStrMapToFields emits fields sorted by key so lines diff cleanly.
func transformStrMapToFields(strMap map[string]string) []zap.Field {
	keys := make([]string, 0, len(strMap))
	for k := range strMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		v := strMap[k]
		if isSensitive(k) {
			v = redacted
		}
		fields = append(fields, zap.String(k, v))
	}
	return fields
}

func isSensitive(key string) bool {
	key = strings.ToLower(key)
	for _, part := range sensitiveKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}
