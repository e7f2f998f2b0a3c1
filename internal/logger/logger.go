package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var Logger *zap.Logger

// InitLogger initializes the zap logger with console and rotated file output
// under <dataDir>/logs and installs it as the global logger.
func InitLogger(dataDir, level string) error {
	logDir := filepath.Join(dataDir, "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return err
	}

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "hlstype.log"),
		MaxSize:    5, // MB
		MaxBackups: 7,
		MaxAge:     30, // Days
		Compress:   true,
		LocalTime:  true,
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalColorLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)

	// No colors in the file
	fileEncoderConfig := encoderConfig
	fileEncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	fileEncoder := zapcore.NewJSONEncoder(fileEncoderConfig)

	lvl := ParseLevel(level)
	if os.Getenv("DEBUG") != "" {
		lvl = zapcore.DebugLevel
	}

	core := zapcore.NewTee(
		zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stdout), lvl),
		zapcore.NewCore(fileEncoder, zapcore.AddSync(rotator), lvl),
	)

	Logger = zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	zap.ReplaceGlobals(Logger)

	return nil
}

// ParseLevel maps a configuration level name to a zap level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Sync flushes any buffered log entries
func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

// GetLogWriter returns an io.Writer that writes to the logger at Info level
func GetLogWriter() io.Writer {
	return &logWriter{logger: zap.L()}
}

type logWriter struct {
	logger *zap.Logger
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	w.logger.Info(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
