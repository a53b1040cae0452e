package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/julianstephens/prayanswer/internal/constants"
)

var (
	// Logger is the global logger instance. Nil until Init.
	Logger *log.Logger

	rotator *lumberjack.Logger
)

// Config holds logger configuration. Zero rotation values use the defaults.
type Config struct {
	Debug      bool
	DataDir    string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Init writes to <data-dir>/logs/prayanswer.log, rotated by size. In debug
// mode output is also copied to stderr and callers are reported.
func Init(cfg Config) error {
	logDir := filepath.Join(cfg.DataDir, "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return err
	}

	rotator = &lumberjack.Logger{
		Filename:   filepath.Join(logDir, constants.LogFileName),
		MaxSize:    orDefault(cfg.MaxSizeMB, 10),
		MaxBackups: orDefault(cfg.MaxBackups, 3),
		MaxAge:     orDefault(cfg.MaxAgeDays, 28),
		Compress:   true,
	}

	level := log.InfoLevel
	var writer io.Writer = rotator
	if cfg.Debug {
		level = log.DebugLevel
		writer = io.MultiWriter(os.Stderr, rotator)
	}

	Logger = log.NewWithOptions(writer, log.Options{
		ReportCaller:    cfg.Debug,
		ReportTimestamp: true,
		Level:           level,
		Prefix:          constants.AppName,
	})
	return nil
}

// Close releases the log file. Later calls log nothing.
func Close() error {
	Logger = nil
	if rotator == nil {
		return nil
	}
	err := rotator.Close()
	rotator = nil
	return err
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func logAt(level log.Level, msg string, keyvals []interface{}) {
	if Logger != nil {
		Logger.Log(level, msg, keyvals...)
	}
}

func Debug(msg string, keyvals ...interface{}) { logAt(log.DebugLevel, msg, keyvals) }

func Info(msg string, keyvals ...interface{}) { logAt(log.InfoLevel, msg, keyvals) }

func Warn(msg string, keyvals ...interface{}) { logAt(log.WarnLevel, msg, keyvals) }

func Error(msg string, keyvals ...interface{}) { logAt(log.ErrorLevel, msg, keyvals) }

// Fatal logs and exits with status 1, with or without a logger.
func Fatal(msg string, keyvals ...interface{}) {
	logAt(log.FatalLevel, msg, keyvals)
	os.Exit(1)
}
