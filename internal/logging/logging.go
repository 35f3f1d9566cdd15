package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var Logger = logrus.New()

// Config holds logging configuration.
type Config struct {
	Level      string
	LogDir     string
	MaxSize    int // megabytes
	MaxBackups int // number of files
	MaxAge     int // days
}

// Init configures the shared logger with a rotating file handler.
// Logs go to stdout and LogDir/app.log; an empty LogDir keeps stdout only.
func Init(cfg Config) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	Logger.SetLevel(level)
	Logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05"})

	if cfg.LogDir == "" {
		Logger.SetOutput(os.Stdout)
		return nil
	}
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return err
	}
	rotating := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, "app.log"),
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
	}
	Logger.SetOutput(io.MultiWriter(os.Stdout, rotating))
	return nil
}

func WithFields(fields logrus.Fields) *logrus.Entry { return Logger.WithFields(fields) }

func WithError(err error) *logrus.Entry { return Logger.WithError(err) }

func Infof(format string, args ...interface{}) { Logger.Infof(format, args...) }

func Warnf(format string, args ...interface{}) { Logger.Warnf(format, args...) }

func Errorf(format string, args ...interface{}) { Logger.Errorf(format, args...) }
