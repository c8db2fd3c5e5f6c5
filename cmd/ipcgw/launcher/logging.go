package launcher

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/evalphobia/logrus_sentry"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// sentryTimeout bounds how long an error report may block the caller.
const sentryTimeout = 3 * time.Second

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// logLevel converts the numeric verbosity (0=fatal .. 5=trace) to a logrus level.
func logLevel(verbosity int) logrus.Level {
	switch {
	case verbosity <= 0:
		return logrus.FatalLevel
	case verbosity >= 5:
		return logrus.TraceLevel
	}
	return logrus.Level(verbosity + 1)
}

// newLogger builds the node logger. The returned closer releases the log
// file, if any.
func newLogger(cfg LoggingConfig, dataDir string) (*logrus.Logger, io.Closer, error) {
	log := logrus.New()
	log.SetLevel(logLevel(cfg.Verbosity))

	switch cfg.Format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   cfg.Color && cfg.File == "",
			DisableColors: !cfg.Color || cfg.File != "",
		})
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		path := cfg.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(dataDir, path)
		}
		file := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		}
		log.SetOutput(file)
		closer = file
	} else {
		log.SetOutput(os.Stderr)
	}

	if cfg.SentryDSN != "" {
		hook, err := logrus_sentry.NewSentryHook(cfg.SentryDSN, []logrus.Level{
			logrus.PanicLevel,
			logrus.FatalLevel,
			logrus.ErrorLevel,
		})
		if err != nil {
			_ = closer.Close()
			return nil, nil, fmt.Errorf("sentry hook: %w", err)
		}
		hook.Timeout = sentryTimeout
		hook.StacktraceConfiguration.Enable = true
		log.AddHook(hook)
	}
	return log, closer, nil
}
