// Package logger builds the logrus logger shared by every stage of a run.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const logFileName = "yt-transcribe.log"

type Options struct {
	Level   string
	Format  string
	Dir     string
	Verbose bool
	// Console receives log lines in addition to the rotating file. Stdout is
	// reserved for the transcript, so callers pass stderr.
	Console io.Writer
}

// New returns a configured logger and a close func for the rotating file,
// if any.
func New(opts Options) (*logrus.Logger, func() error, error) {
	log := logrus.New()

	level := logrus.WarnLevel
	if opts.Level != "" {
		parsed, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, nil, errors.Wrap(err, "invalid log level")
		}
		level = parsed
	}
	if opts.Verbose {
		level = logrus.DebugLevel
	}
	log.SetLevel(level)

	if opts.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	closeFn := func() error { return nil }
	if opts.Dir == "" {
		log.SetOutput(console)
		return log, closeFn, nil
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, nil, errors.Wrap(err, "failed to create log directory")
	}
	logFile := &lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, logFileName),
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(console, logFile))
	return log, logFile.Close, nil
}
