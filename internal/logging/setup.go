/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package logging

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const (
	DefaultLogDirName  = "logs"
	defaultLogFileName = "sqpack-overlay.log"

	// rfc3339NanoFixed is a fixed-width RFC3339 variant (nanosecond
	// precision padded with trailing zeros) so log lines stay
	// column-aligned regardless of how many fractional digits a given
	// timestamp happens to carry.
	rfc3339NanoFixed = "2006-01-02T15:04:05.000000000Z07:00"
)

type RotateLogArgs struct {
	RotateLogMaxSize    int
	RotateLogMaxBackups int
	RotateLogMaxAge     int
	RotateLogLocalTime  bool
	RotateLogCompress   bool
}

// SetUp configures the global logrus logger the way the engine's components
// expect it: leveled, optionally rotated to disk instead of stdout.
func SetUp(logLevel string, logToStdout bool, logDir string, logRotateArgs *RotateLogArgs) error {
	lvl, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	logrus.SetLevel(lvl)

	if logToStdout {
		logrus.SetOutput(os.Stdout)
	} else {
		if logRotateArgs == nil {
			return errors.New("logRotateArgs is needed when logToStdout is false")
		}

		if err := os.MkdirAll(logDir, 0755); err != nil {
			return errors.Wrapf(err, "create log dir %s", logDir)
		}
		logFile := filepath.Join(logDir, defaultLogFileName)

		lumberjackLogger := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    logRotateArgs.RotateLogMaxSize,
			MaxBackups: logRotateArgs.RotateLogMaxBackups,
			MaxAge:     logRotateArgs.RotateLogMaxAge,
			Compress:   logRotateArgs.RotateLogCompress,
			LocalTime:  logRotateArgs.RotateLogLocalTime,
		}
		logrus.SetOutput(lumberjackLogger)
	}

	logrus.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: rfc3339NanoFixed,
		FullTimestamp:   true,
	})
	return nil
}

// loggerKey is unexported so only this package can populate or read the
// logger a context carries.
type loggerKey struct{}

// WithContext attaches the standard logger to a background context, the
// way callers that need to thread a context.Context through the
// Background Builder and overlay sources do.
func WithContext() context.Context {
	return context.WithValue(context.Background(), loggerKey{}, logrus.StandardLogger())
}

// FromContext returns the logger ctx carries, or the standard logger if
// none was attached.
func FromContext(ctx context.Context) *logrus.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*logrus.Logger); ok {
		return l
	}
	return logrus.StandardLogger()
}
