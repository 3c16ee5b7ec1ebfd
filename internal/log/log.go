// Package log wraps logrus behind package-level functions so engine
// packages do not each carry a logger handle.
package log

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Setup configures the logging backend. A nil writer leaves the default
// (stderr) in place. Unknown level strings fall back to info.
func Setup(w io.Writer, level string) {
	if w != nil {
		logrus.SetOutput(w)
	}

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logrus.SetLevel(parsed)
}

func Errorf(format string, args ...interface{}) {
	logrus.Errorf(format, args...)
}

func Warnf(format string, args ...interface{}) {
	logrus.Warnf(format, args...)
}

func Infof(format string, args ...interface{}) {
	logrus.Infof(format, args...)
}

func Debugf(format string, args ...interface{}) {
	logrus.Debugf(format, args...)
}
