// Package plog is the pipeline's logging handle: a single logrus.Logger
// threaded explicitly through the pipeline rather than a package global,
// so cancellation and verbosity stay scoped to one run.
package plog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a logger for one pipeline run: Debug level when verbose is
// set, Warn level otherwise. Fatal errors are not logged through it; they
// are returned up to main, which prints them to stderr.
func New(verbose bool) *logrus.Logger {
	l := logrus.New()
	l.Out = os.Stderr
	l.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.WarnLevel)
	}
	return l
}
