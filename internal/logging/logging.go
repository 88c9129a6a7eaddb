// Package logging constructs the process-wide logrus logger. Callers
// never reach for a package-level global logger instance directly:
// New returns one logger and components receive it (or a
// WithField-derived child) through their constructors.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// New builds a logrus.Logger formatted for a terminal when stderr is
// one, JSON otherwise (log aggregators, systemd journald capture).
func New(level logrus.Level) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(level)
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log
}

// Component returns a child entry tagged with the owning package, the
// unit every component constructor asks for instead of the bare
// logger.
func Component(log *logrus.Logger, name string) *logrus.Entry {
	return log.WithField("component", name)
}
