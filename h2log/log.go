// Package h2log defines the logging collaborator the connection
// drivers call through. It matches fasthttp.Logger's shape so the
// same value can be handed to both the h2wire drivers and the
// h1fallback server.
package h2log

import (
	"log"
	"os"
)

// Logger is satisfied by *log.Logger and by fasthttp.Logger.
type Logger interface {
	Printf(format string, args ...interface{})
}

// Std wraps the standard library logger.
type Std struct {
	l *log.Logger
}

// NewStd builds a Logger writing to stderr with a "h2wire " prefix.
func NewStd() *Std {
	return &Std{l: log.New(os.Stderr, "h2wire ", log.LstdFlags)}
}

func (s *Std) Printf(format string, args ...interface{}) {
	s.l.Printf(format, args...)
}

// Nop discards everything. Used by tests and by conformance runs that
// want h2spec's own output uncluttered.
type Nop struct{}

func (Nop) Printf(string, ...interface{}) {}
