// Package diagnostics provides the sinks that receive collation events.
//
// A collator never writes to a process-wide logger directly. It reports what it
// saw to a Sink, and the host decides whether that ends up in phuslu/log, zap,
// Prometheus, or nowhere.
package diagnostics

import (
	"fmt"

	"github.com/phuslu/log"
)

// Sink receives collation events. Implementations must be safe for concurrent use,
// collators may be called from several data loading workers at once.
type Sink interface {
	// UnknownFields is called once per batch with the auxiliary field names that
	// were neither produced by the text collator nor the pixel field.
	UnknownFields(names []string)
	// FieldStacked is called for every auxiliary field with the shapes of the
	// per-example values that were stacked.
	FieldStacked(field string, shapes [][]int)
	// BatchCollated is called after a successful collation.
	BatchCollated(size int, fields []string)
}

// LogSink writes events with github.com/phuslu/log.
type LogSink struct {
	Logger *log.Logger
}

// NewLogSink returns a LogSink on logger, or on log.DefaultLogger if logger is nil.
func NewLogSink(logger *log.Logger) *LogSink {
	if logger == nil {
		logger = &log.DefaultLogger
	}
	return &LogSink{Logger: logger}
}

func (s *LogSink) UnknownFields(names []string) {
	s.Logger.Warn().Strs("fields", names).Msg("unknown input names")
}

func (s *LogSink) FieldStacked(field string, shapes [][]int) {
	s.Logger.Info().Str("field", field).Int("elements", len(shapes)).Str("shapes", fmt.Sprint(shapes)).Msg("stacked auxiliary input")
}

func (s *LogSink) BatchCollated(size int, fields []string) {
	s.Logger.Debug().Int("size", size).Strs("fields", fields).Msg("collated batch")
}

// Discard drops every event.
type Discard struct{}

func (Discard) UnknownFields([]string)       {}
func (Discard) FieldStacked(string, [][]int) {}
func (Discard) BatchCollated(int, []string)  {}

type multi []Sink

// Multi fans events out to every sink in order.
func Multi(sinks ...Sink) Sink {
	return multi(sinks)
}

func (m multi) UnknownFields(names []string) {
	for _, s := range m {
		s.UnknownFields(names)
	}
}

func (m multi) FieldStacked(field string, shapes [][]int) {
	for _, s := range m {
		s.FieldStacked(field, shapes)
	}
}

func (m multi) BatchCollated(size int, fields []string) {
	for _, s := range m {
		s.BatchCollated(size, fields)
	}
}
