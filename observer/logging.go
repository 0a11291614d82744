// Package observer holds filter hooks that are configured by the server.
package observer

import (
	"log/slog"

	"github.com/thisisjab/sieve/filter"
)

// Logging writes one debug record per applied predicate.
type Logging struct {
	logger *slog.Logger
}

func NewLogging(logger *slog.Logger) *Logging {
	return &Logging{logger: logger}
}

func (l *Logging) BeforePredicate(*filter.Predicate, filter.Sink) error {
	return nil
}

func (l *Logging) AfterPredicate(p filter.Predicate, _ filter.Sink) {
	l.logger.Debug("predicate applied.",
		"column", p.Column,
		"operator", p.Operator,
		"value", p.Value,
		"boolean", p.Boolean.String(),
		"negate", p.Negate,
	)
}
