// Package anonymizer detects PII in clinical notes and replaces each entity
// with a stable identifier of the form "<n>.<category>".
//
// Detection is a fixed sequence of rule-based passes over the whole document:
//  1. Full names with a title ("Dr. Alice Smith,") allocate "<n>.1" and
//     register the person's first and last name.
//  2. Ages and dates of birth, then addresses, each with their own counter.
//  3. Bare or titled re-mentions of registered people become "<n>.4", reusing
//     the prefix of the full-name match that introduced them.
//  4. National insurance numbers, phone numbers, emails.
//
// Every replacement is recorded in a MappingLog, grouped by category in pass
// order. All state is local to one Anonymize call.
package anonymizer

import (
	"time"

	"notes-anonymizer/internal/logger"
	"notes-anonymizer/internal/metrics"
)

// Anonymizer runs the pass pipeline. It holds only the immutable pattern
// library and is safe to reuse across documents.
type Anonymizer struct {
	lib     *Library
	log     *logger.Logger
	metrics *metrics.Metrics // nil = no metrics
}

// Result is the outcome of one run.
type Result struct {
	Text     string      // redacted document
	Log      *MappingLog // every replacement, grouped by category
	Registry *Registry   // name tokens seen by the full-name pass
}

// New creates an Anonymizer. log and m may be nil.
func New(lib *Library, log *logger.Logger, m *metrics.Metrics) *Anonymizer {
	if log == nil {
		log = logger.Nop()
	}
	return &Anonymizer{lib: lib, log: log, metrics: m}
}

// Anonymize runs every pass over text in PassOrder and returns the redacted
// text with its mapping log. Only recognizer timeouts produce an error.
func (a *Anonymizer) Anonymize(text string) (*Result, error) {
	start := time.Now()
	r := newRun(a.lib)

	for _, c := range PassOrder {
		passStart := time.Now()

		var (
			n   int
			err error
		)
		switch c {
		case FullName:
			text, n, err = r.fullNames(text)
		case RefName:
			text, n, err = r.refNames(text)
		default:
			text, n, err = r.entities(c, text)
		}
		if err != nil {
			if a.metrics != nil {
				a.metrics.Failures.Add(1)
			}
			a.log.Errorf("pass_failed", "%v", err)
			return nil, err
		}

		elapsed := time.Since(passStart)
		if a.metrics != nil {
			a.metrics.RecordReplacements(c.String(), n)
			a.metrics.RecordPassLatency(c.String(), elapsed)
		}
		a.log.Debugf("pass_done", "%-9s %d replacement(s) in %s", c, n, elapsed)
	}

	if a.metrics != nil {
		a.metrics.Runs.Add(1)
		a.metrics.RecordRunLatency(time.Since(start))
	}
	a.log.Infof("run_done", "%d mapping entries, %d registered name keys", r.log.Len(), r.registry.Len())

	return &Result{Text: text, Log: r.log, Registry: r.registry}, nil
}
