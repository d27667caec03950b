// Package metrics provides lightweight counters for anonymization runs.
//
// Counters use sync/atomic; latency statistics use a single mutex and are
// updated at most once per pass.
package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// knownCategories lists every category tag the anonymizer can produce.
// Used to pre-populate the per-category maps in New() so Snapshot() can
// iterate a fixed set without racing on map writes.
var knownCategories = []string{
	"FULL_NAME", "DOB_AGE", "ADDRESS", "REF_NAME", "NIN", "PHONE", "EMAIL",
}

// Metrics holds all counters for a process.
// The zero value is NOT valid for the per-category maps; use New().
type Metrics struct {
	Runs     atomic.Int64 // completed runs
	Failures atomic.Int64 // runs aborted by a pass error

	// Maps are written only in New(); concurrent reads are safe without a lock.
	replacements map[string]*atomic.Int64

	latMu     sync.Mutex
	passStats map[string]*latencyStats
	runStat   latencyStats

	startTime time.Time
}

// New returns a Metrics with the start time recorded and per-category maps
// pre-populated.
func New() *Metrics {
	m := &Metrics{
		startTime:    time.Now(),
		replacements: make(map[string]*atomic.Int64, len(knownCategories)),
		passStats:    make(map[string]*latencyStats, len(knownCategories)),
	}
	for _, c := range knownCategories {
		m.replacements[c] = new(atomic.Int64)
		m.passStats[c] = &latencyStats{}
	}
	return m
}

// RecordReplacements adds n substitutions for the given category.
// Unknown categories are silently ignored.
func (m *Metrics) RecordReplacements(category string, n int) {
	if c, ok := m.replacements[category]; ok {
		c.Add(int64(n))
	}
}

// Replacements returns the substitution count for one category.
func (m *Metrics) Replacements(category string) int64 {
	if c, ok := m.replacements[category]; ok {
		return c.Load()
	}
	return 0
}

// RecordPassLatency records the duration of one pass.
func (m *Metrics) RecordPassLatency(category string, d time.Duration) {
	m.latMu.Lock()
	if s, ok := m.passStats[category]; ok {
		s.record(float64(d.Microseconds()) / 1000.0)
	}
	m.latMu.Unlock()
}

// RecordRunLatency records the duration of a complete run.
func (m *Metrics) RecordRunLatency(d time.Duration) {
	m.latMu.Lock()
	m.runStat.record(float64(d.Microseconds()) / 1000.0)
	m.latMu.Unlock()
}

// Snapshot returns a point-in-time copy of all metrics, safe for JSON encoding.
func (m *Metrics) Snapshot() Snapshot {
	replacements := make(map[string]int64, len(m.replacements))
	var total int64
	for c, n := range m.replacements {
		if v := n.Load(); v > 0 {
			replacements[c] = v
			total += v
		}
	}

	m.latMu.Lock()
	passes := make(map[string]LatencySnapshot, len(m.passStats))
	for c, s := range m.passStats {
		if s.count > 0 {
			passes[c] = s.snapshot()
		}
	}
	run := m.runStat.snapshot()
	m.latMu.Unlock()

	return Snapshot{
		Runs:     m.Runs.Load(),
		Failures: m.Failures.Load(),
		Replacements: ReplacementSnapshot{
			Total:      total,
			ByCategory: replacements,
		},
		Latency: LatencyGroup{
			RunMs:  run,
			PassMs: passes,
		},
		UptimeSecs: time.Since(m.startTime).Seconds(),
	}
}

// --- JSON-serialisable snapshot types ---

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Runs         int64               `json:"runs"`
	Failures     int64               `json:"failures"`
	Replacements ReplacementSnapshot `json:"replacements"`
	Latency      LatencyGroup        `json:"latency"`
	UptimeSecs   float64             `json:"uptimeSecs"`
}

// ReplacementSnapshot holds substitution counts (only non-zero categories appear).
type ReplacementSnapshot struct {
	Total      int64            `json:"total"`
	ByCategory map[string]int64 `json:"byCategory,omitempty"`
}

// LatencyGroup groups whole-run and per-pass latency.
type LatencyGroup struct {
	RunMs  LatencySnapshot            `json:"runMs"`
	PassMs map[string]LatencySnapshot `json:"passMs,omitempty"`
}

// LatencySnapshot is a min/mean/max summary for one latency dimension.
type LatencySnapshot struct {
	Count  int64   `json:"count"`
	MinMs  float64 `json:"minMs"`
	MeanMs float64 `json:"meanMs"`
	MaxMs  float64 `json:"maxMs"`
}

// --- internal accumulator ---

type latencyStats struct {
	count int64
	sum   float64
	min   float64
	max   float64
}

func (s *latencyStats) record(ms float64) {
	s.count++
	s.sum += ms
	if s.count == 1 || ms < s.min {
		s.min = ms
	}
	if ms > s.max {
		s.max = ms
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func (s *latencyStats) snapshot() LatencySnapshot {
	if s.count == 0 {
		return LatencySnapshot{}
	}
	return LatencySnapshot{
		Count:  s.count,
		MinMs:  round2(s.min),
		MeanMs: round2(s.sum / float64(s.count)),
		MaxMs:  round2(s.max),
	}
}
