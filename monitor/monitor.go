// Package monitor tracks session timing and projects the remaining run time.
//
// A Monitor is owned by a single goroutine (the orchestrator) and mutated only
// between chunks, so it carries no locking.
package monitor

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotStarted is returned by time-based accessors before MarkSessionStart.
	ErrNotStarted = errors.New("monitor: session start time not set")

	// ErrWriteNotStarted is returned by MarkWriteEnd without a preceding MarkWriteStart.
	ErrWriteNotStarted = errors.New("monitor: write start time not set")
)

// DefaultMaxDelay is the per-chunk projection used before any target was processed.
const DefaultMaxDelay = 8 * time.Second

// Monitor holds session-scoped counters. The zero value is not usable; call New.
type Monitor struct {
	processed int

	startedAt        time.Time
	requestStartedAt time.Time
	writeStartedAt   time.Time

	delaySum   time.Duration
	lastWrite  time.Duration
	writeTotal time.Duration
	writes     int

	maxDelay time.Duration
	now      func() time.Time
}

// New returns a monitor projecting maxDelay per chunk until samples exist.
func New(maxDelay time.Duration) *Monitor {
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	return &Monitor{maxDelay: maxDelay, now: time.Now}
}

// SetClock replaces the time source. Intended for tests.
func (m *Monitor) SetClock(now func() time.Time) {
	if now != nil {
		m.now = now
	}
}

// RecordProcessed adds n targets to the processed count. Negative n is ignored.
func (m *Monitor) RecordProcessed(n int) {
	if n > 0 {
		m.processed += n
	}
}

// Processed returns the running processed-target count.
func (m *Monitor) Processed() int {
	return m.processed
}

// MarkSessionStart records the session start time.
func (m *Monitor) MarkSessionStart() {
	m.startedAt = m.now()
}

// Started reports whether MarkSessionStart was called.
func (m *Monitor) Started() bool {
	return !m.startedAt.IsZero()
}

// Elapsed returns the time since MarkSessionStart.
func (m *Monitor) Elapsed() (time.Duration, error) {
	if !m.Started() {
		return 0, ErrNotStarted
	}
	return m.now().Sub(m.startedAt), nil
}

// MarkRequestStart records when the latest chunk began issuing requests.
func (m *Monitor) MarkRequestStart() {
	m.requestStartedAt = m.now()
}

// RequestStartedAt returns the last MarkRequestStart time.
func (m *Monitor) RequestStartedAt() time.Time {
	return m.requestStartedAt
}

// RecordRequestLatency folds d into the cumulative delay sum.
//
// The sum is never reset: AverageLoopTime and EstimateRemaining divide it by the
// processed count of the whole session.
func (m *Monitor) RecordRequestLatency(d time.Duration) error {
	if !m.Started() {
		return ErrNotStarted
	}
	if d > 0 {
		m.delaySum += d
	}
	return nil
}

// DelaySum returns the cumulative delay sum.
func (m *Monitor) DelaySum() time.Duration {
	return m.delaySum
}

// AverageLoopTime returns delaySum / processed, or 0 before anything was processed.
func (m *Monitor) AverageLoopTime() time.Duration {
	if m.processed == 0 {
		return 0
	}
	return m.delaySum / time.Duration(m.processed)
}

// EstimateRemaining projects the time needed for chunkCount chunks.
// With nothing processed yet the projection is maxDelay * chunkCount.
func (m *Monitor) EstimateRemaining(chunkCount int) (time.Duration, error) {
	if !m.Started() {
		return 0, ErrNotStarted
	}
	if chunkCount <= 0 {
		return 0, nil
	}
	if m.processed == 0 {
		return m.maxDelay * time.Duration(chunkCount), nil
	}
	return m.AverageLoopTime() * time.Duration(chunkCount), nil
}

// MarkWriteStart records the start of an output append.
func (m *Monitor) MarkWriteStart() {
	m.writeStartedAt = m.now()
}

// MarkWriteEnd closes the write opened by MarkWriteStart and returns its duration.
func (m *Monitor) MarkWriteEnd() (time.Duration, error) {
	if m.writeStartedAt.IsZero() {
		return 0, ErrWriteNotStarted
	}
	d := m.now().Sub(m.writeStartedAt)
	m.writeStartedAt = time.Time{}
	m.lastWrite = d
	m.writeTotal += d
	m.writes++
	return d, nil
}

// LastWrite returns the duration of the most recent output append.
func (m *Monitor) LastWrite() time.Duration {
	return m.lastWrite
}

// WriteTotal returns the cumulative time spent appending output.
func (m *Monitor) WriteTotal() time.Duration {
	return m.writeTotal
}

// Snapshot is a read-only view of the monitor for progress reporting.
type Snapshot struct {
	Now       time.Time
	Elapsed   time.Duration
	ETA       time.Duration
	Left      time.Duration
	AvgLoop   time.Duration
	LastWrite time.Duration
	Processed int
}

// Snapshot derives the progress view for a session of totalChunks with chunksDone finished.
func (m *Monitor) Snapshot(totalChunks, chunksDone int) (Snapshot, error) {
	elapsed, err := m.Elapsed()
	if err != nil {
		return Snapshot{}, err
	}
	eta, err := m.EstimateRemaining(totalChunks)
	if err != nil {
		return Snapshot{}, err
	}
	left, err := m.EstimateRemaining(totalChunks - chunksDone)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Now:       m.now(),
		Elapsed:   elapsed,
		ETA:       eta,
		Left:      left,
		AvgLoop:   m.AverageLoopTime(),
		LastWrite: m.lastWrite,
		Processed: m.processed,
	}, nil
}

// FormatClock renders t as HH:MM:SS.
func FormatClock(t time.Time) string {
	return t.Format("15:04:05")
}

// FormatDuration renders d as "Nd HH:MM:SS". Negative durations render as zero.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	days := total / 86400
	total %= 86400
	return fmt.Sprintf("%dd %02d:%02d:%02d", days, total/3600, (total%3600)/60, total%60)
}
