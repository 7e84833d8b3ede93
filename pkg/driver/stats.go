package driver

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// statsWindow is how many recent tick durations feed the timing statistics.
const statsWindow = 256

// TickStats is a snapshot of the loop's health counters and recent timing.
type TickStats struct {
	Ticks         uint64  `json:"ticks"`
	SkippedWrites uint64  `json:"skipped_writes"`
	ReadErrors    uint64  `json:"read_errors"`
	WriteErrors   uint64  `json:"write_errors"`
	MeanTick      float64 `json:"mean_tick_seconds"`
	StdevTick     float64 `json:"stdev_tick_seconds"`
}

// loopStats accumulates counters and a ring of recent tick durations.
type loopStats struct {
	mu            sync.Mutex
	ticks         uint64
	skippedWrites uint64
	readErrors    uint64
	writeErrors   uint64

	durations []float64
	next      int
	filled    bool
}

func newLoopStats() *loopStats {
	return &loopStats{durations: make([]float64, statsWindow)}
}

func (s *loopStats) Tick() {
	s.mu.Lock()
	s.ticks++
	s.mu.Unlock()
}

func (s *loopStats) SkippedWrite() {
	s.mu.Lock()
	s.skippedWrites++
	s.mu.Unlock()
}

func (s *loopStats) ReadError() {
	s.mu.Lock()
	s.readErrors++
	s.mu.Unlock()
}

func (s *loopStats) WriteError() {
	s.mu.Lock()
	s.writeErrors++
	s.mu.Unlock()
}

// Observe records one tick's wall duration in the timing window.
func (s *loopStats) Observe(d time.Duration) {
	s.mu.Lock()
	s.durations[s.next] = d.Seconds()
	s.next++
	if s.next == len(s.durations) {
		s.next = 0
		s.filled = true
	}
	s.mu.Unlock()
}

// Snapshot returns the counters plus mean and standard deviation over the
// timing window.
func (s *loopStats) Snapshot() TickStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	window := s.durations[:s.next]
	if s.filled {
		window = s.durations
	}

	out := TickStats{
		Ticks:         s.ticks,
		SkippedWrites: s.skippedWrites,
		ReadErrors:    s.readErrors,
		WriteErrors:   s.writeErrors,
	}
	if len(window) > 0 {
		out.MeanTick = stat.Mean(window, nil)
	}
	if len(window) > 1 {
		out.StdevTick = stat.StdDev(window, nil)
	}
	return out
}
