package renderer

import (
	"sync/atomic"
	"time"
)

// Stats tracks renderer activity. Counters are atomic so a snapshot can be
// taken from outside the loop goroutine, e.g. when logging at shutdown.
type Stats struct {
	schedules  atomic.Uint64
	coalesced  atomic.Uint64
	renders    atomic.Uint64
	writes     atomic.Uint64
	suppressed atomic.Uint64

	renderTotalNs atomic.Int64
	lastRenderNs  atomic.Int64

	startTime time.Time
}

// NewStats creates a zeroed tracker.
func NewStats() *Stats {
	return &Stats{startTime: time.Now()}
}

func (s *Stats) recordSchedule(alreadyPending bool) {
	s.schedules.Add(1)
	if alreadyPending {
		s.coalesced.Add(1)
	}
}

func (s *Stats) recordRender(d time.Duration, wrote bool) {
	ns := d.Nanoseconds()
	s.renders.Add(1)
	s.renderTotalNs.Add(ns)
	s.lastRenderNs.Store(ns)
	if wrote {
		s.writes.Add(1)
	} else {
		s.suppressed.Add(1)
	}
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	// Schedules is the number of ScheduleRender calls.
	Schedules uint64
	// Coalesced counts schedules absorbed by an already queued render.
	Coalesced uint64
	// Renders is the number of serialization passes.
	Renders uint64
	// Writes is the number of passes that reached the sink.
	Writes uint64
	// Suppressed counts passes whose output equalled the last write.
	Suppressed uint64

	LastRender    time.Duration
	AverageRender time.Duration
	Uptime        time.Duration
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		Schedules:  s.schedules.Load(),
		Coalesced:  s.coalesced.Load(),
		Renders:    s.renders.Load(),
		Writes:     s.writes.Load(),
		Suppressed: s.suppressed.Load(),
		LastRender: time.Duration(s.lastRenderNs.Load()),
		Uptime:     time.Since(s.startTime),
	}
	if snap.Renders > 0 {
		snap.AverageRender = time.Duration(s.renderTotalNs.Load() / int64(snap.Renders))
	}
	return snap
}
