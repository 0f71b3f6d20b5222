package playback

import (
	"sync"
	"time"

	"github.com/deptdesk/deskline/internal/audio"
)

// Clock is a position on the output audio timeline.
type Clock interface {
	Now() time.Duration
}

// Sink receives decoded buffers with an absolute timeline start offset. The
// production sink is the speaker device; tests use a recording fake.
type Sink interface {
	Play(buf audio.Buffer, at time.Duration)
	Stop()
	Close() error
}

// monotonicClock anchors the timeline to process start.
type monotonicClock struct {
	start time.Time
}

func NewMonotonicClock() Clock {
	return &monotonicClock{start: time.Now()}
}

func (c *monotonicClock) Now() time.Duration {
	return time.Since(c.start)
}

// Scheduler owns the gapless playback timeline. Packets arrive asynchronously
// and at irregular intervals; buffers are scheduled back-to-back so the total
// timeline is monotonic and gapless regardless of arrival jitter.
type Scheduler struct {
	mu        sync.Mutex
	clock     Clock
	sink      Sink
	nextStart time.Duration
	anchored  bool
	inflight  map[int]*time.Timer
	nextID    int
	onCount   func(int)
}

// NewScheduler creates a scheduler over the given clock and sink. onCount, if
// non-nil, observes the live scheduled-but-unfinished buffer count.
func NewScheduler(clock Clock, sink Sink, onCount func(int)) *Scheduler {
	return &Scheduler{
		clock:    clock,
		sink:     sink,
		inflight: make(map[int]*time.Timer),
		onCount:  onCount,
	}
}

// Enqueue schedules a buffer to start at max(nextStartTime, now) and advances
// nextStartTime by the buffer's duration.
func (s *Scheduler) Enqueue(buf audio.Buffer) {
	d := buf.Duration()
	if d <= 0 {
		return
	}

	s.mu.Lock()
	now := s.clock.Now()
	if !s.anchored || s.nextStart < now {
		s.nextStart = now
		s.anchored = true
	}
	start := s.nextStart
	s.nextStart = start + d

	id := s.nextID
	s.nextID++
	// The buffer counts as in flight until its scheduled end.
	s.inflight[id] = time.AfterFunc(start+d-now, func() {
		s.mu.Lock()
		delete(s.inflight, id)
		n := len(s.inflight)
		s.mu.Unlock()
		s.notify(n)
	})
	n := len(s.inflight)
	s.mu.Unlock()

	s.notify(n)
	s.sink.Play(buf, start)
}

// Interrupt stops every scheduled and playing buffer, clears the pending set,
// and resets the timeline anchor. Safe to call at any time.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	for id, t := range s.inflight {
		t.Stop()
		delete(s.inflight, id)
	}
	s.nextStart = 0
	s.anchored = false
	s.mu.Unlock()

	s.notify(0)
	s.sink.Stop()
}

// Scheduled returns the live count of scheduled-but-unfinished buffers.
func (s *Scheduler) Scheduled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}

// Close interrupts playback and releases the sink.
func (s *Scheduler) Close() error {
	s.Interrupt()
	return s.sink.Close()
}

func (s *Scheduler) notify(n int) {
	if s.onCount != nil {
		s.onCount(n)
	}
}
