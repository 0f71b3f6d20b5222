package playback

import (
	"sync"
	"testing"
	"time"

	"github.com/deptdesk/deskline/internal/audio"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Duration
}

func (c *fakeClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}

type playEvent struct {
	at  time.Duration
	dur time.Duration
}

type fakeSink struct {
	mu      sync.Mutex
	events  []playEvent
	stopped int
	closed  bool
}

func (s *fakeSink) Play(buf audio.Buffer, at time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, playEvent{at: at, dur: buf.Duration()})
}

func (s *fakeSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped++
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSink) snapshot() []playEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]playEvent, len(s.events))
	copy(out, s.events)
	return out
}

func bufOf(ms int) audio.Buffer {
	samples := audio.PlaybackSampleRate * ms / 1000
	return audio.Buffer{
		Samples:    make([]float32, samples),
		SampleRate: audio.PlaybackSampleRate,
		Channels:   1,
	}
}

func TestSchedulerGaplessBackToBack(t *testing.T) {
	clock := &fakeClock{now: 250 * time.Millisecond}
	sink := &fakeSink{}
	s := NewScheduler(clock, sink, nil)

	durations := []int{100, 40, 250, 10}
	for _, ms := range durations {
		s.Enqueue(bufOf(ms))
	}

	events := sink.snapshot()
	if len(events) != len(durations) {
		t.Fatalf("got %d plays, want %d", len(events), len(durations))
	}
	anchor := 250 * time.Millisecond
	expected := anchor
	for i, ev := range events {
		if ev.at != expected {
			t.Fatalf("buffer %d scheduled at %v, want %v", i, ev.at, expected)
		}
		expected += ev.dur
	}
}

func TestSchedulerReanchorsAfterGap(t *testing.T) {
	clock := &fakeClock{}
	sink := &fakeSink{}
	s := NewScheduler(clock, sink, nil)

	s.Enqueue(bufOf(50))
	// Arrival long after the previous buffer finished: anchor to current time,
	// never schedule in the past.
	clock.Advance(500 * time.Millisecond)
	s.Enqueue(bufOf(50))

	events := sink.snapshot()
	if events[1].at != 500*time.Millisecond {
		t.Fatalf("late buffer scheduled at %v, want 500ms", events[1].at)
	}
	if events[1].at < events[0].at+events[0].dur {
		t.Fatal("buffers overlap")
	}
}

func TestSchedulerInterruptResets(t *testing.T) {
	clock := &fakeClock{}
	sink := &fakeSink{}
	s := NewScheduler(clock, sink, nil)

	s.Enqueue(bufOf(1000))
	s.Enqueue(bufOf(1000))
	if s.Scheduled() != 2 {
		t.Fatalf("scheduled = %d, want 2", s.Scheduled())
	}

	s.Interrupt()
	if s.Scheduled() != 0 {
		t.Fatalf("scheduled after interrupt = %d", s.Scheduled())
	}
	if sink.stopped != 1 {
		t.Fatalf("sink stops = %d", sink.stopped)
	}

	clock.Advance(3 * time.Second)
	s.Enqueue(bufOf(20))
	events := sink.snapshot()
	last := events[len(events)-1]
	if last.at != 3*time.Second {
		t.Fatalf("post-interrupt buffer at %v, want 3s", last.at)
	}
}

func TestSchedulerInflightCountDecays(t *testing.T) {
	clock := &fakeClock{}
	sink := &fakeSink{}
	var mu sync.Mutex
	var observed []int
	s := NewScheduler(clock, sink, func(n int) {
		mu.Lock()
		observed = append(observed, n)
		mu.Unlock()
	})

	s.Enqueue(bufOf(5))
	deadline := time.After(time.Second)
	for s.Scheduled() != 0 {
		select {
		case <-deadline:
			t.Fatal("buffer never finished")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if len(observed) < 2 || observed[0] != 1 || observed[len(observed)-1] != 0 {
		t.Fatalf("observed counts = %v", observed)
	}
}

func TestSchedulerConcurrentInterruptSafe(t *testing.T) {
	clock := &fakeClock{}
	sink := &fakeSink{}
	s := NewScheduler(clock, sink, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Enqueue(bufOf(10))
		}()
		go func() {
			defer wg.Done()
			s.Interrupt()
		}()
	}
	wg.Wait()
	s.Interrupt()
	if s.Scheduled() != 0 {
		t.Fatalf("scheduled = %d after final interrupt", s.Scheduled())
	}
}

func TestSchedulerCloseClosesSink(t *testing.T) {
	clock := &fakeClock{}
	sink := &fakeSink{}
	s := NewScheduler(clock, sink, nil)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !sink.closed {
		t.Fatal("sink not closed")
	}
}
