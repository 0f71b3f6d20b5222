package capture

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/deptdesk/deskline/internal/audio"
)

// ErrMicrophoneUnavailable is returned when the capture device cannot be
// acquired. Session start must fail on it before any transport connection is
// attempted.
var ErrMicrophoneUnavailable = errors.New("microphone unavailable")

// Device delivers fixed-size frames of normalized samples on the capture
// cadence. The production device is the microphone; tests use a scripted fake.
type Device interface {
	Frames() <-chan []float32
	Close() error
}

// DefaultQueueSize bounds the frame queue between the capture tick and the
// sender. A full queue drops the oldest unsent frame; capture never stalls.
const DefaultQueueSize = 8

// Encoder consumes capture frames, encodes them as PCM16 packets, and hands
// them to the transport send function. Muting discards frames entirely rather
// than sending silence, so no false activity reaches the remote side.
type Encoder struct {
	device  Device
	send    func(audio.Packet)
	queue   chan audio.Packet
	muted   atomic.Bool
	dropped atomic.Int64

	stopOnce sync.Once
	stopped  chan struct{}
	wg       sync.WaitGroup
}

func NewEncoder(device Device, queueSize int, send func(audio.Packet)) *Encoder {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Encoder{
		device:  device,
		send:    send,
		queue:   make(chan audio.Packet, queueSize),
		stopped: make(chan struct{}),
	}
}

// Start launches the capture producer and the sender. The producer encodes
// each tick's frame and enqueues it with a drop-oldest policy; the sender
// drains the queue toward the transport.
func (e *Encoder) Start() {
	e.wg.Add(2)
	go e.produce()
	go e.forward()
}

func (e *Encoder) produce() {
	defer e.wg.Done()
	for {
		select {
		case <-e.stopped:
			return
		case frame, ok := <-e.device.Frames():
			if !ok {
				return
			}
			if e.muted.Load() {
				continue
			}
			e.enqueue(audio.EncodeFrame(frame))
		}
	}
}

func (e *Encoder) enqueue(pkt audio.Packet) {
	select {
	case e.queue <- pkt:
		return
	default:
	}
	// Queue full: evict the oldest unsent frame and retry once.
	select {
	case <-e.queue:
		e.dropped.Add(1)
	default:
	}
	select {
	case e.queue <- pkt:
	default:
		e.dropped.Add(1)
	}
}

func (e *Encoder) forward() {
	defer e.wg.Done()
	for {
		select {
		case <-e.stopped:
			return
		case pkt := <-e.queue:
			e.send(pkt)
		}
	}
}

// SetMuted toggles frame discarding without closing the device.
func (e *Encoder) SetMuted(muted bool) {
	e.muted.Store(muted)
}

func (e *Encoder) Muted() bool {
	return e.muted.Load()
}

// Dropped returns how many frames were evicted under backpressure.
func (e *Encoder) Dropped() int64 {
	return e.dropped.Load()
}

// Stop halts both loops and releases the device. Idempotent.
func (e *Encoder) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopped)
		_ = e.device.Close()
	})
	e.wg.Wait()
}
