// Package call owns the lifecycle of a voice session: one caller at a time,
// from microphone open to the persisted call record.
package call

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/deptdesk/deskline/internal/analysis"
	"github.com/deptdesk/deskline/internal/audio"
	"github.com/deptdesk/deskline/internal/capture"
	"github.com/deptdesk/deskline/internal/knowledge"
	"github.com/deptdesk/deskline/internal/live"
	"github.com/deptdesk/deskline/internal/observability"
	"github.com/deptdesk/deskline/internal/playback"
	"github.com/deptdesk/deskline/internal/record"
	"github.com/deptdesk/deskline/internal/transcript"
)

type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateActive     State = "active"
	StateClosing    State = "closing"
)

var (
	// ErrSessionBusy is returned when a call is requested while another
	// one is starting, running, or still being finalized.
	ErrSessionBusy = errors.New("a call is already in progress")

	ErrNoActiveCall = errors.New("no active call")
)

// DeviceOpener opens the capture device for a new call.
type DeviceOpener func() (capture.Device, error)

// SinkFactory opens the playback sink for a new call.
type SinkFactory func() (playback.Sink, error)

type Options struct {
	Connector live.Connector
	OpenMic   DeviceOpener
	OpenSink  SinkFactory
	Knowledge *knowledge.Base
	Pipeline  *analysis.Pipeline
	Store     record.Store
	Metrics   *observability.Metrics
	Log       *zap.SugaredLogger

	// GraceDelay is how long after the emergency trigger phrase the session
	// keeps running before the transfer cuts it off.
	GraceDelay      time.Duration
	AnalysisTimeout time.Duration

	// ArchiveDir, when set, receives one WAV file per call holding the
	// agent's audio.
	ArchiveDir string
}

// Info describes a call that was just started.
type Info struct {
	ID        string    `json:"call_id"`
	StartedAt time.Time `json:"started_at"`
}

// Snapshot is the externally visible state of the controller.
type Snapshot struct {
	State         State     `json:"state"`
	CallID        string    `json:"call_id,omitempty"`
	StartedAt     time.Time `json:"started_at,omitzero"`
	Muted         bool      `json:"muted"`
	Emergency     bool      `json:"emergency"`
	DroppedFrames int64     `json:"dropped_frames"`
}

type activeCall struct {
	id        string
	startedAt time.Time
	session   live.Session
	encoder   *capture.Encoder
	scheduler *playback.Scheduler
	assembler *transcript.Assembler
	detector  *transcript.EmergencyDetector

	statusOnce sync.Once
	status     record.CallStatus
	closeOnce  sync.Once

	// agent audio accumulated for archiving, touched only by runLoop
	archive []byte
}

// Controller serializes session lifecycle transitions. Exactly one call can
// exist at a time; its teardown runs exactly once no matter how many paths
// race to trigger it.
type Controller struct {
	opts Options
	log  *zap.SugaredLogger

	mu       sync.Mutex
	state    State
	active   *activeCall
	onRecord func(record.CallRecord)
}

func NewController(opts Options) *Controller {
	if opts.GraceDelay <= 0 {
		opts.GraceDelay = transcript.DefaultGraceDelay
	}
	if opts.AnalysisTimeout <= 0 {
		opts.AnalysisTimeout = 30 * time.Second
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Controller{opts: opts, log: log, state: StateIdle}
}

// SetRecordHook registers a callback invoked after each finalized call record
// is persisted.
func (c *Controller) SetRecordHook(hook func(record.CallRecord)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRecord = hook
}

// StartCall opens the microphone, connects the live speech channel and moves
// the controller to the active state. Resources acquired before a failure are
// released and the controller returns to idle.
func (c *Controller) StartCall(ctx context.Context) (Info, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return Info{}, ErrSessionBusy
	}
	c.state = StateConnecting
	c.mu.Unlock()

	device, err := c.opts.OpenMic()
	if err != nil {
		c.setIdle()
		return Info{}, err
	}

	agent := c.opts.Knowledge.Agent()
	session, msgs, err := c.opts.Connector.Connect(ctx, live.SessionConfig{
		SystemPrompt: c.opts.Knowledge.SystemPrompt(),
		EnableSearch: agent.GoogleSearchEnabled,
	})
	if err != nil {
		device.Close()
		c.setIdle()
		return Info{}, err
	}

	sink, err := c.opts.OpenSink()
	if err != nil {
		session.Close()
		device.Close()
		c.setIdle()
		return Info{}, fmt.Errorf("open playback sink: %w", err)
	}

	a := &activeCall{
		id:        ulid.Make().String(),
		startedAt: time.Now().UTC(),
		session:   session,
		assembler: transcript.NewAssembler(),
	}
	a.scheduler = playback.NewScheduler(playback.NewMonotonicClock(), sink, c.onScheduled)
	a.encoder = capture.NewEncoder(device, capture.DefaultQueueSize, session.Send)
	a.detector = transcript.NewEmergencyDetector(c.opts.GraceDelay, func() {
		c.log.Warnw("emergency transfer grace elapsed, ending session", "call_id", a.id)
		c.endCall(a, record.StatusTransferred)
	})
	a.encoder.Start()

	c.mu.Lock()
	c.state = StateActive
	c.active = a
	c.mu.Unlock()

	if m := c.opts.Metrics; m != nil {
		m.ActiveCall.Set(1)
	}
	c.log.Infow("call started", "call_id", a.id)

	go c.runLoop(a, msgs)
	return Info{ID: a.id, StartedAt: a.startedAt}, nil
}

// Hangup ends the active call. Finalization continues in the background; the
// controller reports closing until the record is persisted.
func (c *Controller) Hangup() error {
	c.mu.Lock()
	a := c.active
	c.mu.Unlock()
	if a == nil {
		return ErrNoActiveCall
	}
	c.endCall(a, record.StatusCompleted)
	return nil
}

// SetMuted pauses or resumes microphone upload. Playback and inbound
// transcription continue while muted.
func (c *Controller) SetMuted(muted bool) error {
	c.mu.Lock()
	a := c.active
	c.mu.Unlock()
	if a == nil {
		return ErrNoActiveCall
	}
	a.encoder.SetMuted(muted)
	return nil
}

// AwaitIdle blocks until no call is in flight or the context expires.
// Finalization runs in the background after Hangup; callers shutting the
// process down wait here so the record reaches the store first.
func (c *Controller) AwaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		c.mu.Lock()
		idle := c.state == StateIdle
		c.mu.Unlock()
		if idle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{State: c.state}
	if c.active != nil {
		snap.CallID = c.active.id
		snap.StartedAt = c.active.startedAt
		snap.Muted = c.active.encoder.Muted()
		snap.Emergency = c.active.detector.Latched()
		snap.DroppedFrames = c.active.encoder.Dropped()
	}
	return snap
}

func (c *Controller) runLoop(a *activeCall, msgs <-chan live.ServerMessage) {
	for msg := range msgs {
		if msg.Err != nil {
			if m := c.opts.Metrics; m != nil {
				m.TransportErrors.Inc()
			}
			c.log.Warnw("speech channel error", "call_id", a.id, "error", msg.Err)
			continue
		}

		// a single server frame can combine deltas, audio and turn markers
		if msg.CallerDelta != "" {
			a.assembler.OnDelta(record.SpeakerCaller, msg.CallerDelta)
		}
		if msg.AgentDelta != "" {
			a.assembler.OnDelta(record.SpeakerAgent, msg.AgentDelta)
			a.detector.OnAgentDelta(msg.AgentDelta)
		}
		if msg.Interrupted {
			a.scheduler.Interrupt()
			c.opts.Metrics.Event("interrupted")
		}
		if msg.AudioBase64 != "" {
			buf, err := audio.DecodeBase64Packet(msg.AudioBase64, audio.PlaybackSampleRate, 1)
			if err != nil {
				// one bad chunk must not take the session down
				c.log.Warnw("dropping malformed audio chunk", "call_id", a.id, "error", err)
				c.opts.Metrics.Event("decode_error")
			} else {
				a.scheduler.Enqueue(buf)
				if c.opts.ArchiveDir != "" {
					a.archive = append(a.archive, buf.PCM16LE()...)
				}
			}
		}
		if msg.TurnComplete {
			a.assembler.OnTurnComplete()
			c.opts.Metrics.Event("turn_complete")
		}
	}

	// channel drained: the transcript is complete, teardown can finish
	c.endCall(a, record.StatusCompleted)
	a.scheduler.Interrupt()
	a.scheduler.Close()
	a.assembler.OnSessionEnd()
	c.finalize(a, a.status)
}

// endCall stops the inputs and closes the live session exactly once. The
// first caller's status wins; finalization itself waits for runLoop to drain
// the remaining server messages so no transcript fragment is lost.
func (c *Controller) endCall(a *activeCall, status record.CallStatus) {
	a.statusOnce.Do(func() { a.status = status })
	a.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = StateClosing
		c.mu.Unlock()

		a.detector.Stop()
		a.encoder.Stop()
		a.session.Close()
	})
}

func (c *Controller) finalize(a *activeCall, status record.CallStatus) {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.AnalysisTimeout)
	defer cancel()

	log := a.assembler.Log()
	emergency := a.detector.Latched()
	if len(log) == 0 && !emergency {
		status = record.StatusMissed
	}

	res := c.opts.Pipeline.Analyze(ctx, log, emergency)
	// A transfer counts whether the detector latched during the call or the
	// classifier recognized the emergency afterwards.
	if res.QueryType == record.QueryEmergency {
		status = record.StatusTransferred
	}
	rec := record.CallRecord{
		ID:          a.id,
		CallerName:  res.CallerName,
		CallerRole:  res.CallerRole,
		PhoneNumber: res.PhoneNumber,
		RollNumber:  res.RollNumber,
		Timestamp:   a.startedAt,
		Summary:     res.Summary,
		QueryType:   res.QueryType,
		Duration:    FormatDuration(time.Since(a.startedAt)),
		Status:      status,
		Transcript:  log,
	}
	if err := c.opts.Store.Save(ctx, rec); err != nil {
		c.log.Errorw("persisting call record failed", "call_id", a.id, "error", err)
	}
	if c.opts.ArchiveDir != "" && len(a.archive) > 0 {
		path := filepath.Join(c.opts.ArchiveDir, a.id+".wav")
		if err := audio.WriteWAVFile(path, a.archive, audio.PlaybackSampleRate); err != nil {
			c.log.Warnw("archiving call audio failed", "call_id", a.id, "error", err)
		}
	}

	if m := c.opts.Metrics; m != nil {
		m.ActiveCall.Set(0)
		m.ScheduledBuffers.Set(0)
		m.CallsFinished.WithLabelValues(string(status)).Inc()
	}
	c.log.Infow("call finished",
		"call_id", a.id, "status", status, "query_type", rec.QueryType, "duration", rec.Duration)

	c.mu.Lock()
	c.state = StateIdle
	c.active = nil
	hook := c.onRecord
	c.mu.Unlock()

	if hook != nil {
		hook(rec)
	}
}

func (c *Controller) setIdle() {
	c.mu.Lock()
	c.state = StateIdle
	c.mu.Unlock()
}

func (c *Controller) onScheduled(n int) {
	if m := c.opts.Metrics; m != nil {
		m.ScheduledBuffers.Set(float64(n))
	}
}

// FormatDuration renders a call duration as minutes and zero-padded seconds.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
