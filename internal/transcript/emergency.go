package transcript

import (
	"strings"
	"sync"
	"time"
)

// TriggerPhrase is the agent utterance that marks an emergency hand-off.
const TriggerPhrase = "initiating emergency transfer"

// DefaultGraceDelay is how long teardown is deferred after the trigger so the
// remaining synthesized audio can finish playing.
const DefaultGraceDelay = 3 * time.Second

// EmergencyDetector watches agent transcript deltas for the trigger phrase.
// The phrase may straddle fragment boundaries; matching is case-insensitive.
// The first match sets a one-shot latch and schedules the provided callback
// after the grace delay. Further matches are no-ops.
type EmergencyDetector struct {
	mu      sync.Mutex
	tail    string
	latched bool
	timer   *time.Timer
	grace   time.Duration
	onFire  func()
}

func NewEmergencyDetector(grace time.Duration, onFire func()) *EmergencyDetector {
	if grace <= 0 {
		grace = DefaultGraceDelay
	}
	return &EmergencyDetector{grace: grace, onFire: onFire}
}

// OnAgentDelta feeds one agent transcript fragment. Returns true when this
// delta latched the detector.
func (d *EmergencyDetector) OnAgentDelta(fragment string) bool {
	if fragment == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.latched {
		return false
	}

	d.tail += strings.ToLower(fragment)
	if !strings.Contains(d.tail, TriggerPhrase) {
		// Keep just enough tail to match a phrase split across fragments.
		if keep := len(TriggerPhrase) - 1; len(d.tail) > keep {
			d.tail = d.tail[len(d.tail)-keep:]
		}
		return false
	}

	d.latched = true
	d.tail = ""
	if d.onFire != nil {
		d.timer = time.AfterFunc(d.grace, d.onFire)
	}
	return true
}

// Latched reports whether the trigger has fired this session.
func (d *EmergencyDetector) Latched() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.latched
}

// Stop cancels a pending grace timer. Safe to call at any time; the latch
// state is preserved so the analysis pipeline still sees the emergency.
func (d *EmergencyDetector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
