package transcript

import (
	"strings"
	"sync"

	"github.com/deptdesk/deskline/internal/record"
)

// Assembler accumulates streaming transcript deltas for the in-progress caller
// and agent utterances and commits them to an ordered log on turn completion.
// Capture and inbound-message handling may append concurrently, so every delta
// is applied atomically.
type Assembler struct {
	mu     sync.Mutex
	caller strings.Builder
	agent  strings.Builder
	log    record.Transcript
}

func NewAssembler() *Assembler {
	return &Assembler{}
}

// OnDelta appends a transcript fragment to the given channel's buffer.
func (a *Assembler) OnDelta(speaker record.Speaker, fragment string) {
	if fragment == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	switch speaker {
	case record.SpeakerCaller:
		a.caller.WriteString(fragment)
	case record.SpeakerAgent:
		a.agent.WriteString(fragment)
	}
}

// OnTurnComplete commits both in-progress buffers, caller before agent, and
// clears them. Empty buffers commit nothing.
func (a *Assembler) OnTurnComplete() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.commitLocked()
}

// OnSessionEnd performs the same commit as a turn boundary. This covers the
// remote side closing without a final turn-complete signal, so trailing
// partial utterances are never dropped.
func (a *Assembler) OnSessionEnd() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.commitLocked()
}

func (a *Assembler) commitLocked() {
	if text := strings.TrimSpace(a.caller.String()); text != "" {
		a.log = append(a.log, record.Utterance{Speaker: record.SpeakerCaller, Text: text})
	}
	if text := strings.TrimSpace(a.agent.String()); text != "" {
		a.log = append(a.log, record.Utterance{Speaker: record.SpeakerAgent, Text: text})
	}
	a.caller.Reset()
	a.agent.Reset()
}

// Log returns a copy of the committed transcript.
func (a *Assembler) Log() record.Transcript {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(record.Transcript, len(a.log))
	copy(out, a.log)
	return out
}

// Empty reports whether nothing has been committed or buffered.
func (a *Assembler) Empty() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.log) == 0 &&
		strings.TrimSpace(a.caller.String()) == "" &&
		strings.TrimSpace(a.agent.String()) == ""
}

// Pending returns the in-progress text for one channel, for live display.
func (a *Assembler) Pending(speaker record.Speaker) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if speaker == record.SpeakerCaller {
		return a.caller.String()
	}
	return a.agent.String()
}
