package transcript

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/deptdesk/deskline/internal/record"
)

func TestAssemblerCommitOrder(t *testing.T) {
	a := NewAssembler()
	a.OnDelta(record.SpeakerAgent, "Your attendance ")
	a.OnDelta(record.SpeakerCaller, "My roll number ")
	a.OnDelta(record.SpeakerCaller, "is CS2024-005")
	a.OnDelta(record.SpeakerAgent, "is 82%")
	a.OnTurnComplete()

	log := a.Log()
	if len(log) != 2 {
		t.Fatalf("got %d utterances, want 2", len(log))
	}
	if log[0].Speaker != record.SpeakerCaller || log[0].Text != "My roll number is CS2024-005" {
		t.Fatalf("caller utterance = %+v", log[0])
	}
	if log[1].Speaker != record.SpeakerAgent || log[1].Text != "Your attendance is 82%" {
		t.Fatalf("agent utterance = %+v", log[1])
	}
}

func TestAssemblerSkipsEmptyChannels(t *testing.T) {
	a := NewAssembler()
	a.OnDelta(record.SpeakerCaller, "  \n ")
	a.OnDelta(record.SpeakerAgent, "Hello")
	a.OnTurnComplete()

	log := a.Log()
	if len(log) != 1 {
		t.Fatalf("got %d utterances, want 1", len(log))
	}
	if log[0].Speaker != record.SpeakerAgent {
		t.Fatalf("speaker = %s", log[0].Speaker)
	}
	for _, u := range log {
		if strings.TrimSpace(u.Text) == "" {
			t.Fatal("committed empty utterance")
		}
	}
}

func TestAssemblerSessionEndCommitsPartials(t *testing.T) {
	a := NewAssembler()
	a.OnDelta(record.SpeakerCaller, "hello")
	a.OnTurnComplete()
	a.OnDelta(record.SpeakerAgent, "trailing partial")
	a.OnSessionEnd()

	log := a.Log()
	if len(log) != 2 {
		t.Fatalf("got %d utterances, want 2", len(log))
	}
	if log[1].Text != "trailing partial" {
		t.Fatalf("trailing utterance = %q", log[1].Text)
	}
	if a.Pending(record.SpeakerAgent) != "" {
		t.Fatal("pending buffer not cleared after commit")
	}
}

func TestAssemblerConcatenationPreserved(t *testing.T) {
	a := NewAssembler()
	deltas := []string{"one ", "two ", "three", " four"}
	for _, d := range deltas {
		a.OnDelta(record.SpeakerCaller, d)
	}
	a.OnTurnComplete()

	want := strings.TrimSpace(strings.Join(deltas, ""))
	log := a.Log()
	if len(log) != 1 || log[0].Text != want {
		t.Fatalf("got %+v, want %q", log, want)
	}
}

func TestAssemblerConcurrentDeltas(t *testing.T) {
	a := NewAssembler()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			a.OnDelta(record.SpeakerCaller, fmt.Sprintf("c%d ", n))
		}(i)
		go func(n int) {
			defer wg.Done()
			a.OnDelta(record.SpeakerAgent, fmt.Sprintf("a%d ", n))
		}(i)
	}
	wg.Wait()
	a.OnTurnComplete()

	log := a.Log()
	if len(log) != 2 {
		t.Fatalf("got %d utterances, want 2", len(log))
	}
	// Each delta must appear intact: no interleaved partial writes.
	for i := 0; i < 50; i++ {
		if !strings.Contains(log[0].Text, fmt.Sprintf("c%d", i)) {
			t.Fatalf("caller text missing delta c%d", i)
		}
		if !strings.Contains(log[1].Text, fmt.Sprintf("a%d", i)) {
			t.Fatalf("agent text missing delta a%d", i)
		}
	}
}

func TestAssemblerEmpty(t *testing.T) {
	a := NewAssembler()
	if !a.Empty() {
		t.Fatal("new assembler should be empty")
	}
	a.OnDelta(record.SpeakerCaller, "x")
	if a.Empty() {
		t.Fatal("buffered delta should count as non-empty")
	}
}
