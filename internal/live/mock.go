package live

import (
	"context"
	"sync"

	"github.com/deptdesk/deskline/internal/audio"
)

// MockConnector is a scripted in-process speech service used when no API key
// is configured and throughout the controller tests.
type MockConnector struct {
	mu       sync.Mutex
	FailOpen error
	sessions []*MockSession
}

func NewMockConnector() *MockConnector { return &MockConnector{} }

func (c *MockConnector) Connect(_ context.Context, cfg SessionConfig) (Session, <-chan ServerMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailOpen != nil {
		return nil, nil, c.FailOpen
	}
	s := &MockSession{
		Config: cfg,
		msgs:   make(chan ServerMessage, 64),
	}
	c.sessions = append(c.sessions, s)
	return s, s.msgs, nil
}

// Last returns the most recently opened session.
func (c *MockConnector) Last() *MockSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sessions) == 0 {
		return nil
	}
	return c.sessions[len(c.sessions)-1]
}

type MockSession struct {
	Config SessionConfig

	mu        sync.Mutex
	sent      []audio.Packet
	closed    bool
	closeOnce sync.Once
	msgs      chan ServerMessage
}

func (s *MockSession) Send(pkt audio.Packet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.sent = append(s.sent, pkt)
}

// Emit pushes a scripted inbound message. No-op after close.
func (s *MockSession) Emit(msg ServerMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.msgs <- msg
}

// EndFromRemote simulates the remote side closing the channel.
func (s *MockSession) EndFromRemote(err error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		if err != nil {
			s.msgs <- ServerMessage{Err: err}
		}
		close(s.msgs)
	})
}

func (s *MockSession) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.msgs)
	})
	return nil
}

// Sent returns a copy of every packet accepted so far.
func (s *MockSession) Sent() []audio.Packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audio.Packet, len(s.sent))
	copy(out, s.sent)
	return out
}

func (s *MockSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
