package live

import (
	"context"
	"errors"

	"github.com/deptdesk/deskline/internal/audio"
)

// ErrConnectionFailed marks a channel that could not be opened or that broke
// mid-session.
var ErrConnectionFailed = errors.New("speech channel connection failed")

// SessionConfig carries everything the remote side needs at open time.
type SessionConfig struct {
	Model        string
	SystemPrompt string
	VoiceName    string
	// EnableSearch adds the external web-search grounding capability.
	EnableSearch bool
}

// ServerMessage is one inbound event from the channel. Any subset of the
// fields may be set in a single message. Err is terminal: the channel closes
// after delivering it.
type ServerMessage struct {
	AudioBase64  string
	AudioMIME    string
	CallerDelta  string
	AgentDelta   string
	TurnComplete bool
	Interrupted  bool
	Err          error
}

// Session is an open bidirectional channel to the speech service.
type Session interface {
	// Send transmits one encoded capture packet. Calls made while the
	// channel is not open are dropped silently; capture never blocks on
	// channel readiness.
	Send(pkt audio.Packet)
	// Close is idempotent and always reachable.
	Close() error
}

// Connector opens realtime sessions. The production connector dials the
// remote speech service; tests substitute a scripted one.
type Connector interface {
	Connect(ctx context.Context, cfg SessionConfig) (Session, <-chan ServerMessage, error)
}
