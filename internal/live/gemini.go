package live

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/deptdesk/deskline/internal/audio"
	"github.com/deptdesk/deskline/internal/reliability"
)

const (
	defaultWSBaseURL = "wss://generativelanguage.googleapis.com"
	bidiPath         = "/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"
	setupTimeout     = 10 * time.Second
)

// GeminiConfig configures the realtime speech connector.
type GeminiConfig struct {
	APIKey    string
	WSBaseURL string
	Model     string
	VoiceName string
}

// GeminiConnector dials the Gemini Live websocket endpoint.
type GeminiConnector struct {
	cfg GeminiConfig
	log *zap.SugaredLogger
}

func NewGeminiConnector(cfg GeminiConfig, log *zap.SugaredLogger) *GeminiConnector {
	if strings.TrimSpace(cfg.WSBaseURL) == "" {
		cfg.WSBaseURL = defaultWSBaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "models/gemini-2.5-flash-native-audio-preview-12-2025"
	}
	if strings.TrimSpace(cfg.VoiceName) == "" {
		cfg.VoiceName = "Zephyr"
	}
	return &GeminiConnector{cfg: cfg, log: log}
}

// Connect dials the channel, sends the setup frame, and waits for the
// server's setup acknowledgment before declaring the session open.
func (c *GeminiConnector) Connect(ctx context.Context, cfg SessionConfig) (Session, <-chan ServerMessage, error) {
	u, err := url.Parse(strings.TrimRight(c.cfg.WSBaseURL, "/") + bidiPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	q := u.Query()
	q.Set("key", c.cfg.APIKey)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: dial: %v", ErrConnectionFailed, err)
	}

	model := cfg.Model
	if strings.TrimSpace(model) == "" {
		model = c.cfg.Model
	}
	setup := clientSetupMessage{
		Setup: setupPayload{
			Model: model,
			GenerationConfig: &generationConfig{
				ResponseModalities: []string{"AUDIO"},
				SpeechConfig: &speechConfig{
					VoiceConfig: &voiceConfig{
						PrebuiltVoiceConfig: &prebuiltVoiceConfig{VoiceName: c.cfg.VoiceName},
					},
				},
			},
			InputAudioTranscription:  &struct{}{},
			OutputAudioTranscription: &struct{}{},
		},
	}
	if strings.TrimSpace(cfg.SystemPrompt) != "" {
		setup.Setup.SystemInstruction = &content{Parts: []part{{Text: cfg.SystemPrompt}}}
	}
	if cfg.EnableSearch {
		setup.Setup.Tools = []toolSpec{{GoogleSearch: &struct{}{}}}
	}

	if err := conn.WriteJSON(setup); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("%w: send setup: %v", ErrConnectionFailed, err)
	}

	if err := awaitSetupComplete(conn); err != nil {
		_ = conn.Close()
		return nil, nil, err
	}

	msgs := make(chan ServerMessage, 64)
	s := &geminiSession{
		id:   uuid.NewString(),
		conn: conn,
		msgs: msgs,
		log:  c.log,
	}
	s.open.Store(true)
	c.log.Infow("live session established", "session_id", s.id, "model", model)
	go s.readLoop()
	return s, msgs, nil
}

func awaitSetupComplete(conn *websocket.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(setupTimeout))
	defer conn.SetReadDeadline(time.Time{})

	_, data, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("%w: await setup: %v", ErrConnectionFailed, err)
	}
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.SetupComplete == nil {
		return fmt.Errorf("%w: unexpected setup response", ErrConnectionFailed)
	}
	return nil
}

type geminiSession struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex
	open    atomic.Bool

	// closeOnce guards the user-facing Close; shutdownOnce guards the read
	// loop's channel teardown. They are separate so Close never touches msgs
	// while the read loop may still be sending on it.
	closeOnce    sync.Once
	shutdownOnce sync.Once
	msgs         chan ServerMessage
	log          *zap.SugaredLogger
}

func (s *geminiSession) Send(pkt audio.Packet) {
	if !s.open.Load() {
		return
	}
	msg := clientMediaMessage{
		RealtimeInput: realtimeInput{
			MediaChunks: []inlineData{{MIMEType: pkt.MIMEType, Data: pkt.Data}},
		},
	}
	s.writeMu.Lock()
	err := s.conn.WriteJSON(msg)
	s.writeMu.Unlock()
	if err != nil && s.log != nil {
		s.log.Debugw("dropped outbound audio frame", "session_id", s.id, "err", err)
	}
}

func (s *geminiSession) readLoop() {
	defer s.shutdown(nil)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if closeErr, ok := err.(*websocket.CloseError); ok {
				if closeErr.Code == websocket.CloseNormalClosure {
					return
				}
				s.shutdown(fmt.Errorf("%w: closed %d (retryable=%v)",
					ErrConnectionFailed, closeErr.Code, reliability.IsRetryableCloseCode(closeErr.Code)))
				return
			}
			if s.open.Load() {
				s.shutdown(fmt.Errorf("%w: read: %v", ErrConnectionFailed, err))
			}
			return
		}

		var raw serverMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			if s.log != nil {
				s.log.Debugw("skipping unparseable server frame", "err", err)
			}
			continue
		}
		out, ok := flatten(raw)
		if !ok {
			continue
		}
		select {
		case s.msgs <- out:
		default:
			// Inbound channel saturated: shed the message rather than stall
			// the read loop and back up the socket.
			if s.log != nil {
				s.log.Warnw("inbound message dropped, consumer lagging")
			}
		}
	}
}

// flatten projects the nested wire shape onto the logical message contract.
func flatten(raw serverMessage) (ServerMessage, bool) {
	sc := raw.ServerContent
	if sc == nil {
		return ServerMessage{}, false
	}
	var out ServerMessage
	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				out.AudioBase64 = p.InlineData.Data
				out.AudioMIME = p.InlineData.MIMEType
				break
			}
		}
	}
	if sc.InputTranscription != nil {
		out.CallerDelta = sc.InputTranscription.Text
	}
	if sc.OutputTranscription != nil {
		out.AgentDelta = sc.OutputTranscription.Text
	}
	out.TurnComplete = sc.TurnComplete
	out.Interrupted = sc.Interrupted
	return out, out.AudioBase64 != "" || out.CallerDelta != "" || out.AgentDelta != "" ||
		out.TurnComplete || out.Interrupted
}

// shutdown runs only on the read loop goroutine, which is the sole sender on
// msgs, so closing the channel here cannot race an in-flight send.
func (s *geminiSession) shutdown(err error) {
	s.shutdownOnce.Do(func() {
		s.open.Store(false)
		_ = s.conn.Close()
		if err != nil {
			select {
			case s.msgs <- ServerMessage{Err: err}:
			default:
			}
		}
		close(s.msgs)
	})
}

// Close signals the server and tears down the connection. The read loop
// observes the closed connection, drains, and closes the message channel.
func (s *geminiSession) Close() error {
	var retErr error
	s.closeOnce.Do(func() {
		s.open.Store(false)
		s.writeMu.Lock()
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		retErr = s.conn.Close()
	})
	return retErr
}
