package playback

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/deptdesk/deskline/internal/audio"
)

// SpeakerSink plays scheduled buffers through the default output device. The
// scheduler hands buffers over in timeline order, so the sink only has to
// append PCM to a pull-buffer the oto player drains.
type SpeakerSink struct {
	otoCtx *oto.Context

	mu      sync.Mutex
	cond    *sync.Cond
	pcm     []byte
	player  *oto.Player
	playing bool
	closed  bool

	// gen identifies the current player. Stop bumps it so a reader parked in
	// cond.Wait for a discarded player wakes up and returns EOF instead of
	// stealing PCM destined for the live player.
	gen int
}

// NewSpeakerSink initializes the output device at the playback rate.
func NewSpeakerSink() (*SpeakerSink, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   audio.PlaybackSampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		// ~100ms device buffer keeps latency low without glitching.
		BufferSize: audio.PlaybackSampleRate / 5,
	})
	if err != nil {
		return nil, fmt.Errorf("init output device: %w", err)
	}
	<-ready

	s := &SpeakerSink{otoCtx: ctx}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

// Play appends the buffer's PCM to the device stream. The timeline offset is
// already accounted for by the scheduler's back-to-back ordering.
func (s *SpeakerSink) Play(buf audio.Buffer, _ time.Duration) {
	data := buf.PCM16LE()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pcm = append(s.pcm, data...)
	if !s.playing {
		s.playing = true
		s.gen++
		s.player = s.otoCtx.NewPlayer(&sinkReader{sink: s, gen: s.gen})
		s.player.Play()
	}
	s.cond.Signal()
}

// sinkReader feeds exactly one player generation. Once the sink moves on to
// a newer player the reader reports EOF so the old pull loop exits.
type sinkReader struct {
	sink *SpeakerSink
	gen  int
}

func (r *sinkReader) Read(p []byte) (int, error) {
	return r.sink.read(r.gen, p)
}

func (s *SpeakerSink) read(gen int, p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.gen == gen && len(s.pcm) == 0 && !s.closed {
		s.cond.Wait()
	}
	if s.gen != gen {
		return 0, io.EOF
	}
	if s.closed && len(s.pcm) == 0 {
		// Feed silence so the device drains gracefully.
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	n := copy(p, s.pcm)
	s.pcm = s.pcm[n:]
	return n, nil
}

// Stop discards all pending audio and halts the current player so the next
// Play starts from a clean device queue.
func (s *SpeakerSink) Stop() {
	s.mu.Lock()
	s.pcm = s.pcm[:0]
	player := s.player
	wasPlaying := s.playing
	s.player = nil
	s.playing = false
	s.gen++
	s.cond.Broadcast()
	s.mu.Unlock()

	if player != nil && wasPlaying {
		player.Pause()
		player.Close()
	}
}

// Close releases the device.
func (s *SpeakerSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	player := s.player
	s.player = nil
	s.mu.Unlock()

	if player != nil {
		return player.Close()
	}
	return nil
}
