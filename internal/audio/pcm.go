package audio

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// CaptureSampleRate is the upstream microphone rate.
	CaptureSampleRate = 16000
	// PlaybackSampleRate is the rate of synthesized audio coming back.
	PlaybackSampleRate = 24000
	// FrameSamples is the fixed capture frame size per tick.
	FrameSamples = 4096
)

// ErrDecode marks a malformed inbound audio payload. Callers drop the packet
// and continue; it is never fatal to a session.
var ErrDecode = errors.New("malformed pcm payload")

// Packet is an encoded, transport-bound audio frame.
type Packet struct {
	Data     string `json:"data"`
	MIMEType string `json:"mime_type"`
}

// Buffer holds decoded normalized samples.
type Buffer struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Duration returns the playback length of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 || b.Channels <= 0 {
		return 0
	}
	frames := len(b.Samples) / b.Channels
	return time.Duration(frames) * time.Second / time.Duration(b.SampleRate)
}

// EncodeFrame converts normalized float samples to a base64 PCM16LE packet at
// the capture rate. Out-of-range samples are clamped, never rejected.
func EncodeFrame(samples []float32) Packet {
	raw := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := math.Round(float64(s) * 32768)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		u := uint16(int16(v))
		raw[i*2] = byte(u)
		raw[i*2+1] = byte(u >> 8)
	}
	return Packet{
		Data:     base64.StdEncoding.EncodeToString(raw),
		MIMEType: fmt.Sprintf("audio/pcm;rate=%d", CaptureSampleRate),
	}
}

// DecodePacket converts raw PCM16LE bytes back to normalized samples.
func DecodePacket(data []byte, sampleRate, channels int) (Buffer, error) {
	if channels <= 0 {
		channels = 1
	}
	if len(data)%(2*channels) != 0 {
		return Buffer{}, fmt.Errorf("%w: %d bytes not a multiple of %d", ErrDecode, len(data), 2*channels)
	}
	samples := make([]float32, len(data)/2)
	for i := range samples {
		v := int16(uint16(data[i*2]) | uint16(data[i*2+1])<<8)
		samples[i] = float32(v) / 32768.0
	}
	return Buffer{Samples: samples, SampleRate: sampleRate, Channels: channels}, nil
}

// DecodeBase64Packet decodes a base64 PCM16LE payload as delivered on the wire.
func DecodeBase64Packet(payload string, sampleRate, channels int) (Buffer, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Buffer{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return DecodePacket(raw, sampleRate, channels)
}

// PCM16LE re-quantizes a buffer to interleaved PCM16LE bytes, for playback
// sinks and WAV archiving.
func (b Buffer) PCM16LE() []byte {
	out := make([]byte, len(b.Samples)*2)
	for i, s := range b.Samples {
		v := math.Round(float64(s) * 32768)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		u := uint16(int16(v))
		out[i*2] = byte(u)
		out[i*2+1] = byte(u >> 8)
	}
	return out
}
