package audio

import (
	"encoding/base64"
	"math"
	"testing"
	"time"
)

func TestEncodeFrameRoundTrip(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 0.25, -0.25, 0.999, -0.999, 0.0001}
	pkt := EncodeFrame(samples)

	if pkt.MIMEType != "audio/pcm;rate=16000" {
		t.Fatalf("mime type = %q", pkt.MIMEType)
	}

	buf, err := DecodeBase64Packet(pkt.Data, CaptureSampleRate, 1)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(buf.Samples) != len(samples) {
		t.Fatalf("got %d samples, want %d", len(buf.Samples), len(samples))
	}
	const step = 1.0 / 32768.0
	for i, want := range samples {
		if diff := math.Abs(float64(buf.Samples[i] - want)); diff > step {
			t.Fatalf("sample %d: got %v, want %v (diff %v)", i, buf.Samples[i], want, diff)
		}
	}
}

func TestEncodeFrameClampsOutOfRange(t *testing.T) {
	pkt := EncodeFrame([]float32{2.0, -2.0, 1.0})
	buf, err := DecodeBase64Packet(pkt.Data, CaptureSampleRate, 1)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if buf.Samples[0] < 0.999 {
		t.Fatalf("positive overflow not clamped high: %v", buf.Samples[0])
	}
	if buf.Samples[1] > -0.999 {
		t.Fatalf("negative overflow not clamped low: %v", buf.Samples[1])
	}
	// 1.0 * 32768 exceeds int16 range and must clamp, not wrap negative.
	if buf.Samples[2] < 0 {
		t.Fatalf("full-scale sample wrapped: %v", buf.Samples[2])
	}
}

func TestDecodePacketRejectsOddLength(t *testing.T) {
	cases := []struct {
		name     string
		data     []byte
		channels int
		wantErr  bool
	}{
		{"empty", nil, 1, false},
		{"aligned mono", make([]byte, 8), 1, false},
		{"odd mono", make([]byte, 7), 1, true},
		{"stereo misaligned", make([]byte, 6), 2, true},
		{"stereo aligned", make([]byte, 8), 2, false},
	}
	for _, tc := range cases {
		_, err := DecodePacket(tc.data, PlaybackSampleRate, tc.channels)
		if tc.wantErr && err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
	}
}

func TestDecodeBase64PacketBadEncoding(t *testing.T) {
	if _, err := DecodeBase64Packet("not-base64!!!", PlaybackSampleRate, 1); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestBufferDuration(t *testing.T) {
	buf := Buffer{Samples: make([]float32, PlaybackSampleRate), SampleRate: PlaybackSampleRate, Channels: 1}
	if got := buf.Duration(); got != time.Second {
		t.Fatalf("duration = %v, want 1s", got)
	}
	half := Buffer{Samples: make([]float32, 12000), SampleRate: PlaybackSampleRate, Channels: 1}
	if got := half.Duration(); got != 500*time.Millisecond {
		t.Fatalf("duration = %v, want 500ms", got)
	}
}

func TestWAVHeader(t *testing.T) {
	pcm := make([]byte, 4800)
	out, err := EncodeWAV(pcm, PlaybackSampleRate)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(out) != 44+len(pcm) {
		t.Fatalf("wav length = %d", len(out))
	}
	if string(out[0:4]) != "RIFF" || string(out[8:12]) != "WAVE" {
		t.Fatalf("bad container magic: %q %q", out[0:4], out[8:12])
	}
}

func TestPCM16LEMatchesEncodeFrame(t *testing.T) {
	samples := []float32{0.1, -0.1, 0.7}
	buf := Buffer{Samples: samples, SampleRate: CaptureSampleRate, Channels: 1}
	raw, err := base64.StdEncoding.DecodeString(EncodeFrame(samples).Data)
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	got := buf.PCM16LE()
	if len(got) != len(raw) {
		t.Fatalf("length mismatch: %d vs %d", len(got), len(raw))
	}
	for i := range got {
		if got[i] != raw[i] {
			t.Fatalf("byte %d differs: %x vs %x", i, got[i], raw[i])
		}
	}
}
