package capture

import (
	"fmt"

	"github.com/gen2brain/malgo"

	"github.com/deptdesk/deskline/internal/audio"
)

// micDevice captures from the default microphone at the upstream rate and
// regroups the driver's period-sized callbacks into fixed 4096-sample frames.
type micDevice struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	frames chan []float32
	accum  []float32
}

// OpenMicrophone acquires the default capture device. Failures map to
// ErrMicrophoneUnavailable so the controller can abort before connecting.
func OpenMicrophone() (Device, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: init context: %v", ErrMicrophoneUnavailable, err)
	}

	m := &micDevice{
		ctx:    mctx,
		frames: make(chan []float32, 4),
		accum:  make([]float32, 0, audio.FrameSamples),
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = 1
	cfg.SampleRate = audio.CaptureSampleRate
	cfg.PeriodSizeInMilliseconds = 20

	device, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			m.onSamples(input)
		},
	})
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("%w: init device: %v", ErrMicrophoneUnavailable, err)
	}
	m.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("%w: start device: %v", ErrMicrophoneUnavailable, err)
	}
	return m, nil
}

// onSamples runs on the driver thread: widen S16LE to floats and emit full
// frames. A slow consumer loses whole frames rather than blocking the driver.
func (m *micDevice) onSamples(input []byte) {
	buf, err := audio.DecodePacket(input, audio.CaptureSampleRate, 1)
	if err != nil {
		return
	}
	m.accum = append(m.accum, buf.Samples...)
	for len(m.accum) >= audio.FrameSamples {
		frame := make([]float32, audio.FrameSamples)
		copy(frame, m.accum[:audio.FrameSamples])
		m.accum = m.accum[audio.FrameSamples:]
		select {
		case m.frames <- frame:
		default:
		}
	}
}

func (m *micDevice) Frames() <-chan []float32 {
	return m.frames
}

func (m *micDevice) Close() error {
	if m.device != nil {
		_ = m.device.Stop()
		m.device.Uninit()
		m.device = nil
	}
	if m.ctx != nil {
		err := m.ctx.Uninit()
		m.ctx.Free()
		m.ctx = nil
		return err
	}
	return nil
}
