package audio

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/gen2brain/malgo"
)

// ErrDeviceNotFound is returned when no matching input device is available.
// It is the concrete form of spec.md §6's DeviceNotFound.
var ErrDeviceNotFound = errors.New("audio: no matching device available")

// DeviceInfo describes one enumerated input device.
type DeviceInfo struct {
	Name      string
	IsDefault bool
}

// Format is the negotiated capture format.
type Format struct {
	SampleRate int
	Channels   int
}

// Device is the platform audio API the core consumes (spec.md §6). The
// malgo-backed implementation below satisfies it; tests use a fake.
type Device interface {
	Enumerate() ([]DeviceInfo, error)
	Open(name string, format Format, onSamples func(samples []float32)) error
	Close() error
}

// MalgoDevice wraps github.com/gen2brain/malgo, the same capture library the
// teacher's cmd/agent/main.go and tphakala-birdnet-go's audiocore/sources/malgo
// package use. Only one stream may be open at a time per instance.
type MalgoDevice struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

// NewMalgoDevice initializes the malgo context for the current platform's
// default backend.
func NewMalgoDevice() (*MalgoDevice, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audio: init malgo context: %w", err)
	}
	return &MalgoDevice{ctx: ctx}, nil
}

func (m *MalgoDevice) Enumerate() ([]DeviceInfo, error) {
	infos, err := m.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("audio: enumerate devices: %w", err)
	}
	out := make([]DeviceInfo, 0, len(infos))
	for i := range infos {
		out = append(out, DeviceInfo{
			Name:      infos[i].Name(),
			IsDefault: infos[i].IsDefault == 1,
		})
	}
	return out, nil
}

// Open negotiates the requested format and starts a capture stream. The
// onSamples callback runs on malgo's realtime audio thread and must never
// block (spec.md §4.1) — it converts incoming bytes to float32 and hands
// them to the caller without allocating on the fast path beyond the
// conversion buffer sized once at Open time.
func (m *MalgoDevice) Open(name string, format Format, onSamples func([]float32)) error {
	devices, err := m.ctx.Devices(malgo.Capture)
	if err != nil {
		return fmt.Errorf("audio: enumerate devices: %w", err)
	}
	if len(devices) == 0 {
		return ErrDeviceNotFound
	}
	chosen, err := selectDevice(devices, name)
	if err != nil {
		return err
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(format.Channels)
	cfg.Capture.DeviceID = chosen.ID.Pointer()
	cfg.SampleRate = uint32(format.SampleRate)
	if runtime.GOOS == "linux" {
		cfg.Alsa.NoMMap = 1
	}

	scratch := make([]float32, 0, 4096)
	callbacks := malgo.DeviceCallbacks{
		Data: func(_ []byte, input []byte, _ uint32) {
			scratch = scratch[:0]
			for i := 0; i+1 < len(input); i += 2 {
				sample := int16(input[i]) | int16(input[i+1])<<8
				scratch = append(scratch, float32(sample)/32768.0)
			}
			onSamples(scratch)
		},
	}

	device, err := malgo.InitDevice(m.ctx.Context, cfg, callbacks)
	if err != nil {
		return fmt.Errorf("audio: init device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("audio: start device: %w", err)
	}
	m.device = device
	return nil
}

func (m *MalgoDevice) Close() error {
	if m.device != nil {
		m.device.Uninit()
		m.device = nil
	}
	if m.ctx != nil {
		return m.ctx.Uninit()
	}
	return nil
}

func selectDevice(devices []malgo.DeviceInfo, name string) (*malgo.DeviceInfo, error) {
	if name == "" || name == "default" {
		for i := range devices {
			if devices[i].IsDefault == 1 {
				return &devices[i], nil
			}
		}
		return &devices[0], nil
	}
	for i := range devices {
		if devices[i].Name() == name {
			return &devices[i], nil
		}
	}
	return nil, ErrDeviceNotFound
}
