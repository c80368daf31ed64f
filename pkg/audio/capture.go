package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/scribeflow/meetcore/internal/logging"
)

// Status is the capture service's externally observable state (spec.md §4.1).
type Status string

const (
	Stopped  Status = "stopped"
	Starting Status = "starting"
	Running  Status = "running"
	Stopping Status = "stopping"
)

var (
	// ErrAlreadyRunning is returned by Start when a stream is already active.
	ErrAlreadyRunning = errors.New("audio: capture already running")
	// ErrNotRunning is returned by operations that require an active stream.
	ErrNotRunning = errors.New("audio: capture not running")
)

// StatusEvent is pushed to subscribers registered via SubscribeStatus;
// LevelEvent values go to SubscribeLevels subscribers on their own channels.
type StatusEvent struct {
	Status Status
	At     time.Time
}

// Config is the capture service's requested device format plus ring buffer
// sizing. The callback downmixes to mono before buffering; resampling to
// the pipeline's 16kHz target happens downstream in the chunker's
// preprocessing, keeping the realtime path to a single cheap pass.
type Config struct {
	RequestedSampleRate int
	RequestedChannels   int
	RingBufferSamples   int
	LevelEventsPerSec   int
}

// DefaultConfig mirrors the teacher's cmd/agent/main.go constants.
func DefaultConfig() Config {
	return Config{
		RequestedSampleRate: 44100,
		RequestedChannels:   2,
		RingBufferSamples:   44100 * 10, // 10s headroom
		LevelEventsPerSec:   20,
	}
}

// Service is the audio capture subsystem (C1). It owns one Device, one
// RingBuffer, and a LevelMonitor, and exposes the start/stop/switch
// contract from spec.md §4.1.
type Service struct {
	mu     sync.RWMutex
	device Device
	cfg    Config
	logger logging.Logger

	status     Status
	deviceName string
	ring       *RingBuffer
	level      *LevelMonitor

	statusSubs []chan StatusEvent
	levelSubs  []chan LevelEvent
}

// New builds a capture Service around the given Device.
func New(device Device, cfg Config, logger logging.Logger) *Service {
	return &Service{
		device: device,
		cfg:    cfg,
		logger: logging.OrDefault(logger),
		status: Stopped,
	}
}

// Status returns the current state-machine status.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// SubscribeStatus registers a channel to receive status transitions. The returned
// channel is never closed by the service; callers should size it generously
// since sends are non-blocking (slow subscribers miss events, never block
// the capture thread).
func (s *Service) SubscribeStatus() <-chan StatusEvent {
	ch := make(chan StatusEvent, 32)
	s.mu.Lock()
	s.statusSubs = append(s.statusSubs, ch)
	s.mu.Unlock()
	return ch
}

// SubscribeLevels registers a channel to receive rate-limited RMS/peak/dB
// events (spec.md §6 audio_level_update).
func (s *Service) SubscribeLevels() <-chan LevelEvent {
	ch := make(chan LevelEvent, 32)
	s.mu.Lock()
	s.levelSubs = append(s.levelSubs, ch)
	s.mu.Unlock()
	return ch
}

// RingBuffer exposes the buffer the chunker reads from. Valid only while
// Running; returns nil otherwise.
func (s *Service) RingBuffer() *RingBuffer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ring
}

// Start opens the device and begins capture. It fails atomically: on any
// error no resources are left acquired and status returns to Stopped.
func (s *Service) Start(deviceName string) error {
	s.mu.Lock()
	if s.status != Stopped {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.status = Starting
	s.mu.Unlock()
	s.emitStatus(Starting)

	ring := NewRingBuffer(s.cfg.RingBufferSamples)
	level := NewLevelMonitor(s.cfg.LevelEventsPerSec)

	format := Format{SampleRate: s.cfg.RequestedSampleRate, Channels: s.cfg.RequestedChannels}
	err := s.device.Open(deviceName, format, func(raw []float32) {
		s.onSamples(ring, level, format.Channels, raw)
	})
	if err != nil {
		s.mu.Lock()
		s.status = Stopped
		s.mu.Unlock()
		s.emitStatus(Stopped)
		return fmt.Errorf("audio: start: %w", err)
	}

	s.mu.Lock()
	s.ring = ring
	s.level = level
	s.deviceName = deviceName
	s.status = Running
	s.mu.Unlock()
	s.emitStatus(Running)
	return nil
}

// Stop is idempotent: calling it while already Stopped is a no-op.
func (s *Service) Stop() error {
	s.mu.Lock()
	if s.status == Stopped {
		s.mu.Unlock()
		return nil
	}
	s.status = Stopping
	s.mu.Unlock()
	s.emitStatus(Stopping)

	err := s.device.Close()

	s.mu.Lock()
	s.status = Stopped
	s.ring = nil
	s.level = nil
	s.mu.Unlock()
	s.emitStatus(Stopped)

	if err != nil {
		return fmt.Errorf("audio: stop: %w", err)
	}
	return nil
}

// SwitchDevice stops any running stream, swaps to the named device, and
// resumes capture if it was previously running. Failure during resume
// leaves the service Stopped and surfaces the error, per spec.md §4.1.
func (s *Service) SwitchDevice(name string) error {
	s.mu.RLock()
	wasRunning := s.status == Running
	s.mu.RUnlock()

	if wasRunning {
		if err := s.Stop(); err != nil {
			return err
		}
	}
	if !wasRunning {
		return nil
	}
	return s.Start(name)
}

// onSamples runs on the realtime capture thread and never blocks. For
// multi-channel input, downmix allocates one mono slice per frame.
func (s *Service) onSamples(ring *RingBuffer, level *LevelMonitor, channels int, raw []float32) {
	mono := downmix(raw, channels)

	if err := ring.Write(mono); err != nil {
		s.logger.Warn("ring buffer overrun, frame dropped", "samples", len(mono))
	}

	if ev, ok := level.Observe(mono, time.Now()); ok {
		s.publishLevel(ev)
	}
}

func (s *Service) publishLevel(ev LevelEvent) {
	s.mu.RLock()
	subs := s.levelSubs
	s.mu.RUnlock()
	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *Service) emitStatus(status Status) {
	ev := StatusEvent{Status: status, At: time.Now()}
	s.mu.RLock()
	subs := s.statusSubs
	s.mu.RUnlock()
	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// downmix averages channels down to mono. A mono input is returned
// unmodified (identity), satisfying the testable property in spec.md §8.
func downmix(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	n := len(samples) / channels
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}
