package audio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/multierr"
)

const (
	DefaultSampleRate   = 48000
	DefaultFramesPerBuf = 1024
	// NumChannels is fixed at two: left carries I, right carries Q.
	NumChannels = 2
)

// ErrNotOpen is returned when a stream is used before Open or after Close.
var ErrNotOpen = errors.New("audio stream not open")

// Init initializes PortAudio.
func Init() error {
	return portaudio.Initialize()
}

// Terminate cleans up PortAudio.
func Terminate() error {
	return portaudio.Terminate()
}

// StreamConfig selects the device and buffering of an I/Q stream.
type StreamConfig struct {
	Device       string // empty selects the default device
	SampleRate   float64
	FramesPerBuf int
	// Scale multiplies samples on capture and divides them on playback.
	Scale float64
}

func (c StreamConfig) withDefaults() StreamConfig {
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.FramesPerBuf <= 0 {
		c.FramesPerBuf = DefaultFramesPerBuf
	}
	if c.Scale == 0 {
		c.Scale = 1
	}
	return c
}

// IQSource captures complex baseband from a stereo input.
type IQSource struct {
	cfg    StreamConfig
	stream *portaudio.Stream
	buf    []float32
	mu     sync.Mutex
}

// OpenIQSource opens a two channel input stream. The stream must be
// started before reading.
func OpenIQSource(cfg StreamConfig) (*IQSource, error) {
	cfg = cfg.withDefaults()
	dev, err := findDevice(cfg.Device, true)
	if err != nil {
		return nil, fmt.Errorf("select input device: %w", err)
	}
	if dev.MaxInputChannels < NumChannels {
		return nil, fmt.Errorf("input device %q has %d channels, need %d", dev.Name, dev.MaxInputChannels, NumChannels)
	}

	p := portaudio.HighLatencyParameters(dev, nil)
	p.Input.Channels = NumChannels
	p.SampleRate = cfg.SampleRate
	p.FramesPerBuffer = cfg.FramesPerBuf

	s := &IQSource{cfg: cfg, buf: make([]float32, NumChannels*cfg.FramesPerBuf)}
	s.stream, err = portaudio.OpenStream(p, s.buf)
	if err != nil {
		return nil, fmt.Errorf("open input stream: %w", err)
	}
	return s, nil
}

// Start starts the input stream.
func (s *IQSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return ErrNotOpen
	}
	return s.stream.Start()
}

// Read blocks for one buffer and returns it as complex samples.
func (s *IQSource) Read() ([]complex128, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return nil, ErrNotOpen
	}
	if err := s.stream.Read(); err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	out := make([]complex128, s.cfg.FramesPerBuf)
	Deinterleave(out, s.buf, s.cfg.Scale)
	return out, nil
}

// Close stops and closes the stream.
func (s *IQSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return nil
	}
	err := multierr.Append(s.stream.Stop(), s.stream.Close())
	s.stream = nil
	if err != nil {
		return fmt.Errorf("close input stream: %w", err)
	}
	return nil
}

// IQSink plays complex baseband on a stereo output.
type IQSink struct {
	cfg    StreamConfig
	stream *portaudio.Stream
	buf    []float32
	mu     sync.Mutex
}

// OpenIQSink opens a two channel output stream and starts it.
func OpenIQSink(cfg StreamConfig) (*IQSink, error) {
	cfg = cfg.withDefaults()
	dev, err := findDevice(cfg.Device, false)
	if err != nil {
		return nil, fmt.Errorf("select output device: %w", err)
	}
	if dev.MaxOutputChannels < NumChannels {
		return nil, fmt.Errorf("output device %q has %d channels, need %d", dev.Name, dev.MaxOutputChannels, NumChannels)
	}

	p := portaudio.HighLatencyParameters(nil, dev)
	p.Output.Channels = NumChannels
	p.SampleRate = cfg.SampleRate
	p.FramesPerBuffer = cfg.FramesPerBuf

	s := &IQSink{cfg: cfg, buf: make([]float32, NumChannels*cfg.FramesPerBuf)}
	s.stream, err = portaudio.OpenStream(p, s.buf)
	if err != nil {
		return nil, fmt.Errorf("open output stream: %w", err)
	}
	if err := s.stream.Start(); err != nil {
		_ = s.stream.Close()
		return nil, fmt.Errorf("start output stream: %w", err)
	}
	return s, nil
}

// Write plays samples in buffer sized chunks, zero padding the last one.
func (s *IQSink) Write(samples []complex128) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return ErrNotOpen
	}
	n := s.cfg.FramesPerBuf
	chunk := make([]complex128, n)
	for i := 0; i < len(samples); i += n {
		end := min(i+n, len(samples))
		m := copy(chunk, samples[i:end])
		clear(chunk[m:])
		Interleave(s.buf, chunk, 1/s.cfg.Scale)
		if err := s.stream.Write(); err != nil {
			return fmt.Errorf("write: %w", err)
		}
	}
	return nil
}

// Close stops and closes the stream.
func (s *IQSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return nil
	}
	err := multierr.Append(s.stream.Stop(), s.stream.Close())
	s.stream = nil
	if err != nil {
		return fmt.Errorf("close output stream: %w", err)
	}
	return nil
}

// Deinterleave converts interleaved left/right frames into I + jQ.
func Deinterleave(dst []complex128, src []float32, scale float64) {
	for i := range dst {
		if 2*i+1 >= len(src) {
			return
		}
		dst[i] = complex(float64(src[2*i])*scale, float64(src[2*i+1])*scale)
	}
}

// Interleave converts I + jQ into interleaved left/right frames, clipping
// to the [-1, 1] range of float32 audio.
func Interleave(dst []float32, src []complex128, scale float64) {
	for i, x := range src {
		if 2*i+1 >= len(dst) {
			return
		}
		dst[2*i] = clip(real(x) * scale)
		dst[2*i+1] = clip(imag(x) * scale)
	}
}

func clip(v float64) float32 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	}
	return float32(v)
}
