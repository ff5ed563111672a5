// Package diag records synchronizer traces and exports them as an
// Octave/Matlab script for offline inspection.
package diag

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/multierr"

	"github.com/Sangstbk/liquid-dsp/internal/dsp"
	"github.com/Sangstbk/liquid-dsp/internal/modem"
)

// DefaultBufferLen is the number of samples kept per trace.
const DefaultBufferLen = 2048

// Recorder implements modem.Observer and modem.Tracer. It keeps the most
// recent samples of each trace and the estimates of the last frame.
type Recorder struct {
	mu sync.Mutex

	n      int
	traces [4]*dsp.Window // indexed by modem.TraceKind
	data   *dsp.Window    // demapped payload values

	cfo         float64
	gains       []complex128
	undefined   []int
	pilotPhases []float64
	frames      int
	symbols     int
}

// NewRecorder creates a recorder keeping n samples per trace. n <= 0 uses
// DefaultBufferLen.
func NewRecorder(n int) *Recorder {
	if n <= 0 {
		n = DefaultBufferLen
	}
	r := &Recorder{n: n, data: dsp.NewWindow(n)}
	for i := range r.traces {
		r.traces[i] = dsp.NewWindow(n)
	}
	return r
}

// Trace implements modem.Tracer.
func (r *Recorder) Trace(kind modem.TraceKind, v complex128) {
	if kind < 0 || int(kind) >= len(r.traces) {
		return
	}
	r.mu.Lock()
	r.traces[kind].Push(v)
	r.mu.Unlock()
}

// StateChanged implements modem.Observer.
func (r *Recorder) StateChanged(ev modem.StateEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev.Reason == modem.ReasonDetected && ev.To == modem.SeekLong0 {
		r.cfo = ev.CFO
	}
	if ev.To == modem.Receive {
		r.frames++
	}
}

// GainEstimated implements modem.Observer.
func (r *Recorder) GainEstimated(ev modem.GainEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gains = append(r.gains[:0], ev.Gains...)
	r.undefined = append(r.undefined[:0], ev.Undefined...)
}

// SymbolReceived implements modem.Observer.
func (r *Recorder) SymbolReceived(ev modem.SymbolEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range ev.Data {
		r.data.Push(v)
	}
	r.pilotPhases = append(r.pilotPhases[:0], ev.PilotPhases[:]...)
	r.symbols++
}

// Frames returns the number of frames that reached receive.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Symbols returns the number of payload symbols recorded.
func (r *Recorder) Symbols() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.symbols
}

// Snapshot returns the trace buffer of kind, oldest first.
func (r *Recorder) Snapshot(kind modem.TraceKind) []complex128 {
	if kind < 0 || int(kind) >= len(r.traces) {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.traces[kind].Read(nil)
}

// WriteOctave writes the recorded state as an Octave/Matlab script.
func (r *Recorder) WriteOctave(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &script{w: bufio.NewWriter(w)}
	s.printf("%% oqamsync debug trace: auto-generated file\n")
	s.printf("close all;\nclear all;\n")
	s.printf("n = %d;\n", r.n)
	s.printf("nu_hat = %12.4e;\n", r.cfo)

	if len(r.gains) > 0 {
		s.vector("G", r.gains)
		s.printf("figure;\nf = -%d:%d;\n", len(r.gains)/2, len(r.gains)/2-1)
		s.printf("subplot(2,1,1);\n    plot(f,fftshift(abs(G)));\n    xlabel('subcarrier index');\n    ylabel('|G|');\n    grid on;\n")
		s.printf("subplot(2,1,2);\n    plot(f,fftshift(arg(G)));\n    xlabel('subcarrier index');\n    ylabel('arg\\{G\\}');\n    grid on;\n")
	}
	if len(r.undefined) > 0 {
		s.printf("undefined = [")
		for i, k := range r.undefined {
			if i > 0 {
				s.printf(" ")
			}
			s.printf("%d", k)
		}
		s.printf("];\n")
	}
	for i, p := range r.pilotPhases {
		s.printf("phi(%3d) = %12.8f;\n", i+1, p)
	}

	x := r.traces[modem.TraceInput].Read(nil)
	s.vector("x", x)
	s.printf("figure;\nplot(0:(n-1),real(x),0:(n-1),imag(x));\nxlabel('sample index');\nylabel('received signal, x');\n")

	s.vector("rxx0", r.traces[modem.TraceRxx0].Read(nil))
	s.vector("rxx1", r.traces[modem.TraceRxx1].Read(nil))
	s.printf("figure;\nplot(0:(n-1),abs(rxx0),0:(n-1),abs(rxx1),0:(n-1),[abs(rxx0)+abs(rxx1)]/2,'-k','LineWidth',2);\n")
	s.printf("xlabel('sample index');\nylabel('|r_{xx}|');\n")

	s.vector("rxy", r.traces[modem.TraceRxy].Read(nil))
	s.printf("figure;\nplot(0:(n-1),abs(rxy));\nxlabel('sample index');\nylabel('|r_{xy}|');\n")

	if r.symbols > 0 {
		s.vector("framesyms", r.data.Read(nil))
		s.printf("figure;\nplot(real(framesyms),imag(framesyms),'x','MarkerSize',1);\n")
		s.printf("axis square;\naxis([-1.6 1.6 -1.6 1.6]);\nxlabel('in-phase');\nylabel('quadrature');\ngrid on;\n")
	}
	return s.flush()
}

// WriteFile writes the Octave script to path.
func (r *Recorder) WriteFile(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create debug file: %w", err)
	}
	defer func() { err = multierr.Append(err, f.Close()) }()
	if err := r.WriteOctave(f); err != nil {
		return fmt.Errorf("write debug file %s: %w", path, err)
	}
	return nil
}

// script accumulates the first write error.
type script struct {
	w   *bufio.Writer
	err error
}

func (s *script) printf(format string, args ...any) {
	if s.err != nil {
		return
	}
	_, s.err = fmt.Fprintf(s.w, format, args...)
}

func (s *script) vector(name string, v []complex128) {
	s.printf("%s = zeros(1,%d);\n", name, len(v))
	for i, x := range v {
		s.printf("%s(%4d) = %12.4e + j*%12.4e;\n", name, i+1, real(x), imag(x))
	}
}

func (s *script) flush() error {
	if s.err != nil {
		return s.err
	}
	return s.w.Flush()
}
