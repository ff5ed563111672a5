package dsp

// Window is a fixed-length ring buffer of the most recent samples.
type Window struct {
	buf []complex128
	idx int // next write position, also the oldest sample
}

// NewWindow creates a window holding n samples, initially zero.
func NewWindow(n int) *Window {
	return &Window{buf: make([]complex128, n)}
}

// Len returns the window length.
func (w *Window) Len() int { return len(w.buf) }

// Push appends x, dropping the oldest sample.
func (w *Window) Push(x complex128) {
	w.buf[w.idx] = x
	w.idx++
	if w.idx == len(w.buf) {
		w.idx = 0
	}
}

// At returns the sample pushed k pushes ago; At(0) is the newest.
func (w *Window) At(k int) complex128 {
	n := len(w.buf)
	return w.buf[((w.idx-1-k)%n+n)%n]
}

// Read copies the window into dst, oldest first. dst may be nil.
func (w *Window) Read(dst []complex128) []complex128 {
	if cap(dst) < len(w.buf) {
		dst = make([]complex128, len(w.buf))
	}
	dst = dst[:len(w.buf)]
	n := copy(dst, w.buf[w.idx:])
	copy(dst[n:], w.buf[:w.idx])
	return dst
}

// Clear zeroes the window.
func (w *Window) Clear() {
	for i := range w.buf {
		w.buf[i] = 0
	}
	w.idx = 0
}

// Delay is a fixed delay line: Read returns the sample pushed n pushes ago.
type Delay struct {
	buf []complex128
	idx int
}

// NewDelay creates a delay line of n samples. n must be at least 1.
func NewDelay(n int) *Delay {
	return &Delay{buf: make([]complex128, n)}
}

// Len returns the delay in samples.
func (d *Delay) Len() int { return len(d.buf) }

// Read returns the delayed output. Call before Push for an n-sample delay.
func (d *Delay) Read() complex128 {
	return d.buf[d.idx]
}

// Push writes x into the line.
func (d *Delay) Push(x complex128) {
	d.buf[d.idx] = x
	d.idx++
	if d.idx == len(d.buf) {
		d.idx = 0
	}
}

// Clear zeroes the delay line.
func (d *Delay) Clear() {
	for i := range d.buf {
		d.buf[i] = 0
	}
	d.idx = 0
}
