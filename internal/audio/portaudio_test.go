package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterleaveRoundTrip(t *testing.T) {
	src := []complex128{0.5 - 0.25i, -0.125 + 0.75i, 0}
	buf := make([]float32, 2*len(src))
	Interleave(buf, src, 1)
	assert.Equal(t, []float32{0.5, -0.25, -0.125, 0.75, 0, 0}, buf)

	got := make([]complex128, len(src))
	Deinterleave(got, buf, 1)
	assert.Equal(t, src, got)
}

func TestInterleaveClips(t *testing.T) {
	buf := make([]float32, 2)
	Interleave(buf, []complex128{3 - 2i}, 1)
	assert.Equal(t, []float32{1, -1}, buf)
}

func TestDeinterleaveScaleAndShortBuffer(t *testing.T) {
	dst := make([]complex128, 3)
	Deinterleave(dst, []float32{0.5, 0.25, 1}, 4)
	assert.Equal(t, []complex128{2 + 1i, 0, 0}, dst)
}

func TestStreamConfigDefaults(t *testing.T) {
	c := StreamConfig{}.withDefaults()
	assert.Equal(t, float64(DefaultSampleRate), c.SampleRate)
	assert.Equal(t, DefaultFramesPerBuf, c.FramesPerBuf)
	assert.Equal(t, 1.0, c.Scale)
}

func TestDeviceIQCapable(t *testing.T) {
	assert.True(t, DeviceInfo{MaxInputChannels: 2}.IQCapable())
	assert.False(t, DeviceInfo{MaxInputChannels: 1}.IQCapable())
}
