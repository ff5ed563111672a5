package audio

import (
	"fmt"
	"io"

	"github.com/gordonklaus/portaudio"
)

// DeviceInfo holds audio device information.
type DeviceInfo struct {
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	IsDefault         bool
}

// IQCapable reports whether the device can capture a stereo I/Q pair.
func (d DeviceInfo) IQCapable() bool { return d.MaxInputChannels >= NumChannels }

// ListDevices returns all available audio devices.
func ListDevices() ([]DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	var defaultInName, defaultOutName string
	if d, err := portaudio.DefaultInputDevice(); err == nil {
		defaultInName = d.Name
	}
	if d, err := portaudio.DefaultOutputDevice(); err == nil {
		defaultOutName = d.Name
	}

	var result []DeviceInfo
	for _, d := range devices {
		isDefault := (d.Name == defaultInName) || (d.Name == defaultOutName)
		result = append(result, DeviceInfo{
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			MaxOutputChannels: d.MaxOutputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			IsDefault:         isDefault,
		})
	}
	return result, nil
}

// HasInputDevice returns true if a default input device is available.
func HasInputDevice() bool {
	_, err := portaudio.DefaultInputDevice()
	return err == nil
}

// HasOutputDevice returns true if a default output device is available.
func HasOutputDevice() bool {
	_, err := portaudio.DefaultOutputDevice()
	return err == nil
}

// findDevice returns the named device, or the default input or output
// device when name is empty.
func findDevice(name string, input bool) (*portaudio.DeviceInfo, error) {
	if name == "" {
		if input {
			return portaudio.DefaultInputDevice()
		}
		return portaudio.DefaultOutputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	for _, d := range devices {
		if d.Name == name {
			return d, nil
		}
	}
	return nil, fmt.Errorf("audio device %q not found", name)
}

// PrintDevices writes all available audio devices to w.
func PrintDevices(w io.Writer) error {
	devices, err := ListDevices()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Audio Devices:")
	if len(devices) == 0 {
		fmt.Fprintln(w, "  (no devices found)")
		return nil
	}
	for i, d := range devices {
		flags := ""
		if d.IsDefault {
			flags += " [DEFAULT]"
		}
		if d.IQCapable() {
			flags += " [I/Q]"
		}
		fmt.Fprintf(w, "  %d: %s (in:%d out:%d rate:%.0f)%s\n",
			i, d.Name, d.MaxInputChannels, d.MaxOutputChannels,
			d.DefaultSampleRate, flags)
	}

	if !HasInputDevice() {
		fmt.Fprintln(w, "\n  WARNING: No default input device. Listen mode unavailable.")
	}
	if !HasOutputDevice() {
		fmt.Fprintln(w, "\n  WARNING: No default output device. Transmit mode unavailable.")
	}
	return nil
}
