// Package config loads the oqamsync configuration from files, environment
// and flags through viper.
package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Sangstbk/liquid-dsp/internal/audio"
	"github.com/Sangstbk/liquid-dsp/internal/modem"
	"github.com/Sangstbk/liquid-dsp/internal/sim"
)

// EnvPrefix is prepended to environment variable names.
const EnvPrefix = "OQAMSYNC"

// Config is the application configuration.
type Config struct {
	Sync   SyncConfig   `mapstructure:"sync" yaml:"sync"`
	Audio  AudioConfig  `mapstructure:"audio" yaml:"audio"`
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
	Sim    SimConfig    `mapstructure:"sim" yaml:"sim"`
	Debug  DebugConfig  `mapstructure:"debug" yaml:"debug"`
}

// SyncConfig holds the synchronizer parameters.
type SyncConfig struct {
	FilterDelay        int     `mapstructure:"filter_delay" yaml:"filter_delay"`
	ExcessBandwidth    float64 `mapstructure:"excess_bandwidth" yaml:"excess_bandwidth"`
	AutoCorrThreshold  float64 `mapstructure:"autocorr_threshold" yaml:"autocorr_threshold"`
	CrossCorrThreshold float64 `mapstructure:"crosscorr_threshold" yaml:"crosscorr_threshold"`
	CompensateCFO      bool    `mapstructure:"compensate_cfo" yaml:"compensate_cfo"`
}

// AudioConfig holds the sound card settings.
type AudioConfig struct {
	InputDevice     string  `mapstructure:"input_device" yaml:"input_device"`
	OutputDevice    string  `mapstructure:"output_device" yaml:"output_device"`
	SampleRate      float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
	FramesPerBuffer int     `mapstructure:"frames_per_buffer" yaml:"frames_per_buffer"`
	Scale           float64 `mapstructure:"scale" yaml:"scale"`
}

// ServerConfig holds the monitor server settings.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// LogConfig holds the logger settings.
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// SimConfig holds the simulation settings.
type SimConfig struct {
	Frames          int     `mapstructure:"frames" yaml:"frames"`
	SymbolsPerFrame int     `mapstructure:"symbols_per_frame" yaml:"symbols_per_frame"`
	Modulation      string  `mapstructure:"modulation" yaml:"modulation"`
	SNRdB           float64 `mapstructure:"snr_db" yaml:"snr_db"`
	SignalDB        float64 `mapstructure:"signal_db" yaml:"signal_db"`
	CFO             float64 `mapstructure:"cfo" yaml:"cfo"`
	Seed            uint64  `mapstructure:"seed" yaml:"seed"`
}

// DebugConfig controls the Octave trace export.
type DebugConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	File      string `mapstructure:"file" yaml:"file"`
	BufferLen int    `mapstructure:"buffer_len" yaml:"buffer_len"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	m := modem.DefaultConfig()
	v.SetDefault("sync.filter_delay", m.FilterDelay)
	v.SetDefault("sync.excess_bandwidth", m.ExcessBandwidth)
	v.SetDefault("sync.autocorr_threshold", m.AutoCorrThreshold)
	v.SetDefault("sync.crosscorr_threshold", m.CrossCorrThreshold)
	v.SetDefault("sync.compensate_cfo", m.CompensateCFO)

	v.SetDefault("audio.input_device", "")
	v.SetDefault("audio.output_device", "")
	v.SetDefault("audio.sample_rate", audio.DefaultSampleRate)
	v.SetDefault("audio.frames_per_buffer", audio.DefaultFramesPerBuf)
	v.SetDefault("audio.scale", 1.0)

	v.SetDefault("server.enabled", false)
	v.SetDefault("server.addr", ":8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	s := sim.DefaultConfig()
	v.SetDefault("sim.frames", s.Frames)
	v.SetDefault("sim.symbols_per_frame", s.SymbolsPerFrame)
	v.SetDefault("sim.modulation", s.Modulation.String())
	v.SetDefault("sim.snr_db", s.SNRdB)
	v.SetDefault("sim.signal_db", s.SignalDB)
	v.SetDefault("sim.cfo", s.CFO)
	v.SetDefault("sim.seed", s.Seed)

	v.SetDefault("debug.enabled", false)
	v.SetDefault("debug.file", "oqamsync_debug.m")
	v.SetDefault("debug.buffer_len", 2048)
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration with every default applied.
func Default() (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	return Load(v)
}

// Validate checks every section and joins the failures.
func (c *Config) Validate() error {
	var errs []error
	if err := c.ToModem().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("sync: %w", err))
	}
	if c.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio: sample rate %g must be positive", c.Audio.SampleRate))
	}
	if c.Audio.FramesPerBuffer <= 0 {
		errs = append(errs, fmt.Errorf("audio: frames per buffer %d must be positive", c.Audio.FramesPerBuffer))
	}
	if c.Audio.Scale <= 0 {
		errs = append(errs, fmt.Errorf("audio: scale %g must be positive", c.Audio.Scale))
	}
	if c.Server.Enabled && c.Server.Addr == "" {
		errs = append(errs, errors.New("server: address required when enabled"))
	}
	if _, err := c.ToSim(); err != nil {
		errs = append(errs, fmt.Errorf("sim: %w", err))
	}
	if c.Debug.Enabled && c.Debug.File == "" {
		errs = append(errs, errors.New("debug: file required when enabled"))
	}
	return errors.Join(errs...)
}

// ToModem returns the synchronizer configuration.
func (c *Config) ToModem() modem.Config {
	return modem.Config{
		FilterDelay:        c.Sync.FilterDelay,
		ExcessBandwidth:    c.Sync.ExcessBandwidth,
		AutoCorrThreshold:  c.Sync.AutoCorrThreshold,
		CrossCorrThreshold: c.Sync.CrossCorrThreshold,
		CompensateCFO:      c.Sync.CompensateCFO,
	}
}

// ToSim returns the simulation configuration.
func (c *Config) ToSim() (sim.Config, error) {
	mod, err := modem.ParseModulation(c.Sim.Modulation)
	if err != nil {
		return sim.Config{}, err
	}
	s := sim.Config{
		Frames:          c.Sim.Frames,
		SymbolsPerFrame: c.Sim.SymbolsPerFrame,
		Modulation:      mod,
		SNRdB:           c.Sim.SNRdB,
		SignalDB:        c.Sim.SignalDB,
		CFO:             c.Sim.CFO,
		Seed:            c.Sim.Seed,
	}
	return s, s.Validate()
}

// InputStream returns the capture stream settings.
func (c *Config) InputStream() audio.StreamConfig {
	return audio.StreamConfig{
		Device:       c.Audio.InputDevice,
		SampleRate:   c.Audio.SampleRate,
		FramesPerBuf: c.Audio.FramesPerBuffer,
		Scale:        c.Audio.Scale,
	}
}

// OutputStream returns the playback stream settings.
func (c *Config) OutputStream() audio.StreamConfig {
	s := c.InputStream()
	s.Device = c.Audio.OutputDevice
	return s
}

// YAML renders the configuration as a YAML document.
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal configuration: %w", err)
	}
	return out, nil
}
