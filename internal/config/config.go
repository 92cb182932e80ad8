package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Audio      AudioConfig      `mapstructure:"audio" yaml:"audio"`
	Recording  RecordingConfig  `mapstructure:"recording" yaml:"recording"`
	Playback   PlaybackConfig   `mapstructure:"playback" yaml:"playback"`
	Effects    EffectsConfig    `mapstructure:"effects" yaml:"effects"`
	Permission PermissionConfig `mapstructure:"permission" yaml:"permission"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
}

type AudioConfig struct {
	Backend    string `mapstructure:"backend" yaml:"backend"` // "pipewire", "alsa", "auto"
	Source     string `mapstructure:"source" yaml:"source"`   // capture node, empty = system default
	Quality    string `mapstructure:"quality" yaml:"quality"` // "high", "low"
	SampleRate int    `mapstructure:"sample_rate" yaml:"sample_rate"`
	Channels   int    `mapstructure:"channels" yaml:"channels"`
}

type RecordingConfig struct {
	TickInterval  time.Duration `mapstructure:"tick_interval" yaml:"tick_interval"`
	AutoStopAfter time.Duration `mapstructure:"auto_stop_after" yaml:"auto_stop_after"`
	StopTimeout   time.Duration `mapstructure:"stop_timeout" yaml:"stop_timeout"`
	Directory     string        `mapstructure:"directory" yaml:"directory"`
	KeepFiles     bool          `mapstructure:"keep_files" yaml:"keep_files"`
	MinFileSize   int64         `mapstructure:"min_file_size" yaml:"min_file_size"`
}

type PlaybackConfig struct {
	Player       string  `mapstructure:"player" yaml:"player"` // "auto", "oto", "mpv", "ffplay"
	Volume       float64 `mapstructure:"volume" yaml:"volume"`
	CorrectPitch bool    `mapstructure:"correct_pitch" yaml:"correct_pitch"`
}

type EffectsConfig struct {
	Default string `mapstructure:"default" yaml:"default"`
}

type PermissionConfig struct {
	Microphone string `mapstructure:"microphone" yaml:"microphone"` // "auto", "granted", "denied"
}

type ServerConfig struct {
	Port        string `mapstructure:"port" yaml:"port"`
	EventBuffer int    `mapstructure:"event_buffer" yaml:"event_buffer"`
}

// Quality presets map to capture sample rates
var qualityPresets = map[string]int{
	"high": 48000,
	"low":  16000,
}

// Default returns the built-in configuration used when no file is present
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			Backend:    "auto",
			Quality:    "high",
			SampleRate: 48000,
			Channels:   1,
		},
		Recording: RecordingConfig{
			TickInterval:  time.Second,
			AutoStopAfter: 3 * time.Second,
			StopTimeout:   5 * time.Second,
			Directory:     filepath.Join(os.TempDir(), "funnyvoice"),
			MinFileSize:   44, // WAV header only
		},
		Playback: PlaybackConfig{
			Player: "auto",
			Volume: 1.0,
		},
		Effects: EffectsConfig{
			Default: "baby-voice",
		},
		Permission: PermissionConfig{
			Microphone: "auto",
		},
		Server: ServerConfig{
			Port:        "8080",
			EventBuffer: 32,
		},
	}
}

// DefaultPath returns the default config file location
func DefaultPath() string {
	return os.ExpandEnv("$HOME/.config/funnyvoice.yaml")
}

// Load reads the config file (if it exists), applies FUNNYVOICE_* environment
// overrides on top of the defaults and validates the result.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix("FUNNYVOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Quality preset decides the sample rate unless one was set explicitly
	if !v.InConfig("audio.sample_rate") && !envSet("audio.sample_rate") {
		if rate, ok := qualityPresets[strings.ToLower(cfg.Audio.Quality)]; ok {
			cfg.Audio.SampleRate = rate
		}
	}

	cfg.Recording.Directory = expandPath(cfg.Recording.Directory)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("audio.backend", d.Audio.Backend)
	v.SetDefault("audio.source", d.Audio.Source)
	v.SetDefault("audio.quality", d.Audio.Quality)
	v.SetDefault("audio.sample_rate", d.Audio.SampleRate)
	v.SetDefault("audio.channels", d.Audio.Channels)

	v.SetDefault("recording.tick_interval", d.Recording.TickInterval)
	v.SetDefault("recording.auto_stop_after", d.Recording.AutoStopAfter)
	v.SetDefault("recording.stop_timeout", d.Recording.StopTimeout)
	v.SetDefault("recording.directory", d.Recording.Directory)
	v.SetDefault("recording.keep_files", d.Recording.KeepFiles)
	v.SetDefault("recording.min_file_size", d.Recording.MinFileSize)

	v.SetDefault("playback.player", d.Playback.Player)
	v.SetDefault("playback.volume", d.Playback.Volume)
	v.SetDefault("playback.correct_pitch", d.Playback.CorrectPitch)

	v.SetDefault("effects.default", d.Effects.Default)
	v.SetDefault("permission.microphone", d.Permission.Microphone)

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.event_buffer", d.Server.EventBuffer)
}

func envSet(key string) bool {
	_, ok := os.LookupEnv("FUNNYVOICE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
	return ok
}

// Validate checks every field that the session and the backends rely on
func (c *Config) Validate() error {
	switch strings.ToLower(c.Audio.Backend) {
	case "pipewire", "alsa", "auto":
	default:
		return fmt.Errorf("audio.backend: unsupported backend '%s' (valid: pipewire, alsa, auto)", c.Audio.Backend)
	}

	if _, ok := qualityPresets[strings.ToLower(c.Audio.Quality)]; !ok {
		return fmt.Errorf("audio.quality: unknown preset '%s' (valid: high, low)", c.Audio.Quality)
	}

	if c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 192000 {
		return fmt.Errorf("audio.sample_rate: %d out of range (8000-192000)", c.Audio.SampleRate)
	}

	if c.Audio.Channels != 1 && c.Audio.Channels != 2 {
		return fmt.Errorf("audio.channels: must be 1 or 2, got %d", c.Audio.Channels)
	}

	if !isValidAudioSource(c.Audio.Source) {
		return fmt.Errorf("audio.source: invalid source '%s'", c.Audio.Source)
	}

	if c.Recording.TickInterval <= 0 {
		return fmt.Errorf("recording.tick_interval must be positive")
	}

	if c.Recording.AutoStopAfter <= 0 {
		return fmt.Errorf("recording.auto_stop_after must be positive")
	}

	if c.Recording.StopTimeout <= 0 {
		return fmt.Errorf("recording.stop_timeout must be positive")
	}

	if c.Recording.Directory == "" {
		return fmt.Errorf("recording.directory is required")
	}

	if c.Recording.MinFileSize < 0 {
		return fmt.Errorf("recording.min_file_size cannot be negative")
	}

	switch strings.ToLower(c.Playback.Player) {
	case "auto", "oto", "mpv", "ffplay":
	default:
		return fmt.Errorf("playback.player: unsupported player '%s' (valid: auto, oto, mpv, ffplay)", c.Playback.Player)
	}

	if c.Playback.Volume < 0 || c.Playback.Volume > 1 {
		return fmt.Errorf("playback.volume must be between 0.0 and 1.0, got %.2f", c.Playback.Volume)
	}

	if c.Effects.Default == "" {
		return fmt.Errorf("effects.default is required")
	}

	switch strings.ToLower(c.Permission.Microphone) {
	case "auto", "granted", "denied":
	default:
		return fmt.Errorf("permission.microphone: unknown mode '%s' (valid: auto, granted, denied)", c.Permission.Microphone)
	}

	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}

	if c.Server.EventBuffer <= 0 {
		return fmt.Errorf("server.event_buffer must be positive")
	}

	return nil
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// isValidAudioSource validates a PipeWire node name or ALSA device string.
// Empty means the system default input.
func isValidAudioSource(source string) bool {
	if source == "" {
		return true
	}

	if strings.TrimSpace(source) != source {
		return false
	}

	// ALSA devices: hw:1,0 / plughw:1,0 / default
	if strings.HasPrefix(source, "hw:") || strings.HasPrefix(source, "plughw:") {
		return len(strings.TrimPrefix(strings.TrimPrefix(source, "plug"), "hw:")) > 0
	}

	for _, r := range source {
		if r == '\n' || r == '\t' || r == '"' {
			return false
		}
	}

	return true
}
