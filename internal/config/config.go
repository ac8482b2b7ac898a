package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings holds the server settings read from the settings file and the
// environment. The persisted device/encoding record lives in the state file,
// see Store.
type Settings struct {
	Server   ServerSettings   `mapstructure:"server" yaml:"server"`
	Capture  CaptureSettings  `mapstructure:"capture" yaml:"capture"`
	State    StateSettings    `mapstructure:"state" yaml:"state"`
	Logging  LoggingSettings  `mapstructure:"logging" yaml:"logging"`
	Keypress KeypressSettings `mapstructure:"keypress" yaml:"keypress"`
}

type ServerSettings struct {
	Port            string   `mapstructure:"port" yaml:"port"`
	StaticDir       string   `mapstructure:"static_dir" yaml:"static_dir"`
	AllowCustomArgs bool     `mapstructure:"allow_custom_args" yaml:"allow_custom_args"`
	CORSOrigins     []string `mapstructure:"cors_origins" yaml:"cors_origins"`
	Metrics         bool     `mapstructure:"metrics" yaml:"metrics"`
}

type CaptureSettings struct {
	FFmpegBinary  string        `mapstructure:"ffmpeg_binary" yaml:"ffmpeg_binary"`
	Driver        string        `mapstructure:"driver" yaml:"driver"`                 // "dshow", "avfoundation", "pulse", "alsa"; empty = by OS
	DefaultSource string        `mapstructure:"default_source" yaml:"default_source"` // placeholder used before a device is selected
	ProbeTimeout  time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
	KillGrace     time.Duration `mapstructure:"kill_grace" yaml:"kill_grace"`
}

type StateSettings struct {
	File string `mapstructure:"file" yaml:"file"`
}

type LoggingSettings struct {
	Capacity int `mapstructure:"capacity" yaml:"capacity"`
}

type KeypressSettings struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	QuitKeys string `mapstructure:"quit_keys" yaml:"quit_keys"`
}

// DefaultSettingsFile returns the settings path used when --config is not given.
func DefaultSettingsFile() string {
	return os.ExpandEnv("$HOME/.config/audiocast.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.static_dir", "public")
	v.SetDefault("server.allow_custom_args", true)
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.metrics", true)

	v.SetDefault("capture.ffmpeg_binary", "ffmpeg")
	v.SetDefault("capture.driver", "")
	v.SetDefault("capture.default_source", "")
	v.SetDefault("capture.probe_timeout", "10s")
	v.SetDefault("capture.kill_grace", "5s")

	v.SetDefault("state.file", filepath.Join(os.Getenv("HOME"), ".config", "audiocast", "state.yaml"))

	v.SetDefault("logging.capacity", 500)

	v.SetDefault("keypress.enabled", true)
	v.SetDefault("keypress.quit_keys", "q")
}

// LoadSettings reads settingsFile (if it exists) on top of the defaults.
// Environment variables prefixed AUDIOCAST_ override file values, e.g.
// AUDIOCAST_SERVER_PORT=8080.
func LoadSettings(settingsFile string) (*Settings, error) {
	// Use a private viper instance so tests and commands do not share state
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("AUDIOCAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if settingsFile != "" {
		if _, err := os.Stat(settingsFile); err == nil {
			v.SetConfigFile(settingsFile)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading settings file %s: %w", settingsFile, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error accessing settings file %s: %w", settingsFile, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("error unmarshaling settings: %w", err)
	}

	s.State.File = expandPath(s.State.File)
	s.Server.StaticDir = expandPath(s.Server.StaticDir)

	if err := validateSettings(&s); err != nil {
		return nil, fmt.Errorf("settings validation failed: %w", err)
	}

	return &s, nil
}

func validateSettings(s *Settings) error {
	if s.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if s.Capture.FFmpegBinary == "" {
		return fmt.Errorf("capture.ffmpeg_binary is required")
	}
	if s.Capture.Driver != "" && !IsKnownDriver(s.Capture.Driver) {
		return fmt.Errorf("capture.driver must be one of %s, got: %s", strings.Join(KnownDrivers, ", "), s.Capture.Driver)
	}
	if s.Capture.ProbeTimeout <= 0 {
		return fmt.Errorf("capture.probe_timeout must be > 0, got: %s", s.Capture.ProbeTimeout)
	}
	if s.State.File == "" {
		return fmt.Errorf("state.file is required")
	}
	if s.Logging.Capacity <= 0 {
		return fmt.Errorf("logging.capacity must be > 0, got: %d", s.Logging.Capacity)
	}
	return nil
}

// Platform returns the capture platform described by the settings, falling
// back to the defaults of the running OS.
func (s *Settings) Platform() Platform {
	p := PlatformFor(currentOS())
	if s.Capture.Driver != "" && s.Capture.Driver != p.Driver {
		p = PlatformForDriver(s.Capture.Driver)
	}
	if s.Capture.DefaultSource != "" {
		p.DefaultSource = s.Capture.DefaultSource
	}
	return p
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
