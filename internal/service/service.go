package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/audiolibrelab/audiocast/internal/audio"
	"github.com/audiolibrelab/audiocast/internal/config"
	"github.com/audiolibrelab/audiocast/internal/eventlog"
)

var (
	// ErrNoLoopbackDevice is returned when no device label looks like a
	// system output monitor.
	ErrNoLoopbackDevice = errors.New("no system audio loopback device found")
	// ErrCustomArgsDisabled is returned when encoding changes are turned off.
	ErrCustomArgsDisabled = errors.New("custom encoding arguments are disabled")
)

// Service represents the core audiocast service interface
type Service interface {
	// Device operations
	ListDevices(ctx context.Context) (*DeviceList, error)
	SelectDevice(value string) (config.Configuration, error)
	SelectSystemAudio(ctx context.Context) (audio.Device, error)

	// Encoding operations
	SetEncodingArgs(raw string) (config.Configuration, error)
	SetEncodingPreset(name string) (config.Configuration, error)
	EncodingArgs() (string, error)
	CustomArgsAllowed() bool

	// Configuration operations
	GetConfiguration() (config.Configuration, error)
	ResetConfiguration() (config.Configuration, error)

	// Streaming
	Stream(ctx context.Context, sink audio.ResponseSink) error

	// Information operations
	Logs() string
	GetLastError() string
}

// DeviceList is the response of ListDevices.
type DeviceList struct {
	Devices  []audio.Device `json:"devices"`
	Selected *string        `json:"selected"`
}

// DeviceLister is implemented by audio.Directory.
type DeviceLister interface {
	List(ctx context.Context) ([]audio.Device, error)
}

// Streamer is implemented by audio.Manager.
type Streamer interface {
	Stream(ctx context.Context, cfg config.Configuration, sink audio.ResponseSink) error
}

// Options wires the collaborators of the service.
type Options struct {
	Store           *config.Store
	Devices         DeviceLister
	Streamer        Streamer
	Logs            *eventlog.Buffer
	AllowCustomArgs bool
}

// AudiocastService is the main service implementation
type AudiocastService struct {
	store           *config.Store
	devices         DeviceLister
	streamer        Streamer
	logs            *eventlog.Buffer
	allowCustomArgs bool

	// Error tracking
	lastError      string
	lastErrorMutex sync.RWMutex
}

// New creates a new service instance
func New(opts Options) *AudiocastService {
	logs := opts.Logs
	if logs == nil {
		logs = eventlog.NewBuffer(eventlog.DefaultCapacity)
	}
	return &AudiocastService{
		store:           opts.Store,
		devices:         opts.Devices,
		streamer:        opts.Streamer,
		logs:            logs,
		allowCustomArgs: opts.AllowCustomArgs,
	}
}

// ListDevices probes the capture devices and reports the current selection.
func (s *AudiocastService) ListDevices(ctx context.Context) (*DeviceList, error) {
	devices, err := s.devices.List(ctx)
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to list devices: %v", err))
		return nil, err
	}
	if devices == nil {
		devices = []audio.Device{}
	}

	cfg, err := s.store.Load()
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to load configuration: %v", err))
		return nil, err
	}

	list := &DeviceList{Devices: devices}
	if cfg.HasDevice() {
		selected := cfg.Device()
		list.Selected = &selected
	}
	return list, nil
}

// SelectDevice persists value as the capture source.
func (s *AudiocastService) SelectDevice(value string) (config.Configuration, error) {
	cfg, err := s.store.SetDevice(strings.TrimSpace(value))
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to select device: %v", err))
		return cfg, err
	}
	s.clearLastError()
	slog.Info("Capture device selected", "device", cfg.Device())
	return cfg, nil
}

// SelectSystemAudio selects the first loopback/monitor source found.
func (s *AudiocastService) SelectSystemAudio(ctx context.Context) (audio.Device, error) {
	devices, err := s.devices.List(ctx)
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to list devices: %v", err))
		return audio.Device{}, err
	}

	dev, ok := audio.FindLoopback(devices)
	if !ok {
		slog.Warn("No loopback device found", "candidates", len(devices))
		return audio.Device{}, ErrNoLoopbackDevice
	}

	if _, err := s.SelectDevice(dev.Value); err != nil {
		return audio.Device{}, err
	}
	return dev, nil
}

// SetEncodingArgs replaces the encoding tokens with the whitespace separated
// tokens in raw.
func (s *AudiocastService) SetEncodingArgs(raw string) (config.Configuration, error) {
	if !s.allowCustomArgs {
		return config.Configuration{}, ErrCustomArgsDisabled
	}
	return s.setEncoding(config.ParseEncoding(raw))
}

// SetEncodingPreset switches to one of config.Presets.
func (s *AudiocastService) SetEncodingPreset(name string) (config.Configuration, error) {
	if !s.allowCustomArgs {
		return config.Configuration{}, ErrCustomArgsDisabled
	}
	tokens, ok := config.Presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return config.Configuration{}, fmt.Errorf("%w: unknown preset %q (available: %s)",
			config.ErrInvalidEncoding, name, strings.Join(config.PresetNames(), ", "))
	}
	return s.setEncoding(tokens)
}

func (s *AudiocastService) setEncoding(tokens []string) (config.Configuration, error) {
	cfg, err := s.store.SetEncoding(tokens)
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to set encoding: %v", err))
		return cfg, err
	}
	s.clearLastError()
	slog.Info("Encoding updated", "args", strings.Join(cfg.InvocationArgs, " "))
	return cfg, nil
}

// EncodingArgs returns the current encoding tokens joined by spaces.
func (s *AudiocastService) EncodingArgs() (string, error) {
	cfg, err := s.store.Load()
	if err != nil {
		return "", err
	}
	tokens, ok := config.EncodingTokens(cfg.InvocationArgs)
	if !ok {
		tokens = cfg.InvocationArgs
	}
	return strings.Join(tokens, " "), nil
}

func (s *AudiocastService) CustomArgsAllowed() bool {
	return s.allowCustomArgs
}

func (s *AudiocastService) GetConfiguration() (config.Configuration, error) {
	return s.store.Load()
}

// ResetConfiguration deletes the persisted record and recreates the default.
func (s *AudiocastService) ResetConfiguration() (config.Configuration, error) {
	cfg, err := s.store.Reset()
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to reset configuration: %v", err))
		return cfg, err
	}
	s.clearLastError()
	slog.Info("Configuration reset to defaults", "file", s.store.Path())
	return cfg, nil
}

// Stream serves one audio stream with a snapshot of the current configuration.
func (s *AudiocastService) Stream(ctx context.Context, sink audio.ResponseSink) error {
	cfg, err := s.store.Load()
	if err != nil {
		return err
	}
	err = s.streamer.Stream(ctx, cfg, sink)
	if err != nil && !errors.Is(err, audio.ErrNoDeviceSelected) {
		s.setLastError(fmt.Sprintf("Stream failed: %v", err))
	}
	return err
}

func (s *AudiocastService) Logs() string {
	return s.logs.ReadAll()
}

// GetLastError returns the last error message
func (s *AudiocastService) GetLastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}

func (s *AudiocastService) setLastError(msg string) {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = msg
}

func (s *AudiocastService) clearLastError() {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = ""
}
