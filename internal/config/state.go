package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	// ErrConfigPersistence wraps every failure to read or write the state file.
	ErrConfigPersistence = errors.New("configuration persistence failed")
	// ErrInvalidEncoding is returned for encoding tokens that cannot be used.
	ErrInvalidEncoding = errors.New("invalid encoding arguments")
	// ErrInvalidDevice is returned when selecting an empty device value.
	ErrInvalidDevice = errors.New("invalid device")
)

// Configuration is the persisted capture record.
type Configuration struct {
	SelectedDevice *string  `yaml:"selected_device"`
	InvocationArgs []string `yaml:"invocation_args"`
}

// HasDevice reports whether a device has been selected.
func (c Configuration) HasDevice() bool {
	return c.SelectedDevice != nil && *c.SelectedDevice != ""
}

// Device returns the selected device or "".
func (c Configuration) Device() string {
	if c.SelectedDevice == nil {
		return ""
	}
	return *c.SelectedDevice
}

// Clone returns a copy that shares no memory with c.
func (c Configuration) Clone() Configuration {
	out := Configuration{InvocationArgs: append([]string(nil), c.InvocationArgs...)}
	if c.SelectedDevice != nil {
		d := *c.SelectedDevice
		out.SelectedDevice = &d
	}
	return out
}

// DefaultConfiguration returns the first-run record for a platform: no
// selected device and the default encoding around the placeholder source.
func DefaultConfiguration(p Platform) Configuration {
	return Configuration{
		InvocationArgs: BuildArgs(p.Driver, p.DefaultSource, DefaultEncoding),
	}
}

// Store persists a Configuration as a single YAML file. Every
// load-modify-save sequence runs under the store mutex.
type Store struct {
	path     string
	platform Platform

	mu sync.Mutex
}

func NewStore(path string, platform Platform) *Store {
	return &Store{path: path, platform: platform}
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

// Platform returns the platform used for defaults.
func (s *Store) Platform() Platform {
	return s.platform
}

// Load reads the record, creating and persisting the default when the file
// does not exist yet.
func (s *Store) Load() (Configuration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Save overwrites the record atomically.
func (s *Store) Save(cfg Configuration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(cfg)
}

// SetDevice selects a capture source. The args are rebuilt as
// "-f <driver> -i <value>" for the store's platform, keeping the encoding
// tokens; malformed args get the default encoding.
func (s *Store) SetDevice(value string) (Configuration, error) {
	if value == "" {
		return Configuration{}, ErrInvalidDevice
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.load()
	if err != nil {
		return Configuration{}, err
	}

	encoding, ok := EncodingTokens(cfg.InvocationArgs)
	if !ok {
		encoding = DefaultEncoding
	}
	cfg.SelectedDevice = &value
	cfg.InvocationArgs = BuildArgs(s.platform.Driver, value, encoding)

	if err := s.save(cfg); err != nil {
		return Configuration{}, err
	}
	return cfg, nil
}

// SetEncoding replaces the encoding tokens. The lead is rebuilt from the
// store's driver and the selected device, or the placeholder source when no
// device is selected.
func (s *Store) SetEncoding(tokens []string) (Configuration, error) {
	encoding, err := NormalizeEncoding(tokens)
	if err != nil {
		return Configuration{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.load()
	if err != nil {
		return Configuration{}, err
	}

	source := s.platform.DefaultSource
	if cfg.HasDevice() {
		source = cfg.Device()
	}
	cfg.InvocationArgs = BuildArgs(s.platform.Driver, source, encoding)

	if err := s.save(cfg); err != nil {
		return Configuration{}, err
	}
	return cfg, nil
}

// Reset deletes the record and recreates the default.
func (s *Store) Reset() (Configuration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return Configuration{}, fmt.Errorf("%w: removing %s: %v", ErrConfigPersistence, s.path, err)
	}
	return s.load()
}

func (s *Store) load() (Configuration, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		cfg := DefaultConfiguration(s.platform)
		if err := s.save(cfg); err != nil {
			return Configuration{}, err
		}
		return cfg, nil
	}
	if err != nil {
		return Configuration{}, fmt.Errorf("%w: reading %s: %v", ErrConfigPersistence, s.path, err)
	}

	var cfg Configuration
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Configuration{}, fmt.Errorf("%w: parsing %s: %v", ErrConfigPersistence, s.path, err)
	}
	return cfg, nil
}

func (s *Store) save(cfg Configuration) error {
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("%w: encoding: %v", ErrConfigPersistence, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: creating %s: %v", ErrConfigPersistence, dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.yaml")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfigPersistence, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: writing %s: %v", ErrConfigPersistence, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %v", ErrConfigPersistence, tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: replacing %s: %v", ErrConfigPersistence, s.path, err)
	}
	return nil
}
