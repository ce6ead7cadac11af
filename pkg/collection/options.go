package collection

import (
	"fmt"
	"runtime"

	"github.com/adfharrison1/struvedb/pkg/domain"
	"github.com/adfharrison1/struvedb/pkg/storage"
)

// Config holds the construction parameters of a collection
type Config struct {
	Backend             domain.BackendKind
	Path                string
	ByteLengthIncrement int
	InitialSlotSize     int
	LoadWorkers         int
}

type Option func(*Config)

// DefaultConfig returns an in-memory configuration
func DefaultConfig() Config {
	return Config{
		Backend:             domain.BackendInMemory,
		ByteLengthIncrement: storage.DefaultByteLengthIncrement,
		InitialSlotSize:     storage.DefaultInitialSlotSize,
		LoadWorkers:         runtime.NumCPU(),
	}
}

func WithBackend(kind domain.BackendKind) Option {
	return func(c *Config) {
		c.Backend = kind
	}
}

// WithPath sets the file (single file backend) or directory (dir and
// badger backends) backing the collection
func WithPath(path string) Option {
	return func(c *Config) {
		c.Path = path
	}
}

// WithByteLengthIncrement sets the step by which slots grow (default: 64)
func WithByteLengthIncrement(n int) Option {
	return func(c *Config) {
		c.ByteLengthIncrement = n
	}
}

// WithInitialSlotSize sets the starting slot width (default: 128)
func WithInitialSlotSize(n int) Option {
	return func(c *Config) {
		c.InitialSlotSize = n
	}
}

// WithLoadWorkers bounds how many files the dir backend decodes at once
func WithLoadWorkers(n int) Option {
	return func(c *Config) {
		c.LoadWorkers = n
	}
}

// Validate checks the configuration before any storage is touched
func (c Config) Validate() error {
	if c.Backend < domain.BackendInMemory || c.Backend > domain.BackendBadger {
		return fmt.Errorf("%w: unknown backend %s", domain.ErrInvalidConfig, c.Backend)
	}
	if c.Backend.Persistent() && c.Path == "" {
		return fmt.Errorf("%w: %s backend needs a path", domain.ErrInvalidConfig, c.Backend)
	}
	if c.ByteLengthIncrement <= 0 {
		return fmt.Errorf("%w: byte length increment must be positive", domain.ErrInvalidConfig)
	}
	if c.InitialSlotSize <= 0 {
		return fmt.Errorf("%w: initial slot size must be positive", domain.ErrInvalidConfig)
	}
	if c.LoadWorkers <= 0 {
		return fmt.Errorf("%w: load workers must be positive", domain.ErrInvalidConfig)
	}
	return nil
}
