package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/szibis/pqueue/internal/compression"
	"github.com/szibis/pqueue/internal/lock"
	"github.com/szibis/pqueue/internal/logging"
	"github.com/szibis/pqueue/internal/record"
)

const (
	// Default configuration values
	defaultChunkSize = 100
)

// SyncMode controls how hard the engine pushes writes to stable storage.
type SyncMode string

const (
	// SyncImmediate fsyncs chunk appends, the metadata temp file and the
	// queue directory before an operation returns.
	SyncImmediate SyncMode = "immediate"
	// SyncNone leaves flushing to the OS. The atomic metadata rename still
	// protects against process crashes but not against power loss.
	SyncNone SyncMode = "none"
)

// ParseSyncMode parses a sync mode string. Empty selects SyncImmediate.
func ParseSyncMode(s string) (SyncMode, error) {
	switch SyncMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", SyncImmediate:
		return SyncImmediate, nil
	case SyncNone:
		return SyncNone, nil
	default:
		return "", fmt.Errorf("unknown sync mode: %s", s)
	}
}

// Config holds the DiskQueue configuration.
type Config struct {
	// Path is the queue directory.
	Path string
	// ChunkSize is the number of records per chunk file (default: 100).
	// An existing queue keeps the chunk size it was created with.
	ChunkSize int
	// Compression is the codec applied to new records (default: none).
	Compression compression.Type
	// CompressionLevel is passed to the codec (default: algorithm default).
	CompressionLevel compression.Level
	// Sync selects the durability mode (default: immediate).
	Sync SyncMode
	// LockPollInterval is the retry interval of deadline lock acquisition
	// (default: 10ms).
	LockPollInterval time.Duration
	// MaxRecordSize bounds the stored size of a single record (default: 64MiB).
	MaxRecordSize int
	// Logger receives queue events (default: the process logger).
	Logger *logging.Logger
}

// DefaultConfig returns a default queue configuration.
func DefaultConfig() Config {
	return Config{
		Path:             "./queue",
		ChunkSize:        defaultChunkSize,
		Compression:      compression.TypeNone,
		Sync:             SyncImmediate,
		LockPollInterval: lock.DefaultPollInterval,
		MaxRecordSize:    record.DefaultMaxSize,
	}
}

// applyDefaults fills zero values and rejects invalid settings.
func (c *Config) applyDefaults() error {
	if c.Path == "" {
		return fmt.Errorf("queue path is required")
	}
	if c.ChunkSize < 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = defaultChunkSize
	}
	ct, err := compression.ParseType(string(c.Compression))
	if err != nil {
		return err
	}
	c.Compression = ct
	mode, err := ParseSyncMode(string(c.Sync))
	if err != nil {
		return err
	}
	c.Sync = mode
	if c.LockPollInterval <= 0 {
		c.LockPollInterval = lock.DefaultPollInterval
	}
	if c.MaxRecordSize <= 0 {
		c.MaxRecordSize = record.DefaultMaxSize
	}
	if c.Logger == nil {
		c.Logger = logging.Default()
	}
	return nil
}
