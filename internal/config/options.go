package config

import (
	"time"

	"github.com/szibis/pqueue/internal/compression"
	"github.com/szibis/pqueue/internal/logging"
	"github.com/szibis/pqueue/internal/queue"
)

// EngineConfig converts the queue section to an engine configuration.
// Call Validate first; invalid values are passed through unchanged and
// rejected by queue.Open.
func (y *YAMLConfig) EngineConfig() queue.Config {
	q := y.Queue
	ct, err := compression.ParseType(q.Compression)
	if err != nil {
		ct = compression.Type(q.Compression)
	}
	return queue.Config{
		Path:             q.Path,
		ChunkSize:        q.ChunkSize,
		Compression:      ct,
		CompressionLevel: compression.Level(q.CompressionLevel),
		Sync:             queue.SyncMode(q.Sync),
		LockPollInterval: time.Duration(q.LockPollInterval),
		MaxRecordSize:    int(q.MaxRecordSize),
	}
}

// LogLevel returns the configured log level, INFO if unparseable.
func (y *YAMLConfig) LogLevel() logging.Level {
	level, err := logging.ParseLevel(y.Logging.Level)
	if err != nil {
		return logging.LevelInfo
	}
	return level
}
