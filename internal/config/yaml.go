// Package config loads queue settings from a YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied to fields left unset in the file.
const (
	DefaultPath             = "./queue"
	DefaultChunkSize        = 100
	DefaultCompression      = "none"
	DefaultSync             = "immediate"
	DefaultPollInterval     = 100 * time.Millisecond
	DefaultLockPollInterval = 10 * time.Millisecond
	DefaultMaxRecordSize    = 64 * 1024 * 1024
	DefaultLogLevel         = "info"
)

// YAMLConfig represents the YAML configuration file structure.
type YAMLConfig struct {
	Queue   QueueYAMLConfig   `yaml:"queue"`
	Logging LoggingYAMLConfig `yaml:"logging"`
}

// QueueYAMLConfig holds the queue section.
type QueueYAMLConfig struct {
	Path             string   `yaml:"path"`
	ChunkSize        int      `yaml:"chunk_size"`
	MaxSize          int      `yaml:"max_size"`
	Compression      string   `yaml:"compression"`
	CompressionLevel int      `yaml:"compression_level"`
	Sync             string   `yaml:"sync"`
	PollInterval     Duration `yaml:"poll_interval"`
	LockPollInterval Duration `yaml:"lock_poll_interval"`
	MaxRecordSize    ByteSize `yaml:"max_record_size"`
}

// LoggingYAMLConfig holds the logging section.
type LoggingYAMLConfig struct {
	Level string `yaml:"level"`
}

// Duration is a wrapper for time.Duration that supports YAML unmarshaling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	duration, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// ByteSize is a wrapper for int64 that supports human-readable YAML values.
// Accepted formats: raw integer (bytes), or suffixed: Ki, Mi, Gi, Ti.
type ByteSize int64

// UnmarshalYAML implements yaml.Unmarshaler for ByteSize.
func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	// Try integer first
	var n int64
	if err := value.Decode(&n); err == nil {
		*b = ByteSize(n)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseByteSize(s)
	if err != nil {
		return err
	}
	*b = ByteSize(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for ByteSize.
func (b ByteSize) MarshalYAML() (interface{}, error) {
	return FormatByteSize(int64(b)), nil
}

// ParseByteSize parses a human-readable byte size string.
// Accepted suffixes: Ki (1024), Mi (1048576), Gi (1073741824), Ti (1099511627776).
// Plain integers are treated as bytes.
func ParseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	suffixes := []struct {
		name string
		mult int64
	}{
		{"Ti", 1 << 40},
		{"Gi", 1 << 30},
		{"Mi", 1 << 20},
		{"Ki", 1 << 10},
	}
	for _, sf := range suffixes {
		if strings.HasSuffix(s, sf.name) {
			numStr := strings.TrimSpace(strings.TrimSuffix(s, sf.name))
			// Support float values like "1.5Gi"
			var f float64
			if _, err := fmt.Sscanf(numStr, "%f", &f); err != nil {
				return 0, fmt.Errorf("invalid byte size: %q", s)
			}
			return int64(f * float64(sf.mult)), nil
		}
	}
	// Plain integer, reject trailing units such as "256MB"
	var n int64
	var trail string
	if _, err := fmt.Sscanf(s, "%d%s", &n, &trail); err == nil && trail != "" {
		return 0, fmt.Errorf("invalid byte size: %q (use Ki, Mi, Gi, or Ti suffixes)", s)
	}
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}
	return n, nil
}

// FormatByteSize formats bytes as a human-readable string with binary suffix.
func FormatByteSize(b int64) string {
	units := []struct {
		name string
		mult int64
	}{
		{"Ti", 1 << 40},
		{"Gi", 1 << 30},
		{"Mi", 1 << 20},
		{"Ki", 1 << 10},
	}
	for _, u := range units {
		if b >= u.mult && b%u.mult == 0 {
			return fmt.Sprintf("%d%s", b/u.mult, u.name)
		}
	}
	return fmt.Sprintf("%d", b)
}

// LoadYAML loads configuration from a YAML file.
func LoadYAML(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseYAML(data)
}

// ParseYAML parses YAML configuration from bytes. Unknown keys are rejected
// so typos do not silently fall back to defaults.
func ParseYAML(data []byte) (*YAMLConfig, error) {
	cfg := &YAMLConfig{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults sets default values for unspecified fields.
func (y *YAMLConfig) ApplyDefaults() {
	q := &y.Queue
	if q.Path == "" {
		q.Path = DefaultPath
	}
	if q.ChunkSize == 0 {
		q.ChunkSize = DefaultChunkSize
	}
	if q.Compression == "" {
		q.Compression = DefaultCompression
	}
	if q.Sync == "" {
		q.Sync = DefaultSync
	}
	if q.PollInterval == 0 {
		q.PollInterval = Duration(DefaultPollInterval)
	}
	if q.LockPollInterval == 0 {
		q.LockPollInterval = Duration(DefaultLockPollInterval)
	}
	if q.MaxRecordSize == 0 {
		q.MaxRecordSize = ByteSize(DefaultMaxRecordSize)
	}
	if y.Logging.Level == "" {
		y.Logging.Level = DefaultLogLevel
	}
}
