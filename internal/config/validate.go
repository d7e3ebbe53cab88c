package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/szibis/pqueue/internal/compression"
	"github.com/szibis/pqueue/internal/logging"
	"github.com/szibis/pqueue/internal/queue"
)

// ValidationSeverity indicates the severity of a validation issue.
type ValidationSeverity string

const (
	// SeverityError indicates a configuration error that prevents startup.
	SeverityError ValidationSeverity = "error"
	// SeverityWarning indicates a potential issue that won't prevent startup.
	SeverityWarning ValidationSeverity = "warning"
)

// ValidationIssue represents a single validation finding.
type ValidationIssue struct {
	Severity ValidationSeverity `json:"severity"`
	Field    string             `json:"field"`
	Message  string             `json:"message"`
}

// ValidationResult holds the complete validation output.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	File   string            `json:"file"`
	Issues []ValidationIssue `json:"issues,omitempty"`
}

// JSON returns the validation result as formatted JSON.
func (r *ValidationResult) JSON() string {
	data, _ := json.MarshalIndent(r, "", "  ")
	return string(data)
}

func (r *ValidationResult) add(severity ValidationSeverity, field, msg string) {
	if severity == SeverityError {
		r.Valid = false
	}
	r.Issues = append(r.Issues, ValidationIssue{Severity: severity, Field: field, Message: msg})
}

// Validate checks every field and reports all errors at once.
func (y *YAMLConfig) Validate() error {
	var errs []string
	for _, issue := range y.check() {
		if issue.Severity == SeverityError {
			errs = append(errs, issue.Message)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ValidateFile loads a YAML config file and validates it, returning structured results.
func ValidateFile(path string) *ValidationResult {
	result := &ValidationResult{
		Valid: true,
		File:  path,
	}

	// Check file exists
	info, err := os.Stat(path)
	if err != nil {
		result.add(SeverityError, "file", fmt.Sprintf("cannot access file: %v", err))
		return result
	}
	if info.IsDir() {
		result.add(SeverityError, "file", "path is a directory, expected a file")
		return result
	}

	cfg, err := LoadYAML(path)
	if err != nil {
		result.add(SeverityError, "yaml", fmt.Sprintf("YAML parse error: %v", err))
		return result
	}

	for _, issue := range cfg.check() {
		result.add(issue.Severity, issue.Field, issue.Message)
	}
	return result
}

func (y *YAMLConfig) check() []ValidationIssue {
	var issues []ValidationIssue
	fail := func(field, format string, args ...interface{}) {
		issues = append(issues, ValidationIssue{
			Severity: SeverityError,
			Field:    field,
			Message:  field + " " + fmt.Sprintf(format, args...),
		})
	}
	warn := func(field, format string, args ...interface{}) {
		issues = append(issues, ValidationIssue{
			Severity: SeverityWarning,
			Field:    field,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	q := y.Queue
	if strings.TrimSpace(q.Path) == "" {
		fail("queue.path", "must not be empty")
	}
	if q.ChunkSize <= 0 {
		fail("queue.chunk_size", "must be positive, got %d", q.ChunkSize)
	}
	if q.MaxSize < 0 {
		fail("queue.max_size", "must be zero (unbounded) or positive, got %d", q.MaxSize)
	}
	if _, err := compression.ParseType(q.Compression); err != nil {
		fail("queue.compression", "is invalid: %v", err)
	}
	if _, err := queue.ParseSyncMode(q.Sync); err != nil {
		fail("queue.sync", "is invalid: %v", err)
	}
	if q.PollInterval < 0 {
		fail("queue.poll_interval", "must not be negative, got %s", time.Duration(q.PollInterval))
	}
	if q.LockPollInterval < 0 {
		fail("queue.lock_poll_interval", "must not be negative, got %s", time.Duration(q.LockPollInterval))
	}
	if q.MaxRecordSize <= 0 {
		fail("queue.max_record_size", "must be positive, got %d", q.MaxRecordSize)
	} else if int64(q.MaxRecordSize) > int64(^uint32(0)) {
		fail("queue.max_record_size", "must fit the 32-bit record length, got %s", FormatByteSize(int64(q.MaxRecordSize)))
	}
	if _, err := logging.ParseLevel(y.Logging.Level); err != nil {
		fail("logging.level", "is invalid: %v", err)
	}

	// Non-fatal
	if s, err := queue.ParseSyncMode(q.Sync); err == nil && s == queue.SyncNone {
		warn("queue.sync", "sync %q survives process crashes but not power loss", q.Sync)
	}
	if q.ChunkSize > 100000 {
		warn("queue.chunk_size", "very large chunk size (%d) delays reclaiming disk space until a whole chunk is consumed", q.ChunkSize)
	}
	if q.MaxSize > 0 && q.MaxSize < q.ChunkSize {
		warn("queue.max_size", "max_size (%d) is smaller than chunk_size (%d)", q.MaxSize, q.ChunkSize)
	}
	return issues
}
