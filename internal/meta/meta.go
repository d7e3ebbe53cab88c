// Package meta holds the durable queue cursor state and commits it atomically.
//
// The state is stored as version-tagged JSON in a single file named "info".
// Every save writes a fresh temporary file in the same directory and renames
// it over the canonical path, so readers see either the previous or the new
// state and never a partial write.
package meta

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const (
	// FileName is the metadata file name inside the queue directory.
	FileName = "info"

	// CurrentVersion is the metadata encoding version written by Save.
	CurrentVersion = 1

	formatName = "pqueue"
	tmpPattern = FileName + ".tmp*"
)

// ErrCorrupt is returned when the metadata file exists but cannot be decoded
// or describes an impossible state.
var ErrCorrupt = errors.New("queue metadata corrupt")

// Cursor locates a position in the chunked log.
type Cursor struct {
	// Chunk is the chunk file number.
	Chunk uint64 `json:"chunk"`
	// Index is the record index inside the chunk, in [0, chunksize).
	Index int `json:"index"`
	// Offset is the byte offset just after the record before Index.
	Offset int64 `json:"offset"`
}

// Before reports whether c precedes o, comparing (Chunk, Index) only.
func (c Cursor) Before(o Cursor) bool {
	if c.Chunk != o.Chunk {
		return c.Chunk < o.Chunk
	}
	return c.Index < o.Index
}

// Advance returns the cursor one record further. end is the byte offset just
// past the record that was written or read. When the chunk fills up the cursor
// rolls to the start of the next chunk and rolled is true.
func (c Cursor) Advance(chunkSize int, end int64) (next Cursor, rolled bool) {
	if c.Index+1 >= chunkSize {
		return Cursor{Chunk: c.Chunk + 1}, true
	}
	return Cursor{Chunk: c.Chunk, Index: c.Index + 1, Offset: end}, false
}

func (c Cursor) String() string {
	return fmt.Sprintf("%d:%d@%d", c.Chunk, c.Index, c.Offset)
}

// Metadata is the durable queue state.
type Metadata struct {
	Format    string `json:"format"`
	Version   int    `json:"version"`
	ID        string `json:"id"`
	ChunkSize int    `json:"chunksize"`
	Size      int64  `json:"size"`
	Head      Cursor `json:"head"`
	Tail      Cursor `json:"tail"`
}

// New returns the state of an empty queue with a freshly minted ID.
func New(chunkSize int) Metadata {
	return Metadata{
		Format:    formatName,
		Version:   CurrentVersion,
		ID:        uuid.NewString(),
		ChunkSize: chunkSize,
	}
}

// Empty reports whether no record lies between tail and head.
func (m Metadata) Empty() bool {
	return !m.Tail.Before(m.Head)
}

// Pending returns the number of records between tail and head as implied by
// the cursors alone.
func (m Metadata) Pending() int64 {
	if m.Empty() {
		return 0
	}
	chunks := int64(m.Head.Chunk - m.Tail.Chunk)
	return chunks*int64(m.ChunkSize) + int64(m.Head.Index) - int64(m.Tail.Index)
}

// Validate checks that the state is one the engine could have committed.
func (m Metadata) Validate() error {
	switch {
	case m.Format != formatName:
		return fmt.Errorf("unknown format %q", m.Format)
	case m.Version < 1 || m.Version > CurrentVersion:
		return fmt.Errorf("unsupported version %d (current=%d)", m.Version, CurrentVersion)
	case m.ChunkSize <= 0:
		return fmt.Errorf("invalid chunksize %d", m.ChunkSize)
	case m.Size < 0:
		return fmt.Errorf("negative size %d", m.Size)
	}
	for name, c := range map[string]Cursor{"head": m.Head, "tail": m.Tail} {
		if c.Index < 0 || c.Index >= m.ChunkSize {
			return fmt.Errorf("%s index %d outside [0, %d)", name, c.Index, m.ChunkSize)
		}
		if c.Offset < 0 {
			return fmt.Errorf("%s offset %d negative", name, c.Offset)
		}
		if c.Index == 0 && c.Offset != 0 {
			return fmt.Errorf("%s offset %d at index 0", name, c.Offset)
		}
	}
	if m.Head.Before(m.Tail) {
		return fmt.Errorf("tail %s ahead of head %s", m.Tail, m.Head)
	}
	if pending := m.Pending(); pending != m.Size {
		return fmt.Errorf("size %d does not match cursors (%d records)", m.Size, pending)
	}
	return nil
}

// Store loads and saves the metadata file of one queue directory.
type Store struct {
	dir        string
	syncWrites bool
}

// NewStore returns a Store for the queue directory dir. When syncWrites is
// set, the temporary file and the directory are fsynced around the rename.
func NewStore(dir string, syncWrites bool) *Store {
	return &Store{dir: dir, syncWrites: syncWrites}
}

// Path returns the canonical metadata file path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, FileName)
}

// Load reads the committed state. If no metadata file exists it returns
// New(chunkSize) and exists=false.
func (s *Store) Load(chunkSize int) (m Metadata, exists bool, err error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return New(chunkSize), false, nil
		}
		return Metadata{}, false, fmt.Errorf("failed to read metadata: %w", err)
	}

	m, err = Decode(data)
	if err != nil {
		return Metadata{}, true, err
	}
	return m, true, nil
}

// Decode parses and validates an encoded metadata file.
func Decode(data []byte) (Metadata, error) {
	var m Metadata
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if dec.More() {
		return Metadata{}, fmt.Errorf("%w: trailing data after metadata", ErrCorrupt)
	}
	if err := m.Validate(); err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return m, nil
}

// Encode serializes m.
func Encode(m Metadata) ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// Save atomically replaces the metadata file with m.
func (s *Store) Save(m Metadata) error {
	data, err := Encode(m)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, tmpPattern)
	if err != nil {
		return fmt.Errorf("failed to create temp metadata file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp metadata file: %w", err)
	}
	if s.syncWrites {
		if err := tmp.Sync(); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to sync temp metadata file: %w", err)
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp metadata file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, s.Path()); err != nil {
		return fmt.Errorf("failed to commit metadata: %w", err)
	}
	committed = true

	if s.syncWrites {
		if err := syncDir(s.dir); err != nil {
			return fmt.Errorf("failed to sync queue directory: %w", err)
		}
	}
	return nil
}

// RemoveStaleTemps deletes temporary files left by saves that never reached
// the rename, and returns how many were removed.
func (s *Store) RemoveStaleTemps() (int, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, tmpPattern))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, path := range matches {
		if err := os.Remove(path); err == nil {
			removed++
		}
	}
	return removed, nil
}
