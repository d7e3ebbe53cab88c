// Package chunk manages the numbered log files that hold queue records.
//
// Chunk files live directly in the queue directory and are named q00000,
// q00001, ... (zero-padded to at least five decimal digits). Each file is an
// append-only concatenation of records produced by the record package.
package chunk

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/szibis/pqueue/internal/record"
)

const (
	namePrefix = "q"
	nameDigits = 5
)

// ErrShortChunk is returned when a chunk holds fewer bytes than the committed
// offset a caller expects.
var ErrShortChunk = errors.New("chunk shorter than committed offset")

// Store reads and writes chunk files in one directory.
// File handles are opened per call and always closed before returning.
type Store struct {
	dir        string
	syncWrites bool
}

// New returns a Store rooted at dir. When syncWrites is set, appends and
// truncations are fsynced before returning.
func New(dir string, syncWrites bool) *Store {
	return &Store{
		dir:        dir,
		syncWrites: syncWrites,
	}
}

// Name returns the file name of chunk n.
func Name(n uint64) string {
	return fmt.Sprintf("%s%0*d", namePrefix, nameDigits, n)
}

// ParseName extracts the chunk number from a chunk file name.
func ParseName(name string) (uint64, bool) {
	if !strings.HasPrefix(name, namePrefix) {
		return 0, false
	}
	digits := name[len(namePrefix):]
	if len(digits) < nameDigits {
		return 0, false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	// Reject aliases such as q000001 for chunk 1.
	if Name(n) != name {
		return 0, false
	}
	return n, true
}

// Path returns the full path of chunk n.
func (s *Store) Path(n uint64) string {
	return filepath.Join(s.dir, Name(n))
}

// Append writes rec to chunk n, creating the file if absent, and returns the
// file offset just past the written record. at is the committed length of the
// chunk: bytes beyond it belong to no committed record and are discarded
// before the write, so a chunk entered at offset 0 always starts empty.
func (s *Store) Append(n uint64, at int64, rec []byte) (int64, error) {
	f, err := os.OpenFile(s.Path(n), os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to open chunk %s: %w", Name(n), err)
	}

	end, err := s.appendLocked(f, n, at, rec)
	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("failed to close chunk %s: %w", Name(n), closeErr)
	}
	if err != nil {
		return 0, err
	}
	return end, nil
}

func (s *Store) appendLocked(f *os.File, n uint64, at int64, rec []byte) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat chunk %s: %w", Name(n), err)
	}
	if info.Size() < at {
		return 0, fmt.Errorf("%w: %s has %d bytes, committed offset %d", ErrShortChunk, Name(n), info.Size(), at)
	}
	if info.Size() > at {
		if err := f.Truncate(at); err != nil {
			return 0, fmt.Errorf("failed to discard uncommitted bytes in %s: %w", Name(n), err)
		}
	}

	if _, err := f.WriteAt(rec, at); err != nil {
		// Leave the chunk at its committed length so the next append
		// does not land behind a partial record.
		_ = f.Truncate(at)
		return 0, fmt.Errorf("failed to write chunk %s: %w", Name(n), err)
	}
	if s.syncWrites {
		if err := f.Sync(); err != nil {
			return 0, fmt.Errorf("failed to sync chunk %s: %w", Name(n), err)
		}
	}
	return at + int64(len(rec)), nil
}

// ReadAt decodes the record stored at offset in chunk n and returns its
// payload and the number of bytes it occupies. A missing or incomplete
// record yields an error wrapping record.ErrMalformed.
func (s *Store) ReadAt(n uint64, offset int64) ([]byte, int64, error) {
	f, err := os.Open(s.Path(n))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open chunk %s: %w", Name(n), err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to stat chunk %s: %w", Name(n), err)
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("failed to seek chunk %s to %d: %w", Name(n), offset, err)
	}

	// A length prefix can never claim more than the bytes left in the file.
	limit := info.Size() - offset - record.HeaderSize
	if limit < 1 {
		limit = 1
	}
	payload, size, err := record.Decode(f, int(limit))
	if err == io.EOF {
		return nil, 0, fmt.Errorf("%w: no record in %s at offset %d", record.ErrMalformed, Name(n), offset)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("chunk %s offset %d: %w", Name(n), offset, err)
	}
	return payload, size, nil
}

// Truncate shrinks chunk n to size bytes and returns how many bytes were cut.
// A missing file or one already at or below size is left untouched.
func (s *Store) Truncate(n uint64, size int64) (int64, error) {
	f, err := os.OpenFile(s.Path(n), os.O_WRONLY, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to open chunk %s: %w", Name(n), err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat chunk %s: %w", Name(n), err)
	}
	if info.Size() <= size {
		return 0, nil
	}
	if err := f.Truncate(size); err != nil {
		return 0, fmt.Errorf("failed to truncate chunk %s: %w", Name(n), err)
	}
	if s.syncWrites {
		if err := f.Sync(); err != nil {
			return 0, fmt.Errorf("failed to sync chunk %s: %w", Name(n), err)
		}
	}
	return info.Size() - size, nil
}

// Delete removes chunk n. Removing a chunk that does not exist is not an error.
func (s *Store) Delete(n uint64) error {
	if err := os.Remove(s.Path(n)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete chunk %s: %w", Name(n), err)
	}
	return nil
}

// Size reports the length of chunk n and whether it exists.
func (s *Store) Size(n uint64) (int64, bool, error) {
	info, err := os.Stat(s.Path(n))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to stat chunk %s: %w", Name(n), err)
	}
	return info.Size(), true, nil
}

// List returns the numbers of all chunk files in the directory, ascending.
func (s *Store) List() ([]uint64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}

	var chunks []uint64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if n, ok := ParseName(entry.Name()); ok {
			chunks = append(chunks, n)
		}
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i] < chunks[j] })
	return chunks, nil
}
