// Package queue implements a persistent FIFO of byte payloads stored in a
// directory of numbered chunk files.
//
// Every operation runs under an exclusive lock on the directory: it loads the
// committed cursors, touches the chunk files, and atomically commits new
// cursors before releasing the lock. Any number of DiskQueue handles, in one
// process or many, may share a directory.
package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/szibis/pqueue/internal/chunk"
	"github.com/szibis/pqueue/internal/compression"
	"github.com/szibis/pqueue/internal/lock"
	"github.com/szibis/pqueue/internal/logging"
	"github.com/szibis/pqueue/internal/meta"
	"github.com/szibis/pqueue/internal/record"
)

var (
	// ErrEmpty is returned by Get when no record is pending.
	ErrEmpty = errors.New("queue is empty")
	// ErrIntegrity is returned by Get when the record at the tail cannot be
	// read. It wraps the underlying cause.
	ErrIntegrity = errors.New("queue integrity error")
	// ErrClosed is returned when operations are attempted on a closed queue.
	ErrClosed = errors.New("queue is closed")
	// ErrRecordTooLarge is returned by Put when the encoded payload exceeds
	// the configured maximum record size.
	ErrRecordTooLarge = errors.New("record exceeds maximum size")
)

// DiskQueue is a handle on a queue directory.
type DiskQueue struct {
	cfg    Config
	codec  compression.Config
	chunks *chunk.Store
	meta   *meta.Store
	lock   *lock.FileLock
	log    *logging.Logger

	// Fixed at open from the committed metadata.
	id        string
	chunkSize int

	// closeMu is held shared by running operations and exclusively by Close.
	closeMu sync.RWMutex
	closed  bool
}

// Open opens the queue at cfg.Path, creating the directory, lock file and
// metadata on first use, and runs recovery.
func Open(cfg Config) (*DiskQueue, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, fmt.Errorf("invalid queue config: %w", err)
	}

	// Create directory
	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create queue directory: %w", err)
	}

	fl, err := lock.Open(cfg.Path, cfg.LockPollInterval)
	if err != nil {
		return nil, err
	}

	syncWrites := cfg.Sync == SyncImmediate
	q := &DiskQueue{
		cfg:    cfg,
		codec:  compression.Config{Type: cfg.Compression, Level: cfg.CompressionLevel},
		chunks: chunk.New(cfg.Path, syncWrites),
		meta:   meta.NewStore(cfg.Path, syncWrites),
		lock:   fl,
		log:    cfg.Logger.With(logging.F("path", cfg.Path)),
	}

	// Recover from disk
	if err := q.withLock(context.Background(), q.recover); err != nil {
		fl.Close()
		return nil, fmt.Errorf("failed to recover queue: %w", err)
	}
	return q, nil
}

// Path returns the queue directory.
func (q *DiskQueue) Path() string {
	return q.cfg.Path
}

// ID returns the identifier minted when the queue directory was initialized.
func (q *DiskQueue) ID() string {
	return q.id
}

// ChunkSize returns the number of records per chunk file.
func (q *DiskQueue) ChunkSize() int {
	return q.chunkSize
}

// Put appends payload to the queue, blocking until the directory lock is held.
func (q *DiskQueue) Put(payload []byte) error {
	return q.PutContext(context.Background(), payload)
}

// PutContext is Put with a deadline on lock acquisition.
func (q *DiskQueue) PutContext(ctx context.Context, payload []byte) error {
	rec, err := record.Encode(payload, q.codec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	if stored := len(rec) - record.HeaderSize; stored > q.cfg.MaxRecordSize {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrRecordTooLarge, stored, q.cfg.MaxRecordSize)
	}

	return q.withLock(ctx, func() error {
		m, err := q.load()
		if err != nil {
			return err
		}

		end, err := q.chunks.Append(m.Head.Chunk, m.Head.Offset, rec)
		if err != nil {
			return err
		}
		written := m.Head.Chunk
		var rolled bool
		m.Head, rolled = m.Head.Advance(m.ChunkSize, end)
		m.Size++

		if err := q.save(m); err != nil {
			return err
		}

		IncrementPut(len(payload))
		SetSize(q.cfg.Path, m.Size)
		if rolled {
			IncrementChunkRotation()
			q.log.Debug("chunk full, head rolled", logging.F("chunk", chunk.Name(written), "next", chunk.Name(m.Head.Chunk)))
		}
		return nil
	})
}

// Get removes and returns the oldest payload. It returns ErrEmpty when no
// record is pending.
func (q *DiskQueue) Get() ([]byte, error) {
	return q.GetContext(context.Background())
}

// GetContext is Get with a deadline on lock acquisition.
func (q *DiskQueue) GetContext(ctx context.Context) ([]byte, error) {
	var payload []byte
	err := q.withLock(ctx, func() error {
		m, err := q.load()
		if err != nil {
			return err
		}
		if m.Empty() {
			IncrementGetEmpty()
			return ErrEmpty
		}

		data, n, err := q.chunks.ReadAt(m.Tail.Chunk, m.Tail.Offset)
		if err != nil {
			if errors.Is(err, record.ErrMalformed) || errors.Is(err, os.ErrNotExist) {
				IncrementIntegrityError()
				q.log.Error("unreadable record at tail", logging.F("tail", m.Tail.String(), "error", err.Error()))
				return fmt.Errorf("%w: %w", ErrIntegrity, err)
			}
			return err
		}

		consumed := m.Tail.Chunk
		var rolled bool
		m.Tail, rolled = m.Tail.Advance(m.ChunkSize, m.Tail.Offset+n)
		m.Size--

		// Commit before deleting: a crash in between leaves a stale chunk
		// below the tail, which recovery removes.
		if err := q.save(m); err != nil {
			return err
		}
		if rolled {
			if err := q.chunks.Delete(consumed); err != nil {
				q.log.Warn("failed to delete consumed chunk", logging.F("chunk", chunk.Name(consumed), "error", err.Error()))
			} else {
				IncrementChunkDeletion()
				q.log.Debug("consumed chunk deleted", logging.F("chunk", chunk.Name(consumed)))
			}
		}

		IncrementGet(len(data))
		SetSize(q.cfg.Path, m.Size)
		payload = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// Size returns the committed number of records in the queue.
func (q *DiskQueue) Size() (int64, error) {
	return q.SizeContext(context.Background())
}

// SizeContext is Size with a deadline on lock acquisition.
func (q *DiskQueue) SizeContext(ctx context.Context) (int64, error) {
	m, err := q.SnapshotContext(ctx)
	if err != nil {
		return 0, err
	}
	SetSize(q.cfg.Path, m.Size)
	return m.Size, nil
}

// Snapshot returns a copy of the committed metadata.
func (q *DiskQueue) Snapshot() (meta.Metadata, error) {
	return q.SnapshotContext(context.Background())
}

// SnapshotContext is Snapshot with a deadline on lock acquisition.
func (q *DiskQueue) SnapshotContext(ctx context.Context) (meta.Metadata, error) {
	var m meta.Metadata
	err := q.withLock(ctx, func() error {
		var err error
		m, err = q.load()
		return err
	})
	return m, err
}

// ChunkFiles returns the names of the chunk files currently on disk. The
// listing is taken under the queue lock.
func (q *DiskQueue) ChunkFiles() ([]string, error) {
	var names []string
	err := q.withLock(context.Background(), func() error {
		nums, err := q.chunks.List()
		if err != nil {
			return err
		}
		names = make([]string, len(nums))
		for i, n := range nums {
			names[i] = chunk.Name(n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// Close releases the lock file. Data is already durable; Close waits for
// running operations to finish.
func (q *DiskQueue) Close() error {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	DeleteSize(q.cfg.Path)
	return q.lock.Close()
}

// withLock runs fn while holding the directory lock, releasing it on every
// return path.
func (q *DiskQueue) withLock(ctx context.Context, fn func() error) (err error) {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	if q.closed {
		return ErrClosed
	}

	start := time.Now()
	if err := q.lock.LockContext(ctx); err != nil {
		return err
	}
	ObserveLockWait(time.Since(start).Seconds())
	defer func() {
		if unlockErr := q.lock.Unlock(); unlockErr != nil && err == nil {
			err = unlockErr
		}
	}()

	return fn()
}

// load reads the committed metadata. Must hold the lock.
func (q *DiskQueue) load() (meta.Metadata, error) {
	m, exists, err := q.meta.Load(q.chunkSize)
	if err != nil {
		return meta.Metadata{}, err
	}
	if !exists {
		return meta.Metadata{}, fmt.Errorf("%w: %s is missing", meta.ErrCorrupt, q.meta.Path())
	}
	return m, nil
}

// save commits m. Must hold the lock.
func (q *DiskQueue) save(m meta.Metadata) error {
	if err := q.meta.Save(m); err != nil {
		return err
	}
	IncrementMetaSave()
	return nil
}
